package notification

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"sentinel/internals/modules/alert"
)

const defaultSMTPTimeout = 10 * time.Second

// EmailDeliverer talks SMTP directly so every step honours the context deadline.
type EmailDeliverer struct {
	// TLSConfig overrides the STARTTLS config, tests only.
	TLSConfig *tls.Config
}

func (d *EmailDeliverer) Deliver(ctx context.Context, a alert.Alert, cfg ChannelConfig) error {
	c, ok := cfg.(EmailConfig)
	if !ok {
		return mismatch(ChannelEmail, cfg)
	}

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultSMTPTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return err
	}

	client, err := smtp.NewClient(conn, c.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if c.StartTLS {
		tlsCfg := d.TLSConfig
		if tlsCfg == nil {
			tlsCfg = &tls.Config{ServerName: c.Host, MinVersion: tls.VersionTLS12}
		}
		if err := client.StartTLS(tlsCfg); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if c.Username != "" {
		if err := client.Auth(smtp.PlainAuth("", c.Username, c.Password, c.Host)); err != nil {
			// bad credentials do not heal on retry
			return permanent(fmt.Errorf("smtp auth: %w", err))
		}
	}

	if err := client.Mail(c.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, rcpt := range c.To {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(buildEmail(c, a)); err != nil {
		w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return client.Quit()
}

func buildEmail(c EmailConfig, a alert.Alert) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", c.From)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(c.To, ", "))
	fmt.Fprintf(&sb, "Subject: [sentinel] %s\r\n", title(a))
	fmt.Fprintf(&sb, "Date: %s\r\n", a.TriggeredAt.UTC().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(a.Message)
	sb.WriteString("\r\n\r\n")
	fmt.Fprintf(&sb, "Alert: %s\r\nMonitor: %s\r\nTriggered: %s\r\n",
		a.ID, a.MonitorID, a.TriggeredAt.UTC().Format(time.RFC3339))
	return []byte(sb.String())
}

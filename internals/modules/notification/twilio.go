package notification

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sentinel/internals/modules/alert"
)

const twilioBaseURL = "https://api.twilio.com"

// TwilioDeliverer sends SMS messages and voice calls through a
// Twilio-compatible REST API, one request per recipient.
type TwilioDeliverer struct {
	client *http.Client
}

func (d *TwilioDeliverer) Deliver(ctx context.Context, a alert.Alert, cfg ChannelConfig) error {
	var (
		c        TwilioConfig
		resource string
		form     func(to string) url.Values
	)
	switch cc := cfg.(type) {
	case SMSConfig:
		c, resource = TwilioConfig(cc), "Messages.json"
		body := fmt.Sprintf("%s: %s", title(a), a.Message)
		form = func(to string) url.Values {
			return url.Values{"To": {to}, "From": {c.From}, "Body": {body}}
		}
	case VoiceConfig:
		c, resource = TwilioConfig(cc), "Calls.json"
		twiml := sayTwiML(fmt.Sprintf("%s. %s", title(a), a.Message))
		form = func(to string) url.Values {
			return url.Values{"To": {to}, "From": {c.From}, "Twiml": {twiml}}
		}
	default:
		return mismatch(ChannelSMS, cfg)
	}

	base := c.BaseURL
	if base == "" {
		base = twilioBaseURL
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/%s",
		strings.TrimRight(base, "/"), url.PathEscape(c.AccountSID), resource)

	var (
		errs         []error
		allPermanent = true
	)
	for _, to := range c.To {
		if err := d.post(ctx, endpoint, c, form(to)); err != nil {
			allPermanent = allPermanent && IsPermanent(err)
			// %v drops the permanent marker; only an all-permanent failure keeps it
			errs = append(errs, fmt.Errorf("%s: %v", to, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if allPermanent {
		return permanent(errors.Join(errs...))
	}
	return errors.Join(errs...)
}

func (d *TwilioDeliverer) post(ctx context.Context, endpoint string, c TwilioConfig, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return permanent(err)
	}
	req.SetBasicAuth(c.AccountSID, c.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	return checkResponse(resp)
}

func sayTwiML(text string) string {
	var sb strings.Builder
	sb.WriteString("<Response><Say>")
	_ = xml.EscapeText(&sb, []byte(text))
	sb.WriteString("</Say></Response>")
	return sb.String()
}

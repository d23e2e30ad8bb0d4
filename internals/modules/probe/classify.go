package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// classifyError maps a transport error to one of the ErrClass values.
func classifyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrClassTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return ErrClassTimeout
		}
		return ErrClassDNS
	}

	if isTLSError(err) {
		return ErrClassTLS
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return ErrClassConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrClassTimeout
		}
		return ErrClassNetwork
	}

	return ErrClassUnknown
}

func isTLSError(err error) bool {
	var (
		verifyErr   *tls.CertificateVerificationError
		recordErr   tls.RecordHeaderError
		alertErr    tls.AlertError
		unknownAuth x509.UnknownAuthorityError
		hostErr     x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostErr) ||
		errors.As(err, &invalidErr)
}

func errorMessage(class string, err error) string {
	return fmt.Sprintf("%s: %v", class, err)
}

package probe

import (
	"crypto/tls"
	"crypto/x509/pkix"
	"math"
	"time"
)

const day = 24 * time.Hour

// DaysUntilExpiry is ceil((expiry - now) / 1 day). Negative once expired.
func DaysUntilExpiry(expiry, now time.Time) int {
	return int(math.Ceil(float64(expiry.Sub(now)) / float64(day)))
}

func tlsInfo(state *tls.ConnectionState, now time.Time) *TLSInfo {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	return &TLSInfo{
		Issuer:          name(leaf.Issuer),
		Subject:         name(leaf.Subject),
		ExpiresAt:       leaf.NotAfter,
		DaysUntilExpiry: DaysUntilExpiry(leaf.NotAfter, now),
	}
}

func name(n pkix.Name) string {
	if n.CommonName != "" {
		return n.CommonName
	}
	return n.String()
}

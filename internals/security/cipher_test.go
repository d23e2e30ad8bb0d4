package security

import (
	"testing"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMasterKey = "0123456789abcdef0123456789abcdef"

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(testMasterKey)
	require.NoError(t, err)
	return c
}

func flipChar(s string, i int) string {
	b := []byte(s)
	if b[i] == 'A' {
		b[i] = 'B'
	} else {
		b[i] = 'A'
	}
	return string(b)
}

func TestNewCipherRejectsShortKey(t *testing.T) {
	_, err := NewCipher("too-short")
	assert.ErrorIs(t, err, ErrMasterKeyTooShort)
}

func TestEncryptIsRandomisedAndRoundTrips(t *testing.T) {
	c := newTestCipher(t)
	const secret = "smtp-password-s3cr3t"

	seen := map[string]bool{}
	for range 3 {
		ct, err := c.Encrypt(secret)
		require.NoError(t, err)
		assert.NotContains(t, ct, secret)
		seen[ct] = true

		pt, err := c.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, secret, pt)
	}
	assert.Len(t, seen, 3, "identical plaintext must produce distinct ciphertexts")
}

func TestDecryptFailsOnAnyFlippedCharacter(t *testing.T) {
	c := newTestCipher(t)
	ct, err := c.Encrypt("webhook-signing-secret")
	require.NoError(t, err)

	for i := range len(ct) {
		_, err := c.Decrypt(flipChar(ct, i))
		require.Errorf(t, err, "tampering at position %d went unnoticed", i)
		assert.True(t, apperror.IsKind(err, apperror.Integrity))
	}
}

func TestDecryptRejectsGarbage(t *testing.T) {
	c := newTestCipher(t)

	for _, in := range []string{"", "abc", "!!!not-base64!!!"} {
		_, err := c.Decrypt(in)
		assert.Error(t, err)
	}
}

func TestDecryptWithDifferentMasterKeyFails(t *testing.T) {
	a := newTestCipher(t)
	b, err := NewCipher("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)

	ct, err := a.Encrypt("secret")
	require.NoError(t, err)

	_, err = b.Decrypt(ct)
	assert.True(t, apperror.IsKind(err, apperror.Integrity))
}

type smtpSettings struct {
	Host  string   `json:"host"`
	Port  int      `json:"port"`
	To    []string `json:"to"`
	Extra map[string]string
}

func TestObjectRoundTrip(t *testing.T) {
	c := newTestCipher(t)
	in := smtpSettings{Host: "smtp.example.com", Port: 587, To: []string{"ops@example.com"}, Extra: map[string]string{"k": "v"}}

	ct, err := c.EncryptObject(in)
	require.NoError(t, err)

	var out smtpSettings
	require.NoError(t, c.DecryptObject(ct, &out))
	assert.Equal(t, in, out)
}

func TestTenantCipherIsBoundToTenant(t *testing.T) {
	c := newTestCipher(t)
	tenantA, tenantB := uuid.New(), uuid.New()

	ct, err := c.ForTenant(tenantA).EncryptObject(map[string]any{"api_token": "abc"})
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, c.ForTenant(tenantA).DecryptObject(ct, &out))
	assert.Equal(t, "abc", out["api_token"])

	err = c.ForTenant(tenantB).DecryptObject(ct, &out)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Integrity))

	// unbound cipher can't open tenant-bound blobs either
	_, err = c.Decrypt(ct)
	assert.Error(t, err)
}

func TestTenantCipherStringRoundTrip(t *testing.T) {
	tc := newTestCipher(t).ForTenant(uuid.New())

	ct, err := tc.Encrypt("twilio-auth-token")
	require.NoError(t, err)
	pt, err := tc.Decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, "twilio-auth-token", pt)
}

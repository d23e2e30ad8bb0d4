package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"sentinel/pkg/apperror"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	saltSize = 16
	keySize  = 32 // AES-256
	hkdfInfo = "sentinel/tenant-secrets/v1"
)

// strict decoding rejects non-canonical trailing bits, so every edited character is detected
var encoding = base64.RawStdEncoding.Strict()

var ErrMasterKeyTooShort = errors.New("encryption master key must be at least 32 bytes")

// Cipher seals tenant secrets with AES-256-GCM. Each call derives a fresh
// key from the master key and a random salt, then uses a random nonce.
// Layout of the encoded output: salt | nonce | ciphertext | tag.
type Cipher struct {
	masterKey []byte
}

func NewCipher(masterKey string) (*Cipher, error) {
	if len(masterKey) < keySize {
		return nil, ErrMasterKeyTooShort
	}
	return &Cipher{masterKey: []byte(masterKey)}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	return c.seal([]byte(plaintext), nil)
}

func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	pt, err := c.open(ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// EncryptObject JSON-encodes v and seals it.
func (c *Cipher) EncryptObject(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", apperror.New(apperror.InvalidInput, "security.cipher.encrypt_object", err)
	}
	return c.seal(raw, nil)
}

// DecryptObject opens ciphertext and JSON-decodes it into out.
func (c *Cipher) DecryptObject(ciphertext string, out any) error {
	raw, err := c.open(ciphertext, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.New(apperror.Integrity, "security.cipher.decrypt_object", err)
	}
	return nil
}

// ForTenant returns a view of c whose output is bound to tenantID.
// A blob sealed for one tenant never opens for another.
func (c *Cipher) ForTenant(tenantID uuid.UUID) *TenantCipher {
	aad := append([]byte("tenant:"), tenantID[:]...)
	return &TenantCipher{c: c, aad: aad}
}

func (c *Cipher) seal(plaintext, aad []byte) (string, error) {
	const op = "security.cipher.encrypt"

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", apperror.New(apperror.Internal, op, fmt.Errorf("generate salt: %w", err))
	}

	aead, err := c.aead(salt)
	if err != nil {
		return "", apperror.New(apperror.Internal, op, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", apperror.New(apperror.Internal, op, fmt.Errorf("generate nonce: %w", err))
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, plaintext, aad)

	return encoding.EncodeToString(out), nil
}

func (c *Cipher) open(ciphertext string, aad []byte) ([]byte, error) {
	const op = "security.cipher.decrypt"

	raw, err := encoding.DecodeString(ciphertext)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.Integrity, Op: op, Err: err, Message: "ciphertext is malformed"}
	}
	if len(raw) < saltSize {
		return nil, &apperror.Error{Kind: apperror.Integrity, Op: op, Message: "ciphertext is too short"}
	}

	aead, err := c.aead(raw[:saltSize])
	if err != nil {
		return nil, apperror.New(apperror.Internal, op, err)
	}

	rest := raw[saltSize:]
	if len(rest) < aead.NonceSize()+aead.Overhead() {
		return nil, &apperror.Error{Kind: apperror.Integrity, Op: op, Message: "ciphertext is too short"}
	}
	nonce, sealed := rest[:aead.NonceSize()], rest[aead.NonceSize():]

	pt, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.Integrity, Op: op, Err: err, Message: "ciphertext failed authentication"}
	}
	return pt, nil
}

func (c *Cipher) aead(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, c.masterKey, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher block: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return aead, nil
}

// TenantCipher is a Cipher bound to one tenant through GCM associated data.
type TenantCipher struct {
	c   *Cipher
	aad []byte
}

func (t *TenantCipher) Encrypt(plaintext string) (string, error) {
	return t.c.seal([]byte(plaintext), t.aad)
}

func (t *TenantCipher) Decrypt(ciphertext string) (string, error) {
	pt, err := t.c.open(ciphertext, t.aad)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

func (t *TenantCipher) EncryptObject(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", apperror.New(apperror.InvalidInput, "security.cipher.encrypt_object", err)
	}
	return t.c.seal(raw, t.aad)
}

func (t *TenantCipher) DecryptObject(ciphertext string, out any) error {
	raw, err := t.c.open(ciphertext, t.aad)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperror.New(apperror.Integrity, "security.cipher.decrypt_object", err)
	}
	return nil
}

package secure

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
)

const (
	// KeySize is the AEAD key size in bytes (AES-256).
	KeySize = 32

	nonceSize = 12
	tagSize   = 16
)

// Codec encrypts and decrypts signing-key material with AES-256-GCM.
// The wire format is base64(nonce || ciphertext || tag) with a 12-byte
// nonce and a 16-byte authentication tag.
//
// The pre-shared key is injected once at startup and must never be logged
// or serialized anywhere.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec builds a codec from a 256-bit pre-shared key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("aead key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to init gcm: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce. A repeated nonce under
// a fixed key breaks GCM confidentiality, so the nonce always comes from
// crypto/rand. This is the client-side half of the contract; the engine uses
// it only for test fixtures.
func (c *Codec) Encrypt(plaintext []byte) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a base64 ciphertext produced by Encrypt. It fails closed:
// malformed base64, truncated input, and tag mismatch all yield
// domain.ErrKeyDecrypt and no plaintext.
func (c *Codec) Decrypt(ciphertextB64 string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed base64", domain.ErrKeyDecrypt)
	}
	if len(raw) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: ciphertext too short", domain.ErrKeyDecrypt)
	}
	plaintext, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", domain.ErrKeyDecrypt)
	}
	return plaintext, nil
}

// Zero overwrites key material in place. Callers defer it the moment a
// decrypted key enters scope.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

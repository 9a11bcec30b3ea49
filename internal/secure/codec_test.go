package secure

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/sasiyaluba/Jup-limit-order/internal/domain"
)

func testCodec(t *testing.T) *Codec {
	t.Helper()
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	codec, err := NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := testCodec(t)

	plaintexts := [][]byte{
		[]byte("x"),
		[]byte("a raw ed25519 signing key goes here"),
		bytes.Repeat([]byte{0xAB}, 64),
	}

	for _, pt := range plaintexts {
		sealed, err := codec.Encrypt(pt)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		got, err := codec.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if !bytes.Equal(got, pt) {
			t.Errorf("round trip mismatch: got %x, want %x", got, pt)
		}
	}
}

func TestCodec_TamperDetection(t *testing.T) {
	codec := testCodec(t)

	sealed, err := codec.Encrypt([]byte("secret signing key"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}
	raw, _ := base64.StdEncoding.DecodeString(sealed)

	// Flip one bit at every byte position: nonce, body, and tag must all
	// be covered by authentication.
	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		_, err := codec.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		if !errors.Is(err, domain.ErrKeyDecrypt) {
			t.Fatalf("bit flip at byte %d not detected: err = %v", i, err)
		}
	}
}

func TestCodec_MalformedInput(t *testing.T) {
	codec := testCodec(t)

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"empty", ""},
		{"too short", base64.StdEncoding.EncodeToString([]byte("short"))},
		{"nonce only", base64.StdEncoding.EncodeToString(make([]byte, 12))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := codec.Decrypt(tt.input)
			if !errors.Is(err, domain.ErrKeyDecrypt) {
				t.Errorf("Decrypt(%q) err = %v, want ErrKeyDecrypt", tt.input, err)
			}
		})
	}
}

func TestCodec_NonceUniqueness(t *testing.T) {
	codec := testCodec(t)
	plaintext := []byte("same plaintext every time")

	seen := make(map[string]bool)
	for i := 0; i < 64; i++ {
		sealed, err := codec.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt failed: %v", err)
		}
		if seen[sealed] {
			t.Fatal("two encryptions of the same plaintext produced identical ciphertexts")
		}
		seen[sealed] = true
	}
}

func TestNewCodec_RejectsBadKeySize(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewCodec(make([]byte, n)); err == nil {
			t.Errorf("NewCodec accepted %d-byte key", n)
		}
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped: %d", i, v)
		}
	}
}

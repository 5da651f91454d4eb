package crypto

import (
	"crypto/sha256"
	"fmt"
	"io"
	"time"

	"github.com/fernet/fernet-go"
	"golang.org/x/crypto/hkdf"
)

// wireKeyPrefix seeds the daily shared key. Every node on the LAN derives
// the same key from the same UTC date, so peers can decrypt each other's
// headers with no exchange protocol. This is shared-secret-by-convention
// and a known security limitation of the design, not a bug.
const wireKeyPrefix = "GhostNet-"

// WireCipher encrypts transport headers with the date-derived shared key.
// Decryption tries today's key and then yesterday's, which covers clock
// skew between peers and messages in flight across midnight.
type WireCipher struct {
	now func() time.Time
}

// NewWireCipher returns a cipher keyed off the system clock.
func NewWireCipher() *WireCipher {
	return &WireCipher{now: time.Now}
}

func hkdfBytes(secret []byte, info string, n int) ([]byte, error) {
	h := hkdf.New(sha256.New, secret, nil, []byte(info))
	out := make([]byte, n)
	if _, err := io.ReadFull(h, out); err != nil {
		return nil, err
	}
	return out, nil
}

// keyFor derives the shared key for the UTC calendar day containing t.
func (w *WireCipher) keyFor(t time.Time) (*fernet.Key, error) {
	material := wireKeyPrefix + t.UTC().Format("2006-01-02")
	raw, err := hkdfBytes([]byte(material), "header-key", len(fernet.Key{}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDerivation, err)
	}
	var k fernet.Key
	copy(k[:], raw)
	return &k, nil
}

// Encrypt seals a header plaintext under today's key. The token is
// base64url, so the framing delimiter can never appear inside it.
func (w *WireCipher) Encrypt(plaintext []byte) ([]byte, error) {
	k, err := w.keyFor(w.now())
	if err != nil {
		return nil, err
	}
	tok, err := fernet.EncryptAndSign(plaintext, k)
	if err != nil {
		return nil, fmt.Errorf("crypto: encrypt header: %w", err)
	}
	return tok, nil
}

// Decrypt opens a header token under today's key, then yesterday's.
// Tokens that authenticate under neither yield ErrDecrypt.
func (w *WireCipher) Decrypt(token []byte) ([]byte, error) {
	now := w.now()
	today, err := w.keyFor(now)
	if err != nil {
		return nil, err
	}
	yesterday, err := w.keyFor(now.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	msg := fernet.VerifyAndDecrypt(token, 0, []*fernet.Key{today, yesterday})
	if msg == nil {
		return nil, ErrDecrypt
	}
	return msg, nil
}

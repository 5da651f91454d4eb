package crypto

import (
	"fmt"

	"github.com/fernet/fernet-go"
)

// StorageCipher encrypts message content at rest with the per-installation
// key from the key file. A cipher whose key failed to load is still usable
// as a value, but every call returns ErrKeyUnavailable; nothing ever
// proceeds unencrypted.
type StorageCipher struct {
	key *fernet.Key
}

// LoadStorageCipher loads (or on first run creates) the key at path and
// wraps it. On failure the returned cipher is non-nil but disabled, so the
// caller can keep running in a degraded mode where persistence is off.
func LoadStorageCipher(path string) (*StorageCipher, error) {
	key, err := LoadOrCreateKey(path)
	if err != nil {
		return &StorageCipher{}, fmt.Errorf("%w: %v", ErrKeyUnavailable, err)
	}
	return &StorageCipher{key: key}, nil
}

// Ready reports whether the cipher holds a usable key.
func (c *StorageCipher) Ready() bool {
	return c != nil && c.key != nil
}

// Encrypt seals plaintext into a fernet token.
func (c *StorageCipher) Encrypt(plaintext []byte) ([]byte, error) {
	if !c.Ready() {
		return nil, ErrKeyUnavailable
	}
	tok, err := fernet.EncryptAndSign(plaintext, c.key)
	if err != nil {
		return nil, fmt.Errorf("crypto: encrypt: %w", err)
	}
	return tok, nil
}

// Decrypt opens a token produced by Encrypt. Tampered or foreign tokens
// yield ErrDecrypt.
func (c *StorageCipher) Decrypt(token []byte) ([]byte, error) {
	if !c.Ready() {
		return nil, ErrKeyUnavailable
	}
	msg := fernet.VerifyAndDecrypt(token, 0, []*fernet.Key{c.key})
	if msg == nil {
		return nil, ErrDecrypt
	}
	return msg, nil
}

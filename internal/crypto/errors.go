package crypto

import "errors"

var (
	// ErrKeyUnavailable is returned by every StorageCipher operation when
	// the storage key could not be loaded or created. Callers get a loud
	// failure instead of a silent pass-through.
	ErrKeyUnavailable = errors.New("crypto: storage key unavailable")

	// ErrKeyDerivation is returned when the date-derived wire key cannot
	// be produced. This is fatal for the affected operation; falling back
	// to a random key would orphan everything peers send.
	ErrKeyDerivation = errors.New("crypto: wire key derivation failed")

	// ErrDecrypt is returned when a token fails authentication under
	// every candidate key.
	ErrDecrypt = errors.New("crypto: decrypt failed")
)

package protocol

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Checksum returns the hex SHA-256 of b.
func Checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// FileChecksum streams the file at path through SHA-256 and returns the
// hex digest. Senders call this before announcing a transfer; receivers
// recompute it over the received bytes.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

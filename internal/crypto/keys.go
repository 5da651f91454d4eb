package crypto

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fernet/fernet-go"
)

// LoadOrCreateKey returns the storage key persisted at path, generating
// and writing one on first run. The file is created with O_EXCL and mode
// 0600, so when two processes race on first start exactly one writes the
// key and the loser re-reads the winner's file.
func LoadOrCreateKey(path string) (*fernet.Key, error) {
	for attempt := 0; attempt < 2; attempt++ {
		data, err := os.ReadFile(path)
		if err == nil {
			k, derr := fernet.DecodeKey(strings.TrimSpace(string(data)))
			if derr != nil {
				return nil, fmt.Errorf("crypto: key file %s is corrupt: %w", path, derr)
			}
			return k, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("crypto: read key file: %w", err)
		}

		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("crypto: create key dir: %w", err)
			}
		}

		var k fernet.Key
		if err := k.Generate(); err != nil {
			return nil, fmt.Errorf("crypto: generate key: %w", err)
		}

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				// Lost the race; loop back and read the winner's key.
				continue
			}
			return nil, fmt.Errorf("crypto: create key file: %w", err)
		}
		_, werr := f.WriteString(k.Encode())
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return nil, fmt.Errorf("crypto: write key file: %w", werr)
		}
		return &k, nil
	}
	return nil, fmt.Errorf("crypto: key file %s keeps disappearing", path)
}

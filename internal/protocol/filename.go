package protocol

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// FallbackFilename stands in when sanitization leaves nothing usable.
const FallbackFilename = "received_file"

// maxFilenameBytes keeps names within common filesystem limits.
const maxFilenameBytes = 255

func allowedFilenameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '.', '-', '_', ' ', '(', ')':
		return true
	}
	return false
}

// SanitizeFilename reduces an untrusted remote filename to something safe
// to create inside the downloads directory. Path components are stripped
// first (both separator styles, since the sender's OS is unknown), then
// every rune outside a small allowlist is dropped, and the result is
// truncated to 255 bytes keeping the extension. Names that vanish under
// sanitization become FallbackFilename. Already-safe names pass through
// unchanged.
func SanitizeFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))

	var b strings.Builder
	for _, r := range base {
		if allowedFilenameRune(r) {
			b.WriteRune(r)
		}
	}
	out := b.String()

	if out == "" || out == "." || out == ".." {
		return FallbackFilename
	}
	if len(out) > maxFilenameBytes {
		out = truncateFilename(out)
	}
	return out
}

func truncateFilename(name string) string {
	ext := filepath.Ext(name)
	if len(ext) >= maxFilenameBytes {
		ext = ""
	}
	cut := maxFilenameBytes - len(ext)
	stem := name[:len(name)-len(ext)]
	if cut > len(stem) {
		cut = len(stem)
	}
	for cut > 0 && cut < len(stem) && !utf8.RuneStart(stem[cut]) {
		cut--
	}
	return stem[:cut] + ext
}

// UniquePath returns path untouched when nothing exists there, otherwise
// the first name_1.ext, name_2.ext, ... variant that is free. A stat error
// other than not-exist ends the scan; the subsequent create will report
// the real problem.
func UniquePath(path string) string {
	if _, err := os.Stat(path); err != nil {
		return path
	}
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	for i := 1; ; i++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Stat(cand); err != nil {
			return cand
		}
	}
}

package protocol

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"already safe", "photo (1).jpg", "photo (1).jpg"},
		{"traversal", "../../etc/passwd", "passwd"},
		{"windows traversal", `..\..\windows\system32\evil.exe`, "evil.exe"},
		{"absolute path", "/var/log/syslog", "syslog"},
		{"shell metacharacters", "a;rm -rf|b.txt", "arm -rfb.txt"},
		{"angle brackets", "<script>.txt", "script.txt"},
		{"empty", "", FallbackFilename},
		{"dot", ".", FallbackFilename},
		{"dotdot", "..", FallbackFilename},
		{"only junk", "<<>>??**", FallbackFilename},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SanitizeFilename(tc.in)
			assert.Equal(t, tc.want, got)
			assert.NotContains(t, got, "/")
			assert.NotContains(t, got, `\`)
		})
	}
}

func TestSanitizeFilenameIdempotent(t *testing.T) {
	for _, name := range []string{"notes.txt", "archive.tar.gz", "a b (2).png", FallbackFilename} {
		once := SanitizeFilename(name)
		assert.Equal(t, once, SanitizeFilename(once))
	}
}

func TestSanitizeFilenameTruncates(t *testing.T) {
	long := strings.Repeat("a", 400) + ".txt"
	got := SanitizeFilename(long)
	assert.LessOrEqual(t, len(got), 255)
	assert.True(t, strings.HasSuffix(got, ".txt"), "extension must survive truncation, got %q", got)
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")

	// Nothing there yet: the original path wins.
	assert.Equal(t, path, UniquePath(path))

	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	first := UniquePath(path)
	assert.Equal(t, filepath.Join(dir, "report_1.pdf"), first)

	require.NoError(t, os.WriteFile(first, []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "report_2.pdf"), UniquePath(path))
}

func TestFileChecksum(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o644))

	sum, err := FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, Checksum([]byte("payload")), sum)

	_, err = FileChecksum(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

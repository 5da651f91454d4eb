package protocol

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader feeds the underlying data n bytes at a time, the way a slow
// TCP peer would.
type chunkReader struct {
	data []byte
	n    int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(c.data) {
		n = len(c.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestReadHeaderBlock(t *testing.T) {
	wire := []byte("ENCRYPTEDTOKEN" + HeaderDelimiter + "tail bytes")

	header, rest, err := ReadHeaderBlock(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, "ENCRYPTEDTOKEN", string(header))
	assert.Equal(t, "tail bytes", string(rest))
}

func TestReadHeaderBlockNoTail(t *testing.T) {
	wire := []byte("TOKEN" + HeaderDelimiter)

	header, rest, err := ReadHeaderBlock(bytes.NewReader(wire))
	require.NoError(t, err)
	assert.Equal(t, "TOKEN", string(header))
	assert.Empty(t, rest)
}

func TestReadHeaderBlockDelimiterAcrossReads(t *testing.T) {
	// Split every read so the delimiter always straddles a boundary.
	wire := []byte("ABCDEF" + HeaderDelimiter + "xyz")
	for n := 1; n < len(HeaderDelimiter)+2; n++ {
		header, rest, err := ReadHeaderBlock(&chunkReader{data: append([]byte(nil), wire...), n: n})
		require.NoError(t, err, "chunk size %d", n)
		assert.Equal(t, "ABCDEF", string(header), "chunk size %d", n)
		assert.Equal(t, "xyz", string(rest), "chunk size %d", n)
	}
}

func TestReadHeaderBlockMissingDelimiter(t *testing.T) {
	_, _, err := ReadHeaderBlock(strings.NewReader("no delimiter here"))
	require.ErrorIs(t, err, ErrDelimiterNotFound)
}

func TestReadHeaderBlockOversized(t *testing.T) {
	// Endless stream that never produces the delimiter.
	junk := bytes.Repeat([]byte("A"), MaxHeaderSize+ChunkSize*2)
	_, _, err := ReadHeaderBlock(bytes.NewReader(junk))
	require.ErrorIs(t, err, ErrDelimiterNotFound)
}

package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// ReadHeaderBlock reads from r until HeaderDelimiter is seen and returns
// the bytes before it plus any bytes that arrived after it in the same
// read. The trailing bytes matter: for TEXT messages the sender may have
// flushed part of the body together with the header.
//
// The scan gives up with ErrDelimiterNotFound once MaxHeaderSize bytes
// have accumulated, or when the stream ends first.
func ReadHeaderBlock(r io.Reader) (header, rest []byte, err error) {
	delim := []byte(HeaderDelimiter)
	buf := make([]byte, 0, ChunkSize)
	chunk := make([]byte, ChunkSize)

	for {
		// Resume the search a little before the old tail in case the
		// delimiter straddled two reads.
		start := len(buf) - len(delim) + 1
		if start < 0 {
			start = 0
		}

		n, rerr := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if i := bytes.Index(buf[start:], delim); i >= 0 {
				i += start
				header = buf[:i]
				rest = buf[i+len(delim):]
				return header, rest, nil
			}
			if len(buf) > MaxHeaderSize {
				return nil, nil, fmt.Errorf("%w: header block over %d bytes", ErrDelimiterNotFound, MaxHeaderSize)
			}
		}
		if rerr != nil {
			if rerr == io.EOF {
				return nil, nil, fmt.Errorf("%w: stream ended after %d bytes", ErrDelimiterNotFound, len(buf))
			}
			return nil, nil, rerr
		}
	}
}

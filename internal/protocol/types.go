package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Well-known ports for the LAN protocol. Discovery beacons go out on UDP,
// message and file transfers ride one TCP connection each.
const (
	UDPPort = 37020
	TCPPort = 37021
)

// Message types carried in beacons and headers.
const (
	TypeBeacon = "BEACON"
	TypeText   = "TEXT"
	TypeFile   = "FILE"
)

// HeaderDelimiter terminates the encrypted header block on a transport
// connection. Encrypted headers are base64url tokens, so '<' and '>' can
// never occur inside the block itself.
const HeaderDelimiter = "<HEADER_END>"

const (
	// MaxFileSize is the hard cap on a single file transfer (100 MiB).
	MaxFileSize = 100 << 20

	// MaxHeaderSize bounds how many bytes a receiver will buffer while
	// scanning for the delimiter.
	MaxHeaderSize = 64 << 10

	// ChunkSize is the unit for socket reads and file streaming.
	ChunkSize = 4096
)

// Beacon is the discovery datagram broadcast by every node. It is sent as
// plain JSON; only transport headers are encrypted.
type Beacon struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	IP       string `json:"ip"`
}

// NewBeacon builds a presence beacon for this node.
func NewBeacon(username, ip string) Beacon {
	return Beacon{Type: TypeBeacon, Username: username, IP: ip}
}

// Encode serializes the beacon for broadcast.
func (b Beacon) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// DecodeBeacon parses a received datagram. Anything that is not a
// well-formed BEACON with a source IP is rejected; discovery drops those
// silently.
func DecodeBeacon(data []byte) (Beacon, error) {
	var b Beacon
	if err := json.Unmarshal(data, &b); err != nil {
		return Beacon{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	if b.Type != TypeBeacon || b.IP == "" {
		return Beacon{}, fmt.Errorf("%w: not a beacon", ErrMalformedHeader)
	}
	return b, nil
}

// Header is the metadata block preceding every transport payload. It is
// serialized to JSON, encrypted as one opaque block, and terminated by
// HeaderDelimiter on the wire. Type-specific fields are omitted when empty.
type Header struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Filename  string `json:"filename,omitempty"`
	Filesize  int64  `json:"filesize,omitempty"`
	Checksum  string `json:"checksum,omitempty"`
	Timestamp string `json:"timestamp"`
}

// NewTextHeader builds the header for a text message.
func NewTextHeader(content string, at time.Time) Header {
	return Header{
		Type:      TypeText,
		Content:   content,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// NewFileHeader builds the header announcing a file transfer.
func NewFileHeader(filename string, size int64, checksum string, at time.Time) Header {
	return Header{
		Type:      TypeFile,
		Filename:  filename,
		Filesize:  size,
		Checksum:  checksum,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// Encode serializes the header plaintext. Callers encrypt the result before
// it touches the wire.
func (h Header) Encode() ([]byte, error) {
	return json.Marshal(h)
}

// Time returns the header timestamp, falling back to now when the sender
// supplied garbage. Receivers should not trust remote clocks for anything
// beyond display ordering.
func (h Header) Time() time.Time {
	t, err := time.Parse(time.RFC3339, h.Timestamp)
	if err != nil {
		return time.Now()
	}
	return t
}

// DecodeHeader parses and validates a decrypted header block.
func DecodeHeader(data []byte) (Header, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrMalformedHeader, err)
	}
	switch h.Type {
	case TypeText:
		return h, nil
	case TypeFile:
		// A file header without its integrity fields can never be
		// verified, so it is malformed rather than merely suspicious.
		if h.Filename == "" || h.Checksum == "" || h.Filesize < 0 {
			return Header{}, fmt.Errorf("%w: incomplete file header", ErrMalformedHeader)
		}
		return h, nil
	default:
		return Header{}, fmt.Errorf("%w: unknown type %q", ErrMalformedHeader, h.Type)
	}
}

package store

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
)

const exportTimeLayout = "2006-01-02 15:04:05"

// ExportChat writes the decrypted transcript with peerIP to w in the
// plain text format users expect to read and archive.
func (s *Store) ExportChat(peerIP string, w io.Writer) error {
	entries, err := s.History(peerIP, 10000)
	if err != nil {
		return err
	}
	username, err := s.PeerUsername(peerIP)
	if err != nil {
		return err
	}
	if username == "" {
		username = peerIP
	}

	var b strings.Builder
	b.WriteString("Ghost Net Chat History\n")
	fmt.Fprintf(&b, "Peer: %s (%s)\n", username, peerIP)
	fmt.Fprintf(&b, "Exported: %s\n", time.Now().Format(exportTimeLayout))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, e := range entries {
		sender := username
		if e.Sender == SenderMe {
			sender = "You"
		}
		ts := e.Timestamp.Format(exportTimeLayout)
		if e.MessageType == protocol.TypeFile {
			fmt.Fprintf(&b, "[%s] %s: [FILE] %s\n", ts, sender, e.Content)
			if e.FilePath != "" {
				fmt.Fprintf(&b, "    Path: %s\n", e.FilePath)
			}
		} else {
			fmt.Fprintf(&b, "[%s] %s: %s\n", ts, sender, e.Content)
		}
		b.WriteString("\n")
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("store: export: %w", err)
	}
	return nil
}

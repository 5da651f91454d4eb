package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
)

const (
	// DialTimeout bounds outbound connection attempts to a peer.
	DialTimeout = 5 * time.Second

	// ReceiveTimeout is the per-read deadline on inbound transfers. A
	// sender that stalls longer than this kills the connection rather
	// than pinning a handler forever.
	ReceiveTimeout = 30 * time.Second

	// ioTimeout is the per-write deadline on outbound transfers.
	ioTimeout = 30 * time.Second

	bindRetryDelay = 500 * time.Millisecond
)

// Config wires a Server to its collaborators. DownloadsDir is a func so a
// settings change takes effect on the next transfer without a restart.
type Config struct {
	Port         int
	Wire         *crypto.WireCipher
	DownloadsDir func() string
	OnText       func(peerIP, content string, at time.Time)
	OnFile       func(peerIP, filename, path string, size int64, at time.Time)
	Log          *slog.Logger

	// ReadTimeout defaults to ReceiveTimeout when zero.
	ReadTimeout time.Duration
}

// Server accepts one TCP connection per inbound transfer, decrypts the
// header block, and dispatches on the message type. Connections are
// single-shot: one transfer, then close.
type Server struct {
	cfg Config
	log *slog.Logger
	ln  net.Listener
	reg registry
	wg  sync.WaitGroup
}

func NewServer(cfg Config) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = ReceiveTimeout
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, log: log}
}

// Start binds the transfer listener and launches the accept loop. Bind is
// retried once; a second failure is returned so the engine can run
// degraded with transport off.
func (s *Server) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	addr := fmt.Sprintf(":%d", s.cfg.Port)

	ln, err := lc.Listen(ctx, "tcp4", addr)
	if err != nil {
		time.Sleep(bindRetryDelay)
		ln, err = lc.Listen(ctx, "tcp4", addr)
		if err != nil {
			return fmt.Errorf("transport: bind tcp %s: %w", addr, err)
		}
	}
	s.ln = ln
	s.log.Info("Transport started", "port", s.cfg.Port)

	// Closing the listener unblocks Accept; closing the registered
	// connections unblocks any in-flight transfer reads.
	go func() {
		<-ctx.Done()
		ln.Close()
		s.reg.closeAll()
	}()

	s.wg.Add(1)
	go s.acceptLoop(ctx)
	return nil
}

// Wait blocks until the accept loop and every handler have exited.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Warn("Accept failed", "error", err)
			continue
		}

		s.reg.add(conn)
		s.wg.Add(1)
		go s.handle(conn)
	}
}

// timedConn arms a fresh read deadline before every read so a transfer
// makes progress or dies, chunk by chunk.
type timedConn struct {
	net.Conn
	timeout time.Duration
}

func (t timedConn) Read(p []byte) (int, error) {
	if err := t.Conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return 0, err
	}
	return t.Conn.Read(p)
}

func remoteIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

func (s *Server) handle(conn net.Conn) {
	defer s.wg.Done()
	defer s.reg.remove(conn)
	defer conn.Close()

	peerIP := remoteIP(conn)
	tc := timedConn{Conn: conn, timeout: s.cfg.ReadTimeout}

	block, rest, err := protocol.ReadHeaderBlock(tc)
	if err != nil {
		s.log.Warn("Bad transfer framing", "peer", peerIP, "error", err)
		return
	}
	plain, err := s.cfg.Wire.Decrypt(block)
	if err != nil {
		s.log.Warn("Undecryptable header", "peer", peerIP, "error", err)
		return
	}
	header, err := protocol.DecodeHeader(plain)
	if err != nil {
		s.log.Warn("Malformed header", "peer", peerIP, "error", err)
		return
	}

	switch header.Type {
	case protocol.TypeText:
		// Senders may flush the first body bytes together with the
		// header; whatever followed the delimiter belongs to the message.
		content := header.Content
		if len(rest) > 0 {
			content += string(rest)
		}
		s.log.Info("Message received", "peer", peerIP, "bytes", len(content))
		if s.cfg.OnText != nil {
			s.cfg.OnText(peerIP, content, header.Time())
		}
	case protocol.TypeFile:
		if err := s.receiveFile(tc, peerIP, header, rest); err != nil {
			s.log.Warn("File transfer failed", "peer", peerIP, "file", header.Filename, "error", err)
		}
	}
}

// receiveFile streams exactly header.Filesize bytes into a temporary sink,
// hashing as it goes. Only a transfer whose checksum matches the header is
// moved to its final name; everything else is discarded.
func (s *Server) receiveFile(conn timedConn, peerIP string, header protocol.Header, rest []byte) error {
	if header.Filesize > protocol.MaxFileSize {
		return fmt.Errorf("%w: %d bytes announced", protocol.ErrFileTooLarge, header.Filesize)
	}

	dir := s.cfg.DownloadsDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("transport: downloads dir %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, "."+uuid.NewString()+".part")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("transport: create sink: %w", err)
	}
	discard := func() {
		f.Close()
		os.Remove(tmp)
	}

	hash := sha256.New()
	src := io.MultiReader(bytes.NewReader(rest), conn)
	if _, err := io.CopyN(io.MultiWriter(f, hash), src, header.Filesize); err != nil {
		discard()
		return fmt.Errorf("transport: short transfer of %s: %w", header.Filename, err)
	}
	if sum := hex.EncodeToString(hash.Sum(nil)); sum != header.Checksum {
		discard()
		return fmt.Errorf("%w: expected %s got %s", protocol.ErrChecksumMismatch, header.Checksum, sum)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("transport: close sink: %w", err)
	}

	dst := protocol.UniquePath(filepath.Join(dir, protocol.SanitizeFilename(header.Filename)))
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("transport: place %s: %w", header.Filename, err)
	}

	s.log.Info("File received", "peer", peerIP, "file", header.Filename, "bytes", header.Filesize, "saved", dst)
	if s.cfg.OnFile != nil {
		s.cfg.OnFile(peerIP, header.Filename, dst, header.Filesize, header.Time())
	}
	return nil
}

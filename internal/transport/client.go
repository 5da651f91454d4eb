package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
)

// Client performs outbound transfers. Every send opens one fresh TCP
// connection, writes the encrypted header block, streams the payload if
// any, and closes. There is no retry; a failed send is the caller's news
// to deliver.
type Client struct {
	wire *crypto.WireCipher
	port int
	log  *slog.Logger
}

func NewClient(wire *crypto.WireCipher, port int, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{wire: wire, port: port, log: log}
}

// SendText delivers one text message to the peer at ip.
func (c *Client) SendText(ctx context.Context, ip, content string, at time.Time) error {
	conn, err := c.dial(ctx, ip)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := c.writeHeader(conn, protocol.NewTextHeader(content, at)); err != nil {
		return err
	}
	c.log.Info("Message sent", "peer", ip, "bytes", len(content))
	return nil
}

// SendFile streams the file at path to the peer at ip. The checksum is
// computed up front so the receiver can verify the payload; progress, when
// non-nil, is called after every chunk with the running byte count.
func (c *Client) SendFile(ctx context.Context, ip, path string, at time.Time, progress func(sent, total int64)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("transport: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("transport: %s is a directory", path)
	}
	size := info.Size()
	if size > protocol.MaxFileSize {
		return fmt.Errorf("%w: %s is %d bytes", protocol.ErrFileTooLarge, path, size)
	}

	checksum, err := protocol.FileChecksum(path)
	if err != nil {
		return err
	}
	filename := filepath.Base(path)

	conn, err := c.dial(ctx, ip)
	if err != nil {
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := c.writeHeader(conn, protocol.NewFileHeader(filename, size, checksum, at)); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, protocol.ChunkSize)
	var sent int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, rerr := f.Read(buf)
		if n > 0 {
			conn.SetWriteDeadline(time.Now().Add(ioTimeout))
			if _, werr := conn.Write(buf[:n]); werr != nil {
				return fmt.Errorf("transport: send %s to %s: %w", filename, ip, werr)
			}
			sent += int64(n)
			if progress != nil {
				progress(sent, size)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return fmt.Errorf("transport: read %s: %w", path, rerr)
		}
	}

	c.log.Info("File sent", "peer", ip, "file", filename, "bytes", sent)
	return nil
}

func (c *Client) dial(ctx context.Context, ip string) (net.Conn, error) {
	d := net.Dialer{Timeout: DialTimeout}
	addr := net.JoinHostPort(ip, strconv.Itoa(c.port))
	conn, err := d.DialContext(ctx, "tcp4", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: connect %s: %w", addr, err)
	}
	return conn, nil
}

func (c *Client) writeHeader(conn net.Conn, header protocol.Header) error {
	plain, err := header.Encode()
	if err != nil {
		return fmt.Errorf("transport: encode header: %w", err)
	}
	token, err := c.wire.Encrypt(plain)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if _, err := conn.Write(append(token, protocol.HeaderDelimiter...)); err != nil {
		return fmt.Errorf("transport: write header: %w", err)
	}
	return nil
}

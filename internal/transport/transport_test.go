package transport

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
)

type textEvent struct {
	peer    string
	content string
}

type fileEvent struct {
	peer     string
	filename string
	path     string
	size     int64
}

type sink struct {
	texts chan textEvent
	files chan fileEvent
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func startServer(t *testing.T) (port int, downloads string, events *sink) {
	t.Helper()
	downloads = t.TempDir()
	events = &sink{
		texts: make(chan textEvent, 8),
		files: make(chan fileEvent, 8),
	}
	port = freeTCPPort(t)

	srv := NewServer(Config{
		Port:         port,
		Wire:         crypto.NewWireCipher(),
		DownloadsDir: func() string { return downloads },
		OnText: func(peer, content string, at time.Time) {
			events.texts <- textEvent{peer: peer, content: content}
		},
		OnFile: func(peer, filename, path string, size int64, at time.Time) {
			events.files <- fileEvent{peer: peer, filename: filename, path: path, size: size}
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Start(ctx))
	return port, downloads, events
}

// rawSend writes pre-built wire bytes straight to the server, bypassing
// the client, so tests can shape hostile input.
func rawSend(t *testing.T, port int, data []byte) {
	t.Helper()
	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(data)
	require.NoError(t, err)
}

func encodeWireHeader(t *testing.T, header protocol.Header) []byte {
	t.Helper()
	plain, err := header.Encode()
	require.NoError(t, err)
	token, err := crypto.NewWireCipher().Encrypt(plain)
	require.NoError(t, err)
	return append(token, protocol.HeaderDelimiter...)
}

func TestTextRoundTrip(t *testing.T) {
	port, _, events := startServer(t)

	client := NewClient(crypto.NewWireCipher(), port, nil)
	err := client.SendText(context.Background(), "127.0.0.1", "hello over the lan", time.Now())
	require.NoError(t, err)

	select {
	case ev := <-events.texts:
		require.Equal(t, "127.0.0.1", ev.peer)
		require.Equal(t, "hello over the lan", ev.content)
	case <-time.After(3 * time.Second):
		t.Fatal("text message never arrived")
	}
}

func TestTextTrailingBytesJoinContent(t *testing.T) {
	port, _, events := startServer(t)

	wire := encodeWireHeader(t, protocol.NewTextHeader("head", time.Now()))
	rawSend(t, port, append(wire, []byte(" and tail")...))

	select {
	case ev := <-events.texts:
		require.Equal(t, "head and tail", ev.content)
	case <-time.After(3 * time.Second):
		t.Fatal("text message never arrived")
	}
}

func TestFileRoundTrip(t *testing.T) {
	port, downloads, events := startServer(t)

	payload := bytes.Repeat([]byte("ghostnet"), 2048)
	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	var progress []int64
	client := NewClient(crypto.NewWireCipher(), port, nil)
	err := client.SendFile(context.Background(), "127.0.0.1", src, time.Now(), func(sent, total int64) {
		require.Equal(t, int64(len(payload)), total)
		progress = append(progress, sent)
	})
	require.NoError(t, err)

	var ev fileEvent
	select {
	case ev = <-events.files:
	case <-time.After(3 * time.Second):
		t.Fatal("file never arrived")
	}

	require.Equal(t, "notes.txt", ev.filename)
	require.Equal(t, int64(len(payload)), ev.size)
	require.Equal(t, filepath.Join(downloads, "notes.txt"), ev.path)

	got, err := os.ReadFile(ev.path)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	require.NotEmpty(t, progress)
	require.Equal(t, int64(len(payload)), progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		require.Greater(t, progress[i], progress[i-1])
	}
}

func TestFileNameCollisionGetsSuffix(t *testing.T) {
	port, downloads, events := startServer(t)

	src := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(src, []byte("same name twice"), 0o644))

	client := NewClient(crypto.NewWireCipher(), port, nil)
	for i := 0; i < 2; i++ {
		require.NoError(t, client.SendFile(context.Background(), "127.0.0.1", src, time.Now(), nil))
		select {
		case <-events.files:
		case <-time.After(3 * time.Second):
			t.Fatal("file never arrived")
		}
	}

	_, err := os.Stat(filepath.Join(downloads, "notes.txt"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(downloads, "notes_1.txt"))
	require.NoError(t, err)
}

func TestChecksumMismatchDiscardsFile(t *testing.T) {
	port, downloads, events := startServer(t)

	payload := []byte("hello world")
	header := protocol.NewFileHeader("bad.bin", int64(len(payload)),
		protocol.Checksum([]byte("something else entirely")), time.Now())
	rawSend(t, port, append(encodeWireHeader(t, header), payload...))

	// The temporary sink must be cleaned up and nothing surfaced.
	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(downloads)
		return err == nil && len(entries) == 0
	}, 3*time.Second, 20*time.Millisecond)

	select {
	case ev := <-events.files:
		t.Fatalf("corrupt file surfaced: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestOversizeAnnouncementRejectedBeforePayload(t *testing.T) {
	port, downloads, events := startServer(t)

	header := protocol.NewFileHeader("huge.bin", protocol.MaxFileSize+1,
		protocol.Checksum([]byte("x")), time.Now())

	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write(encodeWireHeader(t, header))
	require.NoError(t, err)

	// The server hangs up without reading any payload.
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	require.Error(t, err)

	entries, err := os.ReadDir(downloads)
	require.NoError(t, err)
	require.Empty(t, entries)

	select {
	case ev := <-events.files:
		t.Fatalf("oversize file surfaced: %+v", ev)
	default:
	}
}

func TestGarbageConnectionDoesNotStopServer(t *testing.T) {
	port, _, events := startServer(t)

	rawSend(t, port, []byte("complete garbage"+protocol.HeaderDelimiter))

	client := NewClient(crypto.NewWireCipher(), port, nil)
	require.NoError(t, client.SendText(context.Background(), "127.0.0.1", "still alive", time.Now()))

	select {
	case ev := <-events.texts:
		require.Equal(t, "still alive", ev.content)
	case <-time.After(3 * time.Second):
		t.Fatal("server stopped serving after garbage input")
	}
}

func TestSendToDeadPeerFails(t *testing.T) {
	port := freeTCPPort(t)
	client := NewClient(crypto.NewWireCipher(), port, nil)
	err := client.SendText(context.Background(), "127.0.0.1", "anyone there", time.Now())
	require.Error(t, err)
}

func TestSendMissingFileFails(t *testing.T) {
	client := NewClient(crypto.NewWireCipher(), freeTCPPort(t), nil)
	err := client.SendFile(context.Background(), "127.0.0.1",
		filepath.Join(t.TempDir(), "nope.bin"), time.Now(), nil)
	require.Error(t, err)
}

func TestShutdownUnblocksHandlers(t *testing.T) {
	downloads := t.TempDir()
	port := freeTCPPort(t)
	srv := NewServer(Config{
		Port:         port,
		Wire:         crypto.NewWireCipher(),
		DownloadsDir: func() string { return downloads },
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))

	// Park a connection mid-header so a handler is blocked in a read.
	conn, err := net.Dial("tcp4", fmt.Sprintf("127.0.0.1:%d", port))
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("partial"))
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	cancel()
	done := make(chan struct{})
	go func() {
		srv.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down with a handler in flight")
	}
}

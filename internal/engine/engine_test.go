package engine

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/config"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
)

type msgEvent struct {
	peer    string
	content string
}

type fileEvent struct {
	peer     string
	filename string
	path     string
}

type events struct {
	messages chan msgEvent
	files    chan fileEvent
	statuses chan Status
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	pc, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	pc.Close()
	return port
}

func freeTCPPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func newNode(t *testing.T, name string, udpPort, tcpPort int) (*Engine, *events, string) {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	require.NoError(t, cfg.Set("db_path", filepath.Join(dir, "ghost.db")))
	require.NoError(t, cfg.Set("key_path", filepath.Join(dir, "secret.key")))
	require.NoError(t, cfg.Set("downloads_dir", filepath.Join(dir, "downloads")))
	require.NoError(t, cfg.Set("udp_port", udpPort))
	require.NoError(t, cfg.Set("tcp_port", tcpPort))
	require.NoError(t, cfg.Set("auto_cleanup", false))
	require.NoError(t, cfg.SetUsername(name))

	ev := &events{
		messages: make(chan msgEvent, 16),
		files:    make(chan fileEvent, 16),
		statuses: make(chan Status, 32),
	}
	eng := New(cfg, Callbacks{
		OnMessage: func(peer, content string, at time.Time) {
			ev.messages <- msgEvent{peer: peer, content: content}
		},
		OnFile: func(peer, filename, path string, at time.Time) {
			ev.files <- fileEvent{peer: peer, filename: filename, path: path}
		},
		OnStatus: func(s Status) { ev.statuses <- s },
	})
	t.Cleanup(func() { _ = eng.Stop() })
	return eng, ev, dir
}

func drainStates(ev *events) []State {
	var seq []State
	for {
		select {
		case s := <-ev.statuses:
			seq = append(seq, s.State)
		default:
			return seq
		}
	}
}

func TestLifecycleAndStatus(t *testing.T) {
	eng, ev, _ := newNode(t, "Lifecycle", freeUDPPort(t), freeTCPPort(t))

	require.NoError(t, eng.Start(context.Background()))
	status := eng.Status()
	require.Equal(t, StateRunning, status.State)
	require.Equal(t, "running", status.Detail)
	require.True(t, status.Discovery)
	require.True(t, status.Transport)
	require.True(t, status.Storage)

	require.ErrorIs(t, eng.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, eng.Stop())
	require.Equal(t, StateStopped, eng.Status().State)
	require.NoError(t, eng.Stop())

	require.Equal(t,
		[]State{StateStarting, StateRunning, StateStopping, StateStopped},
		drainStates(ev))
}

func TestMessageExchangeBetweenNodes(t *testing.T) {
	sharedTCP := freeTCPPort(t)
	bee, beeEv, _ := newNode(t, "Bee", freeUDPPort(t), sharedTCP)
	aye, _, _ := newNode(t, "Aye", freeUDPPort(t), sharedTCP)

	require.NoError(t, bee.Start(context.Background()))
	require.NoError(t, aye.Start(context.Background()))

	// Both nodes want the same TCP port on one host, so the second
	// one comes up without inbound transfers and keeps running.
	status := aye.Status()
	require.False(t, status.Transport)
	require.Equal(t, "degraded: transport off", status.Detail)

	require.NoError(t, aye.SendMessage("127.0.0.1", "hello bee"))

	select {
	case ev := <-beeEv.messages:
		require.Equal(t, "127.0.0.1", ev.peer)
		require.Equal(t, "hello bee", ev.content)
	case <-time.After(3 * time.Second):
		t.Fatal("message never arrived")
	}

	hist, err := bee.GetHistory("127.0.0.1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, store.SenderPeer, hist[0].Sender)
	require.Equal(t, "hello bee", hist[0].Content)

	hist, err = aye.GetHistory("127.0.0.1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, store.SenderMe, hist[0].Sender)
	require.Equal(t, "hello bee", hist[0].Content)
}

func TestFileExchangeBetweenNodes(t *testing.T) {
	sharedTCP := freeTCPPort(t)
	bee, beeEv, beeDir := newNode(t, "Bee", freeUDPPort(t), sharedTCP)
	aye, _, ayeDir := newNode(t, "Aye", freeUDPPort(t), sharedTCP)

	require.NoError(t, bee.Start(context.Background()))
	require.NoError(t, aye.Start(context.Background()))

	payload := []byte("a small file crossing the room")
	src := filepath.Join(ayeDir, "note.txt")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	var lastProgress atomic.Int64
	require.NoError(t, aye.SendFile("127.0.0.1", src, func(sent, total int64) {
		lastProgress.Store(sent)
	}))

	var got fileEvent
	select {
	case got = <-beeEv.files:
	case <-time.After(5 * time.Second):
		t.Fatal("file never arrived")
	}
	require.Equal(t, "note.txt", got.filename)
	require.Equal(t, filepath.Join(beeDir, "downloads", "note.txt"), got.path)

	saved, err := os.ReadFile(got.path)
	require.NoError(t, err)
	require.Equal(t, payload, saved)
	require.Equal(t, int64(len(payload)), lastProgress.Load())

	hist, err := bee.GetHistory("127.0.0.1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "note.txt", hist[0].Content)
	require.Equal(t, got.path, hist[0].FilePath)

	// The sender's record lands after the background transfer returns.
	require.Eventually(t, func() bool {
		hist, err := aye.GetHistory("127.0.0.1", 10)
		return err == nil && len(hist) == 1 &&
			hist[0].Sender == store.SenderMe && hist[0].FilePath == src
	}, 3*time.Second, 50*time.Millisecond)
}

func TestDegradedDiscovery(t *testing.T) {
	blocker, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer blocker.Close()
	udpPort := blocker.LocalAddr().(*net.UDPAddr).Port

	eng, _, _ := newNode(t, "NoBeacon", udpPort, freeTCPPort(t))
	require.NoError(t, eng.Start(context.Background()))

	status := eng.Status()
	require.Equal(t, StateRunning, status.State)
	require.False(t, status.Discovery)
	require.True(t, status.Transport)
	require.Equal(t, "degraded: discovery off", status.Detail)
}

func TestDegradedStorageStillDelivers(t *testing.T) {
	sharedTCP := freeTCPPort(t)
	bee, beeEv, _ := newNode(t, "Bee", freeUDPPort(t), sharedTCP)
	require.NoError(t, bee.Start(context.Background()))

	aye, _, ayeDir := newNode(t, "Amnesiac", freeUDPPort(t), freeTCPPort(t))
	require.NoError(t, aye.cfg.Set("db_path", filepath.Join(ayeDir, "no", "such", "dir", "ghost.db")))
	require.NoError(t, aye.Start(context.Background()))

	status := aye.Status()
	require.False(t, status.Storage)
	require.Equal(t, "degraded: storage off", status.Detail)

	require.NoError(t, aye.SendMessage("127.0.0.1", "still talking"))
	select {
	case ev := <-beeEv.messages:
		require.Equal(t, "still talking", ev.content)
	case <-time.After(3 * time.Second):
		t.Fatal("message never arrived")
	}

	_, err := aye.GetHistory("127.0.0.1", 10)
	require.ErrorIs(t, err, ErrStorageOff)
}

func TestPeerUsernameFallbacks(t *testing.T) {
	eng, _, _ := newNode(t, "Resolver", freeUDPPort(t), freeTCPPort(t))
	require.NoError(t, eng.Start(context.Background()))

	eng.table.Upsert("10.4.4.4", "Live", time.Now())
	require.Equal(t, "Live", eng.PeerUsername("10.4.4.4"))

	require.NoError(t, eng.store.SavePeer("10.5.5.5", "Remembered", time.Now()))
	require.Equal(t, "Remembered", eng.PeerUsername("10.5.5.5"))

	require.Equal(t, "Unknown", eng.PeerUsername("10.6.6.6"))
}

func TestCleanupNow(t *testing.T) {
	eng, _, _ := newNode(t, "Cleaner", freeUDPPort(t), freeTCPPort(t))
	require.NoError(t, eng.Start(context.Background()))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, eng.store.SaveMessage("10.1.1.1", store.SenderMe, "expired", "TEXT", "", old))
	require.NoError(t, eng.store.SaveMessage("10.1.1.1", store.SenderMe, "fresh", "TEXT", "", time.Now()))

	removed, err := eng.CleanupNow()
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	hist, err := eng.GetHistory("10.1.1.1", 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	require.Equal(t, "fresh", hist[0].Content)
}

func TestOpsRejectedWhenStopped(t *testing.T) {
	eng, _, _ := newNode(t, "Idle", freeUDPPort(t), freeTCPPort(t))

	require.ErrorIs(t, eng.SendMessage("10.0.0.1", "anyone"), ErrNotRunning)
	require.ErrorIs(t, eng.SendFile("10.0.0.1", "nope.bin", nil), ErrNotRunning)

	_, err := eng.GetHistory("10.0.0.1", 10)
	require.ErrorIs(t, err, ErrNotRunning)

	_, err = eng.CleanupNow()
	require.ErrorIs(t, err, ErrNotRunning)

	require.Empty(t, eng.GetPeers())
	require.Equal(t, "Unknown", eng.PeerUsername("10.0.0.1"))
	require.False(t, eng.NetworkStatus().Connected)
	require.Equal(t, "stopped", eng.Status().Detail)
}

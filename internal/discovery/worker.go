package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/netutil"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/peers"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
)

const (
	// BeaconInterval is how often this node announces itself.
	BeaconInterval = 2 * time.Second

	// PeerTimeout removes a peer that has gone quiet for this long.
	PeerTimeout = 10 * time.Second

	// PruneInterval is how often the table is scanned for quiet peers.
	PruneInterval = 3 * time.Second

	// readTimeout bounds every socket read so the loop can notice
	// shutdown. This is the only cancellation mechanism.
	readTimeout = time.Second

	bindRetryDelay = 500 * time.Millisecond
)

// Config wires a Worker to its collaborators. Username and LocalIP are
// funcs, not values: both are re-read on every beacon so renames and
// network hops take effect without a restart.
type Config struct {
	Port      int
	Username  func() string
	LocalIP   func() string
	Broadcast func() net.IP
	Table     *peers.Table
	OnPeer    func(p peers.Peer)
	OnChange  func(snapshot []peers.Peer)
	Log       *slog.Logger

	// Intervals default to the package constants when zero.
	BeaconInterval time.Duration
	PruneInterval  time.Duration
	PeerTimeout    time.Duration
}

// Worker owns one UDP socket and the three discovery loops: broadcast,
// listen, prune.
type Worker struct {
	cfg  Config
	log  *slog.Logger
	conn *net.UDPConn
	wg   sync.WaitGroup
}

func New(cfg Config) *Worker {
	if cfg.BeaconInterval <= 0 {
		cfg.BeaconInterval = BeaconInterval
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = PruneInterval
	}
	if cfg.PeerTimeout <= 0 {
		cfg.PeerTimeout = PeerTimeout
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Worker{cfg: cfg, log: log}
}

// Start binds the discovery socket and launches the loops. Bind is
// retried once; a second failure is returned so the engine can run
// degraded with discovery off.
func (w *Worker) Start(ctx context.Context) error {
	conn, err := bind(ctx, w.cfg.Port)
	if err != nil {
		return err
	}
	w.conn = conn
	w.log.Info("Discovery started", "port", w.cfg.Port)

	// Closing the socket is what actually unblocks the listen loop.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	w.wg.Add(3)
	go w.broadcastLoop(ctx)
	go w.listenLoop(ctx)
	go w.pruneLoop(ctx)
	return nil
}

// Wait blocks until every loop has exited after cancellation.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func bind(ctx context.Context, port int) (*net.UDPConn, error) {
	lc := netutil.BroadcastListenConfig()
	addr := fmt.Sprintf(":%d", port)

	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		time.Sleep(bindRetryDelay)
		pc, err = lc.ListenPacket(ctx, "udp4", addr)
		if err != nil {
			return nil, fmt.Errorf("discovery: bind udp %s: %w", addr, err)
		}
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("discovery: unexpected packet conn %T", pc)
	}
	return conn, nil
}

func (w *Worker) broadcastLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.BeaconInterval)
	defer ticker.Stop()

	// Announce immediately; waiting a full interval makes startup feel
	// broken next to a peer that is already listening.
	w.sendBeacon()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.sendBeacon()
		}
	}
}

func (w *Worker) sendBeacon() {
	b := protocol.NewBeacon(w.cfg.Username(), w.cfg.LocalIP())
	data, err := b.Encode()
	if err != nil {
		return
	}
	dst := &net.UDPAddr{IP: w.cfg.Broadcast(), Port: w.cfg.Port}
	if _, err := w.conn.WriteToUDP(data, dst); err != nil {
		w.log.Debug("Beacon send failed", "error", err)
	}
}

func (w *Worker) listenLoop(ctx context.Context) {
	defer w.wg.Done()

	buf := make([]byte, protocol.ChunkSize)
	for {
		if ctx.Err() != nil {
			return
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout))
		n, addr, err := w.conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-ctx.Done():
				return
			default:
			}
			w.log.Warn("Discovery read error", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readTimeout):
			}
			continue
		}
		w.handleBeacon(buf[:n], addr.IP.String())
	}
}

// handleBeacon processes one datagram. Peers are keyed by the datagram
// source address, not the IP claimed inside the beacon; the source is
// the address transfers will actually reach.
func (w *Worker) handleBeacon(data []byte, src string) {
	if src == w.cfg.LocalIP() {
		return
	}
	b, err := protocol.DecodeBeacon(data)
	if err != nil {
		// Anything non-beacon on this port is dropped silently.
		return
	}
	username := b.Username
	if username == "" {
		username = "Unknown"
	}

	now := time.Now()
	changed := w.cfg.Table.Upsert(src, username, now)
	if w.cfg.OnPeer != nil {
		w.cfg.OnPeer(peers.Peer{IP: src, Username: username, LastSeen: now})
	}
	if changed {
		w.log.Info("Peer discovered", "ip", src, "username", username)
		w.notifyChange()
	}
}

func (w *Worker) pruneLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := w.cfg.Table.Prune(time.Now().Add(-w.cfg.PeerTimeout))
			if len(removed) == 0 {
				continue
			}
			for _, p := range removed {
				w.log.Info("Peer timed out", "ip", p.IP, "username", p.Username)
			}
			w.notifyChange()
		}
	}
}

func (w *Worker) notifyChange() {
	if w.cfg.OnChange != nil {
		w.cfg.OnChange(w.cfg.Table.Snapshot())
	}
}

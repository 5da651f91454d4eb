package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/config"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/discovery"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/netutil"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/peers"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/transport"
)

// monitorInterval is how often the engine probes for a network change
// (wifi to hotspot, new address, cable pulled).
const monitorInterval = 5 * time.Second

// Callbacks deliver engine events to the embedding application. All
// callbacks receive plain data and are invoked from engine goroutines;
// a slow callback stalls the path that fired it, so hand off quickly.
type Callbacks struct {
	OnPeers   func(snapshot []peers.Peer)
	OnMessage func(peerIP, content string, at time.Time)
	OnFile    func(peerIP, filename, path string, at time.Time)
	OnStatus  func(status Status)
}

// Engine ties discovery, transport, crypto, and storage together behind
// one lifecycle. Subsystems that fail to start are logged and skipped;
// the engine runs degraded rather than refusing to start, because a LAN
// messenger with no database is still a messenger.
type Engine struct {
	cfg *config.Manager
	cb  Callbacks
	log *slog.Logger

	mu     sync.Mutex
	state  State
	ctx    context.Context
	cancel context.CancelFunc

	wire    *crypto.WireCipher
	table   *peers.Table
	store   *store.Store
	disc    *discovery.Worker
	server  *transport.Server
	client  *transport.Client
	monitor *netutil.Monitor

	discoveryOK bool
	transportOK bool
	storageOK   bool

	saveCh chan peers.Peer
	wg     sync.WaitGroup
}

func New(cfg *config.Manager, cb Callbacks) *Engine {
	return &Engine{
		cfg:    cfg,
		cb:     cb,
		log:    slog.Default(),
		wire:   crypto.NewWireCipher(),
		saveCh: make(chan peers.Peer, 64),
	}
}

// Start brings the engine up under ctx. Storage, discovery, and transport
// each come up independently; any of them failing degrades the engine
// instead of aborting the start. The returned error is reserved for
// states where starting makes no sense at all.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateStopped {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.state = StateStarting
	e.mu.Unlock()
	e.emitStatus()

	runCtx, cancel := context.WithCancel(ctx)

	cipher, err := crypto.LoadStorageCipher(e.cfg.KeyPath())
	if err != nil {
		e.log.Error("Storage key unavailable, history will not be readable", "path", e.cfg.KeyPath(), "error", err)
	}
	st, err := store.Open(e.cfg.DBPath(), cipher)
	if err != nil {
		e.log.Error("Database unavailable, running without persistence", "path", e.cfg.DBPath(), "error", err)
		st = nil
	}
	storageOK := st != nil && cipher.Ready()

	if storageOK && e.cfg.AutoCleanup() {
		if removed, err := st.CleanupOlderThan(e.cfg.RetentionHours()); err != nil {
			e.log.Warn("Startup cleanup failed", "error", err)
		} else if removed > 0 {
			e.log.Info("Startup cleanup removed expired messages", "count", removed)
		}
	}

	monitor := netutil.NewMonitor(e.onNetworkChange)
	table := peers.NewTable()

	disc := discovery.New(discovery.Config{
		Port:     e.cfg.UDPPort(),
		Username: e.cfg.Username,
		LocalIP: func() string {
			ip, _ := monitor.Current()
			return ip
		},
		Broadcast: netutil.SubnetBroadcast,
		Table:     table,
		OnPeer:    e.onPeerSeen,
		OnChange:  e.emitPeers,
		Log:       e.log,
	})
	discoveryOK := true
	if err := disc.Start(runCtx); err != nil {
		discoveryOK = false
		e.log.Error("Discovery unavailable, peers will not be found automatically", "error", err)
	}

	server := transport.NewServer(transport.Config{
		Port:         e.cfg.TCPPort(),
		Wire:         e.wire,
		DownloadsDir: e.cfg.DownloadsDir,
		OnText:       e.onTextReceived,
		OnFile:       e.onFileReceived,
		Log:          e.log,
	})
	transportOK := true
	if err := server.Start(runCtx); err != nil {
		transportOK = false
		e.log.Error("Inbound transfers unavailable, sending still works", "error", err)
	}

	e.mu.Lock()
	e.state = StateRunning
	e.ctx = runCtx
	e.cancel = cancel
	e.table = table
	e.store = st
	e.disc = disc
	e.server = server
	e.client = transport.NewClient(e.wire, e.cfg.TCPPort(), e.log)
	e.monitor = monitor
	e.discoveryOK = discoveryOK
	e.transportOK = transportOK
	e.storageOK = storageOK

	e.wg.Add(1)
	go e.monitorLoop(runCtx, monitor)
	if storageOK {
		e.wg.Add(1)
		go e.persistLoop(runCtx, st)
	}
	e.mu.Unlock()

	e.log.Info("Engine running",
		"username", e.cfg.Username(),
		"discovery", discoveryOK,
		"transport", transportOK,
		"storage", storageOK,
	)
	e.emitStatus()
	return nil
}

// Stop cancels every worker, waits for them to drain, and closes the
// database. Stopping an engine that never started is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return nil
	}
	e.state = StateStopping
	cancel := e.cancel
	disc, server, st := e.disc, e.server, e.store
	discoveryOK, transportOK := e.discoveryOK, e.transportOK
	e.mu.Unlock()
	e.emitStatus()

	cancel()
	if discoveryOK {
		disc.Wait()
	}
	if transportOK {
		server.Wait()
	}
	e.wg.Wait()

	if st != nil {
		if err := st.Close(); err != nil {
			e.log.Warn("Database close failed", "error", err)
		}
	}

	e.mu.Lock()
	e.state = StateStopped
	e.ctx = nil
	e.cancel = nil
	e.table = nil
	e.store = nil
	e.disc = nil
	e.server = nil
	e.client = nil
	e.monitor = nil
	e.discoveryOK = false
	e.transportOK = false
	e.storageOK = false
	e.mu.Unlock()

	e.log.Info("Engine stopped")
	e.emitStatus()
	return nil
}

func (e *Engine) monitorLoop(ctx context.Context, monitor *netutil.Monitor) {
	defer e.wg.Done()

	ticker := time.NewTicker(monitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			monitor.Check()
		}
	}
}

// persistLoop writes discovered peers to the database off the hot path.
// The feeding channel drops under burst; a lost refresh just means the
// stored last-seen lags by one beacon.
func (e *Engine) persistLoop(ctx context.Context, st *store.Store) {
	defer e.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-e.saveCh:
			if err := st.SavePeer(p.IP, p.Username, p.LastSeen); err != nil {
				e.log.Warn("Peer save failed", "ip", p.IP, "error", err)
			}
		}
	}
}

func (e *Engine) emitStatus() {
	e.mu.Lock()
	status := e.statusLocked()
	e.mu.Unlock()
	if e.cb.OnStatus != nil {
		e.cb.OnStatus(status)
	}
}

func (e *Engine) statusLocked() Status {
	return Status{
		State:     e.state,
		Discovery: e.discoveryOK,
		Transport: e.transportOK,
		Storage:   e.storageOK,
		Detail:    buildDetail(e.state, e.discoveryOK, e.transportOK, e.storageOK),
	}
}

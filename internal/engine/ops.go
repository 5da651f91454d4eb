package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/netutil"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/peers"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
)

// SendMessage delivers one text message to a peer and records it. The
// send is a single blocking attempt; a refused or timed-out connection
// comes back as the error, not a retry.
func (e *Engine) SendMessage(peerIP, content string) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	client, ctx := e.client, e.ctx
	st, storageOK := e.store, e.storageOK
	e.mu.Unlock()

	if err := client.SendText(ctx, peerIP, content, time.Now()); err != nil {
		return err
	}
	if storageOK {
		if err := st.SaveMessage(peerIP, store.SenderMe, content, protocol.TypeText, "", time.Now()); err != nil {
			e.log.Warn("Sent message not persisted", "peer", peerIP, "error", err)
		}
	}
	return nil
}

// SendFile validates the file and streams it to the peer in the
// background, reporting progress through the optional callback. The
// returned error covers validation only; a transfer that later fails is
// logged, matching the fire-and-forget shape of the send worker.
func (e *Engine) SendFile(peerIP, path string, progress func(sent, total int64)) error {
	e.mu.Lock()
	if e.state != StateRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	client, ctx := e.client, e.ctx
	st, storageOK := e.store, e.storageOK
	maxSize := e.cfg.MaxFileSize()

	info, err := os.Stat(path)
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: file %s: %w", path, err)
	}
	if info.IsDir() {
		e.mu.Unlock()
		return fmt.Errorf("engine: %s is a directory", path)
	}
	if info.Size() > maxSize {
		e.mu.Unlock()
		return fmt.Errorf("%w: %d bytes over the %d byte limit", protocol.ErrFileTooLarge, info.Size(), maxSize)
	}

	// Registered under the lock so Stop cannot begin waiting between the
	// running check and the handoff.
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if err := client.SendFile(ctx, peerIP, path, time.Now(), progress); err != nil {
			e.log.Warn("File send failed", "peer", peerIP, "file", path, "error", err)
			return
		}
		if storageOK {
			if err := st.SaveMessage(peerIP, store.SenderMe, filepath.Base(path), protocol.TypeFile, path, time.Now()); err != nil {
				e.log.Warn("Sent file not persisted", "peer", peerIP, "error", err)
			}
		}
	}()
	return nil
}

// GetPeers returns the current live peer snapshot, sorted by IP.
func (e *Engine) GetPeers() []peers.Peer {
	e.mu.Lock()
	table := e.table
	e.mu.Unlock()
	if table == nil {
		return nil
	}
	return table.Snapshot()
}

// GetHistory returns the most recent limit messages exchanged with a
// peer, oldest first.
func (e *Engine) GetHistory(peerIP string, limit int) ([]store.Entry, error) {
	e.mu.Lock()
	st := e.store
	running := e.state == StateRunning
	e.mu.Unlock()

	if !running {
		return nil, ErrNotRunning
	}
	if st == nil {
		return nil, ErrStorageOff
	}
	return st.History(peerIP, limit)
}

// PeerUsername resolves a display name for an address: the live table
// first, then the last name stored with the peer, then "Unknown".
func (e *Engine) PeerUsername(ip string) string {
	e.mu.Lock()
	table, st := e.table, e.store
	e.mu.Unlock()

	if table != nil {
		if p, ok := table.Get(ip); ok {
			return p.Username
		}
	}
	if st != nil {
		if name, err := st.PeerUsername(ip); err == nil && name != "" {
			return name
		}
	}
	return "Unknown"
}

// NetworkStatus reports the interface the engine is currently riding.
func (e *Engine) NetworkStatus() netutil.Status {
	e.mu.Lock()
	monitor := e.monitor
	e.mu.Unlock()
	if monitor == nil {
		return netutil.Status{}
	}
	return monitor.Snapshot()
}

// CleanupNow removes messages older than the configured retention and
// compacts the database file.
func (e *Engine) CleanupNow() (int64, error) {
	e.mu.Lock()
	st := e.store
	running := e.state == StateRunning
	hours := e.cfg.RetentionHours()
	e.mu.Unlock()

	if !running {
		return 0, ErrNotRunning
	}
	if st == nil {
		return 0, ErrStorageOff
	}
	removed, err := st.CleanupOlderThan(hours)
	if err != nil {
		return 0, err
	}
	if err := st.Vacuum(); err != nil {
		e.log.Warn("Vacuum after cleanup failed", "error", err)
	}
	return removed, nil
}

// Status reports the engine state and which subsystems are live.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

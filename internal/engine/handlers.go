package engine

import (
	"time"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/netutil"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/peers"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/protocol"
	"github.com/Rhythm-Sanghi/Gost-Net/internal/store"
)

// onPeerSeen queues a beacon for persistence. The enqueue never blocks
// the discovery listener.
func (e *Engine) onPeerSeen(p peers.Peer) {
	e.mu.Lock()
	ok := e.storageOK
	e.mu.Unlock()
	if !ok {
		return
	}
	select {
	case e.saveCh <- p:
	default:
	}
}

func (e *Engine) emitPeers(snapshot []peers.Peer) {
	if e.cb.OnPeers != nil {
		e.cb.OnPeers(snapshot)
	}
}

// onTextReceived persists and surfaces an inbound message. Local receive
// time is recorded, not the sender's header timestamp; retention cleanup
// must not depend on a remote clock.
func (e *Engine) onTextReceived(peerIP, content string, _ time.Time) {
	now := time.Now()
	e.mu.Lock()
	st, storageOK := e.store, e.storageOK
	e.mu.Unlock()

	if storageOK {
		if err := st.SaveMessage(peerIP, store.SenderPeer, content, protocol.TypeText, "", now); err != nil {
			e.log.Warn("Received message not persisted", "peer", peerIP, "error", err)
		}
	}
	if e.cb.OnMessage != nil {
		e.cb.OnMessage(peerIP, content, now)
	}
}

// onFileReceived persists and surfaces a completed inbound transfer. The
// message row carries the announced filename as content and the saved
// location as the file path.
func (e *Engine) onFileReceived(peerIP, filename, path string, size int64, _ time.Time) {
	now := time.Now()
	e.mu.Lock()
	st, storageOK := e.store, e.storageOK
	e.mu.Unlock()

	if storageOK {
		if err := st.SaveMessage(peerIP, store.SenderPeer, filename, protocol.TypeFile, path, now); err != nil {
			e.log.Warn("Received file not persisted", "peer", peerIP, "error", err)
		}
	}
	if e.cb.OnFile != nil {
		e.cb.OnFile(peerIP, filename, path, now)
	}
}

// onNetworkChange runs when the machine moves networks. Discovery reads
// the new address on its next beacon; the peer list is re-announced so a
// UI can reflect peers going unreachable.
func (e *Engine) onNetworkChange(oldIP, newIP string, kind netutil.Kind) {
	e.log.Info("Network changed", "old", oldIP, "new", newIP, "type", kind)
	e.mu.Lock()
	table := e.table
	e.mu.Unlock()
	if table != nil {
		e.emitPeers(table.Snapshot())
	}
}

package peers

import (
	"sort"
	"sync"
	"time"
)

// Peer is one live node currently announcing itself on the LAN.
type Peer struct {
	IP       string
	Username string
	LastSeen time.Time
}

// Table tracks live peers keyed by IP. All access goes through one lock;
// readers get copies, never references into the map, so callers can hold
// snapshots without caring about concurrent updates.
type Table struct {
	mu    sync.Mutex
	peers map[string]Peer
}

func NewTable() *Table {
	return &Table{peers: make(map[string]Peer)}
}

// Upsert records a beacon from ip and reports whether the visible peer
// list changed (new peer, or an existing one renamed itself). Refreshing
// last-seen alone is not a change worth a callback.
func (t *Table) Upsert(ip, username string, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.peers[ip]
	t.peers[ip] = Peer{IP: ip, Username: username, LastSeen: at}
	return !ok || prev.Username != username
}

// Get returns the peer at ip, if live.
func (t *Table) Get(ip string) (Peer, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peers[ip]
	return p, ok
}

// Len returns the number of live peers.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.peers)
}

// Snapshot copies out the live peers sorted by IP.
func (t *Table) Snapshot() []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IP < out[j].IP })
	return out
}

// Prune drops every peer last seen before cutoff and returns the removed
// entries so the caller can log or announce them.
func (t *Table) Prune(cutoff time.Time) []Peer {
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []Peer
	for ip, p := range t.peers {
		if p.LastSeen.Before(cutoff) {
			removed = append(removed, p)
			delete(t.peers, ip)
		}
	}
	return removed
}

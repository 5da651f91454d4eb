package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SavePeer upserts the peer row keyed by IP, refreshing name and
// last-seen. Peers are never deleted automatically; history outlives the
// peer going offline.
func (s *Store) SavePeer(ip, username string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	peer := Peer{IPAddress: ip, Username: username, LastSeen: toUnixSeconds(lastSeen)}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		UpdateAll: true,
	}).Create(&peer).Error
	if err != nil {
		return fmt.Errorf("store: save peer: %w", err)
	}
	return nil
}

// AllPeers lists every peer ever seen, most recently seen first.
func (s *Store) AllPeers() ([]Peer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var peers []Peer
	if err := s.db.Order("last_seen desc").Find(&peers).Error; err != nil {
		return nil, fmt.Errorf("store: list peers: %w", err)
	}
	return peers, nil
}

// PeerUsername looks up the stored display name for ip. Unknown peers
// yield an empty name, not an error.
func (s *Store) PeerUsername(ip string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var peer Peer
	err := s.db.First(&peer, "ip_address = ?", ip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: peer username: %w", err)
	}
	return peer.Username, nil
}

package store

import (
	"fmt"
	"time"
)

// decryptFailedPlaceholder shows up in history rows whose ciphertext no
// longer authenticates (key file replaced, row corrupted). One bad row
// must not take the rest of the history down with it.
const decryptFailedPlaceholder = "[Decryption Failed]"

// SaveMessage encrypts content and inserts one message row.
func (s *Store) SaveMessage(peerIP, sender, content, msgType, filePath string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encrypted, err := s.cipher.Encrypt([]byte(content))
	if err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	msg := Message{
		PeerIP:      peerIP,
		Sender:      sender,
		Content:     encrypted,
		MessageType: msgType,
		Timestamp:   toUnixSeconds(at),
		FilePath:    filePath,
	}
	if err := s.db.Create(&msg).Error; err != nil {
		return fmt.Errorf("store: save message: %w", err)
	}
	return nil
}

// History returns the most recent limit messages exchanged with peerIP,
// decrypted, oldest first.
func (s *Store) History(peerIP string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []Message
	err := s.db.
		Where("peer_ip = ?", peerIP).
		Order("timestamp desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: history: %w", err)
	}

	// Fetched newest-first to apply the limit; flip to chronological.
	entries := make([]Entry, len(rows))
	for i, row := range rows {
		content := decryptFailedPlaceholder
		if plain, derr := s.cipher.Decrypt(row.Content); derr == nil {
			content = string(plain)
		}
		entries[len(rows)-1-i] = Entry{
			ID:          row.ID,
			Sender:      row.Sender,
			Content:     content,
			MessageType: row.MessageType,
			Timestamp:   fromUnixSeconds(row.Timestamp),
			FilePath:    row.FilePath,
		}
	}
	return entries, nil
}

// CleanupOlderThan deletes messages older than the retention window and
// reports how many went away.
func (s *Store) CleanupOlderThan(hours int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := toUnixSeconds(time.Now().Add(-time.Duration(hours) * time.Hour))
	res := s.db.Where("timestamp < ?", cutoff).Delete(&Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: cleanup: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeletePeerHistory removes every message exchanged with peerIP.
func (s *Store) DeletePeerHistory(peerIP string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("peer_ip = ?", peerIP).Delete(&Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("store: delete history: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Stats summarizes what the database holds.
type Stats struct {
	TotalMessages int64
	TotalPeers    int64
	OldestMessage *time.Time
	NewestMessage *time.Time
}

// Statistics counts rows and finds the age bounds of stored messages.
func (s *Store) Statistics() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	if err := s.db.Model(&Message{}).Count(&st.TotalMessages).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	if err := s.db.Model(&Peer{}).Count(&st.TotalPeers).Error; err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	if st.TotalMessages > 0 {
		var bounds struct {
			Min float64
			Max float64
		}
		err := s.db.Model(&Message{}).
			Select("MIN(timestamp) as min, MAX(timestamp) as max").
			Scan(&bounds).Error
		if err != nil {
			return Stats{}, fmt.Errorf("store: stats: %w", err)
		}
		oldest, newest := fromUnixSeconds(bounds.Min), fromUnixSeconds(bounds.Max)
		st.OldestMessage, st.NewestMessage = &oldest, &newest
	}
	return st, nil
}

package store

import (
	"math"
	"time"
)

// Sender values on a stored message.
const (
	SenderMe   = "ME"
	SenderPeer = "PEER"
)

// Peer mirrors a node seen on the LAN. Rows are upserted on every beacon
// and survive the peer going quiet, so history keeps a name to show.
type Peer struct {
	IPAddress string  `gorm:"column:ip_address;primaryKey"`
	Username  string  `gorm:"column:username;not null"`
	LastSeen  float64 `gorm:"column:last_seen;not null"`
}

func (Peer) TableName() string { return "peers" }

// Message is one persisted chat entry. Content holds ciphertext at rest
// and is only decrypted on read.
type Message struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	PeerIP      string  `gorm:"column:peer_ip;not null;index:idx_messages_peer"`
	Sender      string  `gorm:"column:sender;not null"`
	Content     []byte  `gorm:"column:content;not null"`
	MessageType string  `gorm:"column:message_type;not null"`
	Timestamp   float64 `gorm:"column:timestamp;not null;index:idx_messages_timestamp"`
	FilePath    string  `gorm:"column:file_path"`
}

func (Message) TableName() string { return "messages" }

// Entry is a decrypted message as handed to callers.
type Entry struct {
	ID          int64
	Sender      string
	Content     string
	MessageType string
	Timestamp   time.Time
	FilePath    string
}

// Timestamps are stored as float seconds since the epoch.

func toUnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromUnixSeconds(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}

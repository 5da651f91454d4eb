package store

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Rhythm-Sanghi/Gost-Net/internal/crypto"
)

// Store is the encrypted message and peer database. One coarse lock
// serializes every operation; nothing here is latency-critical and the
// single-writer model keeps sqlite happy.
type Store struct {
	mu     sync.Mutex
	db     *gorm.DB
	cipher *crypto.StorageCipher
}

// Open opens (or creates) the database at path. Message content is
// encrypted with cipher before it touches disk.
func Open(path string, cipher *crypto.StorageCipher) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Peer{}, &Message{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db, cipher: cipher}, nil
}

// Vacuum reclaims space freed by retention cleanup.
func (s *Store) Vacuum() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Exec("VACUUM").Error; err != nil {
		return fmt.Errorf("store: vacuum: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}

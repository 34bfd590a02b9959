package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/autoclass/internal/common"
	"github.com/ternarybob/autoclass/internal/interfaces"
	"github.com/ternarybob/autoclass/internal/storage/badger"
	"github.com/ternarybob/autoclass/internal/storage/sqlite"
)

// Storage bundles the relational store and the badger store backing the Index and the queue
type Storage struct {
	Manager interfaces.StorageManager
	Badger  *badger.BadgerDB
	Index   interfaces.Index
}

// NewStorageManager opens the SQLite relational store
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	return sqlite.NewManager(logger, &config.Storage.SQLite)
}

// Open opens both stores. The badger store is closed again if SQLite fails to open.
func Open(logger arbor.ILogger, config *common.Config) (*Storage, error) {
	bdb, err := badger.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	manager, err := NewStorageManager(logger, config)
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}

	return &Storage{
		Manager: manager,
		Badger:  bdb,
		Index:   badger.NewIndexStorage(bdb, logger),
	}, nil
}

// Close closes both stores, returning the first error
func (s *Storage) Close() error {
	var first error
	if s.Manager != nil {
		first = s.Manager.Close()
	}
	if s.Badger != nil {
		if err := s.Badger.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

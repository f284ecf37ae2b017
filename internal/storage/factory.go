package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docgpt/internal/common"
	"github.com/ternarybob/docgpt/internal/interfaces"
	"github.com/ternarybob/docgpt/internal/storage/badger"
	"github.com/ternarybob/docgpt/internal/storage/filesystem"
	"github.com/ternarybob/docgpt/internal/storage/qdrant"
	"github.com/ternarybob/docgpt/internal/storage/sqlite"
)

// NewStorageManager opens the relational store. Records always live in Badger.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (*badger.Manager, error) {
	return badger.NewManager(logger, &config.Storage.Badger)
}

// NewVectorIndex opens the configured vector backend. The badger backend
// shares the manager's connection; the others own their own.
func NewVectorIndex(logger arbor.ILogger, config *common.Config, manager *badger.Manager) (interfaces.VectorIndex, error) {
	collection := config.Vector.Collection

	switch config.Vector.Provider {
	case common.VectorProviderBadger, "":
		if manager == nil {
			return nil, fmt.Errorf("badger vector index requires an open storage manager")
		}
		return badger.NewPointStorage(manager.BadgerDB(), collection, logger), nil

	case common.VectorProviderSQLite:
		db, err := sqlite.NewSQLiteDB(logger, &config.Storage.SQLite)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite vector index: %w", err)
		}
		return sqlite.NewPointStorage(db, collection, logger), nil

	case common.VectorProviderQdrant:
		opts := []qdrant.ClientOption{
			qdrant.WithLogger(logger),
			qdrant.WithTimeout(common.ParseDuration(config.Vector.Timeout, qdrant.DefaultTimeout)),
		}
		if apiKey, err := common.ResolveAPIKey("qdrant_api_key", config.Vector.QdrantAPIKey); err == nil {
			opts = append(opts, qdrant.WithAPIKey(apiKey))
		}
		client := qdrant.NewClient(config.Vector.QdrantURL, opts...)
		return qdrant.NewPointStorage(client, collection, logger), nil

	default:
		return nil, fmt.Errorf("unsupported vector provider: %s (supported: badger, sqlite, qdrant)", config.Vector.Provider)
	}
}

// NewBlobStore opens the filesystem blob store
func NewBlobStore(logger arbor.ILogger, config *common.Config) (interfaces.BlobStore, error) {
	return filesystem.NewBlobStore(logger, &config.Storage.Blob)
}

package main

import (
	"context"
	"fmt"

	"github.com/chatzia/internal/config"
	"github.com/chatzia/internal/storage"
	"github.com/chatzia/internal/storage/blob"
	"github.com/chatzia/internal/storage/kv"
	"github.com/chatzia/internal/storage/relational"
	"github.com/chatzia/pkg/logger"
)

// storageBackend is the configured gateway for both dashboards
type storageBackend struct {
	feeds *storage.FeedRepository
	chat  *storage.ChatRepository
	close func() error
}

func (b *storageBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func openStorage(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (*storageBackend, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	switch cfg.Backend {
	case config.BackendRelational:
		log.Info().Str("driver", cfg.Relational.Driver).Msg("Using relational storage")
		client := relational.New(relational.Config{
			Driver: cfg.Relational.Driver,
			DSN:    cfg.Relational.DSN,
		}, log)
		if err := client.MigrateAll(ctx); err != nil {
			client.Disconnect()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return &storageBackend{
			feeds: relational.NewFeedRepository(client, log),
			chat:  relational.NewChatRepository(client, log),
			close: client.Disconnect,
		}, nil

	case config.BackendKV:
		store, err := openKV(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return &storageBackend{
			feeds: blob.NewFeedRepository(store, log),
			chat:  blob.NewChatRepository(store, log),
			close: store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func openKV(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (kv.Store, error) {
	log.Info().Str("driver", cfg.KV.Driver).Msg("Using key-value storage")

	switch cfg.KV.Driver {
	case config.KVDriverMemory:
		return kv.NewMemory(), nil

	case config.KVDriverSQL:
		client := relational.New(relational.Config{
			Driver: cfg.Relational.Driver,
			DSN:    cfg.Relational.DSN,
		}, log)
		store := kv.NewSQL(client)
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return store, nil

	case config.KVDriverSheets:
		store, err := kv.NewSheets(ctx, kv.SheetsConfig{
			SpreadsheetID:      cfg.Sheets.SpreadsheetID,
			SheetName:          cfg.Sheets.SheetName,
			ServiceAccountJSON: cfg.Sheets.ServiceAccountJSON,
			CredentialsFile:    cfg.Sheets.CredentialsFile,
			RequestsPerMinute:  cfg.Sheets.RequestsPerMinute,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Google Sheets: %w", err)
		}
		if err := store.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare sheet: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown kv driver %q", cfg.KV.Driver)
	}
}

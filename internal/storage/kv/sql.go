package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/chatzia/internal/storage/relational"
)

// Entry is one row of the kv_entries table
type Entry struct {
	Key       string `gorm:"primaryKey;size:128"`
	Value     string `gorm:"type:text"`
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "kv_entries" }

// SQL stores keys as rows of a database table
type SQL struct {
	client *relational.Client
}

// NewSQL creates a store on the given database client
func NewSQL(client *relational.Client) *SQL {
	return &SQL{client: client}
}

// Migrate creates the kv_entries table
func (s *SQL) Migrate(ctx context.Context) error {
	return s.client.Migrate(ctx, &Entry{})
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	db, err := s.client.DB(ctx)
	if err != nil {
		return "", false, err
	}

	var entry Entry
	err = db.Where(&Entry{Key: key}).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	db, err := s.client.DB(ctx)
	if err != nil {
		return err
	}

	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

// Close disconnects the underlying client
func (s *SQL) Close() error {
	return s.client.Disconnect()
}

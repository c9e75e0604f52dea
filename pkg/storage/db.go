package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/expenseflow-go/pkg/database"
)

// Entry is one stored key.
type Entry struct {
	Key       string `gorm:"column:entry_key;primaryKey;size:255"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

// DBStore implements KeyValue on a SQL table through gorm. With the sqlite
// driver it is the on-device store.
type DBStore struct {
	db *database.DB
}

// NewDBStore migrates the entries table and returns the store.
func NewDBStore(db *database.DB) (*DBStore, error) {
	if err := db.Migrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate kv table: %w", err)
	}
	return &DBStore{db: db}, nil
}

func (s *DBStore) Get(ctx context.Context, key string) (string, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read key: %w", err)
	}
	return entry.Value, nil
}

func (s *DBStore) Set(ctx context.Context, key, value string) error {
	entry := Entry{Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "entry_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to write key: %w", err)
	}
	return nil
}

func (s *DBStore) Remove(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&Entry{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove key: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Entry is one persisted key-value row.
type Entry struct {
	Key       string `gorm:"primaryKey;column:key"`
	Value     string `gorm:"column:value"`
	UpdatedAt time.Time
}

// TableName pins the cache table name.
func (Entry) TableName() string { return "kv_entries" }

// SQLite is a durable single-device cache backed by an embedded database.
type SQLite struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) the cache file and ensures the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("cache path is required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrate cache: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Get returns the value stored at key or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var entry Entry
	err := s.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return entry.Value, nil
}

// Set writes the value at key, replacing any previous value.
func (s *SQLite) Set(ctx context.Context, key, value string) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.db.WithContext(ctx).Save(&entry).Error
}

// Delete removes the key; deleting an absent key is a no-op.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Delete(&Entry{}, "key = ?", key).Error
}

// Close releases the underlying connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bondora_go/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RateLimitRecord is the persisted form of a ledger entry.
type RateLimitRecord struct {
	Operation    string `gorm:"primaryKey"`
	RetryAfterMS int64
	RecordedAt   time.Time
}

// TableName pins the table name.
func (RateLimitRecord) TableName() string {
	return "rate_limit_entries"
}

// Storage persists rate-limit cool-downs so a restart still honours them.
type Storage struct {
	db *gorm.DB
}

var migrate = func(db *gorm.DB) error {
	return db.AutoMigrate(&RateLimitRecord{})
}

// NewStorage opens (or creates) the SQLite database at dbPath
func NewStorage(dbPath string) (*Storage, error) {
	// Ensure directory exists
	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Storage{db: db}

	// Auto Migration
	if err := migrate(db); err != nil {
		if cerr := store.Close(); cerr != nil {
			slog.Warn("Failed to close database after migration error", slog.Any("error", cerr))
		}
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRateLimit creates or replaces the entry for its operation
func (s *Storage) SaveRateLimit(entry domain.RateLimitEntry) error {
	rec := RateLimitRecord{
		Operation:    entry.Operation,
		RetryAfterMS: entry.RetryAfter.Milliseconds(),
		RecordedAt:   entry.RecordedAt.UTC(),
	}
	return s.db.Save(&rec).Error
}

// LoadRateLimits returns every stored entry
func (s *Storage) LoadRateLimits() ([]domain.RateLimitEntry, error) {
	var recs []RateLimitRecord
	if err := s.db.Find(&recs).Error; err != nil {
		return nil, err
	}

	entries := make([]domain.RateLimitEntry, 0, len(recs))
	for _, r := range recs {
		entries = append(entries, domain.RateLimitEntry{
			Operation:  r.Operation,
			RetryAfter: time.Duration(r.RetryAfterMS) * time.Millisecond,
			RecordedAt: r.RecordedAt,
		})
	}
	return entries, nil
}

// PurgeExpired deletes entries whose window closed before now and reports how many went.
func (s *Storage) PurgeExpired(now time.Time) (int64, error) {
	entries, err := s.LoadRateLimits()
	if err != nil {
		return 0, err
	}

	var expired []string
	for _, e := range entries {
		if !e.Active(now) {
			expired = append(expired, e.Operation)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	res := s.db.Where("operation IN ?", expired).Delete(&RateLimitRecord{})
	return res.RowsAffected, res.Error
}

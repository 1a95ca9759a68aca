package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orderdesk/internal/apperrors"
	"orderdesk/internal/logger"
)

const (
	transactAttempts = 3
	transactBackoff  = 50 * time.Millisecond
)

// document is one row of the backing table: a leaf path and its JSON value.
type document struct {
	Path      string `gorm:"primaryKey;size:512"`
	Value     string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (document) TableName() string { return "documents" }

// PostgresStore persists documents in a jsonb table via GORM. Subscriptions
// are dispatched in-process after each committed write.
type PostgresStore struct {
	db       *gorm.DB
	notifier *notifier
}

// NewPostgresStore opens the connection pool and migrates the documents table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&document{}); err != nil {
		return nil, fmt.Errorf("migrate documents table: %w", err)
	}
	return &PostgresStore{db: db, notifier: newNotifier()}, nil
}

func (s *PostgresStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	var doc document
	err := s.db.WithContext(ctx).First(&doc, "path = ?", path).Error
	if err == nil {
		return json.RawMessage(doc.Value), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var docs []document
	if err := s.db.WithContext(ctx).Find(&docs, "path LIKE ?", path+"/%").Error; err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	leaves := make(map[string]json.RawMessage, len(docs))
	for _, d := range docs {
		leaves[d.Path] = json.RawMessage(d.Value)
	}
	return buildSubtree(leaves, path), nil
}

func (s *PostgresStore) Set(ctx context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", path, err)
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&document{Path: path, Value: string(raw), UpdatedAt: time.Now()}).Error
	if err != nil {
		return err
	}
	s.notifyWrite(path)
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, path string, fields map[string]interface{}) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var doc document
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&doc, "path = ?", path).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		merged := make(map[string]json.RawMessage)
		if doc.Value != "" {
			if err := json.Unmarshal([]byte(doc.Value), &merged); err != nil {
				return fmt.Errorf("document at %s is not an object: %w", path, err)
			}
		}
		for key, value := range fields {
			raw, err := json.Marshal(value)
			if err != nil {
				return fmt.Errorf("marshal field %s: %w", key, err)
			}
			merged[key] = raw
		}
		raw, err := json.Marshal(merged)
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).Create(&document{Path: path, Value: string(raw), UpdatedAt: time.Now()}).Error
	})
	if err != nil {
		return err
	}
	s.notifyWrite(path)
	return nil
}

func (s *PostgresStore) Remove(ctx context.Context, path string) error {
	err := s.db.WithContext(ctx).
		Where("path = ? OR path LIKE ?", path, path+"/%").
		Delete(&document{}).Error
	if err != nil {
		return err
	}
	s.notifyWrite(path)
	return nil
}

func (s *PostgresStore) Push(ctx context.Context, path string) (string, error) {
	return uuid.NewString(), nil
}

func (s *PostgresStore) Subscribe(path string, fn func(snapshot json.RawMessage)) func() {
	return s.notifier.subscribe(path, fn)
}

// Transact runs fn against the row-locked current value. The row is created
// first when absent so SELECT FOR UPDATE always serializes concurrent callers.
// Conflicting attempts are retried with exponential backoff before the
// operation fails with ErrTransactionConflict.
func (s *PostgresStore) Transact(ctx context.Context, path string, fn TransactionFunc) (json.RawMessage, error) {
	var result json.RawMessage
	var lastErr error

	// Errors from fn itself are the caller's and are never retried.
	var fnErr error

	for attempt := 0; attempt < transactAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(transactBackoff << (attempt - 1)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		lastErr = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&document{Path: path, Value: "null", UpdatedAt: time.Now()}).Error; err != nil {
				return err
			}

			var doc document
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&doc, "path = ?", path).Error; err != nil {
				return err
			}

			var current json.RawMessage
			if doc.Value != "" && doc.Value != "null" {
				current = json.RawMessage(doc.Value)
			}
			next, err := fn(current)
			if err != nil {
				fnErr = err
				return err
			}
			raw, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("marshal transaction result for %s: %w", path, err)
			}
			result = raw
			return tx.Model(&document{}).Where("path = ?", path).
				Updates(map[string]interface{}{"value": string(raw), "updated_at": time.Now()}).Error
		})
		if lastErr == nil {
			s.notifyWrite(path)
			return result, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
	}

	return nil, fmt.Errorf("%w: %s after %d attempts: %v",
		apperrors.ErrTransactionConflict, path, transactAttempts, lastErr)
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) notifyWrite(path string) {
	log := logger.WithComponent("store")
	s.notifier.publish(path, func(subPath string) json.RawMessage {
		snap, err := s.Get(context.Background(), subPath)
		if err != nil {
			log.Error().Err(err).Str("path", subPath).Msg("snapshot read for subscriber failed")
			return nil
		}
		return snap
	})
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rconbridge/internal/model"
)

// GormStore persists everything in PostgreSQL. Single-row overwrite
// semantics for servers and sessions are implemented as upserts, which gives
// the documented last-write-wins behavior for concurrent authorizations.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("storage: open postgres: %w", err)
	}
	if err := db.AutoMigrate(
		&model.WhitelistEntry{},
		&model.Server{},
		&model.Session{},
		&model.CommandLog{},
	); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) IsWhitelisted(ctx context.Context, ownerID int64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.WhitelistEntry{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) AddWhitelist(ctx context.Context, ownerID int64) error {
	entry := model.WhitelistEntry{OwnerID: ownerID}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&entry).Error
}

func (s *GormStore) SaveServer(ctx context.Context, server model.Server) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&server).Error
}

func (s *GormStore) GetServer(ctx context.Context, serverKey string, ownerID int64) (model.Server, error) {
	var server model.Server
	err := s.db.WithContext(ctx).
		Where("server_key = ? AND owner_id = ?", serverKey, ownerID).
		First(&server).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Server{}, ErrNotFound
	}
	if err != nil {
		return model.Server{}, err
	}
	return server, nil
}

func (s *GormStore) SaveSession(ctx context.Context, session model.Session) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&session).Error
}

func (s *GormStore) GetActiveSession(ctx context.Context, ownerID int64, now time.Time) (model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND expires_at > ?", ownerID, now).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	return session, nil
}

func (s *GormStore) DeleteSession(ctx context.Context, ownerID int64) error {
	return s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Delete(&model.Session{}).Error
}

func (s *GormStore) SaveCommandLog(ctx context.Context, entry model.CommandLog) error {
	return s.db.WithContext(ctx).Create(&entry).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

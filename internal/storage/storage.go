package storage

import (
	"context"
	"errors"
	"time"

	"rconbridge/internal/model"
)

var ErrNotFound = errors.New("storage: not found")

// Store is the persistence collaborator the pipeline depends on. Save
// operations have overwrite semantics: one server row per (serverKey,
// ownerID), one session slot per owner, last write wins.
type Store interface {
	IsWhitelisted(ctx context.Context, ownerID int64) (bool, error)
	AddWhitelist(ctx context.Context, ownerID int64) error

	SaveServer(ctx context.Context, server model.Server) error
	GetServer(ctx context.Context, serverKey string, ownerID int64) (model.Server, error)

	SaveSession(ctx context.Context, session model.Session) error
	// GetActiveSession only returns sessions with ExpiresAt in the future.
	GetActiveSession(ctx context.Context, ownerID int64, now time.Time) (model.Session, error)
	DeleteSession(ctx context.Context, ownerID int64) error

	SaveCommandLog(ctx context.Context, entry model.CommandLog) error

	Close() error
}

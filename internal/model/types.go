package model

import (
	"fmt"
	"time"
)

// Credentials hold a single RCON endpoint and its password. They are only
// ever held in memory; the password is encrypted before anything is stored.
type Credentials struct {
	Host     string
	Port     uint16
	Password string
}

func (c Credentials) ServerKey() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Server is one authorized RCON endpoint for one operator. Re-authorizing the
// same endpoint for the same operator overwrites the row.
type Server struct {
	ServerKey         string `gorm:"primaryKey;size:271"`
	OwnerID           int64  `gorm:"primaryKey"`
	EncryptedPassword []byte `gorm:"type:bytea"`
	Host              string `gorm:"size:255"`
	Port              uint16
}

// Session is the single active session slot per operator. A new session for
// the same operator supersedes any prior one.
type Session struct {
	OwnerID   int64  `gorm:"primaryKey"`
	ServerKey string `gorm:"size:271"`
	ExpiresAt time.Time
}

func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// WhitelistEntry marks an operator as allowed to authorize. Provisioned
// externally; read-only for the pipeline.
type WhitelistEntry struct {
	OwnerID int64 `gorm:"primaryKey"`
}

// CommandLog records one executed command and its outcome.
type CommandLog struct {
	ID        string `gorm:"primaryKey;size:36"`
	OwnerID   int64  `gorm:"index"`
	ServerKey string `gorm:"size:271"`
	Command   string
	Output    string
	Success   bool
	CreatedAt time.Time
}

type ServerStatus struct {
	Online  bool
	Players string
	Version string
	Error   string
}

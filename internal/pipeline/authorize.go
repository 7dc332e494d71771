package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rconbridge/internal/model"
	"rconbridge/internal/rcon"
	"rconbridge/internal/storage"
	"rconbridge/internal/vault"
)

const DefaultSessionTTL = 12 * time.Hour

// CommandClient is the protocol client seam. The production factory returns
// *rcon.Client; tests substitute doubles to observe or suppress network work.
type CommandClient interface {
	TestConnection(ctx context.Context) error
	ExecuteCommand(ctx context.Context, command string) (string, error)
	Status(ctx context.Context) model.ServerStatus
}

type ClientFactory func(creds model.Credentials) CommandClient

type Status int

const (
	StatusAuthorized Status = iota
	StatusNotWhitelisted
	StatusAuthFailed
	StatusConnectionFailed
)

// Result is the typed outcome of an authorization attempt. Rejections are
// ordinary results carrying a reason; only infrastructure faults (storage,
// vault) surface as errors.
type Result struct {
	Status  Status
	Detail  string
	Session model.Session
}

func (r Result) Authorized() bool { return r.Status == StatusAuthorized }

// Pipeline sequences an authorization: whitelist gate, live connectivity
// check, credential encryption and persistence, session issuance.
type Pipeline struct {
	store      storage.Store
	vault      *vault.Vault
	newClient  ClientFactory
	sessionTTL time.Duration
	now        func() time.Time
}

func New(store storage.Store, v *vault.Vault, factory ClientFactory, sessionTTL time.Duration) *Pipeline {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Pipeline{
		store:      store,
		vault:      v,
		newClient:  factory,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// Execute runs the full authorization sequence for one operator. The
// whitelist is checked first so non-whitelisted callers cost no network round
// trip and learn nothing about protocol behavior. Steps after the
// connectivity check are not atomic; re-running overwrites both the server
// record and the session, so a partial failure is safe to retry.
func (p *Pipeline) Execute(ctx context.Context, ownerID int64, creds model.Credentials) (Result, error) {
	allowed, err := p.store.IsWhitelisted(ctx, ownerID)
	if err != nil {
		return Result{}, fmt.Errorf("whitelist check: %w", err)
	}
	if !allowed {
		return Result{Status: StatusNotWhitelisted, Detail: "operator is not whitelisted"}, nil
	}

	client := p.newClient(creds)
	if err := client.TestConnection(ctx); err != nil {
		var rerr *rcon.Error
		if errors.As(err, &rerr) {
			if rerr.Kind == rcon.KindAuthFailed {
				return Result{Status: StatusAuthFailed, Detail: rerr.UserMessage()}, nil
			}
			return Result{Status: StatusConnectionFailed, Detail: rerr.UserMessage()}, nil
		}
		return Result{Status: StatusConnectionFailed, Detail: err.Error()}, nil
	}

	encrypted, err := p.vault.Encrypt(creds.Password)
	if err != nil {
		return Result{}, fmt.Errorf("encrypt credentials: %w", err)
	}

	server := model.Server{
		ServerKey:         creds.ServerKey(),
		OwnerID:           ownerID,
		EncryptedPassword: encrypted,
		Host:              creds.Host,
		Port:              creds.Port,
	}
	if err := p.store.SaveServer(ctx, server); err != nil {
		return Result{}, fmt.Errorf("save server: %w", err)
	}

	session := model.Session{
		OwnerID:   ownerID,
		ServerKey: server.ServerKey,
		ExpiresAt: p.now().Add(p.sessionTTL),
	}
	if err := p.store.SaveSession(ctx, session); err != nil {
		return Result{}, fmt.Errorf("save session: %w", err)
	}

	return Result{Status: StatusAuthorized, Detail: "authorized", Session: session}, nil
}

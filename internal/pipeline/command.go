package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"rconbridge/internal/model"
	"rconbridge/internal/storage"
)

// ErrNoSession means the operator has no unexpired session; they must
// authorize (again) before issuing commands.
var ErrNoSession = errors.New("pipeline: no active session")

// RunCommand executes one command on the operator's authorized server,
// gated by session expiry. The stored password is decrypted per call; a
// decryption failure propagates as vault.ErrInvalidCiphertext and is never
// downgraded to a missing password.
func (p *Pipeline) RunCommand(ctx context.Context, ownerID int64, command string) (string, error) {
	server, err := p.authorizedServer(ctx, ownerID)
	if err != nil {
		return "", err
	}

	password, err := p.vault.Decrypt(server.EncryptedPassword)
	if err != nil {
		return "", err
	}

	client := p.newClient(model.Credentials{Host: server.Host, Port: server.Port, Password: password})
	output, err := client.ExecuteCommand(ctx, command)
	p.logCommand(ctx, ownerID, server.ServerKey, command, output, err)
	return output, err
}

// ServerStatus probes the operator's authorized server.
func (p *Pipeline) ServerStatus(ctx context.Context, ownerID int64) (model.ServerStatus, error) {
	server, err := p.authorizedServer(ctx, ownerID)
	if err != nil {
		return model.ServerStatus{}, err
	}

	password, err := p.vault.Decrypt(server.EncryptedPassword)
	if err != nil {
		return model.ServerStatus{}, err
	}

	client := p.newClient(model.Credentials{Host: server.Host, Port: server.Port, Password: password})
	return client.Status(ctx), nil
}

// ActiveSession returns the operator's unexpired session, or ErrNoSession.
func (p *Pipeline) ActiveSession(ctx context.Context, ownerID int64) (model.Session, error) {
	session, err := p.store.GetActiveSession(ctx, ownerID, p.now())
	if errors.Is(err, storage.ErrNotFound) {
		return model.Session{}, ErrNoSession
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}

// Logout removes the operator's session. The server record stays; the
// encrypted credential remains usable on the next authorization.
func (p *Pipeline) Logout(ctx context.Context, ownerID int64) error {
	return p.store.DeleteSession(ctx, ownerID)
}

func (p *Pipeline) authorizedServer(ctx context.Context, ownerID int64) (model.Server, error) {
	session, err := p.ActiveSession(ctx, ownerID)
	if err != nil {
		return model.Server{}, err
	}

	server, err := p.store.GetServer(ctx, session.ServerKey, ownerID)
	if errors.Is(err, storage.ErrNotFound) {
		// Session pointing at a missing server record: treat as logged out.
		return model.Server{}, ErrNoSession
	}
	if err != nil {
		return model.Server{}, fmt.Errorf("load server: %w", err)
	}
	return server, nil
}

// logCommand appends to the audit trail. Best effort: an audit write failure
// must not fail the command that already ran.
func (p *Pipeline) logCommand(ctx context.Context, ownerID int64, serverKey, command, output string, cmdErr error) {
	entry := model.CommandLog{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		ServerKey: serverKey,
		Command:   command,
		Output:    output,
		Success:   cmdErr == nil,
		CreatedAt: p.now(),
	}
	if cmdErr != nil {
		entry.Output = cmdErr.Error()
	}
	if err := p.store.SaveCommandLog(ctx, entry); err != nil {
		log.Printf("command log: save failed: %v", err)
	}
}

package storage

import (
	"context"
	"strconv"
	"sync"
	"time"

	"rconbridge/internal/model"
)

// MemoryStore keeps everything in process memory. It backs development runs
// without a database and serves as the storage double in tests.
type MemoryStore struct {
	mu sync.RWMutex

	whitelist map[int64]struct{}
	servers   map[string]model.Server
	sessions  map[int64]model.Session
	logs      []model.CommandLog
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		whitelist: make(map[int64]struct{}),
		servers:   make(map[string]model.Server),
		sessions:  make(map[int64]model.Session),
	}
}

func serverMapKey(serverKey string, ownerID int64) string {
	return serverKey + "|" + strconv.FormatInt(ownerID, 10)
}

func (s *MemoryStore) IsWhitelisted(ctx context.Context, ownerID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.whitelist[ownerID]
	return ok, nil
}

func (s *MemoryStore) AddWhitelist(ctx context.Context, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.whitelist[ownerID] = struct{}{}
	return nil
}

func (s *MemoryStore) SaveServer(ctx context.Context, server model.Server) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.servers[serverMapKey(server.ServerKey, server.OwnerID)] = server
	return nil
}

func (s *MemoryStore) GetServer(ctx context.Context, serverKey string, ownerID int64) (model.Server, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	server, ok := s.servers[serverMapKey(serverKey, ownerID)]
	if !ok {
		return model.Server{}, ErrNotFound
	}
	return server, nil
}

func (s *MemoryStore) SaveSession(ctx context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.OwnerID] = session
	return nil
}

func (s *MemoryStore) GetActiveSession(ctx context.Context, ownerID int64, now time.Time) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[ownerID]
	if !ok || session.Expired(now) {
		return model.Session{}, ErrNotFound
	}
	return session, nil
}

func (s *MemoryStore) DeleteSession(ctx context.Context, ownerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, ownerID)
	return nil
}

func (s *MemoryStore) SaveCommandLog(ctx context.Context, entry model.CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, entry)
	return nil
}

// CommandLogs returns a copy of the appended log entries, newest last.
func (s *MemoryStore) CommandLogs() []model.CommandLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CommandLog, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *MemoryStore) Close() error { return nil }

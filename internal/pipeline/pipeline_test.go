package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"rconbridge/internal/model"
	"rconbridge/internal/rcon"
	"rconbridge/internal/rcon/rcontest"
	"rconbridge/internal/storage"
	"rconbridge/internal/vault"
)

type fakeClient struct {
	testErr error
	execOut string
	execErr error
	status  model.ServerStatus
}

func (f *fakeClient) TestConnection(ctx context.Context) error { return f.testErr }
func (f *fakeClient) ExecuteCommand(ctx context.Context, command string) (string, error) {
	return f.execOut, f.execErr
}
func (f *fakeClient) Status(ctx context.Context) model.ServerStatus { return f.status }

type fakeFactory struct {
	client *fakeClient
	calls  int
	creds  model.Credentials
}

func (f *fakeFactory) new(creds model.Credentials) CommandClient {
	f.calls++
	f.creds = creds
	return f.client
}

func newTestPipeline(t *testing.T, store storage.Store, factory ClientFactory) *Pipeline {
	t.Helper()
	v, err := vault.New("test-passphrase")
	if err != nil {
		t.Fatalf("vault.New: %v", err)
	}
	return New(store, v, factory, time.Hour)
}

func mustWhitelist(t *testing.T, store storage.Store, ownerID int64) {
	t.Helper()
	if err := store.AddWhitelist(context.Background(), ownerID); err != nil {
		t.Fatalf("AddWhitelist: %v", err)
	}
}

var testCreds = model.Credentials{Host: "mc.example.com", Port: 25575, Password: "correct"}

func TestExecute_NotWhitelistedSkipsNetwork(t *testing.T) {
	store := storage.NewMemoryStore()
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	result, err := p.Execute(context.Background(), 7, testCreds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != StatusNotWhitelisted {
		t.Fatalf("expected NotWhitelisted, got %v", result.Status)
	}
	if factory.calls != 0 {
		t.Fatalf("expected no protocol client construction, got %d", factory.calls)
	}
}

func TestExecute_ConnectionFailureRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{
		testErr: &rcon.Error{Kind: rcon.KindTransport, Detail: "connection refused"},
	}}
	p := newTestPipeline(t, store, factory.new)

	result, err := p.Execute(context.Background(), 42, testCreds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != StatusConnectionFailed {
		t.Fatalf("expected ConnectionFailed, got %v", result.Status)
	}
	if result.Detail == "" {
		t.Fatalf("expected failure detail")
	}

	if _, err := store.GetServer(context.Background(), testCreds.ServerKey(), 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no server record, got %v", err)
	}
}

func TestExecute_AuthFailureRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{
		testErr: &rcon.Error{Kind: rcon.KindAuthFailed, Detail: "server rejected password"},
	}}
	p := newTestPipeline(t, store, factory.new)

	result, err := p.Execute(context.Background(), 42, testCreds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != StatusAuthFailed {
		t.Fatalf("expected AuthFailed, got %v", result.Status)
	}
	if _, err := store.GetActiveSession(context.Background(), 42, time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no session, got %v", err)
	}
}

func TestExecute_SuccessPersistsServerAndSession(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	before := time.Now()
	result, err := p.Execute(context.Background(), 42, testCreds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Authorized() {
		t.Fatalf("expected authorized, got %+v", result)
	}

	server, err := store.GetServer(context.Background(), "mc.example.com:25575", 42)
	if err != nil {
		t.Fatalf("GetServer: %v", err)
	}
	if server.Host != "mc.example.com" || server.Port != 25575 {
		t.Fatalf("unexpected server record %+v", server)
	}
	if len(server.EncryptedPassword) == 0 || string(server.EncryptedPassword) == "correct" {
		t.Fatalf("password not encrypted at rest")
	}

	session, err := store.GetActiveSession(context.Background(), 42, time.Now())
	if err != nil {
		t.Fatalf("GetActiveSession: %v", err)
	}
	if session.ServerKey != "mc.example.com:25575" {
		t.Fatalf("session references wrong server %q", session.ServerKey)
	}
	ttl := session.ExpiresAt.Sub(before)
	if ttl < 59*time.Minute || ttl > 61*time.Minute {
		t.Fatalf("unexpected session ttl %v", ttl)
	}
}

func TestExecute_ReauthorizationOverwrites(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	if _, err := p.Execute(context.Background(), 42, testCreds); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	first, _ := store.GetServer(context.Background(), testCreds.ServerKey(), 42)

	changed := testCreds
	changed.Password = "rotated"
	if _, err := p.Execute(context.Background(), 42, changed); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	second, _ := store.GetServer(context.Background(), testCreds.ServerKey(), 42)

	if string(first.EncryptedPassword) == string(second.EncryptedPassword) {
		t.Fatalf("expected re-authorization to overwrite the credential")
	}
}

func TestRunCommand_DecryptsStoredPassword(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{execOut: "There are 0/20 players online"}}
	p := newTestPipeline(t, store, factory.new)

	if _, err := p.Execute(context.Background(), 42, testCreds); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	out, err := p.RunCommand(context.Background(), 42, "list")
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if out != "There are 0/20 players online" {
		t.Fatalf("unexpected output %q", out)
	}
	if factory.creds.Password != "correct" {
		t.Fatalf("expected decrypted password handed to client, got %q", factory.creds.Password)
	}

	logs := store.CommandLogs()
	if len(logs) != 1 || logs[0].Command != "list" || !logs[0].Success {
		t.Fatalf("unexpected command log %+v", logs)
	}
}

func TestRunCommand_NoSessionRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	if _, err := p.RunCommand(context.Background(), 42, "list"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if factory.calls != 0 {
		t.Fatalf("expected no client construction")
	}
}

func TestRunCommand_ExpiredSessionRejected(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	if _, err := p.Execute(context.Background(), 42, testCreds); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// Jump the pipeline clock past the session expiry.
	p.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	if _, err := p.RunCommand(context.Background(), 42, "list"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession for expired session, got %v", err)
	}
}

func TestRunCommand_CorruptedCredentialSurfaced(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	if _, err := p.Execute(context.Background(), 42, testCreds); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	server, _ := store.GetServer(context.Background(), testCreds.ServerKey(), 42)
	server.EncryptedPassword = []byte("corrupted")
	if err := store.SaveServer(context.Background(), server); err != nil {
		t.Fatalf("SaveServer: %v", err)
	}

	if _, err := p.RunCommand(context.Background(), 42, "list"); !errors.Is(err, vault.ErrInvalidCiphertext) {
		t.Fatalf("expected ErrInvalidCiphertext, got %v", err)
	}
}

func TestLogout(t *testing.T) {
	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	factory := &fakeFactory{client: &fakeClient{}}
	p := newTestPipeline(t, store, factory.new)

	if _, err := p.Execute(context.Background(), 42, testCreds); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if err := p.Logout(context.Background(), 42); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := p.ActiveSession(context.Background(), 42); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after logout, got %v", err)
	}
}

// End-to-end: the real protocol client against an in-process RCON server.

func rconFactory(t *testing.T) ClientFactory {
	t.Helper()
	cfg := rcon.Config{
		DialTimeout: time.Second,
		ReadTimeout: 200 * time.Millisecond,
		MaxRetries:  1,
		RetryDelay:  10 * time.Millisecond,
	}
	return func(creds model.Credentials) CommandClient {
		return rcon.NewClient(creds, cfg)
	}
}

func TestEndToEnd_AuthorizeAndCommand(t *testing.T) {
	srv, err := rcontest.Start("correct", rcontest.Options{
		Responses: map[string]string{"say hi": "sent"},
	})
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Close()

	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	p := newTestPipeline(t, store, rconFactory(t))

	creds := model.Credentials{Host: srv.Host, Port: srv.Port, Password: "correct"}
	result, err := p.Execute(context.Background(), 42, creds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Authorized() {
		t.Fatalf("expected authorized, got %+v", result)
	}

	if _, err := store.GetServer(context.Background(), creds.ServerKey(), 42); err != nil {
		t.Fatalf("expected server record: %v", err)
	}

	out, err := p.RunCommand(context.Background(), 42, "say hi")
	if err != nil {
		t.Fatalf("RunCommand: %v", err)
	}
	if out != "sent" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEndToEnd_WrongPassword(t *testing.T) {
	srv, err := rcontest.Start("correct", rcontest.Options{})
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Close()

	store := storage.NewMemoryStore()
	mustWhitelist(t, store, 42)
	p := newTestPipeline(t, store, rconFactory(t))

	creds := model.Credentials{Host: srv.Host, Port: srv.Port, Password: "wrong"}
	result, err := p.Execute(context.Background(), 42, creds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != StatusAuthFailed {
		t.Fatalf("expected AuthFailed, got %+v", result)
	}

	if _, err := store.GetServer(context.Background(), creds.ServerKey(), 42); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no server record, got %v", err)
	}
	if _, err := store.GetActiveSession(context.Background(), 42, time.Now()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected no session, got %v", err)
	}
}

func TestEndToEnd_NotWhitelisted(t *testing.T) {
	srv, err := rcontest.Start("correct", rcontest.Options{})
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	defer srv.Close()

	store := storage.NewMemoryStore()
	p := newTestPipeline(t, store, rconFactory(t))

	creds := model.Credentials{Host: srv.Host, Port: srv.Port, Password: "correct"}
	result, err := p.Execute(context.Background(), 7, creds)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Status != StatusNotWhitelisted {
		t.Fatalf("expected NotWhitelisted, got %+v", result)
	}
	if srv.Accepts() != 0 {
		t.Fatalf("expected no network attempt, got %d connections", srv.Accepts())
	}
}

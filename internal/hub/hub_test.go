package hub

import (
	"errors"
	"sync"
	"testing"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages [][]byte
	failWith error
	closed   bool
}

func (w *recordingWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWith != nil {
		return w.failWith
	}
	w.messages = append(w.messages, message)
	return nil
}

func (w *recordingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func TestHub_BroadcastReachesAllOwnerConnections(t *testing.T) {
	h := New()
	a := &recordingWriter{}
	b := &recordingWriter{}
	other := &recordingWriter{}

	h.Register(&Connection{OwnerID: 42, Writer: a})
	h.Register(&Connection{OwnerID: 42, Writer: b})
	h.Register(&Connection{OwnerID: 7, Writer: other})

	h.Broadcast(42, []byte("hello"))

	if a.count() != 1 || b.count() != 1 {
		t.Fatalf("expected both owner connections to receive the message")
	}
	if other.count() != 0 {
		t.Fatalf("expected other owner to receive nothing")
	}
}

func TestHub_UnregisterStopsDelivery(t *testing.T) {
	h := New()
	w := &recordingWriter{}
	conn := &Connection{OwnerID: 42, Writer: w}

	h.Register(conn)
	h.Unregister(conn)
	h.Broadcast(42, []byte("hello"))

	if w.count() != 0 {
		t.Fatalf("expected no delivery after unregister")
	}
}

func TestHub_FailedWriterIsEvicted(t *testing.T) {
	h := New()
	broken := &recordingWriter{failWith: errors.New("gone")}
	healthy := &recordingWriter{}

	h.Register(&Connection{OwnerID: 42, Writer: broken})
	h.Register(&Connection{OwnerID: 42, Writer: healthy})

	h.Broadcast(42, []byte("one"))
	h.Broadcast(42, []byte("two"))

	if !broken.closed {
		t.Fatalf("expected failed connection to be closed")
	}
	if healthy.count() != 2 {
		t.Fatalf("expected healthy connection to keep receiving, got %d", healthy.count())
	}
}

func TestHub_BroadcastToUnknownOwnerIsNoop(t *testing.T) {
	h := New()
	h.Broadcast(999, []byte("nobody home"))
}

package hub

import "sync"

type Writer interface {
	Write(message []byte) error
	Close() error
}

// Connection is one open console for one operator.
type Connection struct {
	OwnerID int64
	Writer  Writer
}

// Hub fans command results out to every console an operator has open.
type Hub struct {
	mu          sync.RWMutex
	connections map[int64]map[*Connection]struct{}
}

func New() *Hub {
	return &Hub{connections: make(map[int64]map[*Connection]struct{})}
}

func (h *Hub) Register(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.connections[conn.OwnerID] == nil {
		h.connections[conn.OwnerID] = make(map[*Connection]struct{})
	}
	h.connections[conn.OwnerID][conn] = struct{}{}
}

func (h *Hub) Unregister(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.connections[conn.OwnerID]
	if set == nil {
		return
	}
	delete(set, conn)
	if len(set) == 0 {
		delete(h.connections, conn.OwnerID)
	}
}

func (h *Hub) Broadcast(ownerID int64, message []byte) {
	h.mu.RLock()
	set := h.connections[ownerID]
	conns := make([]*Connection, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	var failed []*Connection
	for _, c := range conns {
		if err := c.Writer.Write(message); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		_ = c.Writer.Close()
		h.Unregister(c)
	}
}

package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"rconbridge/internal/auth"
	"rconbridge/internal/hub"
	"rconbridge/internal/pipeline"
)

// ConsoleHandler serves an interactive WebSocket console: text frames in are
// commands, JSON frames out are results, fanned out to every console the
// operator has open.
type ConsoleHandler struct {
	Pipeline    *pipeline.Pipeline
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsWriter struct {
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *ConsoleHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	claims, err := auth.VerifyToken(tokenString, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}
	ownerID := claims.OwnerID

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &hub.Connection{OwnerID: ownerID, Writer: &wsWriter{conn: ws}}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(4096)
	const pongWait = 60 * time.Second
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		command := strings.TrimSpace(string(data))
		if command == "" {
			continue
		}
		ws.SetReadDeadline(time.Now().Add(pongWait))
		h.runCommand(c.Request.Context(), ownerID, command)
	}
}

func (h *ConsoleHandler) runCommand(parent context.Context, ownerID int64, command string) {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	event := commandEvent{Type: "command", Command: command}
	output, err := h.Pipeline.RunCommand(ctx, ownerID, command)
	if err != nil {
		_, event.Error = commandErrorResponse(err)
	} else {
		event.Output = output
	}

	if data, err := json.Marshal(event); err == nil {
		h.Hub.Broadcast(ownerID, data)
	}
}

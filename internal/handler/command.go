package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"rconbridge/internal/hub"
	"rconbridge/internal/middleware"
	"rconbridge/internal/pipeline"
	"rconbridge/internal/rcon"
	"rconbridge/internal/vault"
)

type CommandHandler struct {
	Pipeline *pipeline.Pipeline
	Hub      *hub.Hub
}

type commandBody struct {
	Command string `json:"command"`
}

type commandEvent struct {
	Type    string `json:"type"`
	Command string `json:"command"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (h *CommandHandler) Run(c *gin.Context) {
	ownerID, ok := middleware.OwnerIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	var body commandBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	output, err := h.Pipeline.RunCommand(c.Request.Context(), ownerID, body.Command)
	if err != nil {
		status, message := commandErrorResponse(err)
		log.Printf("command: owner %d: %v", ownerID, err)
		h.notify(ownerID, commandEvent{Type: "command", Command: body.Command, Error: message})
		c.JSON(status, gin.H{"error": message})
		return
	}

	h.notify(ownerID, commandEvent{Type: "command", Command: body.Command, Output: output})
	c.JSON(http.StatusOK, gin.H{"output": output})
}

func (h *CommandHandler) Status(c *gin.Context) {
	ownerID, ok := middleware.OwnerIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	status, err := h.Pipeline.ServerStatus(c.Request.Context(), ownerID)
	if err != nil {
		code, message := commandErrorResponse(err)
		log.Printf("status: owner %d: %v", ownerID, err)
		c.JSON(code, gin.H{"error": message})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"online":  status.Online,
		"players": status.Players,
		"version": status.Version,
		"error":   status.Error,
	})
}

func (h *CommandHandler) notify(ownerID int64, event commandEvent) {
	if h.Hub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.Hub.Broadcast(ownerID, data)
}

// commandErrorResponse maps the error taxonomy to a status code and a short
// user-safe message; full detail stays in the server log.
func commandErrorResponse(err error) (int, string) {
	if errors.Is(err, pipeline.ErrNoSession) {
		return http.StatusUnauthorized, "No active session, authorize first"
	}
	if errors.Is(err, vault.ErrInvalidCiphertext) {
		return http.StatusConflict, "Stored credentials can no longer be decrypted, authorize again"
	}
	var rerr *rcon.Error
	if errors.As(err, &rerr) {
		switch rerr.Kind {
		case rcon.KindAuthFailed:
			return http.StatusUnauthorized, rerr.UserMessage()
		default:
			return http.StatusBadGateway, rerr.UserMessage()
		}
	}
	return http.StatusInternalServerError, "Command failed"
}

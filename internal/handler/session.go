package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"rconbridge/internal/middleware"
	"rconbridge/internal/pipeline"
)

type SessionHandler struct {
	Pipeline *pipeline.Pipeline
}

func (h *SessionHandler) Get(c *gin.Context) {
	ownerID, ok := middleware.OwnerIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	session, err := h.Pipeline.ActiveSession(c.Request.Context(), ownerID)
	if errors.Is(err, pipeline.ErrNoSession) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No active session"})
		return
	}
	if err != nil {
		log.Printf("session: owner %d: %v", ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session lookup failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"session": gin.H{
		"serverKey": session.ServerKey,
		"expiresAt": session.ExpiresAt.UnixMilli(),
	}})
}

func (h *SessionHandler) Logout(c *gin.Context) {
	ownerID, ok := middleware.OwnerIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
		return
	}

	if err := h.Pipeline.Logout(c.Request.Context(), ownerID); err != nil {
		log.Printf("logout: owner %d: %v", ownerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

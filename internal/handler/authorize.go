package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"rconbridge/internal/auth"
	"rconbridge/internal/model"
	"rconbridge/internal/pipeline"
)

// AuthorizeHandler is called by the trusted chat front-end on behalf of an
// operator. On success it hands back a bearer token for the command
// endpoints; the session row in storage remains the authority.
type AuthorizeHandler struct {
	Pipeline    *pipeline.Pipeline
	TokenConfig auth.TokenConfig
}

type authorizeBody struct {
	OwnerID  int64  `json:"ownerId"`
	Host     string `json:"host"`
	Port     uint16 `json:"port"`
	Password string `json:"password"`
}

func (h *AuthorizeHandler) Authorize(c *gin.Context) {
	var body authorizeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if body.OwnerID <= 0 || body.Host == "" || body.Port == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	creds := model.Credentials{Host: body.Host, Port: body.Port, Password: body.Password}
	result, err := h.Pipeline.Execute(c.Request.Context(), body.OwnerID, creds)
	if err != nil {
		log.Printf("authorize: owner %d: %v", body.OwnerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization failed"})
		return
	}

	switch result.Status {
	case pipeline.StatusNotWhitelisted:
		c.JSON(http.StatusForbidden, gin.H{"error": result.Detail})
		return
	case pipeline.StatusAuthFailed:
		c.JSON(http.StatusUnauthorized, gin.H{"error": result.Detail})
		return
	case pipeline.StatusConnectionFailed:
		c.JSON(http.StatusBadGateway, gin.H{"error": result.Detail})
		return
	}

	token, err := auth.CreateToken(body.OwnerID, h.TokenConfig)
	if err != nil {
		log.Printf("authorize: owner %d: create token: %v", body.OwnerID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"serverKey": result.Session.ServerKey,
		"expiresAt": result.Session.ExpiresAt.UnixMilli(),
	})
}

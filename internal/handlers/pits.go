package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mossy-p/pit-signaling/internal/middleware"
	"github.com/mossy-p/pit-signaling/internal/models"
	"github.com/mossy-p/pit-signaling/internal/session"
)

// CreatePit creates an empty pit (requires authentication). The body is
// optional; without a pitId the server picks one.
func (h *Handler) CreatePit(c *gin.Context) {
	userID, exists := middleware.UserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req models.CreatePitHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	meta, err := h.Sessions.CreatePit(req.PitID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreatePitResponse{PitID: meta.ID})
}

// GetPit returns a pit and its members (public)
func (h *Handler) GetPit(c *gin.Context) {
	meta, err := h.Sessions.Pit(c.Param("pitId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *Handler) ListPits(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"pits": h.Sessions.Pits()})
}

// DeletePit deletes an empty pit (requires authentication and creator)
func (h *Handler) DeletePit(c *gin.Context) {
	userID, exists := middleware.UserID(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	if err := h.Sessions.DeletePit(c.Param("pitId"), userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Pit deleted"})
}

func (h *Handler) GetICEServers(c *gin.Context) {
	out := make([]models.ICEServer, 0, len(h.ICEServers))
	for _, s := range h.ICEServers {
		cred, _ := s.Credential.(string)
		out = append(out, models.ICEServer{URLs: s.URLs, Username: s.Username, Credential: cred})
	}
	c.JSON(http.StatusOK, gin.H{"iceServers": out})
}

func respondError(c *gin.Context, err error) {
	var se *session.Error
	if !errors.As(err, &se) {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(statusFor(se), gin.H{"error": se.Message, "code": se.Code})
}

func statusFor(err *session.Error) int {
	if err.Code == session.CodeNotPitCreator {
		return http.StatusForbidden
	}
	switch err.Kind {
	case session.KindNotFound:
		return http.StatusNotFound
	case session.KindConflict:
		return http.StatusConflict
	case session.KindInvalidInput:
		return http.StatusBadRequest
	case session.KindPreconditionFailed:
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

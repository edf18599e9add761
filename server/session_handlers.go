package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/convoflow/convoflow/engine"
	"github.com/convoflow/convoflow/storage"
)

type startSessionRequest struct {
	Flow engine.Flow `json:"flow"`
}

type continueSessionRequest struct {
	Message string `json:"message"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	*engine.ContinueResult
	Ended bool `json:"ended"`
}

// handleStartSession creates a session for the posted flow and walks it to
// the first input block (or the end).
func (s *Server) handleStartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Wrong request body format"})
		return
	}
	if len(req.Flow.Groups) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Flow has no groups"})
		return
	}

	session := &storage.Session{
		ID: uuid.New().String(),
		State: engine.SessionState{
			FlowQueue: []engine.FlowContext{{Flow: req.Flow}},
		},
	}

	result, err := s.executor.Start(c.Request.Context(), &session.State)
	if err != nil {
		s.respondError(c, err, session.ID)
		return
	}

	if err := s.sessions.Save(c.Request.Context(), session); err != nil {
		s.logger.Error("Failed to save session", "session", session.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error saving session"})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		SessionID:      session.ID,
		ContinueResult: result,
		Ended:          result.Ended(),
	})
}

// handleContinueSession resumes a suspended session with the user's reply.
func (s *Server) handleContinueSession(c *gin.Context) {
	sessionID := c.Param("sessionId")

	var req continueSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Wrong request body format"})
		return
	}

	session, err := s.sessions.Find(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "Session not found"})
			return
		}
		s.logger.Error("Failed to load session", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error loading session"})
		return
	}

	result, err := s.executor.Continue(c.Request.Context(), &session.State, req.Message)
	if err != nil {
		s.respondError(c, err, sessionID)
		return
	}

	if err := s.sessions.Save(c.Request.Context(), session); err != nil {
		s.logger.Error("Failed to save session", "session", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error saving session"})
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		SessionID:      sessionID,
		ContinueResult: result,
		Ended:          result.Ended(),
	})
}

func (s *Server) respondError(c *gin.Context, err error, sessionID string) {
	var clientErr *engine.ClientError
	if errors.As(err, &clientErr) {
		c.JSON(clientErr.Status, gin.H{"message": clientErr.Message})
		return
	}
	s.logger.Error("Session advance failed", "session", sessionID, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Error advancing session"})
}

package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/convoflow/convoflow/engine"
	"github.com/convoflow/convoflow/forge"
	"github.com/convoflow/convoflow/storage"
)

type streamRequest struct {
	SessionID string `json:"sessionId"`
}

const streamChunkSize = 4096

// handleStream forwards a streaming action's output verbatim. Every
// structural miss answers with a 4xx structured body; no credentials are
// touched when the session row is missing and no network call happens when
// the action lacks a stream run.
func (s *Server) handleStream(c *gin.Context) {
	applyStreamHeaders(c)

	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "No session ID provided"})
		return
	}

	session, err := s.sessions.Find(c.Request.Context(), req.SessionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"message": "No state found"})
			return
		}
		s.logger.Error("Failed to load session", "session", req.SessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error loading session"})
		return
	}

	stream, err := s.bridge.StreamAction(c.Request.Context(), &session.State)
	if err != nil {
		s.respondStreamError(c, err)
		return
	}
	defer stream.Close()

	// Chunks are flushed to the caller as they arrive instead of sitting in
	// the response buffer until EOF.
	c.Status(http.StatusOK)
	for {
		_, err := io.CopyN(c.Writer, stream, streamChunkSize)
		c.Writer.Flush()
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) {
			// The caller disconnected or the upstream died mid-stream.
			// Variable state was never touched, so there is nothing to
			// clean up.
			s.logger.Warn("Stream interrupted", "session", req.SessionID, "error", err)
		}
		return
	}
}

func (s *Server) respondStreamError(c *gin.Context, err error) {
	var clientErr *engine.ClientError
	if errors.As(err, &clientErr) {
		c.JSON(clientErr.Status, gin.H{"message": clientErr.Message})
		return
	}
	var providerErr *forge.ProviderError
	if errors.As(err, &providerErr) {
		c.JSON(providerErr.Status, providerErr)
		return
	}
	s.logger.Error("Stream action failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Error running stream action"})
}

func (s *Server) handleStreamPreflight(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "POST")
	c.Header("Access-Control-Expose-Headers", "Content-Length, X-JSON")
	c.Header("Access-Control-Allow-Headers", "*")
	c.String(http.StatusOK, "ok")
}

func applyStreamHeaders(c *gin.Context) {
	for key, value := range streamResponseHeaders {
		c.Header(key, value)
	}
}

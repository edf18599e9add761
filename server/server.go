package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/convoflow/convoflow/engine"
	"github.com/convoflow/convoflow/storage"
)

// Response headers for the streaming route: embeds call it from arbitrary
// origins and intermediaries must not cache partial streams.
var streamResponseHeaders = map[string]string{
	"Access-Control-Allow-Origin": "*",
	"Cache-Control":               "no-store, no-cache, must-revalidate, proxy-revalidate",
	"Pragma":                      "no-cache",
}

// Server wires the viewer HTTP API: session lifecycle plus the streaming
// integration route.
type Server struct {
	logger   *slog.Logger
	sessions storage.SessionStore
	executor *engine.Executor
	bridge   *engine.Bridge
}

func New(logger *slog.Logger, sessions storage.SessionStore, executor *engine.Executor, bridge *engine.Bridge) *Server {
	return &Server{
		logger:   logger,
		sessions: sessions,
		executor: executor,
		bridge:   bridge,
	}
}

func (s *Server) Register(g *gin.Engine) {
	api := g.Group("/api/v1")
	api.POST("/sessions", s.handleStartSession)
	api.POST("/sessions/:sessionId/continue", s.handleContinueSession)
	api.POST("/integrations/stream", s.handleStream)
	api.OPTIONS("/integrations/stream", s.handleStreamPreflight)
}

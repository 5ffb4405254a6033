package http

import (
	"net/http"
	"time"

	"github.com/aescanero/chatrelay/pkg/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ModesResponse lists the configured AI modes
type ModesResponse struct {
	Modes       []string `json:"modes"`
	DefaultMode string   `json:"default_mode"`
}

// SessionsResponse lists connected sessions
type SessionsResponse struct {
	Count    int                    `json:"count"`
	Sessions []*ports.SessionRecord `json:"sessions"`
}

// handleRoot answers with a greeting, kept for clients probing the server
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Hello world"})
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	state := "healthy"
	checks := gin.H{}

	if s.health != nil {
		pool := s.health.GetStatus()
		checks["worker_pool"] = pool
		if !pool.Healthy {
			status = http.StatusServiceUnavailable
			state = "unhealthy"
		}
	}

	sessions, err := s.manager.Sessions(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		status = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	c.JSON(status, gin.H{
		"status":          state,
		"timestamp":       time.Now().UTC(),
		"active_sessions": len(sessions),
		"inflight":        s.manager.Inflight(),
		"checks":          checks,
	})
}

// handleListModes handles mode listing
func (s *Server) handleListModes(c *gin.Context) {
	c.JSON(http.StatusOK, ModesResponse{
		Modes:       s.manager.Modes(),
		DefaultMode: s.manager.DefaultMode(),
	})
}

// handleListSessions handles session listing
func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.manager.Sessions(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INTERNAL",
				Message: "failed to list sessions",
			},
		})
		return
	}

	c.JSON(http.StatusOK, SessionsResponse{
		Count:    len(sessions),
		Sessions: sessions,
	})
}

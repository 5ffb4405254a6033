// Package http provides the REST API of the chat relay using Gin.
//
// Endpoints:
//   - GET /: liveness greeting
//   - GET /health: worker pool and session health
//   - GET /metrics: Prometheus metrics
//   - GET /api/v1/modes: configured AI modes
//   - GET /api/v1/sessions: connected sessions (identifiers only)
//
// The chat and event stream sockets are mounted with SetupWebSocket.
package http

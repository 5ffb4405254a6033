// Package config loads the relay's settings from the environment.
//
// Every field has a development default, so a local run only needs
// AI_WEBHOOK_BASE_URL (or AI_MODE_ENDPOINTS) pointing at the AI service.
// Load validates the result; cmd/chatrelay exits when it fails.
package config

// Package events provides event bus implementations for relay lifecycle events.
//
// Implementations:
//   - redis: Redis Streams, every subscriber reads the full stream (fan-out)
//   - memory: in-process fan-out, the default backend
//
// Events carry identifiers and outcomes only, never chat content.
package events

// Package ports declares the interfaces the relay application depends on.
//
// Adapters under pkg/adapters implement them:
//   - EventBus: events/memory, events/redis
//   - SessionStore: storage/memory
//   - AIClient: llm/webhook, llm/anthropic
//   - MetricsCollector: metrics/prometheus
package ports

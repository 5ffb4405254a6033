// Package relay implements chat session tracking and request/reply correlation.
//
// The manager is responsible for:
//   - Giving every socket connection a session with a chat identity and mode
//   - Validating, rate limiting and forwarding user messages to the worker pool
//   - Correlating upstream replies with the request and chat they belong to
//   - Normalizing replies and delivering exactly one outcome per request
//
// Replies for requests that were cancelled, belong to a previous chat or
// arrive after the session closed are dropped.
package relay

// Package llm provides the upstream AI clients a chat mode can be routed to.
//
// The factory picks a client from the mode's endpoint:
//   - http(s)://...: an AI webhook (see package webhook)
//   - anthropic://<model>: the Anthropic Messages API (see package anthropic)
//
// Router holds one client per configured mode and dispatches requests by mode.
package llm

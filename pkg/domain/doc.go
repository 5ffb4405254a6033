// Package domain defines the chat relay's core types: chat messages exchanged
// with the browser, normalized AI replies, lifecycle events and the error codes
// reported back to clients.
package domain

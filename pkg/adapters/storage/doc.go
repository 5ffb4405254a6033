// Package storage provides session storage implementations.
//
// Implementations:
//   - memory: in-process map holding a record per connected socket
//
// Session records live only as long as their connection; nothing is persisted.
package storage

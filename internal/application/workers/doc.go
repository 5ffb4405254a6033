// Package workers implements the bounded worker pool that runs upstream AI calls.
//
// The pool manages a fixed number of goroutines that:
//   - Take jobs from a bounded queue (Enqueue never blocks)
//   - Run each job with the pool context, cancelled on shutdown
//   - Track idle/busy/stopped status per worker
//
// The health monitor logs pool status and records it as metrics.
package workers

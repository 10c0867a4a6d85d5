// Package session implements the top-level session loop (C10): it owns the
// framed transport and per-session state, and multiplexes the peer stream,
// UI commands, the clipboard watcher, and two tick sources onto one
// cooperative scheduler.
package session

import "sync"

// ConnectionRound is shared across a peer's reconnect attempts. Each Session
// captures the round current at its own creation; a reconnect bumps the
// shared counter and the old session's loop observes the mismatch on its
// next event step and exits silently without touching persistent state.
type ConnectionRound struct {
	mu      sync.Mutex
	current int64
}

// NewConnectionRound starts a fresh round counter at 0.
func NewConnectionRound() *ConnectionRound {
	return &ConnectionRound{}
}

// Next bumps the round, invalidating any session still running the
// previous one, and returns the new round.
func (r *ConnectionRound) Next() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current++
	return r.current
}

// Current returns the round in effect right now.
func (r *ConnectionRound) Current() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

package session

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RunnerRef is the part of a runner a handle holder may touch. Lookup of a
// handle gives no liveness guarantee, so callers check Alive before acting.
type RunnerRef interface {
	// State returns the runner's current lifecycle state.
	State() State
	// Alive reports whether the runner's loop has not yet exited.
	Alive() bool
	// Stop requests cooperative termination and waits at most the
	// configured grace period for the loop to exit. Best-effort join:
	// it returns regardless of whether the loop actually exited.
	Stop()
}

// Handle identifies one started session. Created exactly once per start,
// shared between the registry and whoever started the session.
type Handle struct {
	Token     string
	Runner    RunnerRef
	Log       *LogBuffer
	StartedAt time.Time
}

// NewToken returns a fresh opaque session token: 32 hex characters, unique
// with overwhelming probability across independent starts.
func NewToken() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

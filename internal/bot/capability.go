package bot

import (
	"context"
	"errors"

	"github.com/pollevbot/backend/internal/session"
)

// ErrAuth marks authentication failures. Wrapped by Capability
// implementations so the runner can tell a bad login from a flaky network.
var ErrAuth = errors.New("authentication failed")

// Capability is the external polling-service surface the runner drives.
// Implementations block on network I/O; the runner only checks cancellation
// at iteration boundaries, so an in-flight call may outlive a stop request.
//
// Implementations are called from a single goroutine (the runner loop) and
// do not need to be safe for concurrent use.
type Capability interface {
	// Authenticate logs in with the config's identity/secret/login mode
	// and returns a watch token authorizing subsequent detection calls.
	Authenticate(ctx context.Context, cfg session.Config) (watchToken string, err error)

	// DetectNewPoll asks the service for a newly opened poll. An empty
	// poll ID with nil error means nothing new.
	DetectNewPoll(ctx context.Context, watchToken string) (pollID string, err error)

	// SubmitAnswer responds to the given poll and returns a short
	// description of the submitted response.
	SubmitAnswer(ctx context.Context, pollID string) (description string, err error)
}

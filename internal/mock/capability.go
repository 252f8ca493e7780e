// Package mock provides a simulated polling service for demos and
// development (-mock mode). It authenticates instantly and opens a
// synthetic poll on a fixed cadence.
package mock

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/pollevbot/backend/internal/session"
)

var answers = []string{"Option A", "Option B", "Option C", "Option D"}

// Capability implements bot.Capability without touching the network.
type Capability struct {
	// PollEvery opens a synthetic poll on every Nth detection call.
	// Zero or negative means every 5th.
	PollEvery int

	// FailAuth makes Authenticate fail, for exercising the failed path.
	FailAuth bool

	checks int64
	polls  int64
}

func (c *Capability) Authenticate(_ context.Context, cfg session.Config) (string, error) {
	if c.FailAuth {
		return "", fmt.Errorf("mock: bad credentials for %s", cfg.Identity)
	}
	return "mock-watch-token-" + cfg.Host, nil
}

func (c *Capability) DetectNewPoll(_ context.Context, _ string) (string, error) {
	every := c.PollEvery
	if every <= 0 {
		every = 5
	}
	n := atomic.AddInt64(&c.checks, 1)
	if n%int64(every) != 0 {
		return "", nil
	}
	id := atomic.AddInt64(&c.polls, 1)
	return fmt.Sprintf("mock-poll-%d", id), nil
}

func (c *Capability) SubmitAnswer(_ context.Context, pollID string) (string, error) {
	answer := answers[atomic.LoadInt64(&c.polls)%int64(len(answers))]
	return fmt.Sprintf("answered %s with %q", pollID, answer), nil
}

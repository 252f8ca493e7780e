package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pollevbot/backend/internal/observability"
	"github.com/pollevbot/backend/internal/session"
)

const (
	defaultMaxTransientFailures = 5
	defaultBackoffCap           = time.Minute
)

// Options configures a runner beyond its session config.
type Options struct {
	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// MaxTransientFailures is how many consecutive detection/answer
	// failures the runner tolerates before exiting as failed. Zero means
	// the default (5).
	MaxTransientFailures int

	// BackoffCap bounds the retry backoff between transient failures.
	// Zero means the default (1 minute).
	BackoffCap time.Duration
}

// Runner owns one authenticate, watch, answer loop. It is a plain
// state-carrying struct driven by run; Start spawns run on its own
// goroutine and the runner lives until the loop exits.
type Runner struct {
	cfg         session.Config
	cap         Capability
	buf         *session.LogBuffer
	log         zerolog.Logger
	metrics     *observability.Metrics
	maxFailures int
	backoffCap  time.Duration

	token     string
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state session.State

	// Injectable time, so the loop is testable without real sleeps.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

// Start validates nothing and blocks on nothing: it spawns the loop and
// returns a handle immediately. Callers validate the config first.
func Start(cfg session.Config, cap Capability, opts Options) *session.Handle {
	r := newRunner(cfg, cap, opts)
	return r.start()
}

func newRunner(cfg session.Config, cap Capability, opts Options) *Runner {
	if opts.MaxTransientFailures <= 0 {
		opts.MaxTransientFailures = defaultMaxTransientFailures
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = defaultBackoffCap
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		cfg:         cfg,
		cap:         cap,
		buf:         session.NewLogBuffer(),
		log:         opts.Logger,
		metrics:     opts.Metrics,
		maxFailures: opts.MaxTransientFailures,
		backoffCap:  opts.BackoffCap,
		ctx:         ctx,
		cancel:      cancel,
		done:        make(chan struct{}),
		state:       session.Idle,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

func (r *Runner) start() *session.Handle {
	r.token = session.NewToken()
	r.startedAt = r.now()
	h := &session.Handle{
		Token:     r.token,
		Runner:    r,
		Log:       r.buf,
		StartedAt: r.startedAt,
	}
	if r.metrics != nil {
		r.metrics.SessionsStarted.Inc()
		r.metrics.ActiveSessions.Inc()
	}
	r.log.Info().Str("token", r.token).Str("host", r.cfg.Host).Msg("session runner started")
	go r.run(r.ctx)
	return h
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() session.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Alive reports whether the loop has not yet exited.
func (r *Runner) Alive() bool {
	select {
	case <-r.done:
		return false
	default:
		return true
	}
}

// Stop requests cooperative termination and waits at most the config's
// StopGrace for the loop to exit. Best-effort join: an in-flight network
// call or wait can stretch the loop past the grace period, in which case
// Stop returns anyway and the loop exits on its own shortly after.
func (r *Runner) Stop() {
	r.cancel()
	t := time.NewTimer(r.cfg.StopGrace)
	defer t.Stop()
	select {
	case <-r.done:
	case <-t.C:
		r.log.Warn().Str("token", r.token).Msg("stop grace period elapsed before runner exited")
	}
}

func (r *Runner) setState(s session.State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// event appends to the session's log stream and mirrors the entry into the
// process log.
func (r *Runner) event(lvl session.Level, msg string) {
	r.buf.Append(session.LogEvent{
		Time:    r.now(),
		Level:   lvl,
		Message: msg,
	})
	r.log.Debug().Str("token", r.token).Str("level", lvl.String()).Msg(msg)
}

// run is the loop. Every exit path sets a terminal state before the final
// "stopped" event and the done close.
func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer r.event(session.LevelInfo, "Bot stopped.")
	if r.metrics != nil {
		defer r.metrics.ActiveSessions.Dec()
	}

	r.setState(session.Authenticating)
	r.event(session.LevelInfo, "Bot initialising ...")

	watchToken, err := r.cap.Authenticate(ctx, r.cfg)
	if err != nil {
		if ctx.Err() != nil {
			r.setState(session.Stopped)
			return
		}
		// Fatal and immediate: the loop never starts watching.
		r.event(session.LevelError, fmt.Sprintf("Login failed: %v", err))
		if r.metrics != nil {
			r.metrics.AuthFailures.Inc()
			r.metrics.RunnerFailures.Inc()
		}
		r.setState(session.Failed)
		return
	}

	r.event(session.LevelSuccess, "Login successful. Bot is now watching for polls ...")
	r.setState(session.Watching)

	deadline := r.startedAt.Add(r.cfg.Lifetime)
	failures := 0
	backoff := r.cfg.ClosedWait

	for {
		// Cancellation and deadline are checked once per iteration
		// boundary, never inside a blocking capability call.
		if ctx.Err() != nil {
			r.setState(session.Stopped)
			return
		}
		remaining := deadline.Sub(r.now())
		if remaining <= 0 {
			r.event(session.LevelInfo, "Session lifetime elapsed.")
			r.setState(session.Stopped)
			return
		}

		r.event(session.LevelDebug, "Checking for new polls ...")
		if r.metrics != nil {
			r.metrics.PollChecks.Inc()
		}
		pollID, err := r.cap.DetectNewPoll(ctx, watchToken)
		if err != nil {
			if r.retryOrFail(ctx, "Poll check", err, &failures, &backoff, remaining) {
				return
			}
			continue
		}
		failures, backoff = 0, r.cfg.ClosedWait

		if pollID == "" {
			r.event(session.LevelDebug, "No new polls detected - sleeping ...")
			r.wait(ctx, r.cfg.ClosedWait, remaining)
			continue
		}

		r.setState(session.Answering)
		r.event(session.LevelPoll, fmt.Sprintf("Detected new poll %s. Waiting to answer ...", pollID))
		if !r.wait(ctx, r.cfg.OpenWait, remaining) {
			continue
		}

		response, err := r.cap.SubmitAnswer(ctx, pollID)
		if err != nil {
			if r.retryOrFail(ctx, "Answer", err, &failures, &backoff, remaining) {
				return
			}
			r.setState(session.Watching)
			continue
		}
		failures, backoff = 0, r.cfg.ClosedWait

		r.event(session.LevelSuccess, fmt.Sprintf("Answered poll %s -> %s", pollID, response))
		if r.metrics != nil {
			r.metrics.PollsAnswered.Inc()
		}
		r.setState(session.Watching)
	}
}

// retryOrFail handles a transient detection/answer error: bounded retry
// with doubling backoff, then a visible failed exit. Returns true when the
// loop must terminate. A stop request arriving during the blocked call is
// not misreported as a failure; the caller's loop top turns it into Stopped.
func (r *Runner) retryOrFail(ctx context.Context, what string, err error, failures *int, backoff *time.Duration, remaining time.Duration) bool {
	if ctx.Err() != nil {
		r.setState(session.Stopped)
		return true
	}
	*failures++
	if *failures >= r.maxFailures {
		r.event(session.LevelError, fmt.Sprintf("%s failed %d times, giving up: %v", what, *failures, err))
		if r.metrics != nil {
			r.metrics.RunnerFailures.Inc()
		}
		r.setState(session.Failed)
		return true
	}
	r.event(session.LevelDebug, fmt.Sprintf("%s failed (attempt %d/%d), retrying in %s: %v", what, *failures, r.maxFailures, *backoff, err))
	r.wait(ctx, *backoff, remaining)
	if *backoff *= 2; *backoff > r.backoffCap {
		*backoff = r.backoffCap
	}
	return false
}

// wait sleeps for d, capped at the remaining session lifetime so expiry is
// observed promptly. Returns false when interrupted by cancellation.
func (r *Runner) wait(ctx context.Context, d, remaining time.Duration) bool {
	if d > remaining {
		d = remaining
	}
	return r.sleep(ctx, d)
}

// sleepCtx is the real-clock sleep: interruptible, so a stop request during
// an idle or pre-answer wait is honored without waiting out the full delay.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

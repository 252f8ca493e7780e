package session

import (
	"errors"
	"time"
)

// LoginMode selects the authentication flow used against the polling service.
type LoginMode string

const (
	// LoginStandard is the service's own email/password login.
	LoginStandard LoginMode = "standard"
	// LoginUW is the institutional SSO flow.
	LoginUW LoginMode = "uw"
)

// Default timings, matching the original bot's behavior.
const (
	DefaultLifetime   = 4800 * time.Second // 80 minutes
	DefaultClosedWait = 5 * time.Second
	DefaultOpenWait   = 2 * time.Second
	DefaultStopGrace  = 5 * time.Second
)

// Config describes how to run one session. Immutable after construction;
// safe to copy and to read from multiple goroutines.
type Config struct {
	Identity  string    // email / username
	Secret    string    // password
	Host      string    // poll session to watch, e.g. "cs3410"
	LoginMode LoginMode

	Lifetime   time.Duration // how long the session may run
	ClosedWait time.Duration // idle wait between poll checks
	OpenWait   time.Duration // deliberate delay before answering
	StopGrace  time.Duration // how long Stop waits for the loop to exit
}

var (
	ErrMissingIdentity = errors.New("session: identity is required")
	ErrMissingSecret   = errors.New("session: secret is required")
	ErrMissingHost     = errors.New("session: host is required")
	ErrBadLoginMode    = errors.New("session: unknown login mode")
)

// Validate checks required fields and fills zero-valued timings with
// defaults. It returns a copy; the receiver is not modified.
func (c Config) Validate() (Config, error) {
	if c.Identity == "" {
		return c, ErrMissingIdentity
	}
	if c.Secret == "" {
		return c, ErrMissingSecret
	}
	if c.Host == "" {
		return c, ErrMissingHost
	}
	switch c.LoginMode {
	case "":
		c.LoginMode = LoginStandard
	case LoginStandard, LoginUW:
	default:
		return c, ErrBadLoginMode
	}
	if c.Lifetime <= 0 {
		c.Lifetime = DefaultLifetime
	}
	if c.ClosedWait <= 0 {
		c.ClosedWait = DefaultClosedWait
	}
	if c.OpenWait <= 0 {
		c.OpenWait = DefaultOpenWait
	}
	if c.StopGrace <= 0 {
		c.StopGrace = DefaultStopGrace
	}
	return c, nil
}

// Package pollev is the HTTP client for the polling service. It implements
// the capability surface the runner drives: login (standard or UW SSO),
// firehose token retrieval, new-poll detection, and answer submission.
package pollev

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pollevbot/backend/internal/bot"
	"github.com/pollevbot/backend/internal/session"
)

const (
	defaultBaseURL     = "https://pollev.com"
	defaultFirehoseURL = "https://firehose.pollev.com"
	defaultSSOURL      = "https://idp.u.washington.edu/idp/profile/cas/login"
	defaultTimeout     = 30 * time.Second
)

// Config points the client at the service. Base URLs are configurable so
// tests can aim it at local servers.
type Config struct {
	BaseURL     string        `yaml:"base_url"`
	FirehoseURL string        `yaml:"firehose_url"`
	SSOURL      string        `yaml:"sso_url"`
	Timeout     time.Duration `yaml:"timeout"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.FirehoseURL == "" {
		c.FirehoseURL = defaultFirehoseURL
	}
	if c.SSOURL == "" {
		c.SSOURL = defaultSSOURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	return c
}

// Client is a per-session capability instance. Not safe for concurrent use;
// each runner gets its own.
type Client struct {
	cfg   Config
	http  *http.Client
	log   zerolog.Logger
	host  string
	since string // firehose cursor, advanced on each detected poll
}

func New(cfg Config, log zerolog.Logger) *Client {
	jar, _ := cookiejar.New(nil)
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		http: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout,
		},
		log: log,
	}
}

// Authenticate logs in and returns the firehose token that authorizes
// detection calls.
func (c *Client) Authenticate(ctx context.Context, sc session.Config) (string, error) {
	c.host = sc.Host

	var err error
	switch sc.LoginMode {
	case session.LoginUW:
		err = c.loginUW(ctx, sc)
	default:
		err = c.loginStandard(ctx, sc)
	}
	if err != nil {
		return "", err
	}

	token, err := c.firehoseToken(ctx)
	if err != nil {
		return "", fmt.Errorf("firehose token: %w", err)
	}
	c.log.Debug().Str("host", c.host).Msg("pollev login complete")
	return token, nil
}

func (c *Client) loginStandard(ctx context.Context, sc session.Config) error {
	form := url.Values{
		"login":    {sc.Identity},
		"password": {sc.Secret},
	}
	resp, err := c.postForm(ctx, c.cfg.BaseURL+"/login", form)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("%w: login rejected with status %d", bot.ErrAuth, resp.StatusCode)
	}
	return nil
}

// loginUW drives the institutional SSO flow: obtain a ticket from the IdP,
// then present it to the service to bind the session cookie.
func (c *Client) loginUW(ctx context.Context, sc session.Config) error {
	form := url.Values{
		"username": {strings.TrimSuffix(sc.Identity, "@uw.edu")},
		"password": {sc.Secret},
		"service":  {c.cfg.BaseURL + "/auth/washington/callback"},
	}
	resp, err := c.postForm(ctx, c.cfg.SSOURL, form)
	if err != nil {
		return fmt.Errorf("sso request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return fmt.Errorf("%w: sso rejected with status %d", bot.ErrAuth, resp.StatusCode)
	}
	var ticket struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil || ticket.Ticket == "" {
		return fmt.Errorf("%w: sso response had no ticket", bot.ErrAuth)
	}

	cbURL := fmt.Sprintf("%s/auth/washington/callback?ticket=%s", c.cfg.BaseURL, url.QueryEscape(ticket.Ticket))
	cb, err := c.get(ctx, cbURL)
	if err != nil {
		return fmt.Errorf("sso callback: %w", err)
	}
	defer cb.Body.Close()
	if cb.StatusCode < 200 || cb.StatusCode >= 400 {
		return fmt.Errorf("%w: sso callback rejected with status %d", bot.ErrAuth, cb.StatusCode)
	}
	return nil
}

func (c *Client) firehoseToken(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.cfg.BaseURL+"/proxy/api/users/firehose_auth_token")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: firehose token request returned %d", bot.ErrAuth, resp.StatusCode)
	}
	var body struct {
		Token string `json:"firehose_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: empty firehose token", bot.ErrAuth)
	}
	return body.Token, nil
}

// DetectNewPoll long-polls the firehose for a newly opened poll. An empty
// ID with nil error means nothing new (including long-poll timeouts).
func (c *Client) DetectNewPoll(ctx context.Context, watchToken string) (string, error) {
	u := fmt.Sprintf("%s/users/%s/activity?auth_token=%s&since=%s",
		c.cfg.FirehoseURL, url.PathEscape(c.host), url.QueryEscape(watchToken), url.QueryEscape(c.since))
	resp, err := c.get(ctx, u)
	if err != nil {
		// The firehose holds the connection open until something
		// happens; hitting the client timeout just means no new poll.
		if uerr, ok := err.(*url.Error); ok && uerr.Timeout() {
			return "", nil
		}
		return "", fmt.Errorf("firehose request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("firehose returned %d", resp.StatusCode)
	}

	// The firehose wraps the event as a JSON string inside "message".
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return "", fmt.Errorf("decoding firehose envelope: %w", err)
	}
	var event struct {
		UID  string `json:"uid"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(envelope.Message), &event); err != nil {
		return "", fmt.Errorf("decoding firehose event: %w", err)
	}
	if event.UID == "" {
		return "", nil
	}
	c.since = event.UID
	return event.UID, nil
}

// SubmitAnswer fetches the poll's options, picks one at random, and posts
// it. Returns a description of the chosen option.
func (c *Client) SubmitAnswer(ctx context.Context, pollID string) (string, error) {
	resp, err := c.get(ctx, fmt.Sprintf("%s/proxy/api/polls/%s", c.cfg.BaseURL, url.PathEscape(pollID)))
	if err != nil {
		return "", fmt.Errorf("fetching poll: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("poll fetch returned %d", resp.StatusCode)
	}
	var poll struct {
		Title   string `json:"title"`
		Options []struct {
			ID    int    `json:"id"`
			Value string `json:"value"`
		} `json:"options"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&poll); err != nil {
		return "", fmt.Errorf("decoding poll: %w", err)
	}
	if len(poll.Options) == 0 {
		return "", fmt.Errorf("poll %s has no options", pollID)
	}

	choice := poll.Options[rand.Intn(len(poll.Options))]
	body, _ := json.Marshal(map[string]any{"option_id": choice.ID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/proxy/api/polls/%s/results", c.cfg.BaseURL, url.PathEscape(pollID)),
		strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	post, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting answer: %w", err)
	}
	defer post.Body.Close()
	io.Copy(io.Discard, post.Body)
	if post.StatusCode < 200 || post.StatusCode >= 300 {
		return "", fmt.Errorf("answer submission returned %d", post.StatusCode)
	}
	return fmt.Sprintf("%q", choice.Value), nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

func (c *Client) postForm(ctx context.Context, u string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.http.Do(req)
}

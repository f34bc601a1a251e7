package jisilu

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/wonny/fundarb/pkg/config"
	"github.com/wonny/fundarb/pkg/httputil"
	"github.com/wonny/fundarb/pkg/logger"
)

// ErrLoginRejected is returned when the provider answers the login with err != 0
var ErrLoginRejected = errors.New("login rejected by provider")

// Session describes the state of the client's provider session.
// The cookies themselves live in the client's jar.
type Session struct {
	Authenticated bool
}

// Client handles communication with the premium-feed provider (jisilu)
// ⭐ SSOT: jisilu 호출은 이 클라이언트에서만
//
// One Client owns one cookie session. The first AcquireSession logs in (when
// credentials are configured); every later call reuses that session without
// re-authenticating, even if a dataset later turns out to require more access.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	cfg        config.ProviderConfig

	once    sync.Once
	session Session
}

// NewClient creates a client with its own cookie-backed HTTP session
func NewClient(cfg config.ProviderConfig, log *logger.Logger) *Client {
	httpClient := httputil.New(log, cfg.Timeout).
		WithCookieJar().
		WithHeader("User-Agent", cfg.UserAgent).
		WithHeader("Referer", cfg.RefererURL).
		WithHeader("X-Requested-With", "XMLHttpRequest")

	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("jisilu"),
		cfg:        cfg,
	}
}

// AcquireSession returns the client's session, logging in on first use.
// Login failures are logged and yield an unauthenticated session: anonymous
// access still reaches some datasets, so this never fails.
func (c *Client) AcquireSession(ctx context.Context) Session {
	c.once.Do(func() {
		if !c.cfg.HasCredentials() {
			c.logger.Warn("Provider credentials not configured, fetching anonymously")
			return
		}

		if err := c.login(ctx); err != nil {
			c.logger.WithError(err).Error("Provider login failed, continuing unauthenticated")
			return
		}

		c.session.Authenticated = true
		c.logger.WithField("user", c.cfg.Username).Info("Provider login succeeded")
	})

	return c.session
}

type loginResponse struct {
	Err int    `json:"err"`
	Msg string `json:"msg"`
}

// login posts the credentials once; the cookie jar keeps the resulting session
func (c *Client) login(ctx context.Context) error {
	form := url.Values{
		"user_name":      {c.cfg.Username},
		"password":       {c.cfg.Password},
		"net_auto_login": {"1"},
		"return_url":     {""},
	}

	resp, err := c.httpClient.PostForm(ctx, c.cfg.LoginURL, form)
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	var body loginResponse
	if err := httputil.ReadJSON(resp, &body); err != nil {
		return fmt.Errorf("login response: %w", err)
	}

	if body.Err != 0 {
		msg := body.Msg
		if msg == "" {
			msg = "unknown error"
		}
		return fmt.Errorf("%w: %s", ErrLoginRejected, msg)
	}

	return nil
}

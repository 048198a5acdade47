// Package pihole implements per-instance operations against the Pi-hole
// v6 session-authenticated REST API: login with credential caching, status
// reads, and blocking-state writes, each with a single retry on session
// expiry.
package pihole

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"pifleet.dev/pifleet/internal/logging"
	"pifleet.dev/pifleet/internal/metrics"
	"pifleet.dev/pifleet/internal/session"
	"pifleet.dev/pifleet/internal/transport"
)

const (
	headerSID  = "X-FTL-SID"
	headerCSRF = "X-FTL-CSRF"

	// maxAttempts bounds the 401-retry loop: one initial attempt plus one
	// retry with a forced re-login. A permanently rejecting instance must
	// fail, not loop.
	maxAttempts = 2
)

// Client performs operations against individual Pi-hole instances.
type Client struct {
	transport *transport.Client
	sessions  *session.Store
	logger    *logging.Logger
}

// NewClient creates a Client using the given transport and session store.
func NewClient(tr *transport.Client, sessions *session.Store, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		transport: tr,
		sessions:  sessions,
		logger:    logger.WithComponent("pihole"),
	}
}

// Authenticate returns a valid credential pair for the instance, reusing
// the session cache when possible and logging in otherwise.
func (c *Client) Authenticate(ctx context.Context, inst InstanceConfig) (session.Credential, error) {
	if cred, ok := c.sessions.GetValid(inst.URL); ok {
		metrics.Get().LoginsTotal.WithLabelValues("cached").Inc()
		return cred, nil
	}
	return c.login(ctx, inst)
}

// login performs a fresh login against the instance's auth endpoint and
// caches the resulting credential. Any failure invalidates whatever stale
// entry may exist for this instance.
func (c *Client) login(ctx context.Context, inst InstanceConfig) (session.Credential, error) {
	resp, err := c.transport.Post(ctx, inst.URL+"/api/auth", nil, map[string]string{
		"password": inst.Password,
	})
	if err != nil {
		c.sessions.Invalidate(inst.URL)
		metrics.Get().LoginsTotal.WithLabelValues("failed").Inc()
		return session.Credential{}, &AuthError{Instance: inst.Name, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		c.sessions.Invalidate(inst.URL)
		metrics.Get().LoginsTotal.WithLabelValues("failed").Inc()
		return session.Credential{}, &AuthError{
			Instance:   inst.Name,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(resp.Body), 512),
		}
	}

	var auth authResponse
	if err := resp.DecodeJSON(&auth); err != nil {
		c.sessions.Invalidate(inst.URL)
		metrics.Get().LoginsTotal.WithLabelValues("failed").Inc()
		return session.Credential{}, &AuthError{Instance: inst.Name, StatusCode: resp.StatusCode, Err: err}
	}

	if !auth.Session.Valid || auth.Session.SID == "" {
		c.sessions.Invalidate(inst.URL)
		metrics.Get().LoginsTotal.WithLabelValues("failed").Inc()
		return session.Credential{}, &AuthError{
			Instance:   inst.Name,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(resp.Body), 512),
			Err:        errors.New("login response did not contain a valid session"),
		}
	}

	cred := session.Credential{SID: auth.Session.SID, CSRF: auth.Session.CSRF}
	c.sessions.Put(inst.URL, cred, auth.Session.Validity)
	metrics.Get().LoginsTotal.WithLabelValues("fresh").Inc()
	c.logger.Debug("Authenticated", "instance", inst.Name, "validity", auth.Session.Validity)
	return cred, nil
}

// FetchStatus reads the blocking state and query statistics of one
// instance. It never returns an error: any failure degrades into a status
// entry with Blocking=nil and Error set, so one broken instance cannot
// take down a fleet-wide poll.
func (c *Client) FetchStatus(ctx context.Context, inst InstanceConfig) InstanceStatus {
	metrics.Get().InstanceOps.WithLabelValues(inst.Name, "status").Inc()

	st, err := c.fetchStatus(ctx, inst)
	if err != nil {
		metrics.Get().InstanceErrors.WithLabelValues(inst.Name, "status").Inc()
		c.logger.Warn("Status fetch failed", "instance", inst.Name, "error", err)
		msg := err.Error()
		return InstanceStatus{Name: inst.Name, URL: inst.URL, Error: &msg}
	}
	return st
}

func (c *Client) fetchStatus(ctx context.Context, inst InstanceConfig) (InstanceStatus, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		cred, err := c.Authenticate(ctx, inst)
		if err != nil {
			return InstanceStatus{}, err
		}

		blocking, stats, err := c.readState(ctx, inst, cred)
		if err != nil {
			if errors.Is(err, errUnauthorized) && attempt == 0 {
				// Stale session: drop it and go around once with a fresh
				// login. The first attempt has fully completed before the
				// retry starts.
				c.sessions.Invalidate(inst.URL)
				metrics.Get().AuthRetries.Inc()
				c.logger.Debug("Session rejected, retrying with fresh login", "instance", inst.Name)
				continue
			}
			return InstanceStatus{}, err
		}

		enabled := blocking.enabled()
		return InstanceStatus{
			Name:           inst.Name,
			URL:            inst.URL,
			Blocking:       &enabled,
			Timer:          blocking.timerSeconds(),
			TotalQueries:   stats.Queries.Total,
			BlockedQueries: stats.Queries.Blocked,
			PercentBlocked: stats.Queries.PercentBlocked,
		}, nil
	}

	return InstanceStatus{}, fmt.Errorf("%s: %w after re-login", inst.Name, errUnauthorized)
}

// readState issues the blocking read and the stats read in parallel. Both
// must succeed; a 401 from either surfaces as errUnauthorized.
func (c *Client) readState(ctx context.Context, inst InstanceConfig, cred session.Credential) (*blockingResponse, *statsSummaryResponse, error) {
	headers := map[string]string{headerSID: cred.SID}

	var (
		wg       sync.WaitGroup
		blocking blockingResponse
		stats    statsSummaryResponse
		blockErr error
		statsErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		blockErr = c.getJSON(ctx, inst, "/api/dns/blocking", headers, &blocking)
	}()
	go func() {
		defer wg.Done()
		statsErr = c.getJSON(ctx, inst, "/api/stats/summary", headers, &stats)
	}()
	wg.Wait()

	// Report the 401 first if either read saw one, so the retry path
	// triggers even when the other read failed differently.
	for _, err := range []error{blockErr, statsErr} {
		if errors.Is(err, errUnauthorized) {
			return nil, nil, err
		}
	}
	if blockErr != nil {
		return nil, nil, blockErr
	}
	if statsErr != nil {
		return nil, nil, statsErr
	}
	return &blocking, &stats, nil
}

func (c *Client) getJSON(ctx context.Context, inst InstanceConfig, path string, headers map[string]string, out any) error {
	resp, err := c.transport.Get(ctx, inst.URL+path, headers)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s %s: %w", inst.Name, path, errUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %d: %s", inst.Name, path, resp.StatusCode, truncate(string(resp.Body), 256))
	}
	return resp.DecodeJSON(out)
}

// SetBlocking enables or disables DNS blocking on one instance. When
// disabling with a positive timerSeconds, the instance re-enables itself
// after the countdown. Unlike FetchStatus this propagates failures: the
// orchestrator needs to tell a failed instance apart from a succeeding
// one per call site.
func (c *Client) SetBlocking(ctx context.Context, inst InstanceConfig, enabled bool, timerSeconds int) (InstanceActionResult, error) {
	metrics.Get().InstanceOps.WithLabelValues(inst.Name, "set_blocking").Inc()

	res, err := c.setBlocking(ctx, inst, enabled, timerSeconds)
	if err != nil {
		metrics.Get().InstanceErrors.WithLabelValues(inst.Name, "set_blocking").Inc()
		return InstanceActionResult{}, err
	}
	return res, nil
}

func (c *Client) setBlocking(ctx context.Context, inst InstanceConfig, enabled bool, timerSeconds int) (InstanceActionResult, error) {
	body := map[string]any{"blocking": enabled}
	if !enabled && timerSeconds > 0 {
		body["timer"] = timerSeconds
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		cred, err := c.Authenticate(ctx, inst)
		if err != nil {
			return InstanceActionResult{}, err
		}

		headers := map[string]string{
			headerSID:  cred.SID,
			headerCSRF: cred.CSRF,
		}

		resp, err := c.transport.Post(ctx, inst.URL+"/api/dns/blocking", headers, body)
		if err != nil {
			return InstanceActionResult{}, err
		}

		if resp.StatusCode == http.StatusUnauthorized {
			if attempt == 0 {
				c.sessions.Invalidate(inst.URL)
				metrics.Get().AuthRetries.Inc()
				c.logger.Debug("Session rejected, retrying with fresh login", "instance", inst.Name)
				continue
			}
			return InstanceActionResult{}, fmt.Errorf("%s: %w after re-login", inst.Name, errUnauthorized)
		}

		if resp.StatusCode != http.StatusOK {
			return InstanceActionResult{}, &SetBlockingError{
				Instance:   inst.Name,
				StatusCode: resp.StatusCode,
				Body:       truncate(string(resp.Body), 512),
			}
		}

		var state blockingResponse
		if err := resp.DecodeJSON(&state); err != nil {
			return InstanceActionResult{}, fmt.Errorf("%s: %w", inst.Name, err)
		}

		nowEnabled := state.enabled()
		c.logger.Info("Blocking state set", "instance", inst.Name, "blocking", nowEnabled, "timer", state.timerSeconds())
		return InstanceActionResult{
			Name:     inst.Name,
			Blocking: &nowEnabled,
			Timer:    state.timerSeconds(),
		}, nil
	}

	// Unreachable: the loop either returns or retries exactly once.
	return InstanceActionResult{}, fmt.Errorf("%s: retry budget exhausted", inst.Name)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

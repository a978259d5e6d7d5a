package spc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

// The panel embeds the session id in URLs, not cookies, and expires sessions
// unpredictably. The session manager keeps the last known id on disk, reuses
// it while the panel still accepts it, and rate-limits fresh logins so a
// flapping panel never sees a login storm.

const (
	maxLoginBackoff   = 60 * time.Second
	initLoginBackoff  = 2 * time.Second
	revalidationSleep = 2 * time.Second
)

type sessionRecord struct {
	Host    string  `json:"host,omitempty"`
	Session string  `json:"session"`
	Time    float64 `json:"time"`
}

var (
	sessionRe         = regexp.MustCompile(`[?&]session=([0-9A-Za-zx]+)`)
	sessionFallbackRe = regexp.MustCompile(`secure\.htm\?[^"'>]*session=([0-9A-Za-zx]+)`)
)

// extractSession pulls the session token out of a URL or a response body.
func extractSession(textOrURL string) string {
	if textOrURL == "" {
		return ""
	}
	if m := sessionRe.FindStringSubmatch(textOrURL); m != nil {
		return m[1]
	}
	if m := sessionFallbackRe.FindStringSubmatch(textOrURL); m != nil {
		return m[1]
	}
	return ""
}

// GetOrLogin returns a session id believed valid, or "" when none can be
// obtained right now. It never fails on network errors; the only error it
// returns is an unwritable session cache.
func (c *Client) GetOrLogin(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getOrLogin(ctx)
}

// getOrLogin is GetOrLogin with c.mu held.
func (c *Client) getOrLogin(ctx context.Context) (string, error) {
	rec := c.loadSessionCache()
	sid := rec.Session

	if sid != "" && c.sessionValid(ctx, sid) {
		return sid, nil
	}

	// A recent failed login imposes a backoff window: wait it out once and
	// recheck, another process may have logged in meanwhile.
	if c.backoff > 0 && c.now().Sub(c.lastFail) < c.backoff {
		c.sleep(minDuration(c.backoff, maxLoginBackoff))
		if sid != "" && c.sessionValid(ctx, sid) {
			return sid, nil
		}
	}

	// Inside the minimum login interval a failed validation must not
	// trigger a login: revalidate once after a short pause, then give up
	// and let the next tick retry.
	if c.loginTooRecent(rec) {
		c.sleep(revalidationSleep)
		if sid != "" && c.sessionValid(ctx, sid) {
			return sid, nil
		}
		return "", nil
	}

	return c.login(ctx)
}

// loginTooRecent applies the min-login-interval with up to 20% jitter so
// parallel deployments don't all log in at the same instant.
func (c *Client) loginTooRecent(rec sessionRecord) bool {
	if rec.Time == 0 || c.minLogin <= 0 {
		return false
	}
	acquired := time.Unix(0, int64(rec.Time*float64(time.Second)))
	jitter := time.Duration(c.jitter() * 0.2 * float64(c.minLogin))
	return c.now().Sub(acquired) < c.minLogin+jitter
}

// sessionValid probes a protected page with the candidate id. Any network
// error counts as invalid; the caller decides whether to log in.
func (c *Client) sessionValid(ctx context.Context, sid string) bool {
	body, _, err := c.get(ctx, c.pageURL(sid, "spc_home"))
	if err != nil {
		return false
	}
	low := strings.ToLower(body)
	if strings.Contains(low, "login.htm") ||
		strings.Contains(low, "mot de passe") ||
		strings.Contains(low, "identifiant") {
		return false
	}
	return strings.Contains(low, "spc42")
}

// login runs the panel's login sequence and returns the new session id, or
// "" on failure. Failures arm the exponential backoff; success resets it.
func (c *Client) login(ctx context.Context) (string, error) {
	// Seed cookies; the controller may set one on the login page. Failures
	// here are ignored.
	_, _, _ = c.get(ctx, c.host+"/login.htm")

	loginURL := fmt.Sprintf("%s/login.htm?action=login&language=%s", c.host, c.lang)
	form := url.Values{
		"userid":   {c.user},
		"password": {c.pin},
	}
	body, finalURL, err := c.postForm(ctx, loginURL, form)
	if err != nil {
		c.recordLoginFailure()
		return "", nil
	}

	sid := extractSession(finalURL)
	if sid == "" {
		sid = extractSession(body)
	}
	if sid == "" {
		c.recordLoginFailure()
		return "", nil
	}

	c.lastFail = time.Time{}
	c.backoff = 0
	if err := c.saveSessionCache(sid); err != nil {
		return "", fmt.Errorf("save session cache: %w", err)
	}
	c.saveCookies()
	return sid, nil
}

func (c *Client) recordLoginFailure() {
	c.lastFail = c.now()
	if c.backoff == 0 {
		c.backoff = initLoginBackoff
	}
	c.backoff = minDuration(c.backoff*2, maxLoginBackoff)
}

func (c *Client) loadSessionCache() sessionRecord {
	data, err := os.ReadFile(c.sessionFile)
	if err != nil {
		return sessionRecord{}
	}
	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return sessionRecord{}
	}
	return rec
}

func (c *Client) saveSessionCache(sid string) error {
	rec := sessionRecord{
		Host:    c.host,
		Session: sid,
		Time:    float64(c.now().UnixNano()) / float64(time.Second),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return atomicWrite(c.sessionFile, data, 0o600)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

package spc

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/acre-exp/spc2mqtt/internal/config"
)

const (
	requestTimeout = 8 * time.Second
	userAgent      = "spc42-client/1.0"

	sessionFileName = "spc_session.json"
	cookieFileName  = "spc_cookies.jar"
)

// Client is the panel client: one shared HTTP client with a persistent
// cookie jar, the session manager, and the scrape/command operations.
//
// All exported operations serialize on a single mutex. The panel's session
// model is not safe for interleaved requests, so login, scans and commands
// are single-flight across the whole process.
type Client struct {
	hc  *http.Client
	jar http.CookieJar

	host string
	user string
	pin  string
	lang string

	sessionFile string
	cookieFile  string
	minLogin    time.Duration

	mu       sync.Mutex
	lastFail time.Time
	backoff  time.Duration

	// Test seams.
	now    func() time.Time
	sleep  func(time.Duration)
	jitter func() float64
}

// New builds a Client from the spc section of the configuration. The session
// cache directory is created if missing; a previously saved cookie jar is
// reloaded best-effort.
func New(cfg config.SPC) (*Client, error) {
	if err := os.MkdirAll(cfg.SessionCacheDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session cache dir: %w", err)
	}

	host := strings.TrimRight(cfg.Host, "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	c := &Client{
		jar:         jar,
		host:        host,
		user:        cfg.User,
		pin:         cfg.Pin,
		lang:        strconv.Itoa(cfg.Language),
		sessionFile: filepath.Join(cfg.SessionCacheDir, sessionFileName),
		cookieFile:  filepath.Join(cfg.SessionCacheDir, cookieFileName),
		minLogin:    time.Duration(cfg.MinLoginIntervalSec) * time.Second,
		now:         time.Now,
		sleep:       time.Sleep,
		jitter:      rand.Float64,
	}
	c.hc = &http.Client{
		Timeout: requestTimeout,
		Jar:     jar,
	}
	c.loadCookies()
	return c, nil
}

func (c *Client) hostURL() *url.URL {
	u, err := url.Parse(c.host)
	if err != nil {
		return &url.URL{Scheme: "http", Host: c.host}
	}
	return u
}

func (c *Client) pageURL(sid, page string) string {
	return fmt.Sprintf("%s/secure.htm?session=%s&page=%s", c.host, sid, page)
}

// get performs a GET, raising on HTTP >= 400, and returns the body (decoded
// as UTF-8 regardless of declared charset) and the final URL after
// redirects. Cookies are saved best-effort after every successful request.
func (c *Client) get(ctx context.Context, rawurl string) (body, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return "", "", err
	}
	return c.do(req)
}

// postForm performs a form-encoded POST, following redirects.
func (c *Client) postForm(ctx context.Context, rawurl string, form url.Values) (body, finalURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawurl, strings.NewReader(form.Encode()))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (string, string, error) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Connection", "keep-alive")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", err
	}
	if resp.StatusCode >= 400 {
		return "", "", &HTTPError{StatusCode: resp.StatusCode}
	}
	c.saveCookies()
	return string(data), resp.Request.URL.String(), nil
}

// FetchZones scrapes the zones page. Returns ErrNoSession when no
// authenticated session could be obtained.
func (c *Client) FetchZones(ctx context.Context) ([]Zone, error) {
	body, err := c.fetchPage(ctx, CategoryZones.page())
	if err != nil {
		return nil, err
	}
	return ParseZones(body), nil
}

// FetchSectors scrapes the home page for sector rows.
func (c *Client) FetchSectors(ctx context.Context) ([]Sector, error) {
	body, err := c.fetchPage(ctx, CategorySecteurs.page())
	if err != nil {
		return nil, err
	}
	return ParseSectors(body), nil
}

// FetchDoors scrapes the doors page.
func (c *Client) FetchDoors(ctx context.Context) ([]Door, error) {
	body, err := c.fetchPage(ctx, CategoryDoors.page())
	if err != nil {
		return nil, err
	}
	return ParseDoors(body), nil
}

// FetchOutputs scrapes the outputs page.
func (c *Client) FetchOutputs(ctx context.Context) ([]Output, error) {
	body, err := c.fetchPage(ctx, CategoryOutputs.page())
	if err != nil {
		return nil, err
	}
	return ParseOutputs(body), nil
}

// FetchControllerStatus scrapes the controller status page.
func (c *Client) FetchControllerStatus(ctx context.Context) ([]StatusEntry, error) {
	body, err := c.fetchPage(ctx, "controller_status")
	if err != nil {
		return nil, err
	}
	return ParseControllerStatus(body), nil
}

func (c *Client) fetchPage(ctx context.Context, page string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sid, err := c.getOrLogin(ctx)
	if err != nil {
		return "", err
	}
	if sid == "" {
		return "", ErrNoSession
	}
	body, _, err := c.get(ctx, c.pageURL(sid, page))
	if err != nil {
		return "", err
	}
	return body, nil
}

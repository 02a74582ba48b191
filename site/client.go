package site

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	"github.com/s0up4200/ptseed/config"
)

// detailsIDPattern extracts the torrent id from an upload redirect like
// details.php?id=12345&uploaded=1.
var detailsIDPattern = regexp.MustCompile(`details\.php\?id=(\d+)`)

// Client is an authenticated session against the tracker site. It owns the
// session cookie and refreshes it on expiry when auto-login is enabled.
type Client struct {
	baseURL    string
	userAgent  string
	username   string
	password   string
	autoLogin  bool
	loginRetry int
	httpClient *http.Client
	logger     zerolog.Logger

	mu     sync.Mutex
	cookie string
}

// NewClient creates a site client from configuration. A configured cookie
// is used as-is; otherwise credentials must allow an initial login.
func NewClient(cfg config.SiteConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("site URL is required")
	}
	if cfg.Cookie == "" && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("site cookie or credentials are required")
	}

	baseURL := strings.TrimRight(cfg.URL, "/")

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	client := &Client{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		username:   cfg.Username,
		password:   cfg.Password,
		autoLogin:  cfg.AutoLogin,
		loginRetry: max(cfg.LoginRetry, 1),
		cookie:     cfg.Cookie,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			// Redirects carry the session outcome (login.php means the
			// cookie is dead), so follow them manually.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}

	return client, nil
}

// Login authenticates with credentials and captures a fresh session cookie.
func (c *Client) Login(ctx context.Context) error {
	if c.username == "" || c.password == "" {
		return fmt.Errorf("%w: no credentials configured", ErrLoginFailed)
	}

	form := url.Values{}
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/takelogin.php", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	var cookies []string
	for _, cookie := range resp.Cookies() {
		cookies = append(cookies, cookie.Name+"="+cookie.Value)
	}
	if len(cookies) == 0 {
		return fmt.Errorf("%w: no session cookie in response (status %d)", ErrLoginFailed, resp.StatusCode)
	}

	c.mu.Lock()
	c.cookie = strings.Join(cookies, "; ")
	c.mu.Unlock()

	c.logger.Info().Msg("Site login successful, session refreshed")
	return nil
}

// Classify fetches the torrent's detail page and reads its promotion state.
// Called once per torrent, at admission.
func (c *Client) Classify(ctx context.Context, torrentID string) (Classification, error) {
	body, err := c.doRequest(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			fmt.Sprintf("%s/details.php?id=%s", c.baseURL, torrentID), nil)
	})
	if err != nil {
		return ClassificationDefault, err
	}

	return classifyFromPage(string(body)), nil
}

// classifyFromPage maps NexusPHP promotion markers to a classification.
// The order matters: free2up pages also contain the plain free marker.
func classifyFromPage(page string) Classification {
	switch {
	case strings.Contains(page, "pro_free2up") || strings.Contains(page, "class='twoupfree'"):
		return ClassificationDoubleUp
	case strings.Contains(page, "pro_free") || strings.Contains(page, "class='free'"):
		return ClassificationFree
	case strings.Contains(page, "pro_50pctdown") || strings.Contains(page, "class='halfdown'"):
		return ClassificationHalfFree
	case strings.Contains(page, "pro_2up"):
		return ClassificationDoubleUp
	default:
		return ClassificationDefault
	}
}

// Submit uploads a torrent file and returns the site's torrent id.
func (c *Client) Submit(ctx context.Context, torrentFile []byte, meta SubmitMeta) (string, error) {
	body, err := c.doRequest(ctx, func() (*http.Request, error) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)

		part, err := w.CreateFormFile("file", meta.Name+".torrent")
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(torrentFile); err != nil {
			return nil, err
		}
		if err := w.WriteField("name", meta.Name); err != nil {
			return nil, err
		}
		if meta.Description != "" {
			if err := w.WriteField("descr", meta.Description); err != nil {
				return nil, err
			}
		}
		if meta.Category != "" {
			if err := w.WriteField("type", meta.Category); err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/takeupload.php", bytes.NewReader(buf.Bytes()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	})
	if err != nil {
		return "", err
	}

	if m := detailsIDPattern.FindStringSubmatch(string(body)); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("upload accepted but no torrent id in response")
}

// doRequest executes a request with session handling. On ErrAuthExpired it
// re-authenticates and retries, capped at the configured login retry count.
// The request is rebuilt per attempt so bodies are fresh.
func (c *Client) doRequest(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			req, err := build()
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
			}

			body, err = c.execute(req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.loginRetry)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return c.autoLogin && errors.Is(err, ErrAuthExpired)
		}),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn().Uint("attempt", n+1).Msg("Session expired, re-authenticating")
			if loginErr := c.Login(ctx); loginErr != nil {
				c.logger.Error().Err(loginErr).Msg("Re-authentication failed")
			}
		}),
	)

	return body, err
}

// execute performs one authenticated round trip.
func (c *Client) execute(req *http.Request) ([]byte, error) {
	c.mu.Lock()
	cookie := c.cookie
	c.mu.Unlock()

	req.Header.Set("Cookie", cookie)
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	// A redirect to the login page means the session is gone.
	if resp.StatusCode == http.StatusFound || resp.StatusCode == http.StatusSeeOther {
		location := resp.Header.Get("Location")
		if strings.Contains(location, "login.php") {
			return nil, ErrAuthExpired
		}
		// Upload success redirects to the details page; hand the target
		// back to the caller.
		return []byte(location), nil
	}

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrAuthExpired
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	}

	return body, nil
}

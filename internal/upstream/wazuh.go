package upstream

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// WazuhClient talks to the Wazuh manager REST API. A bearer token is
// acquired lazily on first use and refreshed once its TTL lapses; callers
// never re-authenticate per request.
type WazuhClient struct {
	baseURL  string
	username string
	password string
	tokenTTL time.Duration
	client   *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// WazuhOptions configures a WazuhClient.
type WazuhOptions struct {
	URL      string
	Username string
	Password string
	Insecure bool
	Timeout  time.Duration
	TokenTTL time.Duration
}

// NewWazuhClient creates a manager API client. No network call is made
// until the first request needs a token.
func NewWazuhClient(opts WazuhOptions) *WazuhClient {
	transport := &http.Transport{}
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 15 * time.Minute
	}

	return &WazuhClient{
		baseURL:  opts.URL,
		username: opts.Username,
		password: opts.Password,
		tokenTTL: opts.TokenTTL,
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
	}
}

// Name identifies the source in logs and metrics.
func (c *WazuhClient) Name() string { return "wazuh-api" }

// Fetch returns up to limit raw agent records from the manager. since is
// ignored: the manager always reports the full current agent set and the
// pipeline's watermark decides what counts as new.
func (c *WazuhClient) Fetch(ctx context.Context, since time.Time, limit int) ([]map[string]any, error) {
	_ = since

	body, err := c.get(ctx, fmt.Sprintf("/agents?limit=%d", limit))
	if err != nil {
		return nil, err
	}

	var resp struct {
		Data struct {
			AffectedItems []map[string]any `json:"affected_items"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode agents response: %w", err)
	}

	return resp.Data.AffectedItems, nil
}

// get performs an authenticated GET, re-authenticating once on 401.
func (c *WazuhClient) get(ctx context.Context, path string) ([]byte, error) {
	token, err := c.getToken(ctx, false)
	if err != nil {
		return nil, err
	}

	body, status, err := c.do(ctx, path, token)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		token, err = c.getToken(ctx, true)
		if err != nil {
			return nil, err
		}
		body, status, err = c.do(ctx, path, token)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("wazuh api returned status %d", status)
	}

	return body, nil
}

func (c *WazuhClient) do(ctx context.Context, path, token string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("wazuh api request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// getToken returns the cached token, authenticating when none is held,
// the TTL has lapsed, or force is set.
func (c *WazuhClient) getToken(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/security/user/authenticate", nil)
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wazuh authentication: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wazuh authentication returned status %d", resp.StatusCode)
	}

	var authResp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	if authResp.Data.Token == "" {
		return "", fmt.Errorf("wazuh authentication returned empty token")
	}

	c.token = authResp.Data.Token
	c.tokenExpiry = time.Now().Add(c.tokenTTL)
	return c.token, nil
}

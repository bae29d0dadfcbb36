package pushclient

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// Client is a thin wrapper over the push-delivery collaborator's HTTP API.
// The collaborator wakes a device given its current push token and the
// correlation magic; the engine treats delivery as best effort.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
}

// New creates a push-delivery client.
func New(rawURL, token string, timeout time.Duration) (*Client, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" {
		return nil, fmt.Errorf("base url must include scheme")
	}
	parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	return &Client{
		baseURL: parsed,
		token:   token,
		http: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Wake asks the collaborator to prompt the device to contact the server.
func (c *Client) Wake(ctx context.Context, pushToken []byte, pushMagic string) error {
	body, err := json.Marshal(map[string]string{
		"push_token": hex.EncodeToString(pushToken),
		"push_magic": pushMagic,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.resolve("/push"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("push http status %s", resp.Status)
	}
	return nil
}

// Ping checks collaborator health.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/ping"), nil)
	if err != nil {
		return err
	}
	c.decorate(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed: %s", resp.Status)
	}
	return nil
}

func (c *Client) resolve(p string) string {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, p)
	return u.String()
}

func (c *Client) decorate(req *http.Request) {
	if c.token != "" {
		req.Header.Set("API-TOKEN", c.token)
	}
}

// Package client talks to a running host over its HTTP interface.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"prdraft/internal/web"
)

type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the host at addr, which is host:port or an http URL.
func New(addr string) (*Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("client: empty host address")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return &Client{base: u, http: &http.Client{Timeout: 30 * time.Second}}, nil
}

// URL resolves p against the host.
func (c *Client) URL(p string) string {
	u := *c.base
	u.Path += p
	return u.String()
}

// StatusError is a non-2xx reply.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("host replied %d", e.Code)
	}
	return fmt.Sprintf("host replied %d: %s", e.Code, e.Body)
}

func (c *Client) do(ctx context.Context, method, p string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL(p), body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Show opens or reveals the surface for key.
func (c *Client) Show(ctx context.Context, kind, key, placement string) (web.SurfaceInfo, error) {
	var info web.SurfaceInfo
	err := c.do(ctx, http.MethodPost, "/surfaces", web.ShowRequest{Kind: kind, Key: key, Placement: placement}, &info)
	return info, err
}

func (c *Client) Surfaces(ctx context.Context) ([]web.SurfaceInfo, error) {
	var out []web.SurfaceInfo
	err := c.do(ctx, http.MethodGet, "/surfaces", nil, &out)
	return out, err
}

// Find returns the live surface for key.
func (c *Client) Find(ctx context.Context, key string) (web.SurfaceInfo, bool, error) {
	all, err := c.Surfaces(ctx)
	if err != nil {
		return web.SurfaceInfo{}, false, err
	}
	for _, info := range all {
		if info.Key == key {
			return info, true, nil
		}
	}
	return web.SurfaceInfo{}, false, nil
}

// State returns the host's composite state as raw JSON.
func (c *Client) State(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/state", nil, &out)
	return out, err
}

func (c *Client) Close(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/s/"+url.PathEscape(id), nil, nil)
}

// Dial opens the message channel of surface id.
func (c *Client) Dial(ctx context.Context, id string) (*websocket.Conn, error) {
	u := *c.base
	u.Scheme = "ws"
	if c.base.Scheme == "https" {
		u.Scheme = "wss"
	}
	u.Path += "/s/" + url.PathEscape(id) + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

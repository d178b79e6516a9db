package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrFetch wraps every failure to obtain a usable manifest: transport
// errors, timeouts, non-2xx responses and malformed bodies.
var ErrFetch = errors.New("manifest fetch failed")

const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "mcwatch/1.0"
	maxBodyBytes     = 16 << 20
)

// Proxy is an optional HTTP proxy address.
type Proxy struct {
	Enabled bool
	Host    string
	Port    int
}

// URL returns the proxy URL, or nil when the proxy is disabled.
func (p Proxy) URL() (*url.URL, error) {
	if !p.Enabled {
		return nil, nil
	}
	host := strings.TrimSpace(p.Host)
	if host == "" || p.Port <= 0 || p.Port > 65535 {
		return nil, fmt.Errorf("invalid proxy address %q:%d", p.Host, p.Port)
	}
	return &url.URL{Scheme: "http", Host: net.JoinHostPort(host, strconv.Itoa(p.Port))}, nil
}

// Options configures a Client.
type Options struct {
	URL       string
	Timeout   time.Duration
	UserAgent string
	Proxy     Proxy
}

// Client retrieves the manifest over HTTP. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
	userAgent  string
}

// New builds a Client. When httpClient is nil a client with a transport
// honoring opt.Proxy is created.
func New(opt Options, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		hc, err := NewHTTPClient(opt.Proxy)
		if err != nil {
			return nil, err
		}
		httpClient = hc
	}
	u := strings.TrimSpace(opt.URL)
	if u == "" {
		u = DefaultURL
	}
	timeout := opt.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ua := strings.TrimSpace(opt.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Client{httpClient: httpClient, url: u, timeout: timeout, userAgent: ua}, nil
}

// NewHTTPClient returns an http.Client routed through p when enabled.
func NewHTTPClient(p Proxy) (*http.Client, error) {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	pu, err := p.URL()
	if err != nil {
		return nil, err
	}
	if pu != nil {
		tr.Proxy = http.ProxyURL(pu)
	}
	return &http.Client{Transport: tr}, nil
}

// Fetch downloads and decodes the manifest. The request is bounded by the
// client's fixed timeout in addition to ctx.
func (c *Client) Fetch(ctx context.Context) (*Manifest, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not send request: %w", ErrFetch, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", ErrFetch, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var m Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: could not decode body: %w", ErrFetch, err)
	}
	if m.Versions == nil {
		return nil, fmt.Errorf("%w: body has no versions array", ErrFetch)
	}
	return &m, nil
}

// URL returns the manifest endpoint.
func (c *Client) URL() string { return c.url }

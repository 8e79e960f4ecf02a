// Package backend is the REST client of the order backend. It attaches the
// session's bearer token, maps HTTP failures onto the client's error
// taxonomy and decodes the backend's loosely shaped answers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/enum"
)

const maxBodySize = 4 << 20

// TokenSource yields the bearer token for the next request.
type TokenSource interface {
	Token() (string, error)
}

// Connectivity reports whether the device currently has network access.
type Connectivity interface {
	Online() bool
}

// AlwaysOnline is the Connectivity of hosts without a connectivity probe.
type AlwaysOnline struct{}

// Online implements Connectivity.
func (AlwaysOnline) Online() bool { return true }

// Reachability is a Connectivity fed from outside, typically by the shell
// that owns the device's network state. It starts online.
type Reachability struct {
	offline atomic.Bool
}

// Online implements Connectivity.
func (r *Reachability) Online() bool { return !r.offline.Load() }

// SetOnline records the device's network state and reports whether it
// changed.
func (r *Reachability) SetOnline(online bool) bool {
	return r.offline.Swap(!online) == online
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Line    enum.Line
	// Endpoints overrides the line's default path table.
	Endpoints    *Endpoints
	HTTPClient   *http.Client
	Tokens       TokenSource
	Connectivity Connectivity
	Logger       *zap.Logger
}

// Client calls the backend REST API for one order line.
type Client struct {
	base      *url.URL
	line      enum.Line
	endpoints Endpoints
	http      *http.Client
	tokens    TokenSource
	conn      Connectivity
	lg        *zap.Logger
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if opts.Tokens == nil {
		return nil, errors.New("token source is required")
	}

	endpoints, err := EndpointsFor(opts.Line)
	if err != nil {
		return nil, err
	}
	if opts.Endpoints != nil {
		endpoints = *opts.Endpoints
	}

	c := &Client{
		base:      base,
		line:      opts.Line,
		endpoints: endpoints,
		http:      opts.HTTPClient,
		tokens:    opts.Tokens,
		conn:      opts.Connectivity,
		lg:        opts.Logger,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.conn == nil {
		c.conn = AlwaysOnline{}
	}
	if c.lg == nil {
		c.lg = zap.NewNop()
	}
	return c, nil
}

// Line returns the order line the client talks to.
func (c *Client) Line() enum.Line {
	return c.line
}

// do performs one request and returns the response body of a 2xx answer.
// Connectivity and the token are checked before anything is sent.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	if !c.conn.Online() {
		return nil, ErrNetworkUnavailable
	}
	token, err := c.tokens.Token()
	if err != nil {
		return nil, ErrAuthTokenMissing
	}

	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrapf(err, "read %s %s", method, path)
	}

	c.lg.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	switch code := resp.StatusCode; {
	case code >= 200 && code < 300:
		return data, nil
	case code == http.StatusForbidden:
		return nil, ErrSubscriptionExpired
	case code == http.StatusBadRequest:
		return nil, &ValidationError{Message: errorMessage(data)}
	case code == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "%s %s", method, path)
	default:
		return nil, &StatusError{Code: code, Message: errorMessage(data)}
	}
}

func idQuery(key, id string) url.Values {
	return url.Values{key: []string{id}}
}

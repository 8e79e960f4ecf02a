package realtime

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/washline/washsync/internal/backend"
)

const (
	// Time allowed to write a control frame.
	writeWait = 10 * time.Second

	// Time allowed between two frames from the backend, pongs included.
	pongWait = 60 * time.Second

	// Ping period, less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Largest accepted frame.
	maxMessageSize = 1 << 20
)

// ErrConnectionClosed is returned by Listen when the backend closed the
// connection normally.
var ErrConnectionClosed = errors.New("realtime connection closed")

// Dial opens the push channel. The bearer token travels as the "token"
// query parameter. A 403 answer yields backend.ErrSubscriptionExpired.
func Dial(ctx context.Context, dialer *websocket.Dialer, rawURL, token string) (*websocket.Conn, error) {
	if token == "" {
		return nil, errors.New("realtime: empty token")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse realtime url")
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusForbidden {
			return nil, errors.Wrapf(backend.ErrSubscriptionExpired, "realtime dial: %v", err)
		}
		return nil, errors.Wrap(err, "realtime dial")
	}
	return conn, nil
}

// Listen reads messages from conn and applies them until the connection
// drops or ctx is done. It closes conn before returning. The returned error
// is never nil: ctx.Err() after cancellation, ErrConnectionClosed after a
// normal close, the transport error otherwise.
func (s *Sync) Listen(ctx context.Context, conn *websocket.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				// Unblocks the read loop.
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				_ = conn.Close()
				return nil
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return errors.Wrap(err, "ping")
				}
			}
		}
	})

	g.Go(func() error {
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return ErrConnectionClosed
				}
				s.lg.Warn("Realtime read failed", zap.Error(err))
				return errors.Wrap(err, "read")
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			s.HandleMessage(data)
		}
	})

	return g.Wait()
}

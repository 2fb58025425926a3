// Package feed maintains a WebSocket subscription to an aircraft gateway
// and streams position updates into the tracker.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tallyho/internal/adsb"
	"tallyho/internal/model"
	"tallyho/internal/tracker"
	"tallyho/pkg/util"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 60 * time.Second
	pruneAfter     = 5 * time.Minute
)

type subscribeParams struct {
	Lat      float64 `json:"lat"`
	Long     float64 `json:"long"`
	RadiusNM float64 `json:"radius_nm"`
}

type subscribeRequest struct {
	RequestID int64           `json:"req_id"`
	Type      string          `json:"type"`
	Params    subscribeParams `json:"params"`
}

// gatewayMessage is the envelope for everything the gateway sends: the
// subscribe acknowledgement ("result") and traffic frames ("aircraft").
type gatewayMessage struct {
	RequestID int64         `json:"req_id"`
	Type      string        `json:"type"`
	Success   bool          `json:"success"`
	Now       float64       `json:"now"`
	AC        []adsb.Record `json:"ac"`
}

var requestCounter atomic.Int64

type Client struct {
	url     string
	home    model.Position
	radius  float64
	tracker *tracker.Tracker
	dialer  *websocket.Dialer
	log     *logrus.Entry

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func New(wsURL string, home model.Position, radiusNM float64, tr *tracker.Tracker, log *logrus.Entry) *Client {
	return &Client{
		url:     wsURL,
		home:    home,
		radius:  radiusNM,
		tracker: tr,
		dialer:  websocket.DefaultDialer,
		log:     log,

		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// URLFromBase turns an HTTP base URL into the gateway's WebSocket endpoint.
func URLFromBase(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parsing base URL %q: %w", base, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("base URL %q has unsupported scheme %q", base, u.Scheme)
	}
	u.Path = "/feed"
	return u.String(), nil
}

// Run dials the gateway and keeps the subscription alive until the context
// is cancelled, reconnecting with a doubling backoff after each dropped
// session. The backoff resets once a session gets its subscribe accepted.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		subscribed, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if subscribed {
			backoff = c.initialBackoff
		}
		c.log.WithError(err).Warnf("feed session ended, reconnecting in %s", backoff)

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// session runs one connect-subscribe-read cycle. It reports whether the
// gateway acknowledged the subscription before the session ended.
func (c *Client) session(ctx context.Context) (bool, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return false, fmt.Errorf("dialing %s: %w", c.url, err)
	}
	defer conn.Close()

	// ReadMessage has no context support, so close the connection from the
	// side when the context goes.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			conn.Close()
		case <-sessionDone:
		}
	}()

	reqID := requestCounter.Add(1)
	request := subscribeRequest{
		RequestID: reqID,
		Type:      "subscribe",
		Params: subscribeParams{
			Lat:      c.home.Lat,
			Long:     c.home.Long,
			RadiusNM: c.radius,
		},
	}
	if err := util.WriteJSON(conn, request); err != nil {
		return false, fmt.Errorf("sending subscribe request: %w", err)
	}
	c.log.Debugf("-> sent request ID %d: subscribe within %.0f NM", reqID, c.radius)

	subscribed := false
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return subscribed, nil
			}
			return subscribed, fmt.Errorf("reading feed message: %w", err)
		}
		if c.handleMessage(message) {
			subscribed = true
		}
	}
}

// handleMessage dispatches one gateway frame. It reports whether the frame
// was a successful subscribe acknowledgement.
func (c *Client) handleMessage(message []byte) bool {
	var msg gatewayMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.log.WithError(err).Warnf("discarding undecodable feed message: %s", message)
		return false
	}

	switch msg.Type {
	case "result":
		if msg.Success {
			c.log.Debugf("<- request ID %d acknowledged", msg.RequestID)
			return true
		}
		c.log.Warnf("<- request ID %d rejected by gateway", msg.RequestID)
	case "aircraft":
		now := time.Now()
		for _, rec := range msg.AC {
			c.tracker.Upsert(rec.Aircraft(now, c.home))
		}
		if removed := c.tracker.Prune(pruneAfter); removed > 0 {
			c.log.Debugf("pruned %d stale aircraft", removed)
		}
	default:
		c.log.Debugf("ignoring feed message type %q: %s", msg.Type, message)
	}
	return false
}

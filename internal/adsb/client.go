package adsb

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
	"time"

	"github.com/sirupsen/logrus"

	"tallyho/internal/model"
)

// Cap on response bodies so a misbehaving endpoint cannot balloon memory.
const maxResponseBytes = 1 << 20

// Config locates the API and the observer.
type Config struct {
	BaseURL  string
	Lat      float64
	Long     float64
	RadiusNM float64
}

// Client queries the v2 closest-aircraft endpoint.
type Client struct {
	config      Config
	httpClient  *http.Client
	userAgent   string
	log         *logrus.Entry
	maxAttempts int
	backoff     time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default 10 second timeout client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

func New(cfg Config, log *logrus.Entry, opts ...Option) *Client {
	c := &Client{
		config:      cfg,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		userAgent:   "tallyho/1.0",
		log:         log,
		maxAttempts: 4,
		backoff:     200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Closest returns the nearest aircraft inside the configured radius, or
// model.ErrNoAircraft when the sky is empty.
func (c *Client) Closest(ctx context.Context) (*model.Aircraft, error) {
	// 1. Build the request URL
	fullURL, err := c.closestURL()
	if err != nil {
		return nil, err
	}

	// 2. Fetch, retrying transient failures
	resp, err := c.getWithRetry(ctx, fullURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// 3. Decode the envelope
	var payload ClosestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("error decoding closest response: %w", err)
	}
	if len(payload.AC) == 0 {
		return nil, model.ErrNoAircraft
	}

	home := model.Position{Lat: c.config.Lat, Long: c.config.Long}
	return payload.AC[0].Aircraft(time.Now(), home), nil
}

func (c *Client) closestURL() (string, error) {
	u, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("error parsing base URL: %w", err)
	}
	u.Path = fmt.Sprintf("/v2/closest/%s/%s/%s",
		strconv.FormatFloat(c.config.Lat, 'f', -1, 64),
		strconv.FormatFloat(c.config.Long, 'f', -1, 64),
		strconv.FormatFloat(c.config.RadiusNM, 'f', -1, 64))
	return u.String(), nil
}

func (c *Client) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing HTTP GET to %s: %w", fullURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

// getWithRetry retries transient failures (network errors, 429 and 5xx
// responses) with doubling backoff while respecting cancellation.
func (c *Client) getWithRetry(ctx context.Context, fullURL string) (*http.Response, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.get(ctx, fullURL)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			retry = apiErr.Temporary()
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}

		if !retry || attempt == c.maxAttempts {
			return nil, lastErr
		}

		c.log.WithError(err).Warnf("closest request failed, retrying in %s (attempt %d/%d)", backoff, attempt, c.maxAttempts)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		backoff *= 2
	}

	return nil, lastErr
}

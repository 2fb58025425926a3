// Package dot pushes frames to a Quote/0 e-ink device through its cloud
// image API. See https://dot.mindreset.tech/docs/service/studio/api/image_api
package dot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	imageEndpoint       = "/api/open/image"
	defaultHTTPTimeout  = 30 * time.Second
	maxResponseBodySize = 1 << 20
)

// Config identifies the device and the API host.
type Config struct {
	BaseURL    string
	APIKey     string
	DeviceID   string
	MinRefresh time.Duration
}

// Sink uploads frames to one device. Pushes are paced by a fixed-interval
// limiter so bursts cannot trip the service's rate policy.
type Sink struct {
	config  Config
	http    *http.Client
	limiter *intervalLimiter
	log     *logrus.Entry
}

// imageRequest matches the /api/open/image payload.
type imageRequest struct {
	DeviceID   string `json:"deviceId"`
	Image      string `json:"image"`
	DitherType string `json:"ditherType,omitempty"`
	RefreshNow bool   `json:"refreshNow"`
}

func New(cfg Config, log *logrus.Entry) (*Sink, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, errors.New("dot: API key is required")
	}
	if strings.TrimSpace(cfg.DeviceID) == "" {
		return nil, errors.New("dot: device ID is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://dot.mindreset.tech"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.MinRefresh <= 0 {
		cfg.MinRefresh = 5 * time.Second
	}

	return &Sink{
		config:  cfg,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
		limiter: &intervalLimiter{minInterval: cfg.MinRefresh},
		log:     log,
	}, nil
}

func (s *Sink) Name() string { return "dot:" + s.config.DeviceID }

// Push encodes the frame as PNG and uploads it. Frames arrive already
// black and white, so server-side dithering is switched off.
func (s *Sink) Push(ctx context.Context, frame image.Image) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return fmt.Errorf("dot: encode frame: %w", err)
	}

	payload := imageRequest{
		DeviceID:   s.config.DeviceID,
		Image:      base64.StdEncoding.EncodeToString(buf.Bytes()),
		DitherType: "NONE",
		RefreshNow: true,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dot: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+imageEndpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dot: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("dot: execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return fmt.Errorf("dot: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return buildAPIError(resp.StatusCode, raw)
	}
	return nil
}

func (s *Sink) Close() error { return nil }

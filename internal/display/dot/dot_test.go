package dot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testFrame() *image.Paletted {
	frame := image.NewPaletted(image.Rect(0, 0, 296, 152), color.Palette{color.White, color.Black})
	frame.SetColorIndex(3, 4, 1)
	return frame
}

func newTestSink(t *testing.T, handler http.HandlerFunc) *Sink {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sink, err := New(Config{
		BaseURL:    srv.URL,
		APIKey:     "dot_app_test",
		DeviceID:   "AB12CD34",
		MinRefresh: time.Millisecond,
	}, testLog())
	if err != nil {
		t.Fatalf("New(): %v", err)
	}
	return sink
}

func TestPushUploadsFrame(t *testing.T) {
	var (
		gotPath string
		gotAuth string
		gotBody imageRequest
	)
	sink := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		io.WriteString(w, `{"code":0,"message":"ok"}`)
	})

	if err := sink.Push(context.Background(), testFrame()); err != nil {
		t.Fatalf("Push() error: %v", err)
	}

	if gotPath != "/api/open/image" {
		t.Errorf("path = %q, want /api/open/image", gotPath)
	}
	if gotAuth != "Bearer dot_app_test" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if gotBody.DeviceID != "AB12CD34" {
		t.Errorf("deviceId = %q", gotBody.DeviceID)
	}
	if gotBody.DitherType != "NONE" || !gotBody.RefreshNow {
		t.Errorf("ditherType/refreshNow = %q/%v, want NONE/true", gotBody.DitherType, gotBody.RefreshNow)
	}

	raw, err := base64.StdEncoding.DecodeString(gotBody.Image)
	if err != nil {
		t.Fatalf("image payload is not base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("image payload is not PNG: %v", err)
	}
	if got, want := decoded.Bounds(), image.Rect(0, 0, 296, 152); got != want {
		t.Errorf("payload bounds = %v, want %v", got, want)
	}
}

func TestPushAuthError(t *testing.T) {
	sink := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"code":401,"message":"invalid token"}`)
	})

	err := sink.Push(context.Background(), testFrame())
	if !IsAuthError(err) {
		t.Fatalf("Push() = %v, want auth error", err)
	}
	if !strings.Contains(err.Error(), "invalid token") {
		t.Errorf("error %q should carry the server message", err)
	}
}

func TestPushRateLimited(t *testing.T) {
	sink := newTestSink(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, "slow down")
	})

	err := sink.Push(context.Background(), testFrame())
	if !IsRateLimitError(err) {
		t.Fatalf("Push() = %v, want rate limit error", err)
	}
	if IsAuthError(err) {
		t.Error("429 misclassified as auth error")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{DeviceID: "AB12CD34"}, testLog()); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := New(Config{APIKey: "dot_app_test"}, testLog()); err == nil {
		t.Error("expected error without device ID")
	}
}

func TestLimiterSpacing(t *testing.T) {
	l := &intervalLimiter{minInterval: 80 * time.Millisecond}

	start := time.Now()
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait(): %v", err)
	}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("second Wait(): %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Errorf("second call only waited %s", elapsed)
	}
}

func TestLimiterCancellation(t *testing.T) {
	l := &intervalLimiter{minInterval: time.Minute}
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait(): %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() = %v, want deadline exceeded", err)
	}
}

// Package epaper drives a Waveshare panel over SPI through periph.io.
package epaper

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/display"
)

// Config selects the SPI port. Pin assignment follows the standard HAT
// wiring, which the driver knows by name.
type Config struct {
	SPI            string
	RefreshTimeout time.Duration
}

// Panel adapts a periph display driver to the sink interface. A full
// refresh on these panels takes seconds, so pushes run under a timeout.
type Panel struct {
	drawer  display.Drawer
	timeout time.Duration
	log     *logrus.Entry
	closers []io.Closer

	// drawMu is held by the draw goroutine, not by Push, so a refresh
	// abandoned on timeout still serializes with the next one.
	drawMu sync.Mutex
}

func New(drawer display.Drawer, timeout time.Duration, log *logrus.Entry, closers ...io.Closer) *Panel {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Panel{drawer: drawer, timeout: timeout, log: log, closers: closers}
}

func (p *Panel) Name() string { return "epaper:" + p.drawer.String() }

// Bounds reports the panel's native resolution. Frames must be rendered
// at exactly this size or every Push will fail.
func (p *Panel) Bounds() image.Rectangle { return p.drawer.Bounds() }

// Push sends the frame to the panel. The driver blocks for the whole
// refresh and cannot be interrupted once the SPI transaction starts; the
// timeout bounds how long the caller waits, not the hardware.
func (p *Panel) Push(ctx context.Context, frame image.Image) error {
	bounds := p.drawer.Bounds()
	if frame.Bounds() != bounds {
		return fmt.Errorf("epaper: frame is %v, panel wants %v", frame.Bounds(), bounds)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		p.drawMu.Lock()
		defer p.drawMu.Unlock()
		done <- p.drawer.Draw(bounds, frame, image.Point{})
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("epaper: draw: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("epaper: refresh abandoned: %w", ctx.Err())
	}
}

// Close puts the panel into deep sleep and releases the SPI port.
func (p *Panel) Close() error {
	p.drawMu.Lock()
	defer p.drawMu.Unlock()

	var errs []error
	if err := p.drawer.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt: %w", err))
	}
	for _, c := range p.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Package poller runs the fetch-render-push loop that keeps the display
// current.
package poller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"tallyho/internal/display"
	"tallyho/internal/journal"
	"tallyho/internal/model"
	"tallyho/internal/render"
	"tallyho/internal/tracker"
	"tallyho/pkg/geometry"
)

// Source answers closest-aircraft queries. The REST client implements it
// directly; feed mode wraps the tracker.
type Source interface {
	Closest(ctx context.Context) (*model.Aircraft, error)
}

// TrackerSource adapts the live traffic picture to the Source interface.
type TrackerSource struct {
	Tracker *tracker.Tracker
	Home    model.Position
}

func (s TrackerSource) Closest(ctx context.Context) (*model.Aircraft, error) {
	return s.Tracker.Closest(s.Home)
}

type Config struct {
	Interval    time.Duration
	CycleBudget time.Duration
	MaxFailures int
}

type Poller struct {
	source      Source
	renderer    *render.Renderer
	sink        display.Sink
	journal     *journal.Store
	interval    time.Duration
	budget      time.Duration
	maxFailures int
	log         *logrus.Entry

	lastFrame []byte
	failures  int
}

// New wires the loop together. journal may be nil to disable sighting
// records.
func New(source Source, renderer *render.Renderer, sink display.Sink, jnl *journal.Store, cfg Config, log *logrus.Entry) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.CycleBudget <= 0 {
		cfg.CycleBudget = 25 * time.Second
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	return &Poller{
		source:      source,
		renderer:    renderer,
		sink:        sink,
		journal:     jnl,
		interval:    cfg.Interval,
		budget:      cfg.CycleBudget,
		maxFailures: cfg.MaxFailures,
		log:         log,
	}
}

// Run cycles immediately and then on every tick until the context is
// cancelled. Transient fetch and push problems are logged and retried on
// the next tick; the error return is reserved for cancellation and for
// push failures that have persisted past the failure limit.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Infof("polling every %s", p.interval)

	if err := p.cycle(ctx, false); err != nil {
		return err
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.cycle(ctx, false); err != nil {
				return err
			}
		}
	}
}

// RunOnce performs a single cycle and reports any failure instead of
// riding it out.
func (p *Poller) RunOnce(ctx context.Context) error {
	return p.cycle(ctx, true)
}

func (p *Poller) cycle(ctx context.Context, strict bool) error {
	cycleCtx, cancel := context.WithTimeout(ctx, p.budget)
	defer cancel()

	var frame *image.Paletted
	ac, err := p.source.Closest(cycleCtx)
	switch {
	case err == nil:
		p.log.WithFields(logrus.Fields{
			"callsign":    ac.Callsign,
			"distance_nm": fmt.Sprintf("%.1f", ac.DistanceNM),
			"bearing":     geometry.Cardinal(ac.BearingDeg),
			"phase":       model.DerivePhase(ac).String(),
		}).Info("closest aircraft")
		if p.journal != nil {
			if err := p.journal.Record(cycleCtx, ac); err != nil {
				p.log.WithError(err).Warn("journal write failed")
			}
		}
		frame = p.renderer.Frame(ac)
	case errors.Is(err, model.ErrNoAircraft):
		p.log.Debug("no aircraft in range")
		frame = p.renderer.Idle()
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		if strict {
			return fmt.Errorf("fetching closest aircraft: %w", err)
		}
		p.log.WithError(err).Warn("fetch failed, keeping previous frame")
		return nil
	}

	// Identical pixels mean an identical display. Pushing again would
	// only burn an e-ink refresh.
	if bytes.Equal(frame.Pix, p.lastFrame) {
		p.log.Debug("frame unchanged, skipping refresh")
		return nil
	}

	if err := p.sink.Push(cycleCtx, frame); err != nil {
		p.failures++
		if strict {
			return fmt.Errorf("pushing frame: %w", err)
		}
		if p.failures >= p.maxFailures {
			return fmt.Errorf("pushing frame after %d consecutive failures: %w", p.failures, err)
		}
		p.log.WithError(err).Warnf("push failed (%d/%d)", p.failures, p.maxFailures)
		return nil
	}
	p.failures = 0
	p.lastFrame = append(p.lastFrame[:0], frame.Pix...)
	return nil
}

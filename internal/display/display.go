package display

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
)

// Sink is anywhere a rendered frame can go.
type Sink interface {
	Name() string
	Push(ctx context.Context, frame image.Image) error
	Close() error
}

// Fanout forwards each frame to every sink. A push only fails when every
// sink fails, so a dead panel does not stop the file sink from updating.
type Fanout struct {
	sinks []Sink
	log   *logrus.Entry
}

func NewFanout(log *logrus.Entry, sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks, log: log}
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Push(ctx context.Context, frame image.Image) error {
	if len(f.sinks) == 0 {
		return errors.New("no display sinks configured")
	}

	failed := 0
	var lastErr error
	for _, sink := range f.sinks {
		if err := sink.Push(ctx, frame); err != nil {
			failed++
			lastErr = err
			f.log.WithError(err).Warnf("push to %s failed", sink.Name())
		}
	}
	if failed == len(f.sinks) {
		return fmt.Errorf("all %d sinks failed, last: %w", failed, lastErr)
	}
	return nil
}

func (f *Fanout) Close() error {
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

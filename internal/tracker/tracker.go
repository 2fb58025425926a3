// Package tracker keeps the live traffic picture fed by the WebSocket
// gateway, so the poll loop can answer closest-aircraft queries locally.
package tracker

import (
	"math"
	"sync"
	"time"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"

	"tallyho/internal/model"
	"tallyho/pkg/geometry"
)

type Tracker struct {
	mu         sync.RWMutex
	aircraft   map[string]*model.Aircraft
	staleAfter time.Duration
	log        *logrus.Entry
}

func New(staleAfter time.Duration, log *logrus.Entry) *Tracker {
	if staleAfter <= 0 {
		staleAfter = 60 * time.Second
	}
	return &Tracker{
		aircraft:   make(map[string]*model.Aircraft),
		staleAfter: staleAfter,
		log:        log,
	}
}

// Upsert stores or refreshes one aircraft, keyed by hex with registration
// as the fallback. Updates without either key are dropped.
func (t *Tracker) Upsert(ac *model.Aircraft) {
	key := ac.Hex
	if key == "" {
		key = ac.Registration
	}
	if key == "" {
		t.log.Debug("dropping aircraft update without hex or registration")
		return
	}

	t.mu.Lock()
	t.aircraft[key] = ac
	t.mu.Unlock()
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.aircraft)
}

// Closest scans the picture for the nearest fresh aircraft to home.
// The feed goroutine can overwrite the map entry at any moment, so the
// caller gets a deep copy; later updates cannot mutate what it holds.
func (t *Tracker) Closest(home model.Position) (*model.Aircraft, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-t.staleAfter)
	var bestMatch *model.Aircraft
	closestDist := math.MaxFloat64

	for _, ac := range t.aircraft {
		if ac.SeenAt.Before(cutoff) {
			continue
		}
		dist := geometry.DistNM(home.Lat, home.Long, ac.Position.Lat, ac.Position.Long)
		if dist < closestDist {
			closestDist = dist
			bestMatch = ac
		}
	}
	if bestMatch == nil {
		return nil, model.ErrNoAircraft
	}

	snap := deepcopy.Copy(bestMatch).(*model.Aircraft)
	snap.DistanceNM = closestDist
	snap.BearingDeg = geometry.BearingDeg(home.Lat, home.Long, snap.Position.Lat, snap.Position.Long)
	return snap, nil
}

// Prune drops aircraft not heard from within olderThan and reports how
// many went.
func (t *Tracker) Prune(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for key, ac := range t.aircraft {
		if ac.SeenAt.Before(cutoff) {
			delete(t.aircraft, key)
			removed++
		}
	}
	return removed
}

package model

import (
	"errors"
	"time"
)

// ErrNoAircraft means the data source answered but nothing is inside the
// configured radius.
var ErrNoAircraft = errors.New("no aircraft within radius")

// Position
type Position struct {
	Lat        float64
	Long       float64
	AltitudeFt float64
}

// Aircraft
type Aircraft struct {
	Hex           string
	Callsign      string
	Registration  string
	Type          string
	Position      Position
	OnGround      bool
	GroundSpeedKt float64
	TrackDeg      float64
	BaroRateFpm   float64
	DistanceNM    float64
	BearingDeg    float64
	SeenAt        time.Time
}

type Phase int

const (
	Unknown Phase = iota - 1
	Ground        // On the surface, taxiing or parked.
	Climb         // Climbing at 500 fpm or better.
	Cruise        // Level at or above FL280.
	Descent       // Descending at 500 fpm or better.
	Level         // Level below FL280.
)

func (p Phase) String() string {
	return [...]string{
		"Unknown",
		"Ground",
		"Climb",
		"Cruise",
		"Descent",
		"Level",
	}[p+1]
}

// DerivePhase classifies an aircraft from its vertical rate and altitude.
func DerivePhase(a *Aircraft) Phase {
	switch {
	case a == nil:
		return Unknown
	case a.OnGround:
		return Ground
	case a.BaroRateFpm >= 500:
		return Climb
	case a.BaroRateFpm <= -500:
		return Descent
	case a.Position.AltitudeFt >= 28000:
		return Cruise
	default:
		return Level
	}
}

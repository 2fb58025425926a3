package adsb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"tallyho/internal/model"
	"tallyho/pkg/geometry"
)

// AltBaro is the barometric altitude field. The API reports feet as a
// number, or the literal string "ground" for aircraft on the surface.
type AltBaro struct {
	Feet     float64
	OnGround bool
}

func (a *AltBaro) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != "ground" {
			return fmt.Errorf("unexpected alt_baro value %q", s)
		}
		a.OnGround = true
		return nil
	}
	return json.Unmarshal(data, &a.Feet)
}

func (a AltBaro) MarshalJSON() ([]byte, error) {
	if a.OnGround {
		return []byte(`"ground"`), nil
	}
	return json.Marshal(a.Feet)
}

// Record is one aircraft entry as served by the v2 API. The callsign and
// registration come back space padded.
type Record struct {
	Hex          string  `json:"hex"`
	Flight       string  `json:"flight"`
	Registration string  `json:"r"`
	Type         string  `json:"t"`
	AltBaro      AltBaro `json:"alt_baro"`
	GroundSpeed  float64 `json:"gs"`
	Track        float64 `json:"track"`
	BaroRate     float64 `json:"baro_rate"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	Squawk       string  `json:"squawk"`
	Emergency    string  `json:"emergency"`
	DistanceNM   float64 `json:"dst"`
	BearingDeg   float64 `json:"dir"`
	Seen         float64 `json:"seen"`
	SeenPos      float64 `json:"seen_pos"`
}

// ClosestResponse is the envelope around /v2/closest results.
type ClosestResponse struct {
	AC    []Record `json:"ac"`
	Msg   string   `json:"msg"`
	Now   float64  `json:"now"`
	Total int      `json:"total"`
}

// Aircraft converts the wire record into the domain model. Distance and
// bearing fall back to great-circle math from home when the API omits
// dst/dir, which only /closest responses carry.
func (r Record) Aircraft(now time.Time, home model.Position) *model.Aircraft {
	ac := &model.Aircraft{
		Hex:          strings.TrimSpace(r.Hex),
		Callsign:     strings.TrimSpace(r.Flight),
		Registration: strings.TrimSpace(r.Registration),
		Type:         strings.TrimSpace(r.Type),
		Position: model.Position{
			Lat:        r.Lat,
			Long:       r.Lon,
			AltitudeFt: r.AltBaro.Feet,
		},
		OnGround:      r.AltBaro.OnGround,
		GroundSpeedKt: r.GroundSpeed,
		TrackDeg:      r.Track,
		BaroRateFpm:   r.BaroRate,
		DistanceNM:    r.DistanceNM,
		BearingDeg:    r.BearingDeg,
		SeenAt:        now.Add(-time.Duration(r.Seen * float64(time.Second))),
	}
	if ac.DistanceNM == 0 && (home.Lat != 0 || home.Long != 0) {
		ac.DistanceNM = geometry.DistNM(home.Lat, home.Long, r.Lat, r.Lon)
		ac.BearingDeg = geometry.BearingDeg(home.Lat, home.Long, r.Lat, r.Lon)
	}
	return ac
}

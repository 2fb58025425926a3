package adsb

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"tallyho/internal/model"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func testConfig(baseURL string) Config {
	return Config{BaseURL: baseURL, Lat: 51.47, Long: -0.4543, RadiusNM: 25}
}

func sampleRecord() Record {
	return Record{
		Hex:          "a1b2c3",
		Flight:       "UAL123  ",
		Registration: "N26906",
		Type:         "B78X",
		AltBaro:      AltBaro{Feet: 35000},
		GroundSpeed:  450,
		Track:        271.2,
		BaroRate:     64,
		Lat:          51.6,
		Lon:          -0.3,
		DistanceNM:   12.4,
		BearingDeg:   38.1,
		Seen:         0.4,
	}
}

func serveClosest(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := New(testConfig(srv.URL), testLog(), WithHTTPClient(srv.Client()))
	return srv, client
}

func TestClosest(t *testing.T) {
	var gotPath string
	_, client := serveClosest(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeEnvelope(t, w, sampleRecord())
	})

	ac, err := client.Closest(context.Background())
	if err != nil {
		t.Fatalf("Closest() error: %v", err)
	}

	if want := "/v2/closest/51.47/-0.4543/25"; gotPath != want {
		t.Errorf("request path = %q, want %q", gotPath, want)
	}
	if ac.Callsign != "UAL123" {
		t.Errorf("callsign = %q, want trimmed UAL123", ac.Callsign)
	}
	if ac.Position.AltitudeFt != 35000 {
		t.Errorf("altitude = %v, want 35000", ac.Position.AltitudeFt)
	}
	if ac.DistanceNM != 12.4 {
		t.Errorf("distance = %v, want 12.4", ac.DistanceNM)
	}
	if ac.OnGround {
		t.Error("aircraft should not be on the ground")
	}
}

func TestClosestEmptySky(t *testing.T) {
	_, client := serveClosest(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w)
	})

	_, err := client.Closest(context.Background())
	if !errors.Is(err, model.ErrNoAircraft) {
		t.Fatalf("Closest() = %v, want ErrNoAircraft", err)
	}
}

func TestClosestRetriesServerError(t *testing.T) {
	calls := 0
	_, client := serveClosest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			http.Error(w, "upstream wobble", http.StatusBadGateway)
			return
		}
		writeEnvelope(t, w, sampleRecord())
	})

	ac, err := client.Closest(context.Background())
	if err != nil {
		t.Fatalf("Closest() error: %v", err)
	}
	if calls != 2 {
		t.Errorf("server saw %d calls, want 2", calls)
	}
	if ac.Callsign != "UAL123" {
		t.Errorf("callsign = %q", ac.Callsign)
	}
}

func TestClosestDoesNotRetryNotFound(t *testing.T) {
	calls := 0
	_, client := serveClosest(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "no such route", http.StatusNotFound)
	})

	_, err := client.Closest(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Closest() = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", apiErr.StatusCode)
	}
	if apiErr.Temporary() {
		t.Error("404 should not be temporary")
	}
	if calls != 1 {
		t.Errorf("server saw %d calls, want 1", calls)
	}
}

func TestClosestMalformedBody(t *testing.T) {
	_, client := serveClosest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "{this is not json")
	})

	if _, err := client.Closest(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestClosestGroundAircraft(t *testing.T) {
	rec := sampleRecord()
	rec.AltBaro = AltBaro{OnGround: true}
	rec.GroundSpeed = 14
	_, client := serveClosest(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, rec)
	})

	ac, err := client.Closest(context.Background())
	if err != nil {
		t.Fatalf("Closest() error: %v", err)
	}
	if !ac.OnGround {
		t.Error("aircraft should be on the ground")
	}
	if got := model.DerivePhase(ac); got != model.Ground {
		t.Errorf("phase = %v, want Ground", got)
	}
}

func TestAltBaroUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    AltBaro
		wantErr bool
	}{
		{"feet", `35000`, AltBaro{Feet: 35000}, false},
		{"fractional feet", `1187.5`, AltBaro{Feet: 1187.5}, false},
		{"ground", `"ground"`, AltBaro{OnGround: true}, false},
		{"null", `null`, AltBaro{}, false},
		{"garbage string", `"levitating"`, AltBaro{}, true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			var got AltBaro
			err := got.UnmarshalJSON([]byte(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("UnmarshalJSON(%s): %v", tc.in, err)
			}
			if got != tc.want {
				t.Errorf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRecordAircraftDistanceFallback(t *testing.T) {
	rec := sampleRecord()
	rec.DistanceNM = 0
	rec.BearingDeg = 0

	home := model.Position{Lat: 51.47, Long: -0.4543}
	ac := rec.Aircraft(time.Now(), home)

	if ac.DistanceNM <= 0 {
		t.Fatalf("distance = %v, want computed fallback > 0", ac.DistanceNM)
	}
	// roughly 10 NM from the configured home to 51.6/-0.3
	if ac.DistanceNM > 20 {
		t.Errorf("distance = %v, implausibly far", ac.DistanceNM)
	}
	if ac.BearingDeg <= 0 || ac.BearingDeg >= 90 {
		t.Errorf("bearing = %v, want northeasterly", ac.BearingDeg)
	}
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, recs ...Record) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	resp := ClosestResponse{AC: recs, Msg: "No error", Now: float64(time.Now().UnixMilli()), Total: len(recs)}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		t.Fatalf("encoding envelope: %v", err)
	}
}

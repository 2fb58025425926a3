// Package mockserver fakes the aircraft API for development without
// network access: the REST closest endpoint plus the WebSocket feed.
package mockserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"tallyho/internal/adsb"
	"tallyho/pkg/geometry"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

type Server struct {
	mu       sync.Mutex
	aircraft []adsb.Record
	interval time.Duration
}

// New returns a server pre-loaded with one canned aircraft overhead.
func New() *Server {
	return &Server{
		aircraft: []adsb.Record{{
			Hex:          "a1b2c3",
			Flight:       "TEST123 ",
			Registration: "N12345",
			Type:         "B738",
			AltBaro:      adsb.AltBaro{Feet: 35000},
			GroundSpeed:  450,
			Track:        270,
			Lat:          51.6,
			Lon:          -0.3,
			Squawk:       "4721",
			DistanceNM:   12.5,
			BearingDeg:   245,
		}},
		interval: time.Second,
	}
}

// SetAircraft replaces the canned traffic.
func (s *Server) SetAircraft(recs ...adsb.Record) {
	s.mu.Lock()
	s.aircraft = append([]adsb.Record(nil), recs...)
	s.mu.Unlock()
}

// SetInterval changes how often the feed pushes aircraft frames.
func (s *Server) SetInterval(d time.Duration) {
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/closest/", s.closestHandler)
	mux.HandleFunc("/feed", s.feedHandler)
	return mux
}

// Start starts the mock HTTP + WebSocket server on the given port (e.g. "8092").
// It returns the *http.Server so the caller can shut it down when desired.
func Start(port string) *http.Server {
	srv := &http.Server{Addr: ":" + port, Handler: New().Handler()}
	go func() {
		log.Printf("mockserver: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("mockserver: ListenAndServe error: %v", err)
		}
	}()
	return srv
}

// closestHandler serves /v2/closest/{lat}/{lon}/{radius}: the nearest
// aircraft within the radius, or an empty list.
func (s *Server) closestHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/v2/closest/"), "/")
	if len(parts) != 3 {
		http.Error(w, "expected /v2/closest/{lat}/{lon}/{radius}", http.StatusBadRequest)
		return
	}
	coords := make([]float64, 3)
	for i, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			log.Printf("mockserver: bad path segment %q: %v", part, err)
			http.Error(w, "bad coordinate", http.StatusBadRequest)
			return
		}
		coords[i] = v
	}
	lat, lon, radius := coords[0], coords[1], coords[2]

	s.mu.Lock()
	recs := append([]adsb.Record(nil), s.aircraft...)
	s.mu.Unlock()

	// Fill in distance and bearing the way the live API does, then keep
	// only the single nearest aircraft inside the radius.
	var best *adsb.Record
	for i := range recs {
		if recs[i].DistanceNM == 0 && (recs[i].Lat != 0 || recs[i].Lon != 0) {
			recs[i].DistanceNM = geometry.DistNM(lat, lon, recs[i].Lat, recs[i].Lon)
			recs[i].BearingDeg = geometry.BearingDeg(lat, lon, recs[i].Lat, recs[i].Lon)
		}
		if recs[i].DistanceNM > radius {
			continue
		}
		if best == nil || recs[i].DistanceNM < best.DistanceNM {
			best = &recs[i]
		}
	}

	resp := adsb.ClosestResponse{
		AC:  []adsb.Record{},
		Msg: "No error",
		Now: float64(time.Now().UnixMilli()),
	}
	if best != nil {
		resp.AC = append(resp.AC, *best)
	}
	resp.Total = len(resp.AC)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// feedHandler upgrades to WebSocket, acknowledges subscribe requests and
// then streams aircraft frames until the client goes away.
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("mockserver: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	// The frame goroutine and this loop both write, and gorilla allows
	// one writer at a time. The same mutex guards the streaming flag, so
	// a resubscribe after the writer died starts a fresh stream.
	var writeMu sync.Mutex
	streaming := false

	for {
		mt, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		var incoming map[string]json.RawMessage
		if err := json.Unmarshal(msg, &incoming); err != nil {
			log.Printf("mockserver: invalid JSON: %v", err)
			continue
		}

		var t string
		if v, ok := incoming["type"]; ok {
			json.Unmarshal(v, &t)
		}

		switch t {
		case "subscribe":
			var reqID int64
			if v, ok := incoming["req_id"]; ok {
				json.Unmarshal(v, &reqID)
			}

			result := map[string]interface{}{"req_id": reqID, "type": "result", "success": true}
			writeMu.Lock()
			err := conn.WriteJSON(result)
			alreadyStreaming := streaming
			streaming = true
			writeMu.Unlock()
			if err != nil {
				return
			}

			if alreadyStreaming {
				continue
			}
			go func() {
				defer func() {
					writeMu.Lock()
					streaming = false
					writeMu.Unlock()
				}()
				for {
					s.mu.Lock()
					recs := append([]adsb.Record(nil), s.aircraft...)
					interval := s.interval
					s.mu.Unlock()

					frame := map[string]interface{}{
						"type": "aircraft",
						"now":  float64(time.Now().UnixMilli()),
						"ac":   recs,
					}
					writeMu.Lock()
					err := conn.WriteJSON(frame)
					writeMu.Unlock()
					if err != nil {
						return
					}
					time.Sleep(interval)
				}
			}()

		default:
			log.Printf("mockserver: received unknown ws type=%q msg=%s", t, string(msg))
		}
	}
}

// Package journal keeps a durable log of sighted aircraft in SQLite, one
// row per airframe.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"tallyho/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS sightings (
    hex             TEXT PRIMARY KEY,
    callsign        TEXT NOT NULL DEFAULT '',
    registration    TEXT NOT NULL DEFAULT '',
    type            TEXT NOT NULL DEFAULT '',
    first_seen      INTEGER NOT NULL,
    last_seen       INTEGER NOT NULL,
    cycles          INTEGER NOT NULL DEFAULT 1,
    min_distance_nm REAL NOT NULL
);`

const upsertSQL = `
INSERT INTO sightings (hex, callsign, registration, type, first_seen, last_seen, cycles, min_distance_nm)
VALUES (?, ?, ?, ?, ?, ?, 1, ?)
ON CONFLICT(hex) DO UPDATE SET
    callsign        = CASE WHEN excluded.callsign != '' THEN excluded.callsign ELSE callsign END,
    registration    = CASE WHEN excluded.registration != '' THEN excluded.registration ELSE registration END,
    type            = CASE WHEN excluded.type != '' THEN excluded.type ELSE type END,
    last_seen       = excluded.last_seen,
    cycles          = cycles + 1,
    min_distance_nm = MIN(min_distance_nm, excluded.min_distance_nm);`

type Store struct {
	db  *sql.DB
	log *logrus.Entry
}

// Sighting is one airframe's accumulated history.
type Sighting struct {
	Hex           string
	Callsign      string
	Registration  string
	Type          string
	FirstSeen     time.Time
	LastSeen      time.Time
	Cycles        int
	MinDistanceNM float64
}

func Open(path string, log *logrus.Entry) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite database %q: %w", path, err)
	}
	// the driver serializes writers; a single connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: verify sqlite connection to %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: init schema: %w", err)
	}

	return &Store{db: db, log: log}, nil
}

// Record folds one observation into the log. New airframes insert a row;
// known ones bump the cycle count, refresh last_seen, keep the closest
// distance and backfill identity fields that were blank.
func (s *Store) Record(ctx context.Context, ac *model.Aircraft) error {
	key := ac.Hex
	if key == "" {
		key = ac.Registration
	}
	if key == "" {
		s.log.Debug("skipping journal entry for aircraft without hex or registration")
		return nil
	}

	seen := ac.SeenAt
	if seen.IsZero() {
		seen = time.Now()
	}

	_, err := s.db.ExecContext(ctx, upsertSQL,
		key, ac.Callsign, ac.Registration, ac.Type, seen.Unix(), seen.Unix(), ac.DistanceNM)
	if err != nil {
		return fmt.Errorf("journal: record %s: %w", key, err)
	}
	return nil
}

// Recent returns up to limit sightings, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Sighting, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT hex, callsign, registration, type, first_seen, last_seen, cycles, min_distance_nm
FROM sightings
ORDER BY last_seen DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer rows.Close()

	var out []Sighting
	for rows.Next() {
		var (
			sg                  Sighting
			firstSeen, lastSeen int64
		)
		if err := rows.Scan(&sg.Hex, &sg.Callsign, &sg.Registration, &sg.Type,
			&firstSeen, &lastSeen, &sg.Cycles, &sg.MinDistanceNM); err != nil {
			return nil, fmt.Errorf("journal: scan row: %w", err)
		}
		sg.FirstSeen = time.Unix(firstSeen, 0)
		sg.LastSeen = time.Unix(lastSeen, 0)
		out = append(out, sg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: row iteration: %w", err)
	}
	return out, nil
}

func (s *Store) Close() error { return s.db.Close() }

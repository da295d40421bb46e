package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/joeblew999/plat-estate/internal/catalog"
)

const schema = `
CREATE OR REPLACE TABLE buildings (
	kind            VARCHAR PRIMARY KEY,
	floors          INTEGER NOT NULL,
	units_per_floor INTEGER NOT NULL
);
CREATE OR REPLACE TABLE units (
	id       VARCHAR PRIMARY KEY,
	building VARCHAR NOT NULL,
	floor    INTEGER NOT NULL,
	col      INTEGER NOT NULL,
	area     DOUBLE NOT NULL,
	rooms    INTEGER NOT NULL,
	status   VARCHAR NOT NULL
);`

// Snapshot replaces the buildings and units tables with c. The tables are
// recreated rather than emptied: DuckDB rejects re-inserting a primary key
// deleted earlier in the same transaction.
func Snapshot(ctx context.Context, db *sql.DB, c *catalog.Catalog) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for _, b := range c.Buildings() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO buildings VALUES (?, ?, ?)",
			string(b.Kind), b.Floors, b.UnitsPerFloor); err != nil {
			return fmt.Errorf("inserting building %s: %w", b.Kind, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO units VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, u := range c.Units() {
		if _, err := stmt.ExecContext(ctx,
			u.ID, string(u.Building), u.Floor, u.Column, u.Area, u.Rooms, u.Status.String()); err != nil {
			return fmt.Errorf("inserting unit %s: %w", u.ID, err)
		}
	}
	return tx.Commit()
}

// BuildingSummary is the sales position of one building.
type BuildingSummary struct {
	Building  string  `json:"building" doc:"Building kind"`
	Units     int     `json:"units" doc:"Number of units"`
	Available int     `json:"available"`
	Reserved  int     `json:"reserved"`
	Sold      int     `json:"sold"`
	MinArea   float64 `json:"minArea" doc:"Smallest unit, m²"`
	MaxArea   float64 `json:"maxArea" doc:"Largest unit, m²"`
	AvgArea   float64 `json:"avgArea" doc:"Mean unit area, m²"`
}

// RoomMix counts available units per room count.
type RoomMix struct {
	Rooms     int `json:"rooms"`
	Units     int `json:"units"`
	Available int `json:"available"`
}

// Summary aggregates the snapshot per building.
func Summary(ctx context.Context, db *sql.DB) ([]BuildingSummary, error) {
	rows, err := db.QueryContext(ctx, `
SELECT building,
       count(*),
       count(*) FILTER (WHERE status = 'available'),
       count(*) FILTER (WHERE status = 'reserved'),
       count(*) FILTER (WHERE status = 'sold'),
       min(area), max(area), round(avg(area), 2)
FROM units
GROUP BY building
ORDER BY building`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []BuildingSummary{}
	for rows.Next() {
		var s BuildingSummary
		if err := rows.Scan(&s.Building, &s.Units, &s.Available, &s.Reserved, &s.Sold,
			&s.MinArea, &s.MaxArea, &s.AvgArea); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Rooms returns the room mix across the estate, or of one building when
// building is non-empty.
func Rooms(ctx context.Context, db *sql.DB, building string) ([]RoomMix, error) {
	rows, err := db.QueryContext(ctx, `
SELECT rooms,
       count(*),
       count(*) FILTER (WHERE status = 'available')
FROM units
WHERE ? = '' OR building = ?
GROUP BY rooms
ORDER BY rooms`, building, building)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []RoomMix{}
	for rows.Next() {
		var m RoomMix
		if err := rows.Scan(&m.Rooms, &m.Units, &m.Available); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

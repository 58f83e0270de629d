package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/stoplist/internal/models"
)

// Snapshot is one fetched (route, direction) result set.
type Snapshot struct {
	RunID     string
	RouteID   string
	Direction models.Direction
	FetchedAt time.Time
	Stops     []models.Stop
}

// Archive stores snapshots in the stop_snapshots table.
type Archive struct {
	db *sql.DB
}

func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db}
}

// SaveSnapshot inserts every stop of s in one transaction. A missing run id
// is generated; FetchedAt defaults to now. An empty result set is a no-op.
func (a *Archive) SaveSnapshot(ctx context.Context, s Snapshot) error {
	if len(s.Stops) == 0 {
		return nil
	}
	if s.RunID == "" {
		s.RunID = uuid.NewString()
	}
	if s.FetchedAt.IsZero() {
		s.FetchedAt = time.Now()
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stop_snapshots
			(run_id, route_id, direction, fetched_at, seq, arrival_info, stop_number, stop_name, stop_id, latitude, longitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare snapshot insert: %w", err)
	}
	defer stmt.Close()

	fetchedAt := s.FetchedAt.UTC()
	for i, stop := range s.Stops {
		if _, err := stmt.ExecContext(ctx,
			s.RunID, s.RouteID, string(s.Direction), fetchedAt, i,
			stop.ArrivalInfo, stop.StopNumber, stop.StopName, stop.StopID, stop.Latitude, stop.Longitude,
		); err != nil {
			return fmt.Errorf("insert stop %s of route %s: %w", stop.StopNumber, s.RouteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recent stored result set for a route and
// direction, in travel order. sql.ErrNoRows is returned when none exists.
func (a *Archive) LatestSnapshot(ctx context.Context, routeID string, dir models.Direction) (Snapshot, error) {
	snap := Snapshot{RouteID: routeID, Direction: dir}

	row := a.db.QueryRowContext(ctx, `
		SELECT run_id, fetched_at FROM stop_snapshots
		WHERE route_id = ? AND direction = ?
		ORDER BY fetched_at DESC, id DESC LIMIT 1`, routeID, string(dir))
	if err := row.Scan(&snap.RunID, &snap.FetchedAt); err != nil {
		return snap, err
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT arrival_info, stop_number, stop_name, stop_id, latitude, longitude
		FROM stop_snapshots
		WHERE route_id = ? AND direction = ? AND run_id = ? AND fetched_at = ?
		ORDER BY seq`, routeID, string(dir), snap.RunID, snap.FetchedAt)
	if err != nil {
		return snap, fmt.Errorf("query snapshot rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s models.Stop
		if err := rows.Scan(&s.ArrivalInfo, &s.StopNumber, &s.StopName, &s.StopID, &s.Latitude, &s.Longitude); err != nil {
			return snap, fmt.Errorf("scan snapshot row: %w", err)
		}
		snap.Stops = append(snap.Stops, s)
	}
	if err := rows.Err(); err != nil {
		return snap, err
	}
	if len(snap.Stops) == 0 {
		return snap, sql.ErrNoRows
	}
	return snap, nil
}

// IsNotFound reports whether err means no snapshot exists.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ArchiveStats summarizes the stop_snapshots table.
type ArchiveStats struct {
	Rows          int64      `json:"rows"`
	Runs          int64      `json:"runs"`
	Routes        int64      `json:"routes"`
	LastFetchedAt *time.Time `json:"lastFetchedAt,omitempty"`
}

func (a *Archive) Stats(ctx context.Context) (ArchiveStats, error) {
	var stats ArchiveStats
	var last sql.NullTime

	err := a.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT run_id), COUNT(DISTINCT route_id), MAX(fetched_at)
		FROM stop_snapshots`).Scan(&stats.Rows, &stats.Runs, &stats.Routes, &last)
	if err != nil {
		return stats, fmt.Errorf("archive stats: %w", err)
	}
	if last.Valid {
		t := last.Time
		stats.LastFetchedAt = &t
	}
	return stats, nil
}

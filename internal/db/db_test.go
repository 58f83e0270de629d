package db

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/stoplist/internal/config"
	"github.com/yourorg/stoplist/internal/models"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{
		Host: "db.internal",
		Port: "3307",
		User: "scraper",
		Pass: "p@ss:word",
		Name: "stoplist",
	})

	for _, want := range []string{
		"scraper:p@ss:word@tcp(db.internal:3307)/stoplist?",
		"parseTime=true",
		"charset=utf8mb4",
	} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %q does not contain %q", dsn, want)
		}
	}
}

func TestSaveSnapshotEmptyIsNoop(t *testing.T) {
	// nil db: an empty result set must never touch the connection
	a := NewArchive(nil)
	if err := a.SaveSnapshot(context.Background(), Snapshot{RouteID: "0100000A00"}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// TestArchiveRoundTrip runs against a real MariaDB when DB_NAME is set.
func TestArchiveRoundTrip(t *testing.T) {
	if os.Getenv("DB_NAME") == "" {
		t.Skip("DB_NAME not set, skipping MariaDB integration test")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load failed: %v", err)
	}

	ctx := context.Background()
	conn, err := Connect(ctx, cfg.DB)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer conn.Close()

	if err := EnsureSchema(ctx, conn, false); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	routeID := "test-" + uuid.NewString()[:8]
	defer conn.ExecContext(ctx, "DELETE FROM stop_snapshots WHERE route_id = ?", routeID)

	stops := []models.Stop{
		{ArrivalInfo: "進站中", StopNumber: "1", StopName: "捷運劍潭站", StopID: "10001", Latitude: 25.084873, Longitude: 121.525078},
		{ArrivalInfo: "3分", StopNumber: "2", StopName: "士林官邸", StopID: "10002", Latitude: 25.093201, Longitude: 121.526445},
	}
	archive := NewArchive(conn)
	if err := archive.SaveSnapshot(ctx, Snapshot{
		RouteID:   routeID,
		Direction: models.DirectionGo,
		FetchedAt: time.Now().Truncate(time.Millisecond),
		Stops:     stops,
	}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	snap, err := archive.LatestSnapshot(ctx, routeID, models.DirectionGo)
	if err != nil {
		t.Fatalf("LatestSnapshot failed: %v", err)
	}
	if len(snap.Stops) != len(stops) {
		t.Fatalf("expected %d stops, got %d", len(stops), len(snap.Stops))
	}
	for i := range stops {
		if snap.Stops[i] != stops[i] {
			t.Errorf("stop %d = %+v, expected %+v", i, snap.Stops[i], stops[i])
		}
	}

	stats, err := archive.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Rows < int64(len(stops)) || stats.LastFetchedAt == nil {
		t.Errorf("unexpected stats: %+v", stats)
	}

	_, err = archive.LatestSnapshot(ctx, routeID, models.DirectionCome)
	if !IsNotFound(err) {
		t.Errorf("expected not found for the other direction, got %v", err)
	}
}

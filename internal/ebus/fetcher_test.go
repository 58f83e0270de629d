package ebus

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/yourorg/stoplist/internal/metrics"
	"github.com/yourorg/stoplist/internal/models"
)

// fakeBrowser hands out scripted sessions and records what they were asked to do.
type fakeBrowser struct {
	mu sync.Mutex

	html      string
	visible   map[string]bool // selectors that become visible; nil means all
	openErr   error
	navErr    error
	clickErr  error
	failWaits int // first N WaitVisible calls time out, -1 means all

	sessions  int
	closed    int
	navigated []string
	clicked   []string
	waited    []string
	waits     int
}

func (b *fakeBrowser) NewSession(ctx context.Context) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.sessions++
	return &fakeSession{b: b}, nil
}

type fakeSession struct {
	b *fakeBrowser
}

func (s *fakeSession) Navigate(url string) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.navigated = append(s.b.navigated, url)
	return s.b.navErr
}

func (s *fakeSession) Click(selector string, timeout time.Duration) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.clicked = append(s.b.clicked, selector)
	return s.b.clickErr
}

func (s *fakeSession) WaitVisible(selector string, timeout time.Duration) error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.waited = append(s.b.waited, selector)
	s.b.waits++
	if s.b.failWaits < 0 || s.b.waits <= s.b.failWaits {
		return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
	}
	if s.b.visible != nil && !s.b.visible[selector] {
		return fmt.Errorf("waiting for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (s *fakeSession) HTML() (string, error) {
	return s.b.html, nil
}

func (s *fakeSession) Close() error {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	s.b.closed++
	return nil
}

func testOptions() Options {
	return Options{
		BaseURL:    "https://ebus.example.test/",
		Timeout:    10 * time.Millisecond,
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
	}
}

func TestFetchOutbound(t *testing.T) {
	b := &fakeBrowser{html: renderPage(goFixture, comeFixture)}
	f := NewFetcher(b, testOptions())

	stops, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(stops) != 4 {
		t.Errorf("expected 4 stops, got %d", len(stops))
	}
	if len(b.navigated) != 1 || b.navigated[0] != "https://ebus.example.test/Route/StopsOfRoute?routeid=0100000A00" {
		t.Errorf("unexpected navigation: %v", b.navigated)
	}
	if len(b.clicked) != 0 {
		t.Errorf("outbound fetch should not click the toggle, clicked %v", b.clicked)
	}
	if b.waited[0] != "#GoDirectionRoute .auto-list-stationlist" {
		t.Errorf("waited for %q", b.waited[0])
	}
	if b.closed != b.sessions {
		t.Errorf("opened %d sessions but closed %d", b.sessions, b.closed)
	}
}

func TestFetchInboundClicksToggle(t *testing.T) {
	b := &fakeBrowser{html: renderPage(goFixture, comeFixture)}
	f := NewFetcher(b, testOptions())

	stops, err := f.Fetch(context.Background(), "0100000A00", models.DirectionCome)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(stops) != 2 || stops[0].StopID != "20001" {
		t.Errorf("unexpected inbound stops: %+v", stops)
	}
	if len(b.clicked) != 1 || b.clicked[0] != "a.stationlist-come" {
		t.Errorf("expected the inbound toggle to be clicked, got %v", b.clicked)
	}
	if b.waited[0] != "#BackDirectionRoute .auto-list-stationlist" {
		t.Errorf("waited for %q", b.waited[0])
	}
}

func TestFetchInvalidArguments(t *testing.T) {
	tests := []struct {
		name    string
		routeID string
		dir     models.Direction
	}{
		{"empty route", "", models.DirectionGo},
		{"blank route", "   ", models.DirectionGo},
		{"unknown direction", "0100000A00", models.Direction("sideways")},
		{"empty direction", "0100000A00", models.Direction("")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBrowser{html: renderPage(goFixture, nil)}
			f := NewFetcher(b, testOptions())

			_, err := f.Fetch(context.Background(), tc.routeID, tc.dir)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("expected ErrInvalidArgument, got %v", err)
			}
			if b.sessions != 0 {
				t.Errorf("no browser session should be opened, got %d", b.sessions)
			}
		})
	}
}

func TestFetchTimeoutAfterMaxRetries(t *testing.T) {
	b := &fakeBrowser{html: renderPage(goFixture, nil), failWaits: -1}
	opts := testOptions()
	opts.MaxRetries = 4
	f := NewFetcher(b, opts)

	_, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo)
	if !errors.Is(err, ErrFetchTimeout) {
		t.Fatalf("expected ErrFetchTimeout, got %v", err)
	}
	if len(b.navigated) != 4 {
		t.Errorf("expected exactly 4 navigations, got %d", len(b.navigated))
	}
	if b.closed != b.sessions {
		t.Errorf("opened %d sessions but closed %d", b.sessions, b.closed)
	}
}

func TestFetchRecoversOnLaterAttempt(t *testing.T) {
	b := &fakeBrowser{html: renderPage(goFixture, nil), failWaits: 2}
	f := NewFetcher(b, testOptions())

	stops, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(stops) != 4 {
		t.Errorf("expected 4 stops, got %d", len(stops))
	}
	if len(b.navigated) != 3 {
		t.Errorf("expected 3 navigations, got %d", len(b.navigated))
	}
}

func TestFetchNavigationFailureEndsAsTimeout(t *testing.T) {
	b := &fakeBrowser{navErr: errors.New("net::ERR_INTERNET_DISCONNECTED")}
	f := NewFetcher(b, testOptions())

	_, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo)
	if !errors.Is(err, ErrFetchTimeout) {
		t.Fatalf("expected ErrFetchTimeout, got %v", err)
	}
	if len(b.navigated) != 3 {
		t.Errorf("expected 3 navigations, got %d", len(b.navigated))
	}
}

func TestFetchEmptyDocument(t *testing.T) {
	b := &fakeBrowser{html: renderPage(nil, nil)}
	f := NewFetcher(b, testOptions())

	stops, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo)
	if err != nil {
		t.Fatalf("expected no error for an empty document, got %v", err)
	}
	if stops == nil || len(stops) != 0 {
		t.Errorf("expected an empty, non-nil slice, got %#v", stops)
	}
	if len(b.navigated) != 1 {
		t.Errorf("an empty document should not be retried, got %d navigations", len(b.navigated))
	}
}

func TestFetchSessionOpenFailureIsNotRetried(t *testing.T) {
	b := &fakeBrowser{openErr: errors.New("chrome not found")}
	f := NewFetcher(b, testOptions())

	_, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo)
	if err == nil {
		t.Fatal("expected an error")
	}
	if errors.Is(err, ErrFetchTimeout) {
		t.Errorf("a browser that cannot start is not a timeout: %v", err)
	}
	if len(b.navigated) != 0 {
		t.Errorf("expected no navigations, got %d", len(b.navigated))
	}
}

func TestFetchCancelledContext(t *testing.T) {
	b := &fakeBrowser{html: renderPage(goFixture, nil), failWaits: -1}
	opts := testOptions()
	opts.RetryDelay = time.Hour
	f := NewFetcher(b, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := f.Fetch(ctx, "0100000A00", models.DirectionGo)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if errors.Is(err, ErrFetchTimeout) {
		t.Errorf("cancellation must not be reported as a timeout")
	}
}

func TestFetchWritesDebugHTML(t *testing.T) {
	dir := t.TempDir()
	b := &fakeBrowser{html: renderPage(goFixture, nil)}
	opts := testOptions()
	opts.DebugHTMLDir = dir
	f := NewFetcher(b, opts)

	if _, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "ebus_taipei_0100000A00_go.html"))
	if err != nil {
		t.Fatalf("debug html not written: %v", err)
	}
	if string(raw) != b.html {
		t.Error("debug html does not match the rendered document")
	}
}

func TestFetchRecordsMetrics(t *testing.T) {
	c := metrics.NewCollector()
	b := &fakeBrowser{html: renderPage(goFixture, nil)}
	f := NewFetcher(b, testOptions()).WithMetrics(c)

	if _, err := f.Fetch(context.Background(), "0100000A00", models.DirectionGo); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := f.Fetch(context.Background(), "", models.DirectionGo); err == nil {
		t.Fatal("expected an error for an empty route")
	}

	if got := counterValue(t, c, metrics.OutcomeOK); got != 1 {
		t.Errorf("ok outcomes = %v, expected 1", got)
	}
	if got := counterValue(t, c, metrics.OutcomeInvalid); got != 1 {
		t.Errorf("invalid outcomes = %v, expected 1", got)
	}
}

func TestListRoutes(t *testing.T) {
	b := &fakeBrowser{html: catalogPage}
	f := NewFetcher(b, testOptions())

	routes, err := f.ListRoutes(context.Background())
	if err != nil {
		t.Fatalf("ListRoutes failed: %v", err)
	}
	if len(routes) != 2 {
		t.Errorf("expected 2 routes, got %d", len(routes))
	}
	if b.navigated[0] != "https://ebus.example.test/ebus" {
		t.Errorf("navigated to %q", b.navigated[0])
	}
	if b.closed != 1 {
		t.Errorf("expected the session to be closed once, got %d", b.closed)
	}
}

func TestNewFetcherDefaults(t *testing.T) {
	f := NewFetcher(&fakeBrowser{}, Options{})
	opts := f.Options()

	if opts.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q", opts.BaseURL)
	}
	if opts.MaxRetries != 3 || opts.Timeout != 10*time.Second {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	// zero pauses are kept so callers can retry without waiting
	if opts.RetryDelay != 0 || opts.Settle != 0 {
		t.Errorf("RetryDelay = %v, Settle = %v, expected no pause", opts.RetryDelay, opts.Settle)
	}
	if opts.Selectors.StationList == "" {
		t.Error("selectors were not defaulted")
	}

	def := DefaultOptions()
	if def.RetryDelay != 5*time.Second || def.Settle != 5*time.Second {
		t.Errorf("DefaultOptions pauses = %v / %v", def.RetryDelay, def.Settle)
	}

	neg := NewFetcher(&fakeBrowser{}, Options{RetryDelay: -time.Second, Settle: -time.Second}).Options()
	if neg.RetryDelay != 0 || neg.Settle != 0 {
		t.Errorf("negative pauses should clamp to zero, got %v / %v", neg.RetryDelay, neg.Settle)
	}
}

func counterValue(t *testing.T, c *metrics.Collector, outcome string) float64 {
	t.Helper()
	return testutil.ToFloat64(c.FetchResults.WithLabelValues(outcome))
}

package ebus

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yourorg/stoplist/internal/models"
)

// Selectors maps every piece of the e-bus markup the fetcher relies on.
// The site has shipped several layouts over time, so all of them can be
// overridden from a YAML file.
type Selectors struct {
	// StationList matches one station entry; it doubles as the ready marker.
	StationList string `yaml:"station_list"`

	// GoContainer and ComeContainer scope the station list to one direction
	// when the page renders both. Empty means the whole document is searched
	// and waited on. A non-empty container must be present: the ready wait
	// is scoped to it, so only parsing falls back to the whole document.
	GoContainer   string `yaml:"go_container"`
	ComeContainer string `yaml:"come_container"`

	// ComeToggle is clicked to switch the page to the inbound direction.
	ComeToggle string `yaml:"come_toggle"`

	// Countdown candidates are tried in order; the first non-empty text wins.
	Countdown []string `yaml:"countdown"`

	StopNumber string `yaml:"stop_number"`
	StopName   string `yaml:"stop_name"`
	StopID     string `yaml:"stop_id"`
	Latitude   string `yaml:"latitude"`
	Longitude  string `yaml:"longitude"`

	// RouteLink matches the javascript:go('<routeid>') anchors of the catalog page.
	RouteLink string `yaml:"route_link"`
}

// DefaultSelectors returns the markup of ebus.gov.taipei as last observed.
func DefaultSelectors() Selectors {
	return Selectors{
		StationList:   ".auto-list-stationlist",
		GoContainer:   "#GoDirectionRoute",
		ComeContainer: "#BackDirectionRoute",
		ComeToggle:    "a.stationlist-come",
		Countdown: []string{
			".eta_onroad",
			".auto-list-stationlist-position-now",
			".auto-list-stationlist-position-time",
			".auto-list-stationlist-position-none",
			".auto-list-stationlist-position",
			".auto-list-stationlist-countdown",
		},
		StopNumber: ".auto-list-stationlist-number",
		StopName:   ".auto-list-stationlist-place",
		StopID:     `input[name="item.UniStopId"]`,
		Latitude:   `input[name="item.Latitude"]`,
		Longitude:  `input[name="item.Longitude"]`,
		RouteLink:  `a[href^="javascript:go"]`,
	}
}

// LoadSelectors reads a YAML override file on top of DefaultSelectors.
// An empty path returns the defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	if path == "" {
		return sel, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return sel, fmt.Errorf("read selectors file: %w", err)
	}

	// Keys absent from the file keep their default; an explicit empty
	// string clears a selector (useful for the direction containers).
	if err := yaml.Unmarshal(raw, &sel); err != nil {
		return DefaultSelectors(), fmt.Errorf("parse selectors file %s: %w", path, err)
	}
	if sel.StationList == "" {
		return DefaultSelectors(), fmt.Errorf("selectors file %s: station_list must not be empty", path)
	}
	return sel, nil
}

func (s Selectors) container(dir models.Direction) string {
	if dir == models.DirectionCome {
		return s.ComeContainer
	}
	return s.GoContainer
}

// readyMarker is the selector the fetcher waits for. It is scoped to the
// direction container so the inbound wait does not succeed on the outbound
// list that is already on screen.
func (s Selectors) readyMarker(dir models.Direction) string {
	if c := s.container(dir); c != "" {
		return c + " " + s.StationList
	}
	return s.StationList
}

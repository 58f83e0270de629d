package ebus

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/yourorg/stoplist/internal/models"
	"github.com/yourorg/stoplist/internal/validation"
)

const (
	arrivalApproaching = "進站中"
	arrivalNotDeparted = "尚未發車"
)

var routeLinkPattern = regexp.MustCompile(`go\('([^']+)'\)`)

// ParseStops extracts the station entries of one direction from a rendered
// StopsOfRoute document, in document order. Entries without a usable
// coordinate pair are dropped, as are repeated stop numbers. A document
// with no entries yields an empty, non-nil slice.
func ParseStops(html string, dir models.Direction, sel Selectors) ([]models.Stop, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse stops document: %w", err)
	}

	root := doc.Selection
	if c := sel.container(dir); c != "" {
		if scoped := doc.Find(c); scoped.Length() > 0 {
			root = scoped
		}
	}

	stops := []models.Stop{}
	seen := make(map[string]bool)
	root.Find(sel.StationList).Each(func(_ int, entry *goquery.Selection) {
		stop, ok := parseEntry(entry, sel)
		if !ok {
			return
		}
		if stop.StopNumber != "" {
			if seen[stop.StopNumber] {
				return
			}
			seen[stop.StopNumber] = true
		}
		stops = append(stops, stop)
	})

	return stops, nil
}

// parseEntry builds a Stop from one station entry. Only the coordinates
// are mandatory; every text field tolerates absence.
func parseEntry(entry *goquery.Selection, sel Selectors) (models.Stop, bool) {
	lat, latOK := coordinateOf(entry, sel.Latitude)
	lon, lonOK := coordinateOf(entry, sel.Longitude)
	if !latOK || !lonOK {
		return models.Stop{}, false
	}
	if err := validation.ValidateCoordinatePair(lat, lon); err != nil {
		return models.Stop{}, false
	}

	number, _ := textOf(entry, sel.StopNumber)
	name, _ := textOf(entry, sel.StopName)
	id, _ := valueOf(entry, sel.StopID)

	return models.Stop{
		ArrivalInfo: arrivalOf(entry, sel.Countdown),
		StopNumber:  number,
		StopName:    name,
		StopID:      id,
		Latitude:    lat,
		Longitude:   lon,
	}, true
}

// arrivalOf returns the first non-empty countdown candidate, normalized.
func arrivalOf(entry *goquery.Selection, candidates []string) string {
	for _, selector := range candidates {
		if text, ok := textOf(entry, selector); ok {
			return NormalizeArrival(text)
		}
	}
	return ""
}

// NormalizeArrival collapses the countdown text. Status phrases are reduced
// to the bare token; anything else is kept as rendered.
func NormalizeArrival(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	switch {
	case strings.Contains(text, arrivalApproaching):
		return arrivalApproaching
	case strings.Contains(text, arrivalNotDeparted):
		return arrivalNotDeparted
	}
	return text
}

func textOf(entry *goquery.Selection, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	node := entry.Find(selector).First()
	if node.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(node.Text())
	return text, text != ""
}

func valueOf(entry *goquery.Selection, selector string) (string, bool) {
	if selector == "" {
		return "", false
	}
	v, ok := entry.Find(selector).First().Attr("value")
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func coordinateOf(entry *goquery.Selection, selector string) (float64, bool) {
	raw, ok := valueOf(entry, selector)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseRouteCatalog extracts route ids and names from the /ebus landing
// page. Route ids appear once, in page order.
func ParseRouteCatalog(html string, sel Selectors) ([]models.RouteEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse route catalog: %w", err)
	}

	routes := []models.RouteEntry{}
	seen := make(map[string]bool)
	doc.Find(sel.RouteLink).Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		m := routeLinkPattern.FindStringSubmatch(href)
		if len(m) < 2 || seen[m[1]] {
			return
		}
		seen[m[1]] = true
		routes = append(routes, models.RouteEntry{
			RouteID:   m[1],
			RouteName: strings.TrimSpace(link.Text()),
		})
	})

	return routes, nil
}

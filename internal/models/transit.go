package models

import "strings"

// Direction is the traversal of a route: outbound ("go") or inbound ("come").
type Direction string

const (
	DirectionGo   Direction = "go"
	DirectionCome Direction = "come"
)

// Directions lists both directions in the order the batch driver visits them.
var Directions = []Direction{DirectionGo, DirectionCome}

// ParseDirection accepts the site spellings (go/come) and the English
// aliases (outbound/inbound). Anything else returns false.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "go", "outbound":
		return DirectionGo, true
	case "come", "inbound":
		return DirectionCome, true
	}
	return "", false
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionGo || d == DirectionCome
}

func (d Direction) String() string { return string(d) }

// Stop is one station row of a route in one direction.
type Stop struct {
	ArrivalInfo string  `json:"arrival_info" csv:"arrival_info"` // raw countdown text ("3分", "進站中", "尚未發車" or empty)
	StopNumber  string  `json:"stop_number" csv:"stop_number"`   // ordinal position along the route
	StopName    string  `json:"stop_name" csv:"stop_name"`
	StopID      string  `json:"stop_id" csv:"stop_id"` // site-internal UniStopId
	Latitude    float64 `json:"latitude" csv:"latitude"`
	Longitude   float64 `json:"longitude" csv:"longitude"`
}

// RouteEntry is one line of the e-bus route catalog.
type RouteEntry struct {
	RouteID   string `json:"route_id" csv:"route_id"`
	RouteName string `json:"route_name" csv:"route_name"`
}

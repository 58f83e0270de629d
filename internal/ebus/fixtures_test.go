package ebus

import (
	"fmt"
	"strings"
)

// fixtureStop describes one station entry rendered into a test page.
// Empty coordinate strings leave the hidden input out entirely.
type fixtureStop struct {
	countdown string
	number    string
	name      string
	id        string
	lat       string
	lon       string
}

func renderEntry(s fixtureStop) string {
	var b strings.Builder
	b.WriteString(`<li class="auto-list-stationlist">`)
	if s.countdown != "" {
		fmt.Fprintf(&b, `<span class="auto-list-stationlist-position auto-list-stationlist-position-time">%s</span>`, s.countdown)
	}
	fmt.Fprintf(&b, `<span class="auto-list-stationlist-number"> %s</span>`, s.number)
	fmt.Fprintf(&b, `<span class="auto-list-stationlist-place">%s</span>`, s.name)
	fmt.Fprintf(&b, `<input type="hidden" name="item.UniStopId" value="%s">`, s.id)
	if s.lat != "" {
		fmt.Fprintf(&b, `<input type="hidden" name="item.Latitude" value="%s">`, s.lat)
	}
	if s.lon != "" {
		fmt.Fprintf(&b, `<input type="hidden" name="item.Longitude" value="%s">`, s.lon)
	}
	b.WriteString(`</li>`)
	return b.String()
}

// renderPage builds a StopsOfRoute document with both direction containers.
func renderPage(goStops, comeStops []fixtureStop) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>StopsOfRoute</title></head><body>`)
	b.WriteString(`<p class="stationlist-come-go-c"><a class="stationlist-go">去程</a><a class="stationlist-come-go-gray stationlist-come">返程</a></p>`)
	b.WriteString(`<div id="GoDirectionRoute"><ul>`)
	for _, s := range goStops {
		b.WriteString(renderEntry(s))
	}
	b.WriteString(`</ul></div><div id="BackDirectionRoute"><ul>`)
	for _, s := range comeStops {
		b.WriteString(renderEntry(s))
	}
	b.WriteString(`</ul></div></body></html>`)
	return b.String()
}

var goFixture = []fixtureStop{
	{"進站中", "1", "捷運劍潭站", "10001", "25.084873", "121.525078"},
	{"3分", "2", "士林官邸", "10002", "25.093201", "121.526445"},
	{"", "3", "福林橋", "10003", "25.095590", "121.527760"},
	{"12分", "4", "雨農路口", "10004", "", "121.528801"},
	{"尚未發車", "5", "天母", "10005", "25.117611", "121.533028"},
}

var comeFixture = []fixtureStop{
	{"5分", "1", "天母", "20001", "25.117611", "121.533028"},
	{"8分", "2", "捷運劍潭站", "20002", "25.084873", "121.525078"},
}

const catalogPage = `<html><body>
<div class="panel"><a data-toggle="collapse" href="#collapse1">幹線</a></div>
<ul>
  <li><a href="javascript:go('0161000900')">承德幹線</a></li>
  <li><a href="javascript:go('0161001500')"> 基隆幹線 </a></li>
  <li><a href="javascript:go('0161000900')">承德幹線</a></li>
  <li><a href="javascript:void(0)">說明</a></li>
  <li><a href="javascript:go(0100000A00)">malformed</a></li>
</ul>
</body></html>`

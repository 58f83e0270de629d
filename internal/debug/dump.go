package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HTMLFileName is the dump name for one rendered stop list page.
func HTMLFileName(routeID, direction string) string {
	return fmt.Sprintf("ebus_taipei_%s_%s.html", sanitize(routeID), sanitize(direction))
}

// DumpHTML writes a rendered document into dir for offline selector work.
// The directory is created when missing.
func DumpHTML(dir, name, html string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write debug html: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}

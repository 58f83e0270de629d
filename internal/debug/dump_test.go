package debug

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHTMLFileName(t *testing.T) {
	tests := []struct {
		routeID, direction, expected string
	}{
		{"0100000A00", "go", "ebus_taipei_0100000A00_go.html"},
		{"../etc", "come", "ebus_taipei_.._etc_come.html"},
	}
	for _, tc := range tests {
		if got := HTMLFileName(tc.routeID, tc.direction); got != tc.expected {
			t.Errorf("HTMLFileName(%q, %q) = %q, expected %q", tc.routeID, tc.direction, got, tc.expected)
		}
	}
}

func TestDumpHTMLCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "html")

	if err := DumpHTML(dir, "page.html", "<html>站牌</html>"); err != nil {
		t.Fatalf("DumpHTML failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "page.html"))
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if string(raw) != "<html>站牌</html>" {
		t.Errorf("unexpected dump content %q", raw)
	}
}

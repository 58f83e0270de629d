// Package stopcsv reads and writes stop lists and the route catalog as CSV.
//
// Files are UTF-8 with a leading byte order mark so spreadsheet tools pick
// the right encoding for station names; readers accept files with or
// without it.
package stopcsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/yourorg/stoplist/internal/models"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// FileName is the output path of one (route, direction) stop list. Path
// separators and other characters unsafe in file names are replaced, so the
// file always lands directly inside dir.
func FileName(dir, routeID string, direction models.Direction) string {
	return filepath.Join(dir, fmt.Sprintf("bus_route_%s_%s.csv", sanitize(routeID), sanitize(string(direction))))
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

// Write encodes stops with the arrival_info,stop_number,stop_name,stop_id,
// latitude,longitude header. An empty slice still writes the header.
func Write(w io.Writer, stops []models.Stop) error {
	if stops == nil {
		stops = []models.Stop{}
	}
	return marshal(w, &stops)
}

// Read decodes a stop list written by Write.
func Read(r io.Reader) ([]models.Stop, error) {
	stops := []models.Stop{}
	if err := unmarshal(r, &stops); err != nil {
		return nil, err
	}
	return stops, nil
}

// WriteFile writes stops to path, creating parent directories. The file is
// replaced atomically so a crashed run never leaves a truncated CSV that a
// later batch would skip as already done.
func WriteFile(path string, stops []models.Stop) error {
	return writeFileAtomic(path, func(w io.Writer) error { return Write(w, stops) })
}

func ReadFile(path string) ([]models.Stop, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// WriteRoutes encodes the catalog with the route_id,route_name header.
func WriteRoutes(w io.Writer, routes []models.RouteEntry) error {
	if routes == nil {
		routes = []models.RouteEntry{}
	}
	return marshal(w, &routes)
}

func ReadRoutes(r io.Reader) ([]models.RouteEntry, error) {
	routes := []models.RouteEntry{}
	if err := unmarshal(r, &routes); err != nil {
		return nil, err
	}
	return routes, nil
}

func WriteRoutesFile(path string, routes []models.RouteEntry) error {
	return writeFileAtomic(path, func(w io.Writer) error { return WriteRoutes(w, routes) })
}

func ReadRoutesFile(path string) ([]models.RouteEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRoutes(f)
}

func marshal(w io.Writer, rows any) error {
	if _, err := w.Write(bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}
	return nil
}

func unmarshal(r io.Reader, out any) error {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(bom)); err == nil && bytes.Equal(head, bom) {
		_, _ = br.Discard(len(bom))
	}

	// Hand-edited files sometimes lose trailing empty columns.
	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	if err := gocsv.UnmarshalCSV(reader, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil
		}
		return fmt.Errorf("decode csv: %w", err)
	}
	return nil
}

func writeFileAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

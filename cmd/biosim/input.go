package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/biosim-client/internal/domain"
)

func readInput(env environment, path string) ([]domain.Location, error) {
	if path == "-" {
		return readLocations(env.stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return readLocations(f)
}

// readLocations parses CSV rows of lat,lon[,elev]. A first row whose latitude is not a
// number is taken as a header. An empty or "NaN" elevation is undefined.
func readLocations(r io.Reader) ([]domain.Location, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	var out []domain.Location
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		if len(rec) < 2 || len(rec) > 3 {
			return nil, fmt.Errorf("%w: input row %d: want lat,lon[,elev], got %d fields", domain.ErrValidation, row, len(rec))
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(rec[0]), 64)
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("%w: input row %d: latitude %q", domain.ErrValidation, row, rec[0])
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: input row %d: longitude %q", domain.ErrValidation, row, rec[1])
		}
		loc := domain.NewLocation(lat, lon)
		if len(rec) == 3 {
			if e := strings.TrimSpace(rec[2]); e != "" && !strings.EqualFold(e, "nan") {
				if loc.ElevationM, err = strconv.ParseFloat(e, 64); err != nil {
					return nil, fmt.Errorf("%w: input row %d: elevation %q", domain.ErrValidation, row, rec[2])
				}
			}
		}
		out = append(out, loc)
	}
	return out, nil
}

// Package decode turns BioSim text replies into typed values.
package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/couchcryptid/biosim-client/internal/domain"
)

// Header markers of the tabular endpoints.
const (
	NormalsMarker = "month"
	ModelMarker   = "rep"
)

const errorMarker = "error"

// Tabular splits a multi-location reply into one dataset per location. The Nth header line
// (a line starting with marker, case-insensitively) opens the dataset of the Nth location;
// following lines are its records. Column types are inferred once every block has been
// read. A line starting with "error" fails the whole reply with domain.ErrServer.
func Tabular(reply, marker string, locations int) ([]*domain.Dataset, error) {
	marker = strings.ToLower(marker)
	datasets := make([]*domain.Dataset, 0, locations)
	var (
		current *domain.Dataset
		extra   int // blocks beyond locations, only scanned for error lines
	)

	for n, line := range splitLines(reply) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, errorMarker):
			return nil, fmt.Errorf("%w: %s", domain.ErrServer, line)
		case strings.HasPrefix(lower, marker):
			if len(datasets) == locations {
				extra++
				continue
			}
			current = domain.NewDataset(strings.Split(line, domain.FieldSeparator))
			datasets = append(datasets, current)
		default:
			if extra > 0 {
				continue
			}
			if current == nil {
				return nil, fmt.Errorf("%w: line %d precedes any %q header: %q", domain.ErrDecode, n+1, marker, line)
			}
			if err := current.AddFields(strings.Split(line, domain.FieldSeparator)); err != nil {
				return nil, fmt.Errorf("location %d, line %d: %w", len(datasets)-1, n+1, err)
			}
		}
	}

	if extra > 0 {
		return nil, fmt.Errorf("%w: reply has %d location blocks, expected %d", domain.ErrDecode, locations+extra, locations)
	}
	if len(datasets) != locations {
		return nil, fmt.Errorf("%w: reply has %d location blocks, expected %d", domain.ErrDecode, len(datasets), locations)
	}
	for _, ds := range datasets {
		ds.Finalize()
	}
	return datasets, nil
}

// Handles parses a generation reply: one space-separated handle per location, in order.
// A token starting with "error" marks a location the server could not generate; the
// reply then fails with domain.ErrServer but the valid handles are still returned so the
// caller can release them.
func Handles(reply string, locations int) ([]domain.Handle, error) {
	tokens := strings.Fields(reply)
	if len(tokens) != locations {
		return nil, fmt.Errorf("%w: got %d handles for %d locations", domain.ErrDecode, len(tokens), locations)
	}
	handles := make([]domain.Handle, 0, len(tokens))
	var failed error
	for i, tok := range tokens {
		if strings.HasPrefix(strings.ToLower(tok), errorMarker) {
			if failed == nil {
				failed = fmt.Errorf("%w: generation failed for location %d: %s", domain.ErrServer, i, tok)
			}
			continue
		}
		handles = append(handles, domain.Handle(tok))
	}
	return handles, failed
}

// Count parses a reply holding a single integer.
func Count(reply string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil {
		return 0, fmt.Errorf("%w: expected an integer reply: %w", domain.ErrDecode, err)
	}
	return n, nil
}

// Lines returns the non-blank lines of a reply, trimmed.
func Lines(reply string) []string {
	var out []string
	for _, line := range splitLines(reply) {
		if s := strings.TrimSpace(line); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitLines(reply string) []string {
	lines := strings.Split(reply, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

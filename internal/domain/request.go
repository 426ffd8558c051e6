package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// MaxNeighbors bounds the number of weather stations the server may interpolate from.
const MaxNeighbors = 35

// GenerationRequest describes a climate generation over a year interval.
type GenerationRequest struct {
	FromYear                   int
	ToYear                     int
	RCP                        RCP
	ClimateModel               ClimateModel
	Replicates                 int
	ForceGenerationFromNormals bool
	// NeighborCount is the number of stations used for interpolation; 0 leaves the
	// server default.
	NeighborCount int
}

// Validate checks the request before any network call.
func (r GenerationRequest) Validate() error {
	if r.FromYear > r.ToYear {
		return fmt.Errorf("%w: from year %d is after to year %d", ErrValidation, r.FromYear, r.ToYear)
	}
	if r.Replicates < 1 {
		return fmt.Errorf("%w: replicate count must be at least 1, got %d", ErrValidation, r.Replicates)
	}
	return validateNeighbors(r.NeighborCount)
}

// ModelRequest generates climate and applies a named model to it.
type ModelRequest struct {
	GenerationRequest
	Model  string
	Params ParameterMap
	// Ephemeral requests bypass the handle cache and release their handles as soon as
	// the model has been applied.
	Ephemeral bool
}

// Validate checks the request before any network call.
func (r ModelRequest) Validate() error {
	if strings.TrimSpace(r.Model) == "" {
		return fmt.Errorf("%w: model name is required", ErrValidation)
	}
	return r.GenerationRequest.Validate()
}

// NormalsRequest retrieves climate normals for a period.
type NormalsRequest struct {
	Period        Period
	RCP           RCP
	ClimateModel  ClimateModel
	NeighborCount int
	// Months to aggregate over. Empty returns one record per month.
	Months []Month
}

// Validate checks the request before any network call.
func (r NormalsRequest) Validate() error {
	if _, err := ParsePeriod(string(r.Period)); err != nil {
		return err
	}
	for _, m := range r.Months {
		if !m.Valid() {
			return fmt.Errorf("%w: invalid month %d", ErrValidation, int(m))
		}
	}
	return validateNeighbors(r.NeighborCount)
}

func validateNeighbors(n int) error {
	if n != 0 && (n < 1 || n > MaxNeighbors) {
		return fmt.Errorf("%w: neighbor count must be in [1, %d], got %d", ErrValidation, MaxNeighbors, n)
	}
	return nil
}

// ParameterMap holds additional model parameters. Values are numbers or strings.
type ParameterMap map[string]string

// parameterSeparators delimit entries inside the Parameters value and cannot appear in
// a name or a value.
const parameterSeparators = "*:"

// Add sets a parameter. Only string and numeric values are accepted.
func (p ParameterMap) Add(name string, value any) error {
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case int:
		s = strconv.Itoa(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		s = strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Errorf("%w: parameter %q must be a string or a number, got %T", ErrValidation, name, value)
	}
	name, s = strings.TrimSpace(name), strings.TrimSpace(s)
	if name == "" {
		return fmt.Errorf("%w: parameter name is required", ErrValidation)
	}
	if strings.ContainsAny(name, parameterSeparators) || strings.ContainsAny(s, parameterSeparators) {
		return fmt.Errorf("%w: parameter %q must not contain %q", ErrValidation, name, parameterSeparators)
	}
	p[name] = s
	return nil
}

// Encode renders the map as "Parameters=*k1:v1*k2:v2" with keys sorted and each key and
// value query-escaped. An empty map encodes to "".
func (p ParameterMap) Encode() string {
	if len(p) == 0 {
		return ""
	}
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("Parameters=")
	for _, k := range keys {
		b.WriteString("*")
		b.WriteString(url.QueryEscape(k))
		b.WriteString(":")
		b.WriteString(url.QueryEscape(p[k]))
	}
	return b.String()
}

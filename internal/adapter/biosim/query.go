package biosim

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/biosim-client/internal/domain"
)

// ListDelimiter joins list items inside a single query value.
const ListDelimiter = "%20"

// query assembles an already-encoded query string in insertion order.
type query []string

func (q *query) add(key, encodedValue string) {
	*q = append(*q, key+"="+encodedValue)
}

func (q *query) raw(part string) {
	if part != "" {
		*q = append(*q, part)
	}
}

func (q query) String() string { return strings.Join(q, "&") }

// CoordinatesQuery encodes locations as three parallel lists: lat, long and elev.
func CoordinatesQuery(locations []domain.Location) string {
	lat := make([]string, len(locations))
	lon := make([]string, len(locations))
	elev := make([]string, len(locations))
	for i, l := range locations {
		lat[i] = strconv.FormatFloat(l.LatitudeDeg, 'f', -1, 64)
		lon[i] = strconv.FormatFloat(l.LongitudeDeg, 'f', -1, 64)
		elev[i] = l.ElevationText()
	}
	var q query
	q.add("lat", strings.Join(lat, ListDelimiter))
	q.add("long", strings.Join(lon, ListDelimiter))
	q.add("elev", strings.Join(elev, ListDelimiter))
	return q.String()
}

func variablesValue() string {
	codes := make([]string, len(domain.Variables))
	for i, v := range domain.Variables {
		codes[i] = v.Code
	}
	return strings.Join(codes, ListDelimiter)
}

// NormalsQuery encodes a normals request for locations.
func NormalsQuery(req domain.NormalsRequest, locations []domain.Location) string {
	q := query{CoordinatesQuery(locations)}
	q.add("var", variablesValue())
	q.add("compress", "0")
	q.add("period", string(req.Period))
	q.add("rcp", req.RCP.QueryValue())
	q.add("climMod", req.ClimateModel.String())
	addNeighbors(&q, req.NeighborCount)
	return q.String()
}

// GenerationQuery encodes a climate generation request for locations.
func GenerationQuery(req domain.GenerationRequest, locations []domain.Location) string {
	q := query{CoordinatesQuery(locations)}
	q.add("var", variablesValue())
	q.add("compress", "0")
	q.add("from", strconv.Itoa(req.FromYear))
	q.add("to", strconv.Itoa(req.ToYear))
	q.add("rcp", req.RCP.QueryValue())
	q.add("climMod", req.ClimateModel.String())
	if req.Replicates > 1 {
		q.add("rep", strconv.Itoa(req.Replicates))
	}
	if req.ForceGenerationFromNormals {
		q.add("source", "FromNormals")
	}
	addNeighbors(&q, req.NeighborCount)
	return q.String()
}

// ModelQuery encodes the application of model to generated climate handles.
func ModelQuery(model string, handles []domain.Handle, params domain.ParameterMap) string {
	var q query
	q.add("model", url.QueryEscape(model))
	q.add("compress", "0")
	q.add("wgout", joinHandles(handles))
	q.raw(params.Encode())
	return q.String()
}

// ReleaseQuery encodes the release of handles.
func ReleaseQuery(handles []domain.Handle) string {
	var q query
	q.add("ref", joinHandles(handles))
	return q.String()
}

func joinHandles(handles []domain.Handle) string {
	parts := make([]string, len(handles))
	for i, h := range handles {
		parts[i] = url.QueryEscape(string(h))
	}
	return strings.Join(parts, ListDelimiter)
}

func addNeighbors(q *query, n int) {
	if n > 0 {
		q.add("nb_nearest_neighbor", strconv.Itoa(n))
	}
}

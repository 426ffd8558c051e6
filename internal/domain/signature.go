package domain

import "math"

// Coordinate tolerances under which two requests are the same generated climate.
const (
	LatLonTolerance    = 1e-5 // degrees, about 1 m at the equator
	ElevationTolerance = 1.0  // meters
)

// Handle is the opaque server reference to generated climate.
type Handle string

// QuerySignature identifies a climate generation request whose handle can be reused.
type QuerySignature struct {
	FromYear                   int
	ToYear                     int
	RCP                        RCP
	ClimateModel               ClimateModel
	Replicates                 int
	ForceGenerationFromNormals bool
	LatitudeDeg                float64
	LongitudeDeg               float64
	ElevationM                 float64
}

// NewQuerySignature builds the signature for one location of a generation request.
func NewQuerySignature(req GenerationRequest, loc Location) QuerySignature {
	return QuerySignature{
		FromYear:                   req.FromYear,
		ToYear:                     req.ToYear,
		RCP:                        req.RCP,
		ClimateModel:               req.ClimateModel,
		Replicates:                 req.Replicates,
		ForceGenerationFromNormals: req.ForceGenerationFromNormals,
		LatitudeDeg:                loc.LatitudeDeg,
		LongitudeDeg:               loc.LongitudeDeg,
		ElevationM:                 loc.ElevationM,
	}
}

// SignatureKey holds the exact-match fields of a signature. Signatures that are Equal
// always share a key, so it is safe to bucket on.
type SignatureKey struct {
	FromYear                   int
	ToYear                     int
	RCP                        RCP
	ClimateModel               ClimateModel
	Replicates                 int
	ForceGenerationFromNormals bool
}

// Key returns the bucket key of s.
func (s QuerySignature) Key() SignatureKey {
	return SignatureKey{
		FromYear:                   s.FromYear,
		ToYear:                     s.ToYear,
		RCP:                        s.RCP,
		ClimateModel:               s.ClimateModel,
		Replicates:                 s.Replicates,
		ForceGenerationFromNormals: s.ForceGenerationFromNormals,
	}
}

// Equal reports whether s and o describe the same generated climate: exact scalar fields,
// coordinates within LatLonTolerance and elevations within ElevationTolerance. Two
// undefined elevations match each other.
//
// Tolerance windows are not a partition: a chain of signatures each within tolerance of
// the next need not be mutually equal. Callers derive signatures from the same
// coordinates, so this is accepted.
func (s QuerySignature) Equal(o QuerySignature) bool {
	if s.Key() != o.Key() {
		return false
	}
	if math.Abs(s.LatitudeDeg-o.LatitudeDeg) >= LatLonTolerance {
		return false
	}
	if math.Abs(s.LongitudeDeg-o.LongitudeDeg) >= LatLonTolerance {
		return false
	}
	sNaN, oNaN := math.IsNaN(s.ElevationM), math.IsNaN(o.ElevationM)
	if sNaN || oNaN {
		return sNaN && oNaN
	}
	return math.Abs(s.ElevationM-o.ElevationM) < ElevationTolerance
}

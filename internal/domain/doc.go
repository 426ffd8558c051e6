// Package domain models the data exchanged with the BioSim climate simulation service.
//
// # Data Source
//
// BioSim is a stateful HTTP service. A climate generation request returns one opaque
// handle per location ("wgout" reference). Handles stay allocated on the server until
// they are released through the memory cleanup endpoint, so a client that forgets them
// leaks server memory.
//
// # Wire Conventions
//
// Coordinates:
//
//	Three parallel lists, one entry per location, joined with "%20":
//	  lat=45.5%2046.1&long=-73.2%20-71.0&elev=120%20NaN
//	An undefined elevation is sent as the literal "NaN".
//
// Tabular replies:
//
//	Newline separated lines, fields separated by ",". A header line starts a new
//	location block; its marker depends on the endpoint ("month" for normals, "rep" for
//	model output) and is matched case-insensitively as a prefix. The Nth header line
//	belongs to the Nth requested location. A line starting with "error" anywhere in the
//	reply fails the whole reply.
//
//	  Month,TMIN_MN,TMAX_MN,PRCP_TT
//	  1,-14.2,-4.1,82.5
//	  2,-12.8,-2.6,61.0
//
// Model parameters:
//
//	Parameters=*LowerThreshold:5*UpperThreshold:30
//
// # Column Typing
//
// Columns are typed once, after every record of a block is read: integer if every value
// parses as an integer, else real if every value parses as a number, else text. Columns
// named after a catalogued climate variable (TMIN_MN, TMAX_MN, PRCP_TT) are always real
// when numeric, so "50" and "50.5" land in the same representation.
//
// # Aggregation
//
// Intensive variables (temperatures) are averaged over a period, weighted by the fixed
// day count of each month (February is always 28 days). Additive variables
// (precipitation) are summed.
package domain

// Command biosim queries a BioSim server for climate normals and model output.
//
// Locations are read as CSV rows of lat,lon[,elev]. Results are printed as JSON lines,
// or published to Kafka when KAFKA_BROKERS is set.
//
// Usage:
//
//	biosim normals --input sites.csv --period 1981_2010 --annual
//	biosim model --input sites.csv --model DegreeDay_Annual --from 2000 --to 2010
//	biosim models
//	biosim load
package main

import (
	"fmt"
	"os"

	"github.com/couchcryptid/biosim-client/internal/observability"
)

func main() {
	root := newRootCmd(environment{stdin: os.Stdin, stdout: os.Stdout, newMetrics: observability.NewMetrics})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

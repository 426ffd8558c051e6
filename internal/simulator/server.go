// Package simulator is an in-process stand-in for a BioSim server. It speaks the same
// endpoints and reply formats with deterministic synthetic climate, so the client can be
// exercised end to end without the remote service.
//
// Locations north of NoStationLatitude have no weather station and every request
// touching them fails with an error line.
package simulator

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NoStationLatitude is the latitude above which no climate can be produced.
const NoStationLatitude = 80.0

// DefaultModels is the model list served when none is configured.
var DefaultModels = []string{"DegreeDay_Annual", "Climatic_Annual", "ClimaticQc_Annual"}

type generated struct {
	lat, lon, elev float64
	from, to       int
	reps           int
}

// Server serves the BioSim endpoints.
type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	models    []string
	maxMemory int

	mu        sync.Mutex
	live      map[string]generated
	calls     map[string]int
	failModel bool
	maxFails  bool
}

// Option configures a Server.
type Option func(*Server)

// WithModels replaces the served model list.
func WithModels(models ...string) Option {
	return func(s *Server) { s.models = append([]string(nil), models...) }
}

// WithMaxMemory sets the BioSimMaxMemory reply.
func WithMaxMemory(n int) Option {
	return func(s *Server) { s.maxMemory = n }
}

// New creates a simulator.
func New(logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		models:    DefaultModels,
		maxMemory: 20000,
		live:      make(map[string]generated),
		calls:     make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}

	s.mux.HandleFunc("GET /BioSimNormals", s.handleNormals)
	s.mux.HandleFunc("GET /BioSimWG", s.handleGenerate)
	s.mux.HandleFunc("GET /BioSimModel", s.handleModel)
	s.mux.HandleFunc("GET /BioSimModelList", s.handleModelList)
	s.mux.HandleFunc("GET /BioSimMemoryCleanUp", s.handleRelease)
	s.mux.HandleFunc("GET /BioSimMemoryLoad", s.handleLoad)
	s.mux.HandleFunc("GET /BioSimMaxMemory", s.handleMaxMemory)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.calls[strings.TrimPrefix(r.URL.Path, "/")]++
	s.mu.Unlock()
	s.mux.ServeHTTP(w, r)
}

// Live is the number of handles held by the server.
func (s *Server) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Calls is the number of requests received on endpoint.
func (s *Server) Calls(endpoint string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[endpoint]
}

// FailModel makes BioSimModel answer with an exception while on is true.
func (s *Server) FailModel(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failModel = on
}

// FailMaxMemory makes BioSimMaxMemory answer with a 500 while on is true.
func (s *Server) FailMaxMemory(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxFails = on
}

type point struct{ lat, lon, elev float64 }

func parsePoints(r *http.Request) ([]point, error) {
	q := r.URL.Query()
	lats := strings.Fields(q.Get("lat"))
	lons := strings.Fields(q.Get("long"))
	elevs := strings.Fields(q.Get("elev"))
	if len(lats) == 0 || len(lats) != len(lons) || (len(elevs) != 0 && len(elevs) != len(lats)) {
		return nil, fmt.Errorf("coordinate lists differ in length")
	}
	pts := make([]point, len(lats))
	for i := range lats {
		var err error
		if pts[i].lat, err = strconv.ParseFloat(lats[i], 64); err != nil {
			return nil, err
		}
		if pts[i].lon, err = strconv.ParseFloat(lons[i], 64); err != nil {
			return nil, err
		}
		pts[i].elev = math.NaN()
		if len(elevs) > 0 {
			if pts[i].elev, err = strconv.ParseFloat(elevs[i], 64); err != nil {
				return nil, err
			}
		}
	}
	return pts, nil
}

func reply(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

func exception(w http.ResponseWriter, format string, args ...any) {
	reply(w, "Exception: "+fmt.Sprintf(format, args...))
}

func (s *Server) handleNormals(w http.ResponseWriter, r *http.Request) {
	pts, err := parsePoints(r)
	if err != nil {
		exception(w, "%v", err)
		return
	}
	shift := periodShift(r.URL.Query().Get("period"))

	var b strings.Builder
	for _, p := range pts {
		b.WriteString("Month,TMIN_MN,TMAX_MN,PRCP_TT\n")
		if p.lat > NoStationLatitude {
			fmt.Fprintf(&b, "Error: no weather station close enough to %g %g\n", p.lat, p.lon)
			continue
		}
		for m := 1; m <= 12; m++ {
			tmin, tmax, prcp := monthlyClimate(p, m)
			fmt.Fprintf(&b, "%d,%.1f,%.1f,%.1f\n", m, tmin+shift, tmax+shift, prcp)
		}
	}
	reply(w, b.String())
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	pts, err := parsePoints(r)
	if err != nil {
		exception(w, "%v", err)
		return
	}
	q := r.URL.Query()
	from, err1 := strconv.Atoi(q.Get("from"))
	to, err2 := strconv.Atoi(q.Get("to"))
	if err1 != nil || err2 != nil || from > to {
		exception(w, "invalid year interval %q-%q", q.Get("from"), q.Get("to"))
		return
	}
	reps := 1
	if v := q.Get("rep"); v != "" {
		if reps, err = strconv.Atoi(v); err != nil || reps < 1 {
			exception(w, "invalid rep %q", v)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(pts))
	for i, p := range pts {
		if p.lat > NoStationLatitude {
			ids[i] = "ERROR_no_weather_station"
			continue
		}
		id := uuid.NewString()
		s.live[id] = generated{lat: p.lat, lon: p.lon, elev: p.elev, from: from, to: to, reps: reps}
		ids[i] = id
	}
	s.logger.Debug("simulator generated climate", "locations", len(pts), "live", len(s.live))
	reply(w, strings.Join(ids, " "))
}

func (s *Server) handleModel(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	model := q.Get("model")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failModel {
		exception(w, "model %s crashed", model)
		return
	}
	if !slices.Contains(s.models, model) {
		exception(w, "unknown model %s", model)
		return
	}
	threshold := 5.0
	for _, kv := range strings.Split(strings.TrimPrefix(q.Get("Parameters"), "*"), "*") {
		if name, v, ok := strings.Cut(kv, ":"); ok && name == "LowerThreshold" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				threshold = f
			}
		}
	}

	var b strings.Builder
	for _, id := range strings.Fields(q.Get("wgout")) {
		g, ok := s.live[id]
		if !ok {
			fmt.Fprintf(&b, "Error: unknown wgout reference %s\n", id)
			break
		}
		b.WriteString("Rep,Year,DD\n")
		for rep := 0; rep < g.reps; rep++ {
			for year := g.from; year <= g.to; year++ {
				fmt.Fprintf(&b, "%d,%d,%.1f\n", rep, year, degreeDays(g, year, rep, threshold))
			}
		}
	}
	reply(w, b.String())
}

func (s *Server) handleModelList(w http.ResponseWriter, _ *http.Request) {
	reply(w, strings.Join(s.models, "\n"))
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	refs := strings.Fields(r.URL.Query().Get("ref"))
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range refs {
		delete(s.live, id)
	}
	reply(w, "Done")
}

func (s *Server) handleLoad(w http.ResponseWriter, _ *http.Request) {
	reply(w, strconv.Itoa(s.Live()))
}

func (s *Server) handleMaxMemory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	fails := s.maxFails
	s.mu.Unlock()
	if fails {
		http.Error(w, "unavailable", http.StatusInternalServerError)
		return
	}
	reply(w, strconv.Itoa(s.maxMemory))
}

// monthlyClimate is a smooth seasonal cycle that cools with latitude and elevation.
func monthlyClimate(p point, month int) (tmin, tmax, prcp float64) {
	season := -math.Cos(2 * math.Pi * float64(month-1) / 12)
	lapse := 0.0
	if !math.IsNaN(p.elev) {
		lapse = p.elev * 0.0065
	}
	mean := 25 - 0.5*math.Abs(p.lat) - lapse + 12*season
	return mean - 5, mean + 5, 60 + 20*season + math.Mod(math.Abs(p.lon), 10)
}

// degreeDays sums daily means above threshold over a synthetic year.
func degreeDays(g generated, year, rep int, threshold float64) float64 {
	p := point{g.lat, g.lon, g.elev}
	total := 0.0
	for m := 1; m <= 12; m++ {
		tmin, tmax, _ := monthlyClimate(p, m)
		mean := (tmin+tmax)/2 + 0.1*float64((year+rep)%5)
		if mean > threshold {
			total += (mean - threshold) * 30
		}
	}
	return math.Round(total*10) / 10
}

func periodShift(period string) float64 {
	start, _, ok := strings.Cut(period, "_")
	if !ok {
		return 0
	}
	y, err := strconv.Atoi(start)
	if err != nil || y <= 1981 {
		return 0
	}
	return float64(y-1981) * 0.03
}

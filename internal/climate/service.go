// Package climate coordinates calls to a BioSim server: it reuses generated climate
// through the handle cache, splits large requests into server-sized batches, and
// decodes and aggregates the replies.
package climate

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchcryptid/biosim-client/internal/adapter/biosim"
	"github.com/couchcryptid/biosim-client/internal/aggregate"
	"github.com/couchcryptid/biosim-client/internal/batch"
	"github.com/couchcryptid/biosim-client/internal/cache"
	"github.com/couchcryptid/biosim-client/internal/config"
	"github.com/couchcryptid/biosim-client/internal/decode"
	"github.com/couchcryptid/biosim-client/internal/domain"
	"github.com/couchcryptid/biosim-client/internal/observability"
	"github.com/google/uuid"
)

// Fetcher performs one GET against a server endpoint and returns the reply body.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint, query string) (string, error)
}

// ceilingShare is the share of the server's handle capacity a single request may use.
const ceilingShare = 0.05

// Batch classes, used as metric labels.
const (
	classGeneration = "generation"
	classModel      = "model"
	classNormals    = "normals"
	classRelease    = "release"
)

// Options tunes batching and the worker pool.
type Options struct {
	Workers              int
	ParallelThreshold    int
	GenerationBatch      int
	NormalsBatch         int
	ReleaseBatch         int
	MaxLocationsFallback int
}

// DefaultOptions returns the server's documented limits.
func DefaultOptions() Options {
	return Options{
		Workers:              2,
		ParallelThreshold:    20,
		GenerationBatch:      10,
		NormalsBatch:         50,
		ReleaseBatch:         200,
		MaxLocationsFallback: 1000,
	}
}

// OptionsFromConfig maps loaded configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Workers:              cfg.Workers,
		ParallelThreshold:    cfg.ParallelThreshold,
		GenerationBatch:      cfg.GenerationBatch,
		NormalsBatch:         cfg.NormalsBatch,
		ReleaseBatch:         cfg.ReleaseBatch,
		MaxLocationsFallback: cfg.MaxLocationsFallback,
	}
}

// Service is the entry point for climate requests. It owns the handle cache and the
// lazily discovered server values; Close releases every cached handle.
type Service struct {
	fetcher Fetcher
	opts    Options
	pool    batch.Pool
	handles *cache.HandleCache
	models  *cache.Lazy[[]string]
	ceiling *cache.Lazy[int]
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Service on top of fetcher.
func New(fetcher Fetcher, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	s := &Service{
		fetcher: fetcher,
		opts:    opts,
		pool:    batch.Pool{Workers: opts.Workers, Threshold: opts.ParallelThreshold},
		handles: cache.NewHandleCache(),
		logger:  logger,
		metrics: metrics,
	}
	s.models = cache.NewLazy(s.loadModels)
	s.ceiling = cache.NewLazy(s.loadCeiling)
	return s
}

// CachedHandles is the number of handles currently reusable.
func (s *Service) CachedHandles() int {
	return s.handles.Len()
}

// CheckReadiness reports whether the server answers the model list.
func (s *Service) CheckReadiness(ctx context.Context) error {
	_, err := s.models.Get(ctx)
	return err
}

// ModelList returns the models offered by the server. The list is fetched once; callers
// receive their own copy.
func (s *Service) ModelList(ctx context.Context) ([]string, error) {
	models, err := s.models.Get(ctx)
	if err != nil {
		return nil, err
	}
	return slices.Clone(models), nil
}

func (s *Service) loadModels(ctx context.Context) ([]string, error) {
	body, err := s.fetcher.Fetch(ctx, biosim.EndpointModelList, "")
	if err != nil {
		return nil, err
	}
	return decode.Lines(body), nil
}

// ServerLoad returns the number of generated climate objects held by the server.
func (s *Service) ServerLoad(ctx context.Context) (int, error) {
	body, err := s.fetcher.Fetch(ctx, biosim.EndpointLoad, "")
	if err != nil {
		return 0, err
	}
	return decode.Count(body)
}

// MaxLocations is the largest location list accepted in one call. It is derived from
// the server capacity on first use; when the server cannot report it the configured
// fallback is used for the lifetime of the Service.
func (s *Service) MaxLocations(ctx context.Context) int {
	n, err := s.ceiling.GetOrFallback(ctx, s.opts.MaxLocationsFallback)
	if err != nil {
		s.logger.Warn("server capacity unavailable, using fallback", "fallback", n, "error", err)
	}
	return n
}

func (s *Service) loadCeiling(ctx context.Context) (int, error) {
	body, err := s.fetcher.Fetch(ctx, biosim.EndpointMaxMemory, "")
	if err != nil {
		return 0, err
	}
	n, err := decode.Count(body)
	if err != nil {
		return 0, err
	}
	ceiling := int(float64(n) * ceilingShare)
	if ceiling < 1 {
		return 0, fmt.Errorf("%w: server capacity %d is too small", domain.ErrDecode, n)
	}
	return ceiling, nil
}

func (s *Service) checkLocations(ctx context.Context, locations []domain.Location) error {
	for i, l := range locations {
		if err := l.Validate(); err != nil {
			return fmt.Errorf("location %d: %w", i, err)
		}
	}
	return batch.CheckCeiling(len(locations), s.MaxLocations(ctx))
}

func (s *Service) checkModel(ctx context.Context, model string) error {
	models, err := s.models.Get(ctx)
	if err != nil {
		return err
	}
	if !slices.Contains(models, model) {
		return fmt.Errorf("%w: unknown model %q, see the model list", domain.ErrValidation, model)
	}
	return nil
}

// ModelOutput generates climate for locations, or reuses it when already generated, and
// applies the requested model. Results follow the order of locations.
//
// An ephemeral request neither reads nor fills the handle cache; its handles are
// released once the model has run, whether or not it succeeded. Release failures are
// logged and do not replace the model result.
func (s *Service) ModelOutput(ctx context.Context, req domain.ModelRequest, locations []domain.Location) ([]domain.LocationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}
	if err := s.checkLocations(ctx, locations); err != nil {
		return nil, err
	}
	if err := s.checkModel(ctx, req.Model); err != nil {
		return nil, err
	}

	logger := s.logger.With("request_id", uuid.NewString(), "model", req.Model)
	logger.Info("model output requested", "locations", len(locations), "ephemeral", req.Ephemeral)

	handles, err := s.resolve(ctx, logger, req.GenerationRequest, locations, !req.Ephemeral)
	if err != nil {
		logger.Error("climate generation failed", "error", err)
		return nil, err
	}
	if req.Ephemeral {
		defer s.releaseQuietly(ctx, logger, handles)
	}

	datasets, err := s.applyModel(ctx, req.Model, handles, req.Params)
	if err != nil {
		logger.Error("model application failed", "error", err)
		return nil, err
	}

	logger.Info("model output complete", "locations", len(locations))
	return pair(locations, datasets), nil
}

// GenerateClimate returns one handle per location, generating only those the cache does
// not already hold. New handles are cached for reuse.
func (s *Service) GenerateClimate(ctx context.Context, req domain.GenerationRequest, locations []domain.Location) ([]domain.Handle, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}
	if err := s.checkLocations(ctx, locations); err != nil {
		return nil, err
	}
	return s.resolve(ctx, s.logger, req, locations, true)
}

// ApplyModel runs model on previously generated climate. The reply holds one dataset per
// handle, in order.
func (s *Service) ApplyModel(ctx context.Context, model string, handles []domain.Handle, params domain.ParameterMap) ([]*domain.Dataset, error) {
	if err := s.checkModel(ctx, model); err != nil {
		return nil, err
	}
	return s.applyModel(ctx, model, handles, params)
}

func (s *Service) applyModel(ctx context.Context, model string, handles []domain.Handle, params domain.ParameterMap) ([]*domain.Dataset, error) {
	return batch.Sequential(ctx, handles, s.opts.GenerationBatch, func(ctx context.Context, chunk []domain.Handle) ([]*domain.Dataset, error) {
		s.metrics.BatchSize.WithLabelValues(classModel).Observe(float64(len(chunk)))
		body, err := s.fetcher.Fetch(ctx, biosim.EndpointModel, biosim.ModelQuery(model, chunk, params))
		if err != nil {
			return nil, err
		}
		return decode.Tabular(body, decode.ModelMarker, len(chunk))
	})
}

// resolve maps each location to a handle: cached ones first when useCache is set, then
// generates the rest, in parallel for large lists.
func (s *Service) resolve(ctx context.Context, logger *slog.Logger, req domain.GenerationRequest, locations []domain.Location, useCache bool) ([]domain.Handle, error) {
	handles := make([]domain.Handle, len(locations))
	var (
		todo    []domain.Location
		todoIdx []int
	)
	for i, loc := range locations {
		if useCache {
			if h, ok := s.handles.Lookup(domain.NewQuerySignature(req, loc)); ok {
				s.metrics.HandleCache.WithLabelValues("hit").Inc()
				handles[i] = h
				continue
			}
			s.metrics.HandleCache.WithLabelValues("miss").Inc()
		}
		todo = append(todo, loc)
		todoIdx = append(todoIdx, i)
	}
	if len(todo) == 0 {
		return handles, nil
	}

	logger.Debug("generating climate", "locations", len(todo), "cached", len(locations)-len(todo), "parallel", s.pool.Parallel(len(todo)))

	var (
		mu     sync.Mutex
		minted []domain.Handle
	)
	generated, err := batch.Run(ctx, s.pool, todo, s.opts.GenerationBatch, func(ctx context.Context, chunk []domain.Location) ([]domain.Handle, error) {
		s.metrics.BatchSize.WithLabelValues(classGeneration).Observe(float64(len(chunk)))
		body, err := s.fetcher.Fetch(ctx, biosim.EndpointGenerate, biosim.GenerationQuery(req, chunk))
		if err != nil {
			return nil, err
		}
		hs, err := decode.Handles(body, len(chunk))
		mu.Lock()
		minted = append(minted, hs...)
		mu.Unlock()
		if err != nil {
			return nil, err
		}
		return hs, nil
	})
	s.metrics.HandlesGenerated.Add(float64(len(minted)))
	if err != nil {
		// Chunks that did succeed hold server memory nobody will reference.
		s.releaseQuietly(ctx, logger, minted)
		return nil, err
	}

	var duplicates []domain.Handle
	for k, h := range generated {
		i := todoIdx[k]
		handles[i] = h
		if !useCache {
			continue
		}
		sig := domain.NewQuerySignature(req, locations[i])
		if prev, ok := s.handles.Lookup(sig); ok {
			// Same location listed twice in this request.
			handles[i] = prev
			duplicates = append(duplicates, h)
			continue
		}
		s.handles.Insert(sig, h)
	}
	s.metrics.CachedHandles.Set(float64(s.handles.Len()))
	if len(duplicates) > 0 {
		s.releaseQuietly(ctx, logger, duplicates)
	}
	return handles, nil
}

// ReleaseHandles frees handles on the server in batches and drops them from the cache.
func (s *Service) ReleaseHandles(ctx context.Context, handles []domain.Handle) error {
	err := s.release(ctx, handles, true)
	s.metrics.CachedHandles.Set(float64(s.handles.Len()))
	return err
}

func (s *Service) release(ctx context.Context, handles []domain.Handle, evict bool) error {
	_, err := batch.Sequential(ctx, handles, s.opts.ReleaseBatch, func(ctx context.Context, chunk []domain.Handle) ([]struct{}, error) {
		s.metrics.BatchSize.WithLabelValues(classRelease).Observe(float64(len(chunk)))
		if _, err := s.fetcher.Fetch(ctx, biosim.EndpointRelease, biosim.ReleaseQuery(chunk)); err != nil {
			return nil, err
		}
		if evict {
			for _, h := range chunk {
				s.handles.EvictByHandle(h)
			}
		}
		s.metrics.HandlesReleased.Add(float64(len(chunk)))
		return make([]struct{}, len(chunk)), nil
	})
	return err
}

// releaseQuietly is the best-effort release of handles that were never cached. It
// survives cancellation of ctx and only logs failures.
func (s *Service) releaseQuietly(ctx context.Context, logger *slog.Logger, handles []domain.Handle) {
	if len(handles) == 0 {
		return
	}
	if err := s.release(context.WithoutCancel(ctx), handles, false); err != nil {
		s.metrics.ReleaseErrors.Inc()
		logger.Warn("handle release failed", "handles", len(handles), "error", err)
	}
}

// Close releases every cached handle. The Service remains usable afterwards with an
// empty cache.
func (s *Service) Close(ctx context.Context) error {
	handles := s.handles.Handles()
	if len(handles) == 0 {
		return nil
	}
	s.logger.Info("releasing cached handles", "handles", len(handles))
	if err := s.ReleaseHandles(ctx, handles); err != nil {
		return fmt.Errorf("release cached handles: %w", err)
	}
	return nil
}

// Normals retrieves climate normals for locations. With no months in req the result
// holds one record per month limited to the month and variable columns; otherwise each
// location is reduced to a single record over the requested months.
func (s *Service) Normals(ctx context.Context, req domain.NormalsRequest, locations []domain.Location) ([]domain.LocationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(locations) == 0 {
		return nil, nil
	}
	if err := s.checkLocations(ctx, locations); err != nil {
		return nil, err
	}

	logger := s.logger.With("request_id", uuid.NewString(), "period", req.Period)
	logger.Info("normals requested", "locations", len(locations), "months", len(req.Months))

	monthly, err := batch.Sequential(ctx, locations, s.opts.NormalsBatch, func(ctx context.Context, chunk []domain.Location) ([]*domain.Dataset, error) {
		s.metrics.BatchSize.WithLabelValues(classNormals).Observe(float64(len(chunk)))
		body, err := s.fetcher.Fetch(ctx, biosim.EndpointNormals, biosim.NormalsQuery(req, chunk))
		if err != nil {
			return nil, err
		}
		return decode.Tabular(body, decode.NormalsMarker, len(chunk))
	})
	if err != nil {
		logger.Error("normals retrieval failed", "error", err)
		return nil, err
	}

	out := make([]*domain.Dataset, len(monthly))
	for i, ds := range monthly {
		if len(req.Months) == 0 {
			out[i] = monthlyView(ds)
			continue
		}
		if out[i], err = aggregate.Period(ds, req.Months); err != nil {
			return nil, fmt.Errorf("location %d: %w", i, err)
		}
	}
	return pair(locations, out), nil
}

// MonthlyNormals returns one record per month for each location.
func (s *Service) MonthlyNormals(ctx context.Context, req domain.NormalsRequest, locations []domain.Location) ([]domain.LocationResult, error) {
	req.Months = nil
	return s.Normals(ctx, req, locations)
}

// AnnualNormals returns one record per location aggregated over the whole year.
func (s *Service) AnnualNormals(ctx context.Context, req domain.NormalsRequest, locations []domain.Location) ([]domain.LocationResult, error) {
	req.Months = domain.AllMonths
	return s.Normals(ctx, req, locations)
}

func monthlyView(ds *domain.Dataset) *domain.Dataset {
	month := ds.ColumnIndexFold(aggregate.MonthColumn)
	return ds.Project(func(j int, c domain.Column) bool {
		if j == month {
			return true
		}
		_, ok := domain.VariableByField(c.Name)
		return ok
	})
}

func pair(locations []domain.Location, datasets []*domain.Dataset) []domain.LocationResult {
	out := make([]domain.LocationResult, len(locations))
	for i, l := range locations {
		out[i] = domain.LocationResult{Location: l, Data: datasets[i]}
	}
	return out
}

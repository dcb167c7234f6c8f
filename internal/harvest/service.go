package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castleryder/dividend-harvest/internal/contracts"
	"github.com/castleryder/dividend-harvest/internal/ingest"
	"github.com/castleryder/dividend-harvest/internal/snapshot"
	"github.com/castleryder/dividend-harvest/pkg/logger"
)

// ErrNoSnapshot is returned by Latest before the first run
var ErrNoSnapshot = errors.New("no harvest snapshot yet")

// TickerSource lists the tickers a per-ticker provider should scan
type TickerSource interface {
	Name() string
	Tickers(ctx context.Context) ([]string, error)
}

// Sink receives every freshly computed result set. Failures are logged
// and never fail the run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, rs *contracts.ResultSet) error
}

// Options tune the service
type Options struct {
	TTL         time.Duration    // result set staleness bound
	UniverseTTL time.Duration    // qualified universe staleness bound
	Now         func() time.Time // clock, UTC is applied on top
}

// Result is a result set plus the exact bytes persisted for it
type Result struct {
	ResultSet *contracts.ResultSet
	Raw       []byte
	FromCache bool
	Age       time.Duration
}

// Service wraps the pipeline with the staleness-aware file cache.
// Runs are serialized: one run owns the cache file at a time.
// ⭐ SSOT: the only writer of the harvest snapshot
type Service struct {
	source   ingest.Source
	tickers  TickerSource
	pipeline *Pipeline
	store    *snapshot.Store
	sinks    []Sink
	opts     Options
	logger   *logger.Logger

	mu sync.Mutex
}

// NewService creates a harvest service. tickers may be nil when the
// source discovers its own universe.
func NewService(source ingest.Source, tickers TickerSource, pipeline *Pipeline, store *snapshot.Store, opts Options, log *logger.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		source:   source,
		tickers:  tickers,
		pipeline: pipeline,
		store:    store,
		opts:     opts,
		logger:   log,
	}
}

// AddSink registers a sink notified after each fresh run
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Provider returns the upstream source name
func (s *Service) Provider() string {
	return s.source.Name()
}

func (s *Service) now() time.Time {
	return s.opts.Now().UTC()
}

// GetDividendHarvest returns the persisted result set when it is younger
// than the TTL, byte-for-byte as written. Otherwise it runs the pipeline,
// persists the new result set and returns it.
func (s *Service) GetDividendHarvest(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.loadCached(); ok {
		if snapshot.IsFresh(cached.ModTime(), s.opts.TTL, s.now()) {
			s.logger.WithFields(map[string]interface{}{
				"run_id":  cached.ResultSet.RunID,
				"age":     cached.Age.String(),
				"records": cached.ResultSet.Len(),
			}).Info("Serving cached harvest")
			return cached.Result, nil
		}
		s.logger.WithField("age", cached.Age.String()).Info("Cached harvest is stale")
	}

	return s.run(ctx)
}

// Refresh runs the pipeline regardless of cache age
func (s *Service) Refresh(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run(ctx)
}

// Latest returns the persisted result set whatever its age, without fetching
func (s *Service) Latest(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, ok := s.loadCached()
	if !ok {
		return nil, ErrNoSnapshot
	}
	return cached.Result, nil
}

type cachedResult struct {
	*Result
	modTime time.Time
}

func (c *cachedResult) ModTime() time.Time { return c.modTime }

// loadCached treats a missing or undecodable file as a miss
func (s *Service) loadCached() (*cachedResult, bool) {
	var rs contracts.ResultSet
	entry, err := s.store.ReadJSON(snapshot.HarvestFile, &rs)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			s.logger.WithError(err).Warn("Ignoring unreadable harvest cache")
		}
		return nil, false
	}
	return &cachedResult{
		Result: &Result{
			ResultSet: &rs,
			Raw:       entry.Data,
			FromCache: true,
			Age:       entry.Age(s.now()),
		},
		modTime: entry.ModTime,
	}, true
}

// run executes one full pipeline pass. Caller holds s.mu.
func (s *Service) run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	evalDate := contracts.NewDate(s.now())
	log := s.logger.WithFields(map[string]interface{}{
		"run_id":   runID,
		"provider": s.source.Name(),
		"date":     evalDate.String(),
	})

	tickers, fullScan, err := s.scanTickers(ctx)
	if err != nil {
		return nil, err
	}

	outcome, err := s.scan(ctx, tickers, evalDate, log)
	if err != nil {
		return nil, err
	}

	rs := &contracts.ResultSet{
		RunID:          runID,
		Provider:       s.source.Name(),
		EvaluationDate: evalDate,
		WrittenAt:      s.now(),
		Scanned:        outcome.Scanned,
		Excluded:       outcome.Excluded,
		Records:        outcome.Records,
	}

	data, err := s.store.WriteJSON(snapshot.HarvestFile, rs)
	if err != nil {
		return nil, fmt.Errorf("failed to persist harvest: %w", err)
	}
	if _, err := s.store.WriteJSON(snapshot.LatestFile, rs.Records); err != nil {
		log.WithError(err).Warn("Failed to write latest.json")
	}

	if fullScan {
		s.saveUniverse(outcome.Qualified, log)
	}

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, rs); err != nil {
			log.WithField("sink", sink.Name()).WithError(err).Warn("Sink publish failed")
		}
	}

	log.WithFields(map[string]interface{}{
		"scanned":   rs.Scanned,
		"qualified": rs.Len(),
		"duration":  time.Since(start).String(),
	}).Info("Harvest run completed")

	return &Result{ResultSet: rs, Raw: data}, nil
}

// scanTickers picks the tickers for a run. For per-ticker sources a fresh
// qualified universe narrows the scan; fullScan reports whether the whole
// configured universe is being scanned.
func (s *Service) scanTickers(ctx context.Context) ([]string, bool, error) {
	if !s.source.NeedsTickers() {
		return nil, true, nil
	}

	if u, ok := s.loadUniverse(); ok && len(u.Tickers) > 0 {
		s.logger.WithField("tickers", len(u.Tickers)).Info("Scanning cached qualified universe")
		return u.Tickers, false, nil
	}

	tickers, err := s.allTickers(ctx)
	return tickers, true, err
}

func (s *Service) allTickers(ctx context.Context) ([]string, error) {
	if s.tickers == nil {
		return nil, fmt.Errorf("provider %s needs a ticker universe but none is configured", s.source.Name())
	}
	tickers, err := s.tickers.Tickers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s universe: %w", s.tickers.Name(), err)
	}
	return tickers, nil
}

// scan fetches raw records and runs the pipeline over them. Per-ticker
// failures are dropped; a fetch that yields nothing at all is an error so a
// dead upstream never overwrites a good cache with an empty one.
func (s *Service) scan(ctx context.Context, tickers []string, evalDate contracts.Date, log *logger.Logger) (*Outcome, error) {
	results, err := s.source.FetchRaw(ctx, tickers)
	if err != nil {
		return nil, fmt.Errorf("fetch from %s failed: %w", s.source.Name(), err)
	}

	raws, failures := ingest.Split(results)
	if len(failures) > 0 {
		log.WithFields(map[string]interface{}{
			"failed":  len(failures),
			"fetched": len(raws),
		}).Warn("Some tickers were dropped from this run")
	}
	if len(raws) == 0 && len(failures) > 0 {
		return nil, fmt.Errorf("fetch from %s failed for all %d tickers", s.source.Name(), len(failures))
	}

	return s.pipeline.Run(ctx, raws, s.source.Provenance(), evalDate), nil
}

// RefreshUniverse rescans the full configured universe and rewrites the
// qualified universe cache. The harvest snapshot is left untouched.
func (s *Service) RefreshUniverse(ctx context.Context) (*contracts.Universe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var tickers []string
	if s.source.NeedsTickers() {
		var err error
		if tickers, err = s.allTickers(ctx); err != nil {
			return nil, err
		}
	}

	evalDate := contracts.NewDate(s.now())
	log := s.logger.WithField("provider", s.source.Name())
	outcome, err := s.scan(ctx, tickers, evalDate, log)
	if err != nil {
		return nil, err
	}
	return s.saveUniverse(outcome.Qualified, log), nil
}

// Universe returns the cached qualified universe whatever its age
func (s *Service) Universe() (*contracts.Universe, error) {
	var u contracts.Universe
	if _, err := s.store.ReadJSON(snapshot.UniverseFile, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) loadUniverse() (*contracts.Universe, bool) {
	var u contracts.Universe
	entry, err := s.store.ReadJSON(snapshot.UniverseFile, &u)
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotFound) {
			s.logger.WithError(err).Warn("Ignoring unreadable universe cache")
		}
		return nil, false
	}
	if !snapshot.IsFresh(entry.ModTime, s.opts.UniverseTTL, s.now()) {
		return nil, false
	}
	return &u, true
}

func (s *Service) saveUniverse(qualified []string, log *logger.Logger) *contracts.Universe {
	source := s.source.Name()
	if s.tickers != nil {
		source = s.tickers.Name()
	}
	u := &contracts.Universe{
		Source:    source,
		Tickers:   qualified,
		WrittenAt: s.now(),
	}
	if _, err := s.store.WriteJSON(snapshot.UniverseFile, u); err != nil {
		log.WithError(err).Warn("Failed to write qualified universe")
		return u
	}
	log.WithField("qualified", len(qualified)).Info("Qualified universe saved")
	return u
}

package subway

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/telemetry"
)

// DefaultWindow is the row window used when a line's size is unknown.
// The upstream API serves at most 1000 rows per call.
const DefaultWindow = 1000

// StationQuery selects rows from the station directory.
// Empty filters match everything.
type StationQuery struct {
	Start       int
	End         int
	StationCode string
	StationName string
	Line        string
}

func (q StationQuery) cacheKey() string {
	return fmt.Sprintf("stations|%d|%d|%s|%s|%s", q.Start, q.End, q.StationCode, q.StationName, q.Line)
}

// DistanceQuery selects rows from the inter-station distance table.
type DistanceQuery struct {
	Start       int
	End         int
	Line        string
	StationName string
}

func (q DistanceQuery) cacheKey() string {
	return fmt.Sprintf("distances|%d|%d|%s|%s", q.Start, q.End, q.Line, q.StationName)
}

// Provider defines the interface for station directory data providers.
type Provider interface {
	// GetStations fetches one window of the station directory.
	GetStations(ctx context.Context, q StationQuery) (*Envelope[Station], error)

	// GetDistances fetches one window of the distance table.
	GetDistances(ctx context.Context, q DistanceQuery) (*Envelope[Distance], error)

	// Name returns the provider name for logging.
	Name() string
}

// ServiceConfig holds configuration for the subway service.
type ServiceConfig struct {
	// Provider is the station data provider.
	Provider Provider

	// Logger for service operations.
	Logger zerolog.Logger

	// CacheTTL is how long to cache successful responses (default: 24 hours).
	// Directory and distance data change only when lines open.
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached responses per kind (default: 512).
	CacheSize int

	// Metrics records cache hits and misses. Optional.
	Metrics *telemetry.ProviderMetrics
}

// Service provides station directory data with caching.
// Only successful envelopes are cached; failures always reach the caller.
type Service struct {
	provider Provider
	logger   zerolog.Logger
	metrics  *telemetry.ProviderMetrics
	cacheTTL time.Duration

	stations  gcache.Cache
	distances gcache.Cache
}

// NewService creates a new subway service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 24 * time.Hour
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = 512
	}

	return &Service{
		provider:  cfg.Provider,
		logger:    cfg.Logger,
		metrics:   cfg.Metrics,
		cacheTTL:  cacheTTL,
		stations:  gcache.New(cacheSize).LRU().Expiration(cacheTTL).Build(),
		distances: gcache.New(cacheSize).LRU().Expiration(cacheTTL).Build(),
	}
}

// ProviderName returns the name of the underlying provider.
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// GetStations returns one window of the station directory. The envelope is
// a copy of the cached one, so callers may reorder or edit its records.
func (s *Service) GetStations(ctx context.Context, q StationQuery) (*Envelope[Station], error) {
	key := q.cacheKey()
	if v, err := s.stations.Get(key); err == nil {
		if env, ok := v.(*Envelope[Station]); ok {
			s.metrics.RecordCacheHit(s.provider.Name(), "stations")
			return env.Clone(), nil
		}
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), "stations")

	env, err := s.provider.GetStations(ctx, q)
	if err != nil {
		s.logFailure(err, "stations", key)
		return nil, err
	}

	if err := s.stations.Set(key, env); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache stations")
	}

	return env.Clone(), nil
}

// GetDistances returns one window of the distance table. Like GetStations it
// returns a copy of the cached envelope.
func (s *Service) GetDistances(ctx context.Context, q DistanceQuery) (*Envelope[Distance], error) {
	key := q.cacheKey()
	if v, err := s.distances.Get(key); err == nil {
		if env, ok := v.(*Envelope[Distance]); ok {
			s.metrics.RecordCacheHit(s.provider.Name(), "distances")
			return env.Clone(), nil
		}
	}
	s.metrics.RecordCacheMiss(s.provider.Name(), "distances")

	env, err := s.provider.GetDistances(ctx, q)
	if err != nil {
		s.logFailure(err, "distances", key)
		return nil, err
	}

	if err := s.distances.Set(key, env); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to cache distances")
	}

	return env.Clone(), nil
}

// StationsInLineOrder returns every station of a line sorted by ordering code.
// The returned slice is a copy and may be modified by the caller.
func (s *Service) StationsInLineOrder(ctx context.Context, lineID string) ([]Station, error) {
	end := DefaultWindow
	if line, ok := LookupLine(lineID); ok {
		lineID = line.ID
		end = line.MaxStations
	}

	env, err := s.GetStations(ctx, StationQuery{Start: 1, End: end, Line: lineID})
	if err != nil {
		return nil, err
	}

	if env.Records == nil {
		return []Station{}, nil
	}
	SortByOrderingCode(env.Records)

	return env.Records, nil
}

// Invalidate drops every cached response.
func (s *Service) Invalidate() {
	s.stations.Purge()
	s.distances.Purge()
}

// CachedEntries returns the number of live cached responses.
func (s *Service) CachedEntries() int {
	return s.stations.Len(true) + s.distances.Len(true)
}

func (s *Service) logFailure(err error, kind, key string) {
	switch {
	case IsDomainError(err):
		s.logger.Warn().
			Str("provider", s.provider.Name()).
			Str("kind", kind).
			Str("key", key).
			Str("code", ResultCode(err)).
			Msg("upstream reported a result code")
	default:
		s.logger.Error().
			Err(err).
			Str("provider", s.provider.Name()).
			Str("kind", kind).
			Str("key", key).
			Msg("failed to fetch from provider")
	}
}

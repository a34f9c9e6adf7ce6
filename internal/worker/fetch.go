package worker

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/subway"
)

// StationFetcher is satisfied by subway.Service and by provider clients.
type StationFetcher interface {
	GetStations(ctx context.Context, q subway.StationQuery) (*subway.Envelope[subway.Station], error)
	GetDistances(ctx context.Context, q subway.DistanceQuery) (*subway.Envelope[subway.Distance], error)
}

// FetchJob fetches the station directory and distance tables of its targets.
type FetchJob struct {
	config  FetchConfig
	logger  zerolog.Logger
	fetcher StationFetcher

	metrics *FetchMetrics
}

// FetchMetrics tracks fetch job statistics.
type FetchMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalRuns         int64
	SuccessfulTargets int64
	FailedTargets     int64
	StationFetches    int64
	DistanceFetches   int64
	RecordsFetched    int64

	// Timings
	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// FetchJobConfig holds configuration for creating a FetchJob.
type FetchJobConfig struct {
	Config  FetchConfig
	Logger  zerolog.Logger
	Fetcher StationFetcher
}

// NewFetchJob creates a new fetch job.
func NewFetchJob(cfg FetchJobConfig) *FetchJob {
	config := cfg.Config
	if len(config.Targets) == 0 {
		config = DefaultFetchConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &FetchJob{
		config:  config,
		logger:  cfg.Logger,
		fetcher: cfg.Fetcher,
		metrics: &FetchMetrics{},
	}
}

// Config returns the job configuration.
func (j *FetchJob) Config() FetchConfig {
	return j.config
}

// FetchResult contains the result of one run.
type FetchResult struct {
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	TotalTargets int
	Successful   int
	Failed       int
	NoData       int
	Records      int
	Errors       []FetchError
}

// FetchError describes one failed fetch.
type FetchError struct {
	Line  string
	Kind  string
	Code  string
	Error string
}

// Run fetches every configured target.
func (j *FetchJob) Run(ctx context.Context) *FetchResult {
	return j.RunConfig(ctx, j.config)
}

// RunConfig fetches the targets of cfg using this job's fetcher.
func (j *FetchJob) RunConfig(ctx context.Context, cfg FetchConfig) *FetchResult {
	startTime := time.Now()
	result := &FetchResult{
		StartTime:    startTime,
		TotalTargets: cfg.TotalTargets(),
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	j.logger.Info().
		Int("total_targets", result.TotalTargets).
		Int("concurrency", concurrency).
		Msg("starting station fetch job")

	targets := make([]FetchTarget, len(cfg.Targets))
	copy(targets, cfg.Targets)
	sort.SliceStable(targets, func(a, b int) bool { return targets[a].Priority < targets[b].Priority })

	targetsChan := make(chan FetchTarget, len(targets))
	resultsChan := make(chan targetResult, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.fetchWorker(ctx, cfg, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for tr := range resultsChan {
		switch {
		case len(tr.errors) > 0:
			result.Failed++
		case tr.noData:
			result.NoData++
		default:
			result.Successful++
		}
		result.Records += tr.records
		result.Errors = append(result.Errors, tr.errors...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("no_data", result.NoData).
		Int("records", result.Records).
		Msg("station fetch job completed")

	return result
}

type targetResult struct {
	records int
	noData  bool
	errors  []FetchError
}

func (j *FetchJob) fetchWorker(ctx context.Context, cfg FetchConfig, targets <-chan FetchTarget, results chan<- targetResult) {
	for target := range targets {
		select {
		case <-ctx.Done():
			results <- targetResult{errors: []FetchError{{Line: target.Line, Kind: "cancelled", Error: ctx.Err().Error()}}}
		default:
			results <- j.fetchTarget(ctx, cfg, target)
		}
	}
}

func (j *FetchJob) fetchTarget(ctx context.Context, cfg FetchConfig, target FetchTarget) targetResult {
	var result targetResult

	targetCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	window := target.Window
	if window <= 0 {
		window = subway.DefaultWindow
	}

	if cfg.FetchStations && j.fetcher != nil {
		env, err := j.fetcher.GetStations(targetCtx, subway.StationQuery{Start: 1, End: window, Line: target.Line})
		j.record(&result, target.Line, "stations", env.Len(), err)
		if err == nil {
			atomic.AddInt64(&j.metrics.StationFetches, 1)
		}
	}

	if cfg.FetchDistances && target.DistanceLine != "" && j.fetcher != nil {
		env, err := j.fetcher.GetDistances(targetCtx, subway.DistanceQuery{Start: 1, End: window, Line: target.DistanceLine})
		j.record(&result, target.Line, "distances", env.Len(), err)
		if err == nil {
			atomic.AddInt64(&j.metrics.DistanceFetches, 1)
		}
	}

	return result
}

func (j *FetchJob) record(result *targetResult, line, kind string, records int, err error) {
	if err == nil {
		result.records += records
		j.logger.Debug().Str("line", line).Str("kind", kind).Int("records", records).Msg("fetched")
		return
	}
	if subway.ResultCode(err) == subway.NoDataCode {
		result.noData = true
		return
	}
	result.errors = append(result.errors, FetchError{
		Line:  line,
		Kind:  kind,
		Code:  subway.ResultCode(err),
		Error: err.Error(),
	})
}

func (j *FetchJob) updateMetrics(result *FetchResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulTargets += int64(result.Successful)
	j.metrics.FailedTargets += int64(result.Failed)
	j.metrics.RecordsFetched += int64(result.Records)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *FetchJob) GetMetrics() FetchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return FetchMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		SuccessfulTargets: j.metrics.SuccessfulTargets,
		FailedTargets:     j.metrics.FailedTargets,
		StationFetches:    atomic.LoadInt64(&j.metrics.StationFetches),
		DistanceFetches:   atomic.LoadInt64(&j.metrics.DistanceFetches),
		RecordsFetched:    j.metrics.RecordsFetched,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (j *FetchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_targets": m.SuccessfulTargets,
		"failed_targets":     m.FailedTargets,
		"station_fetches":    m.StationFetches,
		"distance_fetches":   m.DistanceFetches,
		"records_fetched":    m.RecordsFetched,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}

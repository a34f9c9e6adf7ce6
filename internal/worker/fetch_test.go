package worker_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulmetro/stationinfo/internal/subway"
	"github.com/seoulmetro/stationinfo/internal/worker"
)

// fakeFetcher records queries and fails for the lines in errs.
type fakeFetcher struct {
	mu        sync.Mutex
	stations  []subway.StationQuery
	distances []subway.DistanceQuery
	errs      map[string]error

	invalidated int
}

func (f *fakeFetcher) GetStations(_ context.Context, q subway.StationQuery) (*subway.Envelope[subway.Station], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stations = append(f.stations, q)
	if err := f.errs[q.Line]; err != nil {
		return nil, err
	}
	return &subway.Envelope[subway.Station]{Records: make([]subway.Station, 2), Code: subway.SuccessCode}, nil
}

func (f *fakeFetcher) GetDistances(_ context.Context, q subway.DistanceQuery) (*subway.Envelope[subway.Distance], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distances = append(f.distances, q)
	if err := f.errs[q.Line]; err != nil {
		return nil, err
	}
	return &subway.Envelope[subway.Distance]{Records: make([]subway.Distance, 3), Code: subway.SuccessCode}, nil
}

func (f *fakeFetcher) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

func (f *fakeFetcher) stationCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stations)
}

func TestDefaultFetchConfig(t *testing.T) {
	cfg := worker.DefaultFetchConfig()

	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.FetchStations)
	assert.True(t, cfg.FetchDistances)
	assert.Equal(t, len(subway.Lines()), cfg.TotalTargets())
}

func TestDefaultFetchTargets(t *testing.T) {
	targets := worker.DefaultFetchTargets()

	var airport *worker.FetchTarget
	for i := range targets {
		if targets[i].Line == "공항철도" {
			airport = &targets[i]
			break
		}
	}
	require.NotNil(t, airport, "airport railroad should be a target")
	assert.Equal(t, 14, airport.Window)
	assert.Empty(t, airport.DistanceLine)
	assert.Equal(t, 2, airport.Priority)

	assert.Equal(t, "1", targets[0].DistanceLine)
	assert.Equal(t, 1, targets[0].Priority)
}

func TestFetchConfig_WithTargets(t *testing.T) {
	cfg := worker.DefaultFetchConfig().WithTargets([]string{"7", "우이신설선"})

	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, worker.FetchTarget{Line: "07호선", DistanceLine: "7", Window: 53, Priority: 1}, cfg.Targets[0])
	assert.Equal(t, "우이신설선", cfg.Targets[1].Line)
	assert.Equal(t, subway.DefaultWindow, cfg.Targets[1].Window)

	assert.Equal(t, worker.DefaultFetchConfig().TotalTargets(), worker.DefaultFetchConfig().WithTargets(nil).TotalTargets())
}

func TestFetchJob_Run(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config: worker.FetchConfig{
			Targets: []worker.FetchTarget{
				{Line: "공항철도", Window: 14, Priority: 2},
				{Line: "07호선", DistanceLine: "7", Window: 53, Priority: 1},
			},
			FetchStations:  true,
			FetchDistances: true,
		},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.TotalTargets)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, 2+3+2, result.Records)

	// sequential by default, higher priority first
	require.Len(t, fetcher.stations, 2)
	assert.Equal(t, subway.StationQuery{Start: 1, End: 53, Line: "07호선"}, fetcher.stations[0])
	assert.Equal(t, subway.StationQuery{Start: 1, End: 14, Line: "공항철도"}, fetcher.stations[1])
	require.Len(t, fetcher.distances, 1)
	assert.Equal(t, subway.DistanceQuery{Start: 1, End: 53, Line: "7"}, fetcher.distances[0])
}

func TestFetchJob_Run_Failures(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"01호선": &subway.Error{Code: "NETWORK", Err: subway.ErrTransport},
		"경의선":  &subway.Error{Code: subway.NoDataCode, Err: subway.ErrDomain},
	}}
	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config: worker.FetchConfig{
			Targets: []worker.FetchTarget{
				{Line: "01호선", Window: 102},
				{Line: "경의선", Window: 57},
				{Line: "공항철도", Window: 14},
			},
			FetchStations: true,
		},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.NoData)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "01호선", result.Errors[0].Line)
	assert.Equal(t, "stations", result.Errors[0].Kind)
	assert.Equal(t, "NETWORK", result.Errors[0].Code)
}

func TestFetchJob_Run_NoFetcher(t *testing.T) {
	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config: worker.FetchConfig{
			Targets:       []worker.FetchTarget{{Line: "공항철도", Window: 14}},
			Timeout:       time.Second,
			FetchStations: true,
		},
		Logger: zerolog.Nop(),
	})

	result := job.Run(context.Background())

	assert.NotNil(t, result)
	assert.Equal(t, 1, result.TotalTargets)
	assert.Equal(t, 1, result.Successful)
	assert.Greater(t, result.Duration, time.Duration(0))
}

func TestFetchJob_Run_Cancelled(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config: worker.FetchConfig{
			Targets:       []worker.FetchTarget{{Line: "공항철도", Window: 14}},
			FetchStations: true,
		},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := job.Run(ctx)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, "cancelled", result.Errors[0].Kind)
	assert.Empty(t, fetcher.stations)
}

func TestFetchJob_GetMetrics(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config: worker.FetchConfig{
			Targets:        []worker.FetchTarget{{Line: "07호선", DistanceLine: "7", Window: 53}},
			FetchStations:  true,
			FetchDistances: true,
		},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	job.Run(context.Background())
	job.Run(context.Background())

	m := job.GetMetrics()
	assert.Equal(t, int64(2), m.TotalRuns)
	assert.Equal(t, int64(2), m.SuccessfulTargets)
	assert.Equal(t, int64(2), m.StationFetches)
	assert.Equal(t, int64(2), m.DistanceFetches)
	assert.Equal(t, int64(10), m.RecordsFetched)
	assert.False(t, m.LastRunAt.IsZero())

	snapshot := job.MetricsSnapshot()
	assert.Equal(t, int64(2), snapshot["total_runs"])
	assert.Contains(t, snapshot, "last_run_duration")
}

func TestFetchJob_RunEvery(t *testing.T) {
	fetcher := &fakeFetcher{}
	job := worker.NewFetchJob(worker.FetchJobConfig{
		Config: worker.FetchConfig{
			Targets:       []worker.FetchTarget{{Line: "공항철도", Window: 14}},
			FetchStations: true,
		},
		Logger:  zerolog.Nop(),
		Fetcher: fetcher,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.RunEvery(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return fetcher.stationCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunEvery did not stop after cancel")
	}
}

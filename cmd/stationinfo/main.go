// Package main provides a command that fetches one station directory window
// and one distance table window and logs every record.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/config"
	"github.com/seoulmetro/stationinfo/internal/subway"
	"github.com/seoulmetro/stationinfo/internal/subway/seoul"
)

// Version is set at compile time via ldflags.
var Version = "dev"

// Exit codes.
const (
	exitOK     = 0
	exitConfig = 2
	exitFailed = 1
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, out io.Writer) int {
	flags := flag.NewFlagSet("stationinfo", flag.ContinueOnError)
	flags.SetOutput(out)
	var (
		line         = flags.String("line", "공항철도", "line to list stations for")
		start        = flags.Int("start", 1, "first station row")
		end          = flags.Int("end", 400, "last station row")
		distanceLine = flags.String("distance-line", "7", "line to list distances for (empty to skip)")
		distanceEnd  = flags.Int("distance-end", 100, "last distance row")
		baseURL      = flags.String("base-url", "", "override the API base URL")
		timeout      = flags.Duration("timeout", 0, "override the request timeout")
	)
	if err := flags.Parse(args); err != nil {
		return exitConfig
	}

	cfg, err := config.Load()
	if err != nil {
		zerolog.New(out).Error().Err(err).Msg("failed to load configuration")
		return exitConfig
	}
	if *baseURL != "" {
		cfg.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.HTTPTimeout = *timeout
	}

	log := cfg.Logger(out, "stationinfo", Version)

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return exitConfig
	}

	client, err := seoul.NewClient(seoul.ClientConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Format:     cfg.Format,
		Timeout:    cfg.HTTPTimeout,
		Logger:     log,
		LogRecords: true,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to create client")
		return exitConfig
	}

	ctx, cancel := context.WithTimeout(ctx, 2*cfg.HTTPTimeout+5*time.Second)
	defer cancel()

	failed := false

	stations, err := client.GetStations(ctx, subway.StationQuery{Start: *start, End: *end, Line: *line})
	failed = report(log, "stations", stations.Len(), err) || failed

	if *distanceLine != "" {
		distances, err := client.GetDistances(ctx, subway.DistanceQuery{Start: 1, End: *distanceEnd, Line: *distanceLine})
		failed = report(log, "distances", distances.Len(), err) || failed
	}

	if failed {
		return exitFailed
	}
	return exitOK
}

// report logs the outcome of one fetch and returns true when it failed.
// Domain errors are reported but do not fail the run.
func report(log zerolog.Logger, kind string, records int, err error) bool {
	switch {
	case err == nil:
		log.Info().Str("kind", kind).Int("records", records).Msg("fetch complete")
		return false
	case subway.IsDomainError(err):
		log.Warn().Err(err).Str("kind", kind).Str("code", subway.ResultCode(err)).Msg("upstream returned no usable data")
		return false
	default:
		log.Error().Err(err).Str("kind", kind).Msg("fetch failed")
		return true
	}
}

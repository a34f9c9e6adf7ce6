package seoul

import (
	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/subway"
)

// LogStations writes one info line per station.
func LogStations(logger zerolog.Logger, stations []subway.Station) {
	for i, s := range stations {
		logger.Info().
			Int("index", i).
			Str("station_code", s.Code).
			Str("ordering_code", s.OrderingCode).
			Str("name", s.Name).
			Str("name_en", s.NameEnglish).
			Str("name_zh", s.NameChinese).
			Str("name_ja", s.NameJapanese).
			Str("line", s.Line).
			Msg("station")
	}
}

// LogDistances writes one info line per distance entry. The first entry is
// the line's reference station and has no meaningful elapsed time.
func LogDistances(logger zerolog.Logger, distances []subway.Distance) {
	for i, d := range distances {
		event := logger.Info().Int("index", i)
		if i == 0 {
			event = event.Bool("reference_station", true)
		}
		event.
			Str("line", d.Line).
			Str("station", d.StationName).
			Str("elapsed", d.ElapsedTime).
			Float64("segment_km", d.SegmentKm).
			Float64("cumulative_km", d.CumulativeKm).
			Msg("station distance")
	}
}

package seoul

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/seoulmetro/stationinfo/internal/subway"
)

// emptyFilter stands in for an unset filter. The upstream API rejects empty
// path segments but reads a single space as "no filter".
const emptyFilter = " "

// Query is one request's row window and filter values.
// Start and End form a 1-based inclusive window and are passed through as is.
type Query struct {
	Start int
	End   int

	StationCode string
	StationName string
	LineNumber  string
}

// Value returns the query's value for a filter field.
func (q Query) Value(f Filter) string {
	switch f {
	case FilterStationCode:
		return q.StationCode
	case FilterStationName:
		return q.StationName
	case FilterLineNumber:
		return q.LineNumber
	default:
		return ""
	}
}

// BuildURL assembles the request URL
//
//	{base}/{key}/{format}/{endpoint}/{start}/{end}/{filter1}/.../{filterN}/
//
// with filters in the endpoint's order, each percent-encoded as a path segment.
func BuildURL(baseURL, apiKey, format string, ep Endpoint, q Query) (string, error) {
	if !ep.supported() {
		return "", &subway.Error{
			Provider: ProviderName,
			Endpoint: ep.name,
			Code:     "UNKNOWN_ENDPOINT",
			Message:  "endpoint is not supported",
			Err:      subway.ErrUnknownEndpoint,
		}
	}

	segments := make([]string, 0, 5+len(ep.filters))
	segments = append(segments,
		apiKey,
		format,
		ep.name,
		strconv.Itoa(q.Start),
		strconv.Itoa(q.End),
	)

	for _, f := range ep.filters {
		value := q.Value(f)
		if value == "" {
			value = emptyFilter
		}
		segments = append(segments, url.PathEscape(value))
	}

	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segments, "/") + "/", nil
}

// Package subway holds the domain model for subway station directory data:
// stations, inter-station distances and the envelopes they arrive in.
package subway

import (
	"errors"
	"slices"
	"sort"
	"strings"
)

// Subway errors.
var (
	ErrConfiguration   = errors.New("invalid configuration")
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	ErrTransport       = errors.New("transport failure")
	ErrDecode          = errors.New("response body is not valid JSON")
	ErrEmptyResponse   = errors.New("empty response")
	ErrDomain          = errors.New("upstream returned a non-success result code")
	ErrSchemaMismatch  = errors.New("row does not match record schema")
)

// SuccessCode is the result code the upstream API reports for a successful call.
const SuccessCode = "INFO-000"

// NoDataCode is the result code for a well-formed query that matched no rows.
const NoDataCode = "INFO-200"

// Error provides detailed error information from a station data provider.
type Error struct {
	Provider string // Provider that generated the error
	Endpoint string // Upstream endpoint name, if known
	Code     string // Upstream result code, or a local code
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + " " + msg
	}
	if e.Endpoint != "" {
		msg = e.Endpoint + ": " + msg
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsDomainError reports whether err is an upstream business-layer failure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}

// IsTransportFailure reports whether err came from the HTTP layer, including a
// body that could not be decoded as JSON.
func IsTransportFailure(err error) bool {
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrDecode)
}

// ResultCode returns the upstream result code carried by err, or "".
func ResultCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Station is one entry of the station directory.
type Station struct {
	// Code is the station code (STATION_CD), e.g. "0150".
	Code string `json:"code"`

	// OrderingCode (FR_CODE) sorts stations into physical order along a line.
	OrderingCode string `json:"orderingCode"`

	Name         string `json:"name"`
	NameEnglish  string `json:"nameEnglish"`
	NameChinese  string `json:"nameChinese"`
	NameJapanese string `json:"nameJapanese"`

	// Line is the line identifier, e.g. "01호선" or "공항철도".
	Line string `json:"line"`
}

// Distance is one entry of the inter-station distance table for a line.
type Distance struct {
	Line        string `json:"line"`
	StationName string `json:"stationName"`

	// ElapsedTime is the travel time from the previous station as reported
	// upstream. The reference station reports "0".
	ElapsedTime string `json:"elapsedTime"`

	// SegmentKm is the distance from the previous station in kilometers.
	SegmentKm float64 `json:"segmentKm"`

	// CumulativeKm is the distance from the line's reference station.
	CumulativeKm float64 `json:"cumulativeKm"`
}

// RealtimeArrival is one train arrival entry. All fields are passed through
// as the upstream API defines them.
type RealtimeArrival struct {
	SubwayID          string `json:"subwayId"`
	Direction         string `json:"updnLine"`
	Destination       string `json:"trainLineNm"`
	PreviousStationID string `json:"statnFid"`
	NextStationID     string `json:"statnTid"`
	StationID         string `json:"statnId"`
	StationName       string `json:"statnNm"`
	TransferCount     string `json:"trnsitCo"`
	SequenceKey       string `json:"ordKey"`
	LinkedSubwayIDs   string `json:"subwayList"`
	LinkedStationIDs  string `json:"statnList"`
}

// Envelope is the ordered set of records returned by one API call.
// Records keep the upstream order, which is not necessarily physical order.
type Envelope[T any] struct {
	Records []T `json:"records"`

	// TotalCount is the upstream list_total_count: the number of rows matching
	// the query, independent of the requested window.
	TotalCount int `json:"totalCount"`

	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Len returns the number of records in the envelope.
func (e *Envelope[T]) Len() int {
	if e == nil {
		return 0
	}
	return len(e.Records)
}

// Clone returns a copy of the envelope with its own Records slice.
func (e *Envelope[T]) Clone() *Envelope[T] {
	if e == nil {
		return nil
	}
	c := *e
	c.Records = slices.Clone(e.Records)
	return &c
}

// SortByOrderingCode sorts stations in place by ordering code so that they
// follow the physical station sequence along a line.
func SortByOrderingCode(stations []Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		return CompareOrderingCodes(stations[i].OrderingCode, stations[j].OrderingCode) < 0
	})
}

// CompareOrderingCodes compares two ordering codes, treating runs of ASCII
// digits as numbers of any length: "99" < "100" and "211" < "211-1" < "212".
func CompareOrderingCodes(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	for i < len(ra) && j < len(rb) {
		if isDigit(ra[i]) && isDigit(rb[j]) {
			si := i
			for i < len(ra) && isDigit(ra[i]) {
				i++
			}
			sj := j
			for j < len(rb) && isDigit(rb[j]) {
				j++
			}
			if c := compareDigits(string(ra[si:i]), string(rb[sj:j])); c != 0 {
				return c
			}
			continue
		}
		if ra[i] != rb[j] {
			if ra[i] < rb[j] {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(ra)-i < len(rb)-j:
		return -1
	case len(ra)-i > len(rb)-j:
		return 1
	}
	return 0
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// compareDigits orders two digit runs numerically without parsing them, so
// runs too long for an int still compare correctly.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

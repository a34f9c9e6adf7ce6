package models

import "github.com/seoulmetro/stationinfo/internal/subway"

// MaxWindow is the largest row window the upstream API serves in one call.
const MaxWindow = 1000

// StationListRequest holds the query parameters of GET /v1/stations.
type StationListRequest struct {
	Start       int    `json:"start" validate:"min=1"`
	End         int    `json:"end" validate:"min=1,gtefield=Start"`
	StationCode string `json:"stationCode" validate:"omitempty,max=10,alphanum"`
	StationName string `json:"stationName" validate:"omitempty,max=50"`
	Line        string `json:"line" validate:"omitempty,max=20"`
}

// Window returns the requested row range.
func (r StationListRequest) Window() (start, end int) {
	return r.Start, r.End
}

// DistanceListRequest holds the query parameters of GET /v1/distances.
type DistanceListRequest struct {
	Start       int    `json:"start" validate:"min=1"`
	End         int    `json:"end" validate:"min=1,gtefield=Start"`
	Line        string `json:"line" validate:"omitempty,max=20"`
	StationName string `json:"stationName" validate:"omitempty,max=50"`
}

// Window returns the requested row range.
func (r DistanceListRequest) Window() (start, end int) {
	return r.Start, r.End
}

// WindowMeta describes one window of upstream rows.
type WindowMeta struct {
	Start    int `json:"start"`
	End      int `json:"end"`
	Returned int `json:"returned"`

	// TotalCount is the number of rows matching the query upstream.
	TotalCount int `json:"totalCount"`

	// Code is the upstream result code, e.g. INFO-000 or INFO-200.
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// PagedStations is a window of the station directory.
type PagedStations struct {
	Items []subway.Station `json:"items"`
	Meta  WindowMeta       `json:"meta"`
}

// PagedDistances is a window of the inter-station distance table.
type PagedDistances struct {
	Items []subway.Distance `json:"items"`
	Meta  WindowMeta        `json:"meta"`
}

// Line is one entry of the line catalogue.
type Line struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DistanceID  string `json:"distanceId,omitempty"`
	MaxStations int    `json:"maxStations"`
}

// LineList is the line catalogue.
type LineList struct {
	Items []Line `json:"items"`
}

// LineStations lists the stations of one line in physical order.
type LineStations struct {
	Line  string           `json:"line"`
	Items []subway.Station `json:"items"`
}

// NewLine converts a domain line.
func NewLine(l subway.Line) Line {
	return Line{ID: l.ID, Name: l.Name, DistanceID: l.DistanceID, MaxStations: l.MaxStations}
}

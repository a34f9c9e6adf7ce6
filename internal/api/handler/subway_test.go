package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoulmetro/stationinfo/internal/api/handler"
	"github.com/seoulmetro/stationinfo/internal/api/models"
	"github.com/seoulmetro/stationinfo/internal/subway"
)

type fakeService struct {
	stations  *subway.Envelope[subway.Station]
	distances *subway.Envelope[subway.Distance]
	ordered   []subway.Station
	err       error

	lastStation  subway.StationQuery
	lastDistance subway.DistanceQuery
	lastLine     string
}

func (f *fakeService) GetStations(_ context.Context, q subway.StationQuery) (*subway.Envelope[subway.Station], error) {
	f.lastStation = q
	if f.err != nil {
		return nil, f.err
	}
	return f.stations, nil
}

func (f *fakeService) GetDistances(_ context.Context, q subway.DistanceQuery) (*subway.Envelope[subway.Distance], error) {
	f.lastDistance = q
	if f.err != nil {
		return nil, f.err
	}
	return f.distances, nil
}

func (f *fakeService) StationsInLineOrder(_ context.Context, lineID string) ([]subway.Station, error) {
	f.lastLine = lineID
	if f.err != nil {
		return nil, f.err
	}
	return f.ordered, nil
}

func newSubwayRouter(svc handler.StationService) http.Handler {
	h := handler.NewSubwayHandler(svc)
	r := chi.NewRouter()
	r.Get("/v1/stations", h.ListStations)
	r.Get("/v1/distances", h.ListDistances)
	r.Get("/v1/lines", h.ListLines)
	r.Get("/v1/lines/{lineId}/stations", h.LineStations)
	return r
}

func serve(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) models.Problem {
	t.Helper()
	var p models.Problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestListStations(t *testing.T) {
	svc := &fakeService{stations: &subway.Envelope[subway.Station]{
		Records: []subway.Station{
			{Code: "0150", OrderingCode: "133", Name: "서울역", NameEnglish: "Seoul Station", Line: "01호선"},
		},
		TotalCount: 1,
		Code:       subway.SuccessCode,
		Message:    "정상 처리되었습니다",
	}}

	rec := serve(t, newSubwayRouter(svc), "/v1/stations?start=1&end=5&stationName=%EC%84%9C%EC%9A%B8%EC%97%AD")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, subway.StationQuery{Start: 1, End: 5, StationName: "서울역"}, svc.lastStation)

	var resp models.PagedStations
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "0150", resp.Items[0].Code)
	assert.Equal(t, 1, resp.Meta.Returned)
	assert.Equal(t, 1, resp.Meta.TotalCount)
	assert.Equal(t, subway.SuccessCode, resp.Meta.Code)
}

func TestListStations_Defaults(t *testing.T) {
	svc := &fakeService{stations: &subway.Envelope[subway.Station]{}}

	rec := serve(t, newSubwayRouter(svc), "/v1/stations?line=%EA%B3%B5%ED%95%AD%EC%B2%A0%EB%8F%84")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.lastStation.Start)
	assert.Equal(t, subway.DefaultWindow, svc.lastStation.End)
	assert.Equal(t, "공항철도", svc.lastStation.Line)
}

func TestListStations_NoDataIsEmptyList(t *testing.T) {
	svc := &fakeService{err: &subway.Error{Code: subway.NoDataCode, Message: "해당하는 데이터가 없습니다.", Err: subway.ErrDomain}}

	rec := serve(t, newSubwayRouter(svc), "/v1/stations?start=1&end=5&stationName=x")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.PagedStations
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Items)
	assert.NotNil(t, resp.Items)
	assert.Equal(t, subway.NoDataCode, resp.Meta.Code)
}

func TestListStations_Validation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		field string
		code  string
	}{
		{"start not integer", "start=one", "start", "integer"},
		{"start zero", "start=0&end=5", "start", "min"},
		{"end before start", "start=10&end=5", "end", "gtefield"},
		{"window too large", "start=1&end=1001", "end", "maxwindow"},
		{"station code punctuation", "stationCode=01%2F50", "stationCode", "alphanum"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{}
			rec := serve(t, newSubwayRouter(svc), "/v1/stations?"+tt.query)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeValidation, p.Type)
			require.NotEmpty(t, p.Errors)
			assert.Equal(t, tt.field, p.Errors[0].Field)
			assert.Equal(t, tt.code, p.Errors[0].Code)
			assert.Zero(t, svc.lastStation.End, "provider must not be called")
		})
	}
}

func TestListDistances(t *testing.T) {
	svc := &fakeService{distances: &subway.Envelope[subway.Distance]{
		Records: []subway.Distance{
			{Line: "7", StationName: "장암", ElapsedTime: "0"},
			{Line: "7", StationName: "도봉산", ElapsedTime: "1:30", SegmentKm: 1.4, CumulativeKm: 1.4},
		},
		TotalCount: 53,
		Code:       subway.SuccessCode,
	}}

	rec := serve(t, newSubwayRouter(svc), "/v1/distances?start=1&end=2&line=7")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, subway.DistanceQuery{Start: 1, End: 2, Line: "7"}, svc.lastDistance)

	var resp models.PagedDistances
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, 2)
	assert.InDelta(t, 1.4, resp.Items[1].CumulativeKm, 1e-9)
	assert.Equal(t, 53, resp.Meta.TotalCount)
	assert.Equal(t, 2, resp.Meta.Returned)
}

func TestProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"transport", &subway.Error{Code: "NETWORK", Err: subway.ErrTransport}, http.StatusServiceUnavailable, ""},
		{"domain", &subway.Error{Code: "ERROR-336", Message: "too many rows", Err: subway.ErrDomain}, http.StatusBadGateway, "ERROR-336"},
		{"schema", &subway.Error{Code: "SCHEMA_MISMATCH", Err: subway.ErrSchemaMismatch}, http.StatusBadGateway, "SCHEMA_MISMATCH"},
		{"decode", &subway.Error{Code: "INVALID_JSON", Err: subway.ErrDecode}, http.StatusBadGateway, "INVALID_JSON"},
		{"empty", &subway.Error{Code: "EMPTY_RESPONSE", Err: subway.ErrEmptyResponse}, http.StatusBadGateway, "EMPTY_RESPONSE"},
		{"configuration", &subway.Error{Code: "CONFIGURATION", Err: subway.ErrConfiguration}, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newSubwayRouter(&fakeService{err: tt.err}), "/v1/distances?line=7")

			require.Equal(t, tt.status, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, tt.code, p.Code)
			if tt.status == http.StatusServiceUnavailable {
				assert.Equal(t, "30", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestListLines(t *testing.T) {
	rec := serve(t, newSubwayRouter(&fakeService{}), "/v1/lines")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.LineList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Items, len(subway.Lines()))
	assert.Equal(t, "01호선", resp.Items[0].ID)
	assert.Equal(t, "Line 1", resp.Items[0].Name)
	assert.Equal(t, "1", resp.Items[0].DistanceID)
}

func TestLineStations(t *testing.T) {
	svc := &fakeService{ordered: []subway.Station{
		{Name: "서울역", OrderingCode: "A01", Line: "공항철도"},
		{Name: "공덕", OrderingCode: "A02", Line: "공항철도"},
	}}

	rec := serve(t, newSubwayRouter(svc), "/v1/lines/7/stations")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", svc.lastLine)

	var resp models.LineStations
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "07호선", resp.Line)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "서울역", resp.Items[0].Name)
}

func TestLineStations_NotFound(t *testing.T) {
	tests := []struct {
		name string
		svc  *fakeService
	}{
		{"no rows", &fakeService{}},
		{"no data code", &fakeService{err: &subway.Error{Code: subway.NoDataCode, Err: subway.ErrDomain}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newSubwayRouter(tt.svc), "/v1/lines/%EC%97%86%EB%8A%94%EC%84%A0/stations")

			require.Equal(t, http.StatusNotFound, rec.Code)
			p := decodeProblem(t, rec)
			assert.Equal(t, models.ProblemTypeNotFound, p.Type)
		})
	}
}

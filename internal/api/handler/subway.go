package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/seoulmetro/stationinfo/internal/api/models"
	"github.com/seoulmetro/stationinfo/internal/api/response"
	"github.com/seoulmetro/stationinfo/internal/subway"
)

// retryAfterSeconds is sent with 503 responses for upstream transport failures.
const retryAfterSeconds = 30

// StationService is the subset of subway.Service the handler needs.
type StationService interface {
	GetStations(ctx context.Context, q subway.StationQuery) (*subway.Envelope[subway.Station], error)
	GetDistances(ctx context.Context, q subway.DistanceQuery) (*subway.Envelope[subway.Distance], error)
	StationsInLineOrder(ctx context.Context, lineID string) ([]subway.Station, error)
}

// SubwayHandler handles station directory endpoints.
type SubwayHandler struct {
	service  StationService
	validate *validator.Validate
}

// NewSubwayHandler creates a new SubwayHandler.
func NewSubwayHandler(service StationService) *SubwayHandler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(validateWindow, models.StationListRequest{}, models.DistanceListRequest{})

	return &SubwayHandler{
		service:  service,
		validate: v,
	}
}

type windowed interface {
	Window() (start, end int)
}

func validateWindow(sl validator.StructLevel) {
	w, ok := sl.Current().Interface().(windowed)
	if !ok {
		return
	}
	start, end := w.Window()
	if end >= start && end-start+1 > models.MaxWindow {
		sl.ReportError(end, "end", "End", "maxwindow", strconv.Itoa(models.MaxWindow))
	}
}

// ListStations handles GET /v1/stations - one window of the station directory.
func (h *SubwayHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrors []models.FieldError
	req := models.StationListRequest{
		Start:       queryInt(q, "start", 1, &fieldErrors),
		End:         queryInt(q, "end", subway.DefaultWindow, &fieldErrors),
		StationCode: q.Get("stationCode"),
		StationName: q.Get("stationName"),
		Line:        q.Get("line"),
	}
	if !h.valid(w, r, req, fieldErrors) {
		return
	}

	env, err := h.service.GetStations(r.Context(), subway.StationQuery{
		Start:       req.Start,
		End:         req.End,
		StationCode: req.StationCode,
		StationName: req.StationName,
		Line:        req.Line,
	})
	if err != nil && subway.ResultCode(err) != subway.NoDataCode {
		writeProviderError(w, r, err)
		return
	}

	resp := models.PagedStations{
		Items: []subway.Station{},
		Meta:  windowMeta(req.Start, req.End, err),
	}
	if env != nil {
		resp.Items = env.Records
		resp.Meta = envelopeMeta(req.Start, req.End, env.Len(), env.TotalCount, env.Code, env.Message)
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, resp)
}

// ListDistances handles GET /v1/distances - one window of the distance table.
func (h *SubwayHandler) ListDistances(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fieldErrors []models.FieldError
	req := models.DistanceListRequest{
		Start:       queryInt(q, "start", 1, &fieldErrors),
		End:         queryInt(q, "end", subway.DefaultWindow, &fieldErrors),
		Line:        q.Get("line"),
		StationName: q.Get("stationName"),
	}
	if !h.valid(w, r, req, fieldErrors) {
		return
	}

	env, err := h.service.GetDistances(r.Context(), subway.DistanceQuery{
		Start:       req.Start,
		End:         req.End,
		Line:        req.Line,
		StationName: req.StationName,
	})
	if err != nil && subway.ResultCode(err) != subway.NoDataCode {
		writeProviderError(w, r, err)
		return
	}

	resp := models.PagedDistances{
		Items: []subway.Distance{},
		Meta:  windowMeta(req.Start, req.End, err),
	}
	if env != nil {
		resp.Items = env.Records
		resp.Meta = envelopeMeta(req.Start, req.End, env.Len(), env.TotalCount, env.Code, env.Message)
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, resp)
}

// ListLines handles GET /v1/lines - the line catalogue.
func (h *SubwayHandler) ListLines(w http.ResponseWriter, r *http.Request) {
	lines := subway.Lines()
	resp := models.LineList{Items: make([]models.Line, 0, len(lines))}
	for _, l := range lines {
		resp.Items = append(resp.Items, models.NewLine(l))
	}
	response.JSON(w, r, http.StatusOK, resp)
}

// LineStations handles GET /v1/lines/{lineId}/stations - stations of a line
// in physical order.
func (h *SubwayHandler) LineStations(w http.ResponseWriter, r *http.Request) {
	lineID, err := url.PathUnescape(chi.URLParam(r, "lineId"))
	if err != nil || lineID == "" || len(lineID) > 60 {
		response.BadRequest(w, r, "invalid line identifier", []models.FieldError{
			{Field: "lineId", Message: "must be a line identifier", Code: "required"},
		})
		return
	}

	stations, err := h.service.StationsInLineOrder(r.Context(), lineID)
	if err != nil {
		if subway.ResultCode(err) == subway.NoDataCode {
			response.NotFound(w, r, fmt.Sprintf("no stations found for line %q", lineID))
			return
		}
		writeProviderError(w, r, err)
		return
	}
	if len(stations) == 0 {
		response.NotFound(w, r, fmt.Sprintf("no stations found for line %q", lineID))
		return
	}

	line := lineID
	if l, ok := subway.LookupLine(lineID); ok {
		line = l.ID
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	response.JSON(w, r, http.StatusOK, models.LineStations{Line: line, Items: stations})
}

func (h *SubwayHandler) valid(w http.ResponseWriter, r *http.Request, req any, fieldErrors []models.FieldError) bool {
	if len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid query parameters", fieldErrors)
		return false
	}

	err := h.validate.Struct(req)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		response.BadRequest(w, r, err.Error(), nil)
		return false
	}

	for _, fe := range verrs {
		fieldErrors = append(fieldErrors, models.FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
			Code:    fe.Tag(),
		})
	}
	response.BadRequest(w, r, "invalid query parameters", fieldErrors)
	return false
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gtefield":
		return "must be greater than or equal to start"
	case "alphanum":
		return "must contain only letters and digits"
	case "maxwindow":
		return "window must not exceed " + fe.Param() + " rows"
	default:
		return "is invalid"
	}
}

func queryInt(q url.Values, key string, defaultValue int, fieldErrors *[]models.FieldError) int {
	raw := q.Get(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*fieldErrors = append(*fieldErrors, models.FieldError{
			Field:   key,
			Message: "must be an integer",
			Code:    "integer",
		})
		return defaultValue
	}
	return n
}

func envelopeMeta(start, end, returned, total int, code, message string) models.WindowMeta {
	return models.WindowMeta{
		Start:      start,
		End:        end,
		Returned:   returned,
		TotalCount: total,
		Code:       code,
		Message:    message,
	}
}

// windowMeta describes a window that produced no envelope, which only
// happens for the no-data result code.
func windowMeta(start, end int, err error) models.WindowMeta {
	meta := models.WindowMeta{Start: start, End: end}
	var e *subway.Error
	if errors.As(err, &e) {
		meta.Code = e.Code
		meta.Message = e.Message
	}
	return meta
}

// writeProviderError maps a provider failure to a problem response.
func writeProviderError(w http.ResponseWriter, r *http.Request, err error) {
	code := subway.ResultCode(err)
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("code", code).Msg("station data request failed")

	switch {
	case errors.Is(err, subway.ErrTransport):
		response.ServiceUnavailable(w, r, "station data provider is unavailable", retryAfterSeconds)
	case subway.IsDomainError(err):
		var e *subway.Error
		detail := "upstream reported an error"
		if errors.As(err, &e) && e.Message != "" {
			detail = e.Message
		}
		response.BadGateway(w, r, code, detail)
	case errors.Is(err, subway.ErrDecode),
		errors.Is(err, subway.ErrEmptyResponse),
		errors.Is(err, subway.ErrSchemaMismatch):
		response.BadGateway(w, r, code, "upstream returned an unusable response")
	default:
		response.InternalError(w, r, "failed to fetch station data")
	}
}

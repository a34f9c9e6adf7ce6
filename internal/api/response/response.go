// Package response writes JSON bodies and problem documents.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/seoulmetro/stationinfo/internal/api/middleware"
	"github.com/seoulmetro/stationinfo/internal/api/models"
)

// JSON writes data with the given status. A nil data writes no body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if id := middleware.GetRequestID(r.Context()); id != "" {
		w.Header().Set("X-Request-Id", id)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// Error writes problem with the request path as its instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func kind(w http.ResponseWriter, r *http.Request, k models.Kind, detail string) {
	Error(w, r, k.New(middleware.GetRequestID(r.Context()), detail))
}

// BadRequest writes a 400 listing the rejected fields.
func BadRequest(w http.ResponseWriter, r *http.Request, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(middleware.GetRequestID(r.Context()), detail, errors))
}

// NotFound writes a 404.
func NotFound(w http.ResponseWriter, r *http.Request, detail string) {
	kind(w, r, models.KindNotFound, detail)
}

// InternalError writes a 500.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	kind(w, r, models.KindInternal, detail)
}

// BadGateway writes a 502 for an unusable upstream answer. code is the
// upstream result code, if one was returned.
func BadGateway(w http.ResponseWriter, r *http.Request, code, detail string) {
	Error(w, r, models.NewBadGateway(middleware.GetRequestID(r.Context()), code, detail))
}

// ServiceUnavailable writes a 503. A positive retryAfter is sent as the
// Retry-After header in seconds.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	kind(w, r, models.KindUnavailable, detail)
}

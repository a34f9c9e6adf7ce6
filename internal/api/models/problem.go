package models

import (
	"encoding/json"
	"net/http"
)

// Problem is an RFC 7807 error body, served as application/problem+json.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	TraceID  string `json:"traceId"`

	// Code is the upstream result code, for example "ERROR-500".
	Code string `json:"code,omitempty"`

	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError describes one rejected query or path parameter.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const problemBase = "https://stationinfo.seoulmetro.kr/problems/"

// Problem type URIs.
const (
	ProblemTypeValidation      = problemBase + "validation-error"
	ProblemTypeNotFound        = problemBase + "not-found"
	ProblemTypeTLSRequired     = problemBase + "tls-required"
	ProblemTypeTooManyRequests = problemBase + "too-many-requests"
	ProblemTypeInternal        = problemBase + "internal-error"
	ProblemTypeUpstream        = problemBase + "upstream-error"
	ProblemTypeUnavailable     = problemBase + "service-unavailable"
)

// Kind is a problem type with its fixed title and status.
type Kind struct {
	Type   string
	Title  string
	Status int
}

// Problem kinds served by the API.
var (
	KindValidation      = Kind{ProblemTypeValidation, "Validation error", http.StatusBadRequest}
	KindTLSRequired     = Kind{ProblemTypeTLSRequired, "TLS required", http.StatusForbidden}
	KindNotFound        = Kind{ProblemTypeNotFound, "Not found", http.StatusNotFound}
	KindTooManyRequests = Kind{ProblemTypeTooManyRequests, "Too many requests", http.StatusTooManyRequests}
	KindInternal        = Kind{ProblemTypeInternal, "Internal server error", http.StatusInternalServerError}
	KindUpstream        = Kind{ProblemTypeUpstream, "Upstream error", http.StatusBadGateway}
	KindUnavailable     = Kind{ProblemTypeUnavailable, "Service unavailable", http.StatusServiceUnavailable}
)

// New returns a Problem of kind k.
func (k Kind) New(traceID, detail string) *Problem {
	return &Problem{
		Type:    k.Type,
		Title:   k.Title,
		Status:  k.Status,
		Detail:  detail,
		TraceID: traceID,
	}
}

// Write sends the problem with its status code.
func (p *Problem) Write(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		h.Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest returns a 400 problem listing the rejected fields.
func NewBadRequest(traceID, detail string, errors []FieldError) *Problem {
	p := KindValidation.New(traceID, detail)
	p.Errors = errors
	return p
}

// NewNotFound returns a 404 problem.
func NewNotFound(traceID, detail string) *Problem {
	return KindNotFound.New(traceID, detail)
}

// NewTooManyRequests returns a 429 problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return KindTooManyRequests.New(traceID, detail)
}

// NewInternalError returns a 500 problem.
func NewInternalError(traceID, detail string) *Problem {
	return KindInternal.New(traceID, detail)
}

// NewBadGateway returns a 502 problem carrying the upstream result code.
func NewBadGateway(traceID, code, detail string) *Problem {
	p := KindUpstream.New(traceID, detail)
	p.Code = code
	return p
}

// NewServiceUnavailable returns a 503 problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return KindUnavailable.New(traceID, detail)
}

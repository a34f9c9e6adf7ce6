package seoul

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/seoulmetro/stationinfo/internal/subway"
)

// Payload is a decoded response body: the top-level JSON object with each
// member left undecoded. A nil or empty Payload means the body was empty.
type Payload map[string]json.RawMessage

// realtimeEnvelopeKey wraps the realtime arrival list.
const realtimeEnvelopeKey = "realtimeArrivalList"

// result is the status object the API places in every envelope.
type result struct {
	Code    *string `json:"CODE"`
	Message string  `json:"MESSAGE"`
}

// envelope is the endpoint-keyed object of a station or distance response.
// Only RESULT is decoded up front; row and list_total_count are read after
// the result code reports success.
type envelope struct {
	Result *result
	fields map[string]json.RawMessage
}

// ParseStations interprets a station search response.
func ParseStations(p Payload) (*subway.Envelope[subway.Station], error) {
	return parse(StationSearch, p, decodeStation)
}

// ParseDistances interprets a station distance response.
func ParseDistances(p Payload) (*subway.Envelope[subway.Distance], error) {
	return parse(StationDistance, p, decodeDistance)
}

func parse[T any](ep Endpoint, p Payload, decode func(json.RawMessage) (T, error)) (*subway.Envelope[T], error) {
	if len(p) == 0 {
		return nil, newError(ep, "EMPTY_RESPONSE", "response body is empty", subway.ErrEmptyResponse)
	}

	raw, ok := p[ep.EnvelopeKey()]
	if !ok {
		// Errors such as INFO-200 arrive as a bare top-level RESULT with no
		// endpoint key.
		if top, found := p["RESULT"]; found {
			var res result
			if err := json.Unmarshal(top, &res); err == nil && res.Code != nil {
				return nil, domainError(ep, *res.Code, res.Message)
			}
		}
		return nil, newError(ep, "SCHEMA_MISMATCH", "missing envelope key "+ep.EnvelopeKey(), subway.ErrSchemaMismatch)
	}

	env, err := decodeEnvelope(raw)
	if err != nil {
		return nil, newError(ep, "SCHEMA_MISMATCH", err.Error(), subway.ErrSchemaMismatch)
	}

	code := *env.Result.Code
	if code != subway.SuccessCode {
		return nil, domainError(ep, code, env.Result.Message)
	}

	rowsRaw, ok := env.fields["row"]
	if !ok || bytes.Equal(bytes.TrimSpace(rowsRaw), []byte("null")) {
		return nil, newError(ep, "SCHEMA_MISMATCH", "missing row", subway.ErrSchemaMismatch)
	}
	var rows []json.RawMessage
	if err := json.Unmarshal(rowsRaw, &rows); err != nil {
		return nil, newError(ep, "SCHEMA_MISMATCH", "row is not a list", subway.ErrSchemaMismatch)
	}

	records := make([]T, 0, len(rows))
	for i, row := range rows {
		rec, err := decode(row)
		if err != nil {
			return nil, newError(ep, "SCHEMA_MISMATCH", fmt.Sprintf("row %d: %v", i, err), subway.ErrSchemaMismatch)
		}
		records = append(records, rec)
	}

	total := len(records)
	if rawTotal, ok := env.fields["list_total_count"]; ok {
		var n json.Number
		if err := json.Unmarshal(rawTotal, &n); err != nil {
			return nil, newError(ep, "SCHEMA_MISMATCH", "invalid list_total_count", subway.ErrSchemaMismatch)
		}
		if n != "" {
			v, err := n.Int64()
			if err != nil {
				return nil, newError(ep, "SCHEMA_MISMATCH", "invalid list_total_count", subway.ErrSchemaMismatch)
			}
			total = int(v)
		}
	}

	return &subway.Envelope[T]{
		Records:    records,
		TotalCount: total,
		Code:       code,
		Message:    env.Result.Message,
	}, nil
}

func decodeEnvelope(raw json.RawMessage) (*envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("envelope is not an object: %w", err)
	}

	env := &envelope{fields: fields}
	top, ok := fields["RESULT"]
	if !ok {
		return nil, fmt.Errorf("missing RESULT.CODE")
	}
	if err := json.Unmarshal(top, &env.Result); err != nil {
		return nil, fmt.Errorf("malformed RESULT: %w", err)
	}
	if env.Result == nil || env.Result.Code == nil {
		return nil, fmt.Errorf("missing RESULT.CODE")
	}
	return env, nil
}

// realtimeStatus is the status block of a realtime arrival response. It is
// nested under errorMessage on success and sits at the top level on failure.
type realtimeStatus struct {
	Code    *string `json:"code"`
	Message string  `json:"message"`
	Total   int     `json:"total"`
}

// ParseRealtimeArrivals interprets a realtime arrival response.
func ParseRealtimeArrivals(p Payload) (*subway.Envelope[subway.RealtimeArrival], error) {
	const name = "realtimeStationArrival"

	fail := func(code, msg string, sentinel error) error {
		return &subway.Error{Provider: ProviderName, Endpoint: name, Code: code, Message: msg, Err: sentinel}
	}

	if len(p) == 0 {
		return nil, fail("EMPTY_RESPONSE", "response body is empty", subway.ErrEmptyResponse)
	}

	var status realtimeStatus
	if raw, ok := p["errorMessage"]; ok {
		if err := json.Unmarshal(raw, &status); err != nil {
			return nil, fail("SCHEMA_MISMATCH", "malformed errorMessage", subway.ErrSchemaMismatch)
		}
	} else if raw, ok := p["code"]; ok {
		var code string
		if err := json.Unmarshal(raw, &code); err != nil {
			return nil, fail("SCHEMA_MISMATCH", "malformed code", subway.ErrSchemaMismatch)
		}
		status.Code = &code
		if msg, ok := p["message"]; ok {
			_ = json.Unmarshal(msg, &status.Message) //nolint:errcheck // message is informational
		}
	}

	if status.Code == nil {
		return nil, fail("SCHEMA_MISMATCH", "missing status code", subway.ErrSchemaMismatch)
	}
	if *status.Code != subway.SuccessCode {
		return nil, fail(*status.Code, status.Message, subway.ErrDomain)
	}

	var rows []json.RawMessage
	raw, ok := p[realtimeEnvelopeKey]
	if !ok {
		return nil, fail("SCHEMA_MISMATCH", "missing "+realtimeEnvelopeKey, subway.ErrSchemaMismatch)
	}
	if err := json.Unmarshal(raw, &rows); err != nil || rows == nil {
		return nil, fail("SCHEMA_MISMATCH", realtimeEnvelopeKey+" is not a list", subway.ErrSchemaMismatch)
	}

	records := make([]subway.RealtimeArrival, 0, len(rows))
	for i, row := range rows {
		rec, err := decodeArrival(row)
		if err != nil {
			return nil, fail("SCHEMA_MISMATCH", fmt.Sprintf("row %d: %v", i, err), subway.ErrSchemaMismatch)
		}
		records = append(records, rec)
	}

	total := status.Total
	if total == 0 {
		total = len(records)
	}
	return &subway.Envelope[subway.RealtimeArrival]{
		Records:    records,
		TotalCount: total,
		Code:       *status.Code,
		Message:    status.Message,
	}, nil
}

func newError(ep Endpoint, code, msg string, sentinel error) *subway.Error {
	return &subway.Error{
		Provider: ProviderName,
		Endpoint: ep.Name(),
		Code:     code,
		Message:  msg,
		Err:      sentinel,
	}
}

func domainError(ep Endpoint, code, msg string) *subway.Error {
	if msg == "" {
		msg = "upstream returned a non-success result"
	}
	return newError(ep, code, msg, subway.ErrDomain)
}

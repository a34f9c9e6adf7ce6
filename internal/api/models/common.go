// Package models provides request and response models for the station info API.
package models

import "time"

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// HealthStatusFromProvider maps a provider registry status ("ok",
// "degraded", "fail") to a HealthStatus.
func HealthStatusFromProvider(status string) HealthStatus {
	switch status {
	case "ok":
		return HealthStatusOK
	case "degraded":
		return HealthStatusDegraded
	default:
		return HealthStatusFail
	}
}

// Worse returns the more severe of two statuses.
func (s HealthStatus) Worse(other HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{HealthStatusOK: 0, HealthStatusDegraded: 1, HealthStatusFail: 2}
	if rank[other] > rank[s] {
		return other
	}
	return s
}

// Timestamp is a helper type for time.Time with custom JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return &time.ParseError{Layout: time.RFC3339, Value: string(data)}
	}
	parsed, err := time.Parse(time.RFC3339, string(data[1:len(data)-1]))
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// TimestampPtr returns a pointer to the Timestamp of t, or nil for the zero time.
func TimestampPtr(t time.Time) *Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := Timestamp(t)
	return &ts
}

package seoul

// Filter names one filter field embedded in a request path.
type Filter string

const (
	FilterStationCode Filter = "station_code"
	FilterStationName Filter = "station_name"
	FilterLineNumber  Filter = "line_number"
)

// Endpoint is one upstream API operation. Each endpoint has its own filter
// order in the request path and its own envelope key in the response body.
// The set of endpoints is closed; use StationSearch or StationDistance.
type Endpoint struct {
	name    string
	filters []Filter
}

var (
	// StationSearch is the station directory lookup.
	StationSearch = Endpoint{
		name:    "SearchSTNBySubwayLineInfo",
		filters: []Filter{FilterStationCode, FilterStationName, FilterLineNumber},
	}

	// StationDistance is the inter-station distance and travel time table.
	// Its path takes the line before the station name.
	StationDistance = Endpoint{
		name:    "StationDstncReqreTimeHm",
		filters: []Filter{FilterLineNumber, FilterStationName},
	}
)

// Endpoints returns every supported endpoint.
func Endpoints() []Endpoint {
	return []Endpoint{StationSearch, StationDistance}
}

// EndpointByName returns the endpoint with the given upstream name.
func EndpointByName(name string) (Endpoint, bool) {
	for _, ep := range Endpoints() {
		if ep.name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// Name returns the upstream service name used as a path segment.
func (e Endpoint) Name() string {
	return e.name
}

// EnvelopeKey returns the top-level response key wrapping this endpoint's result.
func (e Endpoint) EnvelopeKey() string {
	return e.name
}

// FilterOrder returns the filter fields in request path order.
func (e Endpoint) FilterOrder() []Filter {
	order := make([]Filter, len(e.filters))
	copy(order, e.filters)
	return order
}

func (e Endpoint) supported() bool {
	_, ok := EndpointByName(e.name)
	return ok && len(e.filters) > 0
}

func (e Endpoint) String() string {
	if e.name == "" {
		return "<unknown endpoint>"
	}
	return e.name
}

package subway

// Line describes one line known to the station directory.
type Line struct {
	// ID is the line identifier the directory endpoint filters on.
	ID string

	// Name is the English display name.
	Name string

	// DistanceID is the identifier the distance endpoint filters on.
	// Empty when the distance table does not cover the line.
	DistanceID string

	// MaxStations is the largest row window needed to list every station.
	MaxStations int
}

// Lines returns the lines of the Seoul metropolitan network with the station
// windows observed upstream. Searching "2호선" also matches Incheon line 2, so
// Seoul lines use the zero-padded identifiers.
func Lines() []Line {
	return []Line{
		{ID: "01호선", Name: "Line 1", DistanceID: "1", MaxStations: 102},
		{ID: "02호선", Name: "Line 2", DistanceID: "2", MaxStations: 51},
		{ID: "03호선", Name: "Line 3", DistanceID: "3", MaxStations: 44},
		{ID: "04호선", Name: "Line 4", DistanceID: "4", MaxStations: 51},
		{ID: "05호선", Name: "Line 5", DistanceID: "5", MaxStations: 56},
		{ID: "06호선", Name: "Line 6", DistanceID: "6", MaxStations: 39},
		{ID: "07호선", Name: "Line 7", DistanceID: "7", MaxStations: 53},
		{ID: "08호선", Name: "Line 8", DistanceID: "8", MaxStations: 24},
		{ID: "09호선", Name: "Line 9", DistanceID: "9", MaxStations: 38},
		{ID: "경의선", Name: "Gyeongui-Jungang Line", MaxStations: 57},
		{ID: "신분당선", Name: "Shinbundang Line", MaxStations: 16},
		{ID: "공항철도", Name: "AREX", MaxStations: 14},
	}
}

// LookupLine returns the line with the given directory or distance identifier.
func LookupLine(id string) (Line, bool) {
	for _, l := range Lines() {
		if l.ID == id || (l.DistanceID != "" && l.DistanceID == id) {
			return l, true
		}
	}
	return Line{}, false
}

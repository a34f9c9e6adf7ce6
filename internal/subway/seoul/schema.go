package seoul

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/seoulmetro/stationinfo/internal/subway"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	return v
}

// Row fields are pointers so that a missing key and an empty value can be told
// apart: "required" fails only when the key is absent or null.
type stationRow struct {
	StationCode  *string `json:"STATION_CD" validate:"required"`
	OrderingCode *string `json:"FR_CODE" validate:"required"`
	Name         *string `json:"STATION_NM" validate:"required"`
	NameEnglish  *string `json:"STATION_NM_ENG" validate:"required"`
	NameChinese  *string `json:"STATION_NM_CHN" validate:"required"`
	NameJapanese *string `json:"STATION_NM_JPN" validate:"required"`
	Line         *string `json:"LINE_NUM" validate:"required"`
}

type distanceRow struct {
	Line         *string     `json:"SBWY_ROUT_LN" validate:"required"`
	StationName  *string     `json:"SBWY_STNS_NM" validate:"required"`
	ElapsedTime  *string     `json:"HM" validate:"required"`
	SegmentKm    *kilometers `json:"DIST_KM" validate:"required,gte=0"`
	CumulativeKm *kilometers `json:"ACML_DIST" validate:"required,gte=0"`
}

type arrivalRow struct {
	SubwayID          *string `json:"subwayId" validate:"required"`
	Direction         *string `json:"updnLine" validate:"required"`
	Destination       *string `json:"trainLineNm" validate:"required"`
	PreviousStationID *string `json:"statnFid" validate:"required"`
	NextStationID     *string `json:"statnTid" validate:"required"`
	StationID         *string `json:"statnId" validate:"required"`
	StationName       *string `json:"statnNm" validate:"required"`
	TransferCount     *string `json:"trnsitCo" validate:"required"`
	SequenceKey       *string `json:"ordKey" validate:"required"`
	LinkedSubwayIDs   *string `json:"subwayList" validate:"required"`
	LinkedStationIDs  *string `json:"statnList" validate:"required"`
}

// kilometers accepts a JSON number or a string holding one; the distance
// table has served both.
type kilometers float64

func (k *kilometers) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return err
		}
		raw = []byte(strings.TrimSpace(s))
	}

	v, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid distance %s", data)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("invalid distance %s", data)
	}

	*k = kilometers(v)
	return nil
}

// decodeRow unmarshals one row object and checks it against the row's tags.
func decodeRow(raw json.RawMessage, row any) error {
	if err := json.Unmarshal(raw, row); err != nil {
		return err
	}
	if err := validate.Struct(row); err != nil {
		return describeValidation(err)
	}
	return nil
}

// describeValidation names the upstream JSON keys that failed validation.
func describeValidation(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			problems = append(problems, "missing field "+fe.Field())
		default:
			problems = append(problems, fmt.Sprintf("field %s fails %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return fmt.Errorf("%s", strings.Join(problems, ", "))
}

func decodeStation(raw json.RawMessage) (subway.Station, error) {
	var row stationRow
	if err := decodeRow(raw, &row); err != nil {
		return subway.Station{}, err
	}
	return subway.Station{
		Code:         *row.StationCode,
		OrderingCode: *row.OrderingCode,
		Name:         *row.Name,
		NameEnglish:  *row.NameEnglish,
		NameChinese:  *row.NameChinese,
		NameJapanese: *row.NameJapanese,
		Line:         *row.Line,
	}, nil
}

func decodeDistance(raw json.RawMessage) (subway.Distance, error) {
	var row distanceRow
	if err := decodeRow(raw, &row); err != nil {
		return subway.Distance{}, err
	}
	return subway.Distance{
		Line:         *row.Line,
		StationName:  *row.StationName,
		ElapsedTime:  *row.ElapsedTime,
		SegmentKm:    float64(*row.SegmentKm),
		CumulativeKm: float64(*row.CumulativeKm),
	}, nil
}

func decodeArrival(raw json.RawMessage) (subway.RealtimeArrival, error) {
	var row arrivalRow
	if err := decodeRow(raw, &row); err != nil {
		return subway.RealtimeArrival{}, err
	}
	return subway.RealtimeArrival{
		SubwayID:          *row.SubwayID,
		Direction:         *row.Direction,
		Destination:       *row.Destination,
		PreviousStationID: *row.PreviousStationID,
		NextStationID:     *row.NextStationID,
		StationID:         *row.StationID,
		StationName:       *row.StationName,
		TransferCount:     *row.TransferCount,
		SequenceKey:       *row.SequenceKey,
		LinkedSubwayIDs:   *row.LinkedSubwayIDs,
		LinkedStationIDs:  *row.LinkedStationIDs,
	}, nil
}

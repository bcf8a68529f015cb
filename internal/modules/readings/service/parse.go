package service

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"

	"climalog/internal/modules/readings/types"
)

// Form field names posted by the sensor.
const (
	FieldTime = "TIME"
	FieldTemp = "TEMP"
	FieldRH   = "RH"
)

var (
	errMissing   = errors.New("is required")
	errNotNumber = errors.New("expected a number")
	errNotFinite = errors.New("must be finite")
)

// ParseForm maps a submitted form onto a Reading. TIME is required; TEMP and
// RH become nil when absent or empty.
func ParseForm(values url.Values) (types.Reading, error) {
	raw := strings.TrimSpace(values.Get(FieldTime))
	if raw == "" {
		return types.Reading{}, &types.ParseError{Field: FieldTime, Err: errMissing}
	}
	t, err := parseFloat(FieldTime, raw)
	if err != nil {
		return types.Reading{}, err
	}

	temp, err := parseOptional(FieldTemp, values.Get(FieldTemp))
	if err != nil {
		return types.Reading{}, err
	}
	rh, err := parseOptional(FieldRH, values.Get(FieldRH))
	if err != nil {
		return types.Reading{}, err
	}

	return types.Reading{Time: t, Temp: temp, RH: rh}, nil
}

// ParseNum reads the recent-window size. Empty means def; anything that is
// not an integer in [1, max] is rejected.
func ParseNum(raw string, def, max int) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, &types.QueryParamError{Param: "num", Value: raw, Reason: "expected integer"}
	}
	if n <= 0 {
		return 0, &types.QueryParamError{Param: "num", Value: raw, Reason: "must be > 0"}
	}
	if n > max {
		return 0, &types.QueryParamError{Param: "num", Value: raw, Reason: "must be <= " + strconv.Itoa(max)}
	}
	return n, nil
}

func parseOptional(field, raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, nil
	}
	v, err := parseFloat(field, s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &types.ParseError{Field: field, Value: s, Err: errNotNumber}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &types.ParseError{Field: field, Value: s, Err: errNotFinite}
	}
	return v, nil
}

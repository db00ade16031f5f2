package schema

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	errEmptyValue     = errors.New("empty value")
	errInvalidDate    = errors.New("unrecognized date format")
	errInvalidInteger = errors.New("not a whole number")
	errInvalidDecimal = errors.New("not a number")

	dateLayouts = []string{
		"2006-01-02",
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05",
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05.000000",
		"2006-01-02T15:04:05",
		"2006/01/02",
		"01/02/2006",
		"02/01/2006",
		"02.01.2006",
	}
)

// ParseDate parses a calendar date in any of the accepted export layouts.
// The result is the UTC midnight of that date.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errEmptyValue
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			year, month, day := ts.Date()
			return time.Date(year, month, day, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, errInvalidDate
}

// ParseInteger parses a base-10 integer. Decimal literals without a fractional
// part ("12.0") are accepted as well.
func ParseInteger(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errEmptyValue
	}
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v, nil
	}
	f, err := parseFinite(raw)
	if err != nil || math.Mod(f, 1) != 0 || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, errInvalidInteger
	}
	return int64(f), nil
}

// ParseDecimal parses a finite floating point value.
func ParseDecimal(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errEmptyValue
	}
	f, err := parseFinite(raw)
	if err != nil {
		return 0, errInvalidDecimal
	}
	return f, nil
}

// ParseFlag reports whether raw is "1" or "true" (any case).
func ParseFlag(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "1" || strings.EqualFold(raw, "true")
}

func parseFinite(raw string) (float64, error) {
	// ParseFloat also accepts hex floats, which never appear in exports.
	if strings.ContainsAny(raw, "xXpP") {
		return 0, errInvalidDecimal
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errInvalidDecimal
	}
	return f, nil
}

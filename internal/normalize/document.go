package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Parse decodes a JSON body into a loosely typed tree of map[string]any,
// []any, string, json.Number, bool and nil. Numbers keep their literal text
// so amounts survive without float rounding.
func Parse(body []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("decode json: trailing data after document")
	}
	return doc, nil
}

// list returns v as a slice if it is a JSON array.
func list(v any) ([]any, bool) {
	l, ok := v.([]any)
	return l, ok
}

// object returns v as a map if it is a JSON object.
func object(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

// stringAt returns obj[key] if it is a string, otherwise "".
func stringAt(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// amountAt returns obj[key] as a decimal. Numbers and numeric strings are
// accepted; anything else is null.
func amountAt(obj map[string]any, key string) decimal.NullDecimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch v := obj[key].(type) {
	case json.Number:
		d, err = decimal.NewFromString(v.String())
	case string:
		d, err = decimal.NewFromString(v)
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.NullDecimal{}
		}
		d = decimal.NewFromFloat(v)
	default:
		return decimal.NullDecimal{}
	}
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

// unixSecondsAt returns obj[key], epoch seconds, as a UTC time truncated to
// the second. Missing, zero, negative or non-numeric values yield nil.
func unixSecondsAt(obj map[string]any, key string) *time.Time {
	var sec int64
	switch v := obj[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			sec = n
		} else if f, err := v.Float64(); err == nil && f > 0 && f < math.MaxInt64 {
			sec = int64(f)
		}
	case float64:
		if v > 0 && v < math.MaxInt64 {
			sec = int64(v)
		}
	}
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

package record

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the canonical instant format: UTC with millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// maxEpochMillis bounds instants the same way ECMAScript dates are bounded.
const maxEpochMillis = 8.64e15

type encoding int

const (
	encMissing encoding = iota
	encNative
	encDateLong      // {"$date": {"$numberLong": "1704873600000"}}
	encDateString    // {"$date": "2024-01-10T08:00:00Z"}
	encDateNumber    // {"$date": 1704873600000}
	encNumberInt     // {"$numberInt": "1000"}
	encNumberLong    // {"$numberLong": "1000"}
	encNumberDouble  // {"$numberDouble": "1.5"}
	encNumberDecimal // {"$numberDecimal": "12.50"}
	encObjectID      // {"$oid": "65a1..."}
	encUnknown
)

// scalar is a stored value tagged with the encoding it arrived in. Every
// normalizer switches on enc once instead of probing the raw value itself.
type scalar struct {
	enc     encoding
	payload any
}

func classify(v any) scalar {
	if v == nil {
		return scalar{enc: encMissing}
	}
	doc, ok := v.(map[string]any)
	if !ok {
		return scalar{enc: encNative, payload: v}
	}
	if len(doc) != 1 {
		return scalar{enc: encUnknown, payload: v}
	}
	for key, inner := range doc {
		switch key {
		case "$date":
			if nested, ok := inner.(map[string]any); ok {
				if ms, ok := nested["$numberLong"]; ok && len(nested) == 1 {
					return scalar{enc: encDateLong, payload: ms}
				}
				return scalar{enc: encUnknown, payload: v}
			}
			if s, ok := inner.(string); ok {
				return scalar{enc: encDateString, payload: s}
			}
			return scalar{enc: encDateNumber, payload: inner}
		case "$numberInt":
			return scalar{enc: encNumberInt, payload: inner}
		case "$numberLong":
			return scalar{enc: encNumberLong, payload: inner}
		case "$numberDouble":
			return scalar{enc: encNumberDouble, payload: inner}
		case "$numberDecimal":
			return scalar{enc: encNumberDecimal, payload: inner}
		case "$oid":
			return scalar{enc: encObjectID, payload: inner}
		}
	}
	return scalar{enc: encUnknown, payload: v}
}

// ParseInstant converts any supported instant encoding into a UTC time.
func ParseInstant(v any) (time.Time, error) {
	s := classify(v)
	switch s.enc {
	case encMissing:
		return time.Time{}, invalid(nil, "instant is required")
	case encDateLong:
		ms, err := parseIntString(s.payload)
		if err != nil {
			return time.Time{}, err
		}
		return fromMillis(ms)
	case encDateString:
		return parseISO(s.payload.(string))
	case encDateNumber:
		ms, err := nativeInt(s.payload)
		if err != nil {
			return time.Time{}, err
		}
		return fromMillis(ms)
	case encNative:
		switch t := s.payload.(type) {
		case time.Time:
			return checkYear(t.UTC(), v)
		case string:
			return parseISO(t)
		default:
			ms, err := nativeInt(t)
			if err != nil {
				return time.Time{}, invalid(v, "not a date")
			}
			return fromMillis(ms)
		}
	default:
		return time.Time{}, invalid(v, "unsupported instant encoding")
	}
}

// NormalizeInstant returns the canonical ISO-8601 form of an instant.
func NormalizeInstant(v any) (string, error) {
	t, err := ParseInstant(v)
	if err != nil {
		return "", err
	}
	return FormatInstant(t), nil
}

func FormatInstant(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// NormalizeInt returns the native integer behind a number or a wrapped
// decimal-string integer. Fractional values truncate toward zero.
func NormalizeInt(v any) (int64, error) {
	s := classify(v)
	switch s.enc {
	case encMissing:
		return 0, invalid(nil, "integer is required")
	case encNumberInt, encNumberLong:
		return parseIntString(s.payload)
	case encNumberDouble, encNumberDecimal:
		f, err := parseFloatString(s.payload)
		if err != nil {
			return 0, err
		}
		return truncate(f, v)
	case encNative:
		return nativeInt(s.payload)
	default:
		return 0, invalid(v, "unsupported integer encoding")
	}
}

func NormalizeFloat(v any) (float64, error) {
	s := classify(v)
	switch s.enc {
	case encMissing:
		return 0, invalid(nil, "number is required")
	case encNumberInt, encNumberLong, encNumberDouble, encNumberDecimal:
		return parseFloatString(s.payload)
	case encNative:
		return nativeFloat(s.payload)
	default:
		return 0, invalid(v, "unsupported number encoding")
	}
}

// NormalizeDecimal keeps decimal amounts as strings so no precision is lost.
func NormalizeDecimal(v any) (string, error) {
	s := classify(v)
	switch s.enc {
	case encMissing:
		return "", invalid(nil, "decimal is required")
	case encNumberInt, encNumberLong, encNumberDouble, encNumberDecimal:
		str, ok := s.payload.(string)
		if !ok {
			return "", invalid(v, "wrapped decimal must be a string")
		}
		if _, err := parseFloatString(str); err != nil {
			return "", err
		}
		return strings.TrimSpace(str), nil
	case encNative:
		switch t := s.payload.(type) {
		case string:
			return t, nil
		case json.Number:
			return t.String(), nil
		case float32, float64:
			f, err := nativeFloat(t)
			if err != nil {
				return "", err
			}
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		default:
			n, err := nativeInt(t)
			if err != nil {
				return "", invalid(v, "not a decimal")
			}
			return strconv.FormatInt(n, 10), nil
		}
	default:
		return "", invalid(v, "unsupported decimal encoding")
	}
}

// NormalizeID accepts plain string ids, numeric ids and {"$oid": ...}.
func NormalizeID(v any) (string, error) {
	s := classify(v)
	switch s.enc {
	case encMissing:
		return "", invalid(nil, "id is required")
	case encObjectID:
		str, ok := s.payload.(string)
		if !ok || str == "" {
			return "", invalid(v, "malformed object id")
		}
		return str, nil
	case encNative:
		switch t := s.payload.(type) {
		case string:
			if t == "" {
				return "", invalid(v, "id is empty")
			}
			return t, nil
		default:
			n, err := nativeInt(t)
			if err != nil {
				return "", invalid(v, "unsupported id type")
			}
			return strconv.FormatInt(n, 10), nil
		}
	default:
		return "", invalid(v, "unsupported id encoding")
	}
}

// plainValue unwraps scalar markers inside free-form maps and lists.
// Instants come out as canonical strings.
func plainValue(v any) (any, error) {
	s := classify(v)
	switch s.enc {
	case encMissing:
		return nil, nil
	case encDateLong, encDateString, encDateNumber:
		return NormalizeInstant(v)
	case encNumberInt, encNumberLong:
		return NormalizeInt(v)
	case encNumberDouble:
		return NormalizeFloat(v)
	case encNumberDecimal:
		return NormalizeDecimal(v)
	case encObjectID:
		return NormalizeID(v)
	case encUnknown:
		return plainMap(v.(map[string]any))
	}
	switch t := v.(type) {
	case time.Time:
		return NormalizeInstant(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		return nativeFloat(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			p, err := plainValue(item)
			if err != nil {
				return nil, inField("["+strconv.Itoa(i)+"]", err)
			}
			out[i] = p
		}
		return out, nil
	default:
		return v, nil
	}
}

func plainMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		p, err := plainValue(item)
		if err != nil {
			return nil, inField(k, err)
		}
		out[k] = p
	}
	return out, nil
}

// parseISO reads strings without a zone offset as UTC, whatever the host's
// local zone is.
func parseISO(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return checkYear(t.UTC(), raw)
		}
	}
	return time.Time{}, invalid(raw, "not an ISO-8601 date")
}

func fromMillis(ms int64) (time.Time, error) {
	if math.Abs(float64(ms)) > maxEpochMillis {
		return time.Time{}, invalid(ms, "epoch milliseconds out of range")
	}
	return checkYear(time.UnixMilli(ms).UTC(), ms)
}

func checkYear(t time.Time, raw any) (time.Time, error) {
	if t.Year() < 0 || t.Year() > 9999 {
		return time.Time{}, invalid(raw, "year outside 0000-9999")
	}
	return t, nil
}

func parseIntString(p any) (int64, error) {
	str, ok := p.(string)
	if !ok {
		return nativeInt(p)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(str), 10, 64)
	if err != nil {
		return 0, invalid(str, "not a base-10 integer")
	}
	return n, nil
}

func parseFloatString(p any) (float64, error) {
	str, ok := p.(string)
	if !ok {
		return nativeFloat(p)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(str, "not a finite number")
	}
	return f, nil
}

func nativeInt(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int8:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case uint8:
		return int64(t), nil
	case uint16:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case uint64:
		if t > math.MaxInt64 {
			return 0, invalid(v, "integer overflows int64")
		}
		return int64(t), nil
	case float32:
		return truncate(float64(t), v)
	case float64:
		return truncate(t, v)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, invalid(string(t), "not a number")
		}
		return truncate(f, v)
	case string:
		return parseIntString(t)
	default:
		return 0, invalid(v, "not an integer")
	}
}

func nativeFloat(v any) (float64, error) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case json.Number:
		parsed, err := t.Float64()
		if err != nil {
			return 0, invalid(string(t), "not a number")
		}
		f = parsed
	case string:
		return parseFloatString(t)
	default:
		n, err := nativeInt(v)
		if err != nil {
			return 0, invalid(v, "not a number")
		}
		return float64(n), nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid(v, "not a finite number")
	}
	return f, nil
}

func truncate(f float64, raw any) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return 0, invalid(raw, "not a finite integer")
	}
	return int64(math.Trunc(f)), nil
}

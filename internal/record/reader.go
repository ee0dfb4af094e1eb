package record

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// reader pulls typed fields out of a raw document and keeps the first
// failure, so transformers read top to bottom and check err once.
type reader struct {
	doc Document
	err error
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = inField(key, err)
	}
}

func (r *reader) has(key string) bool {
	v, ok := r.doc[key]
	return ok && v != nil
}

func (r *reader) id(key string) string {
	if r.err != nil {
		return ""
	}
	s, err := NormalizeID(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return s
}

// ref reads a soft reference. Absence is allowed and yields "", and ""
// reads back as absence so canonical records transform to themselves.
func (r *reader) ref(key string) string {
	if r.err != nil || !r.has(key) {
		return ""
	}
	if s, ok := r.doc[key].(string); ok && strings.TrimSpace(s) == "" {
		return ""
	}
	return r.id(key)
}

func (r *reader) text(key string) string {
	if r.err != nil {
		return ""
	}
	s, err := textValue(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return s
}

func (r *reader) optText(key string) *string {
	if r.err != nil || !r.has(key) {
		return nil
	}
	s := r.text(key)
	return &s
}

func (r *reader) instant(key string) string {
	if r.err != nil {
		return ""
	}
	s, err := NormalizeInstant(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return s
}

// count reads a required integer no smaller than min.
func (r *reader) count(key string, min int64) int64 {
	if r.err != nil {
		return 0
	}
	n, err := NormalizeInt(r.doc[key])
	if err != nil {
		r.fail(key, err)
		return 0
	}
	if n < min {
		r.fail(key, invalid(n, "must be at least %d", min))
		return 0
	}
	return n
}

func (r *reader) optInt(key string) *int64 {
	if r.err != nil || !r.has(key) {
		return nil
	}
	n := r.count(key, 0)
	return &n
}

func (r *reader) optFloat(key string) *float64 {
	if r.err != nil || !r.has(key) {
		return nil
	}
	f, err := NormalizeFloat(r.doc[key])
	if err != nil {
		r.fail(key, err)
		return nil
	}
	return &f
}

func (r *reader) decimal(key string) string {
	if r.err != nil {
		return ""
	}
	s, err := NormalizeDecimal(r.doc[key])
	if err != nil {
		r.fail(key, err)
	}
	return s
}

// sub returns a nested document when present.
func (r *reader) sub(key string) (Document, bool) {
	if r.err != nil || !r.has(key) {
		return nil, false
	}
	d, ok := r.doc[key].(map[string]any)
	if !ok {
		r.fail(key, invalid(r.doc[key], "expected a document"))
		return nil, false
	}
	return d, true
}

func (r *reader) list(key string) ([]any, bool) {
	if r.err != nil || !r.has(key) {
		return nil, false
	}
	l, ok := r.doc[key].([]any)
	if !ok {
		r.fail(key, invalid(r.doc[key], "expected a list"))
		return nil, false
	}
	return l, true
}

// stringSet reads an optional list of strings, dropping duplicates while
// keeping first-seen order.
func (r *reader) stringSet(key string) []string {
	l, ok := r.list(key)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{}, len(l))
	out := make([]string, 0, len(l))
	for i, item := range l {
		s, err := textValue(item)
		if err != nil {
			r.fail(key, inField("["+strconv.Itoa(i)+"]", err))
			return nil
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func (r *reader) stringList(key string) []string {
	l, ok := r.list(key)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(l))
	for i, item := range l {
		s, err := textValue(item)
		if err != nil {
			r.fail(key, inField("["+strconv.Itoa(i)+"]", err))
			return nil
		}
		out = append(out, s)
	}
	return out
}

func (r *reader) freeform(key string) map[string]any {
	d, ok := r.sub(key)
	if !ok {
		return nil
	}
	m, err := plainMap(d)
	if err != nil {
		r.fail(key, err)
		return nil
	}
	return m
}

func (r *reader) textMap(key string) map[string]string {
	d, ok := r.sub(key)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(d))
	for k, v := range d {
		s, err := textValue(v)
		if err != nil {
			r.fail(key, inField(k, err))
			return nil
		}
		out[k] = s
	}
	return out
}

// enum validates membership in a closed set. Unknown values are errors,
// never mapped to a default.
func enum[T ~string](r *reader, key string, allowed []T) T {
	if r.err != nil {
		return ""
	}
	v := r.doc[key]
	if s, ok := v.(string); ok {
		for _, a := range allowed {
			if T(s) == a {
				return a
			}
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	r.fail(key, invalid(v, "must be one of %s", strings.Join(names, ", ")))
	return ""
}

func textValue(v any) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool, int, int32, int64, float64:
		return fmt.Sprint(t), nil
	case time.Time:
		return FormatInstant(t), nil
	default:
		return "", invalid(v, "expected text")
	}
}

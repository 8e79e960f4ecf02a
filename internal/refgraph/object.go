package refgraph

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Object is a resolved JSON object with lenient typed accessors. Every
// accessor takes a list of candidate keys, matched case-insensitively in
// order, because the two backend lines name the same field differently
// (washOrderId vs detailingOrderId). Missing or mistyped fields yield zero
// values rather than errors.
type Object map[string]any

// AsObject returns v as an Object, or nil.
func AsObject(v any) Object {
	m, _ := v.(map[string]any)
	return Object(m)
}

// AsArray returns v as a slice, unwrapping an unresolved {"$values": [...]}.
func AsArray(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if vals, ok := t[keyValues].([]any); ok {
			return vals
		}
	}
	return nil
}

// Lookup returns the first present value among keys.
func (o Object) Lookup(keys ...string) (any, bool) {
	if o == nil {
		return nil, false
	}
	for _, k := range keys {
		if v, ok := o[k]; ok {
			return v, true
		}
	}
	for _, k := range keys {
		for key, v := range o {
			if strings.EqualFold(key, k) {
				return v, true
			}
		}
	}
	return nil, false
}

// Has reports whether any of keys is present.
func (o Object) Has(keys ...string) bool {
	_, ok := o.Lookup(keys...)
	return ok
}

// String returns the field as text. Numbers are formatted, so numeric ids
// read the same as string ids.
func (o Object) String(keys ...string) string {
	v, _ := o.Lookup(keys...)
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// Bool returns the field as a boolean, accepting "true"/"false" strings.
func (o Object) Bool(keys ...string) bool {
	v, _ := o.Lookup(keys...)
	switch t := v.(type) {
	case bool:
		return t
	case string:
		b, _ := strconv.ParseBool(t)
		return b
	}
	return false
}

// Decimal returns the field as a decimal. The second result is false when
// the field is absent or not numeric.
func (o Object) Decimal(keys ...string) (decimal.Decimal, bool) {
	v, _ := o.Lookup(keys...)
	switch t := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(t))
		return d, err == nil
	case float64:
		return decimal.NewFromFloat(t), true
	}
	return decimal.Zero, false
}

// Int returns the field as an int.
func (o Object) Int(keys ...string) int {
	d, ok := o.Decimal(keys...)
	if !ok {
		return 0
	}
	return int(d.IntPart())
}

// Time parses the field as RFC 3339, falling back to the backend's
// offset-less layout.
func (o Object) Time(keys ...string) time.Time {
	s := o.String(keys...)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Object returns a nested object, or nil.
func (o Object) Object(keys ...string) Object {
	v, _ := o.Lookup(keys...)
	return AsObject(v)
}

// Array returns a nested array, or nil.
func (o Object) Array(keys ...string) []any {
	v, _ := o.Lookup(keys...)
	return AsArray(v)
}

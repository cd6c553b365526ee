package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// fields holds one decoded row. Devices write their own rows, so a column may
// carry an unexpected type; the accessors fall back to nil or zero instead of
// failing the whole result.
type fields map[string]json.RawMessage

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

func (f fields) raw(key string) json.RawMessage {
	raw, ok := f[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

func (f fields) str(key string) *string {
	raw := f.raw(key)
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return &s
}

func (f fields) text(key string) string {
	if s := f.str(key); s != nil {
		return *s
	}
	return ""
}

// float accepts a JSON number or a numeric string.
func (f fields) float(key string) *float64 {
	raw := f.raw(key)
	if raw == nil {
		return nil
	}

	var v float64
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// int64Ptr rounds fractional values to the nearest integer.
func (f fields) int64Ptr(key string) *int64 {
	v := f.float(key)
	if v == nil || math.Abs(*v) > math.MaxInt64 {
		return nil
	}
	n := int64(math.Round(*v))
	return &n
}

func (f fields) intPtr(key string) *int {
	n := f.int64Ptr(key)
	if n == nil {
		return nil
	}
	v := int(*n)
	return &v
}

func (f fields) id(key string) int64 {
	if n := f.int64Ptr(key); n != nil {
		return *n
	}
	return 0
}

// boolPtr accepts true/false or their string forms.
func (f fields) boolPtr(key string) *bool {
	raw := f.raw(key)
	if raw == nil {
		return nil
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return &b
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return nil
	}
	return &b
}

func (f fields) flag(key string) bool {
	if b := f.boolPtr(key); b != nil {
		return *b
	}
	return false
}

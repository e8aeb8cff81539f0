// Package audit holds the integrity core of the audit log: payload sanitizing, event
// classification, HMAC signing, chain verification, anomaly detection and compliance
// aggregation. Everything here is free of I/O except where a repository is passed in.
package audit

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Redacted replaces the value of every sensitive key.
const Redacted = "[REDACTED]"

// sensitiveKeys are matched as lower-case substrings of the key, never of the value.
var sensitiveKeys = []string{
	"password",
	"token",
	"secret",
	"apikey",
	"creditcard",
	"ssn",
	"refreshtoken",
	"accesstoken",
}

// IsSensitiveKey reports whether values stored under key must be redacted.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}

// Sanitize returns a copy of payload with every sensitive key's value replaced by Redacted.
// Objects and arrays are walked depth-first without a depth limit. Values of any other Go type
// (structs, typed maps and slices) are first converted to their JSON form, so struct fields are
// matched by their JSON names. Scalars are returned unchanged and the input is never modified.
func Sanitize(payload any) any {
	switch v := payload.(type) {
	case nil, string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return payload
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			if IsSensitiveKey(key) {
				out[key] = Redacted
				continue
			}
			out[key] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	default:
		generic, err := toGeneric(payload)
		if err != nil {
			// Unserializable values cannot be inspected, so none of them is stored.
			return Redacted
		}
		switch generic.(type) {
		case map[string]any, []any:
			return Sanitize(generic)
		}
		return generic
	}
}

// toGeneric round-trips v through JSON into maps, slices and json.Number scalars.
func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// SanitizeMap is Sanitize specialised for metadata maps.
func SanitizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return Sanitize(m).(map[string]any)
}

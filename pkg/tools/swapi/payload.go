package swapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// UnwantedKeys are metadata keys stripped from upstream records before they
// are embedded in the transcript.
var UnwantedKeys = []string{"created", "edited", "url"}

// StripKeys returns a copy of v with the given keys removed from every
// object, recursively through arrays and nested objects.
func StripKeys(v any, keys ...string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			if contains(keys, k) {
				continue
			}
			out[k] = StripKeys(val, keys...)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = StripKeys(val, keys...)
		}
		return out
	default:
		return v
	}
}

// Encode strips UnwantedKeys from the outcome's records and serializes it,
// capping the result at limit bytes.
func Encode(out Outcome, limit int) (string, error) {
	results, ok := StripKeys(out.Results, UnwantedKeys...).([]any)
	if !ok {
		results = []any{}
	}
	out.Results = results

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return "", fmt.Errorf("swapi: encode outcome: %w", err)
	}

	return Truncate(bytes.TrimRight(buf.Bytes(), "\n"), limit), nil
}

// Truncate returns data as a string of at most limit bytes. A cut that lands
// inside a multi-byte character drops the partial character. A limit <= 0
// disables truncation.
func Truncate(data []byte, limit int) string {
	if limit <= 0 || len(data) <= limit {
		return string(data)
	}
	return strings.ToValidUTF8(string(data[:limit]), "")
}

func contains(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

// Package scrub redacts personally identifying information from strings
// and structured payloads before they are persisted or logged.
package scrub

import (
	"regexp"
	"strings"
)

// Mask is the replacement prefix for matched PII.
const Mask = "[REDACTED]"

// pattern pairs a PII class with its matcher. Application order is fixed;
// a value matching multiple classes receives cascading replacement.
type pattern struct {
	name string
	re   *regexp.Regexp
}

var patterns = []pattern{
	{"email", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"ssn", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"phone", regexp.MustCompile(`\b(?:\+?1[-.]?)?\(?[0-9]{3}\)?[-.]?[0-9]{3}[-.]?[0-9]{4}\b`)},
	{"credit_card", regexp.MustCompile(`\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`)},
	{"ip_address", regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// sensitiveKeys are argument keys whose values are redacted wholesale when
// recording tool calls, regardless of content.
var sensitiveKeys = map[string]struct{}{
	"client_id":      {},
	"client_name":    {},
	"account_number": {},
	"name":           {},
	"email":          {},
}

// Scrub replaces PII substrings with a pattern-tagged placeholder.
// Unmatched text is returned verbatim.
func Scrub(s string) string {
	scrubbed := s
	for _, p := range patterns {
		scrubbed = p.re.ReplaceAllString(scrubbed, Mask+"_"+strings.ToUpper(p.name))
	}
	return scrubbed
}

// ScrubValue scrubs string values, recurses into maps and slices, and
// passes every other type through unchanged.
func ScrubValue(v any) any {
	switch val := v.(type) {
	case string:
		return Scrub(val)
	case map[string]any:
		return ScrubMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ScrubValue(item)
		}
		return out
	default:
		return v
	}
}

// ScrubMap recursively scrubs all string values in a map.
func ScrubMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	scrubbed := make(map[string]any, len(m))
	for k, v := range m {
		scrubbed[k] = ScrubValue(v)
	}
	return scrubbed
}

// RedactSensitive replaces the values of known sensitive keys with the
// bare mask, recursing into nested maps and slices. Non-container values
// are returned unchanged.
func RedactSensitive(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if _, ok := sensitiveKeys[k]; ok {
				out[k] = Mask
				continue
			}
			out[k] = RedactSensitive(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = RedactSensitive(item)
		}
		return out
	default:
		return v
	}
}

// RedactSensitiveMap is RedactSensitive specialized for the common
// map-shaped payloads of tool arguments and results.
func RedactSensitiveMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return RedactSensitive(m).(map[string]any)
}

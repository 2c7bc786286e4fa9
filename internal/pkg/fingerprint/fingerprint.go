// Package fingerprint derives stable identifiers for tool calls from their
// arguments. Two calls with the same tool name and semantically identical
// arguments always produce the same tool ID, regardless of map iteration
// order or request-scoped noise such as timestamps.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
)

// volatileKeys are request-scoped argument keys stripped before hashing.
// Matching is exact and applies to the top level only.
var volatileKeys = map[string]struct{}{
	"as_of":      {},
	"timestamp":  {},
	"request_id": {},
	"now":        {},
}

// Normalize returns a deep copy of args with volatile top-level keys removed.
// The input is never mutated and the result is always non-nil.
func Normalize(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if _, skip := volatileKeys[k]; skip {
			continue
		}
		out[k] = deepCopy(v)
	}
	return out
}

// Fingerprint hashes the normalized canonical form of args and returns the
// first 16 hex characters of the SHA-256 digest.
func Fingerprint(args map[string]any) string {
	data, err := json.Marshal(canonicalize(Normalize(args)))
	if err != nil {
		data = fmt.Appendf(nil, "%v", args)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:16]
}

// ToolID composes the replay lookup key for a tool invocation.
func ToolID(toolName string, args map[string]any) string {
	return toolName + ":" + Fingerprint(args)
}

func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

// canonicalize prepares a value tree for deterministic JSON encoding.
// encoding/json already sorts map keys at every level; values it cannot
// encode are coerced to their %v string form instead of failing the hash.
func canonicalize(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = canonicalize(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = canonicalize(item)
		}
		return out
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Sprintf("%v", val)
		}
		return val
	case nil, string, bool, int, int64, json.Number:
		return val
	default:
		if _, err := json.Marshal(val); err != nil {
			return fmt.Sprintf("%v", val)
		}
		return val
	}
}

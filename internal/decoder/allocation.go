// Package decoder normalizes the heterogeneous allocation field found in
// rebalance history rows. Upstream artifacts were serialized by a different
// ecosystem, so the same column may hold a structured record, strict JSON
// text, or a dict-literal using single quotes.
package decoder

import (
	"encoding/json"
	"strings"

	"backtest-workbench/internal/dto"
)

// attempt is one total decode pass: it reports success instead of erroring.
type attempt func(s string) (*dto.Allocation, bool)

// The attempts run in order and stop at the first success. A third legacy
// format slots in here if one ever appears.
var attempts = []attempt{
	decodeStrictJSON,
	decodeSingleQuoted,
}

// Allocation decodes one field value of unknown shape. ok is false when the
// value is absent or undecodable; it never returns an error.
func Allocation(v interface{}) (*dto.Allocation, bool) {
	if v == nil {
		return nil, false
	}

	// Already-structured records pass through shape-checked.
	switch rec := v.(type) {
	case dto.Allocation:
		return &rec, true
	case *dto.Allocation:
		if rec == nil {
			return nil, false
		}
		return rec, true
	case map[string]interface{}:
		return fromMap(rec), true
	}

	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}

	for _, try := range attempts {
		if alloc, ok := try(s); ok {
			return alloc, true
		}
	}
	return nil, false
}

func decodeStrictJSON(s string) (*dto.Allocation, bool) {
	var alloc dto.Allocation
	if err := json.Unmarshal([]byte(s), &alloc); err != nil {
		return nil, false
	}
	return &alloc, true
}

// decodeSingleQuoted tolerates the dict-literal convention where keys and
// strings are wrapped in single quotes.
func decodeSingleQuoted(s string) (*dto.Allocation, bool) {
	return decodeStrictJSON(strings.ReplaceAll(s, "'", `"`))
}

func fromMap(rec map[string]interface{}) *dto.Allocation {
	return &dto.Allocation{
		Stocks: numberAt(rec, "stocks"),
		Bonds:  numberAt(rec, "bonds"),
		Gold:   numberAt(rec, "gold"),
		Cash:   numberAt(rec, "cash"),
	}
}

func numberAt(rec map[string]interface{}, key string) float64 {
	switch n := rec[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

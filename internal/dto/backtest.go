package dto

// Metrics is the free-form indicator map a run's metrics document decodes
// into. There is no fixed schema; consumers read known keys defensively.
type Metrics map[string]interface{}

// Known indicator keys the dashboard renders. Kept as documentation, not a
// schema: absent keys simply render as missing.
const (
	MetricSortinoRatio = "sortino_ratio"
	MetricSharpeRatio  = "sharpe_ratio"
	MetricCAGR         = "cagr"
	MetricMaxDrawdown  = "max_drawdown"
	MetricTotalReturn  = "total_return"
)

// Number reads a metric as float64, tolerating the numeric shapes a JSON
// decode can produce.
func (m Metrics) Number(key string) (float64, bool) {
	v, ok := m[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// RunSummary is one entry of the run index listing.
type RunSummary struct {
	RunID           string             `json:"run_id"`
	Root            string             `json:"root"`
	LastModifiedISO string             `json:"last_modified_iso"`
	Modes           []string           `json:"modes,omitempty"`
	Metrics         map[string]Metrics `json:"metrics,omitempty"`
}

// RunIndex is the payload of the store's index.json, newest run first.
type RunIndex struct {
	Root string       `json:"root"`
	Runs []RunSummary `json:"runs"`
}

// EquityPoint is one sample of an equity curve. The sequence arrives in
// non-decreasing date order and is never re-sorted here.
type EquityPoint struct {
	Date   string  `json:"date"`
	Equity float64 `json:"equity"`
}

// Allocation is a normalized portfolio allocation. Fields default to 0 when
// absent and need not sum to 100; callers only render magnitudes.
type Allocation struct {
	Stocks float64 `json:"stocks,omitempty"`
	Bonds  float64 `json:"bonds,omitempty"`
	Gold   float64 `json:"gold,omitempty"`
	Cash   float64 `json:"cash,omitempty"`
}

// HistoryRow is one rebalance event. Date, Equity and Allocation carry
// semantic meaning; every other column passes through untouched in Fields.
// When the equity column does not parse as a number it is kept as raw text
// rather than dropped.
type HistoryRow struct {
	Date       string            `json:"date"`
	Equity     *float64          `json:"equity,omitempty"`
	EquityRaw  string            `json:"equity_raw,omitempty"`
	Allocation *Allocation       `json:"allocation,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
}

// RunDetail is the full assembled view of one run. Files records per-artifact
// presence so an absent artifact is distinguishable from an empty one. Each
// load produces a fresh snapshot; nothing here is mutated after assembly.
type RunDetail struct {
	RunID        string                   `json:"run_id"`
	Root         string                   `json:"root"`
	Files        map[string]bool          `json:"files"`
	Config       map[string]interface{}   `json:"config,omitempty"`
	Metrics      map[string]Metrics       `json:"metrics,omitempty"`
	Equity       map[string][]EquityPoint `json:"equity,omitempty"`
	History      map[string][]HistoryRow  `json:"history,omitempty"`
	ComparisonMD *string                  `json:"comparison_md,omitempty"`
	DefaultMode  string                   `json:"default_mode,omitempty"`
}

// Modes a run's strategy logic can execute in: A is committee-driven, B is
// signal-driven.
var KnownModes = []string{"A", "B"}

package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Expectation is one declarative numeric assertion inside a scenario.
type Expectation struct {
	Op        string   `json:"op"`
	Value     float64  `json:"value"`
	Tolerance *float64 `json:"tol,omitempty"`
	Scope     string   `json:"scope,omitempty"`
}

// Expectation scopes. An empty scope applies the validation service's
// default resolution rule.
const (
	ScopeMultipliers = "multipliers"
	ScopeAbsolute    = "absolute"
)

// ExpectationEntry pairs an assertion with the metric key it targets.
type ExpectationEntry struct {
	Key string
	Expectation
}

// Expectations preserves the declaration order of a scenario's assertion map
// so reports diff reproducibly. It round-trips JSON as an object.
type Expectations []ExpectationEntry

func (e *Expectations) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expectations: expected object, got %v", tok)
	}

	out := Expectations{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expectations: non-string key %v", keyTok)
		}
		var exp Expectation
		if err := dec.Decode(&exp); err != nil {
			return err
		}
		out = append(out, ExpectationEntry{Key: key, Expectation: exp})
	}

	*e = out
	return nil
}

func (e Expectations) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(entry.Expectation)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Scenario is a named, reusable stress-test input for the Policy Gate.
type Scenario struct {
	ID             string                 `json:"id" validate:"required"`
	Label          string                 `json:"label" validate:"required"`
	Description    string                 `json:"description,omitempty"`
	Features       map[string]interface{} `json:"features,omitempty"`
	PortfolioState map[string]interface{} `json:"portfolio_state,omitempty"`
	Tags           []string               `json:"tags,omitempty"`
	Expectations   Expectations           `json:"expectations,omitempty"`
}

// DisplayLabel falls back to the identifier when no label was authored.
func (s Scenario) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return s.ID
}

// ValidationReport is the verdict of evaluating one scenario's expectations,
// one explanation line per assertion in declaration order.
type ValidationReport struct {
	Passed  bool     `json:"passed"`
	Details []string `json:"details"`
}

// BatchReportItem is one scenario's outcome inside a batch run.
type BatchReportItem struct {
	Scenario string   `json:"scenario"`
	Passed   bool     `json:"passed"`
	Details  []string `json:"details"`
}

// BatchReport is the scorecard of a full regression run. Counts are derived
// from the items so total == passed + failed by construction.
type BatchReport struct {
	Total  int               `json:"total"`
	Passed int               `json:"passed"`
	Failed int               `json:"failed"`
	Items  []BatchReportItem `json:"items"`
}

// NewBatchReport derives the aggregate counts from items.
func NewBatchReport(items []BatchReportItem) *BatchReport {
	report := &BatchReport{
		Total: len(items),
		Items: items,
	}
	for _, item := range items {
		if item.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	return report
}

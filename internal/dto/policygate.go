package dto

// GateRequest is the synchronous computation request sent to the Policy Gate
// collaborator: free text plus the structured market and portfolio context,
// with optional constraints and a result-size hint.
type GateRequest struct {
	Text           string                 `json:"text"`
	Features       map[string]interface{} `json:"features,omitempty"`
	PortfolioState map[string]interface{} `json:"portfolio_state,omitempty"`
	Constraints    map[string]interface{} `json:"constraints,omitempty"`
	TopK           int                    `json:"top_k,omitempty"`
}

// RiskOverlay is the computed set of guardrails: multiplicative scalers and
// absolute caps keyed by metric name.
type RiskOverlay struct {
	Multipliers map[string]float64 `json:"multipliers"`
	Absolute    map[string]float64 `json:"absolute"`
}

// RouterRank is one entry of the gate's ranking of rule sources.
type RouterRank struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// RuleHit is one piece of rule evidence behind a gate decision.
type RuleHit struct {
	RuleID   string `json:"rule_id"`
	Evidence string `json:"evidence,omitempty"`
}

// GateResponse is the Policy Gate's answer. Only RiskOverlay feeds the
// expectation evaluator; the rest is display context.
type GateResponse struct {
	Regime        string       `json:"regime"`
	MatchedTags   []string     `json:"matched_tags,omitempty"`
	RouterRanking []RouterRank `json:"router_ranking,omitempty"`
	RuleHits      []RuleHit    `json:"rule_hits,omitempty"`
	RiskOverlay   RiskOverlay  `json:"risk_overlay"`
}

// Regimes the gate classifies into.
const (
	RegimeBull     = "bull"
	RegimeBear     = "bear"
	RegimeSideways = "sideways"
	RegimeCrisis   = "crisis"
)

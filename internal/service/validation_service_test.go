package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtest-workbench/config"
	"backtest-workbench/internal/dto"
	"backtest-workbench/pkg/logger"
)

type stubScenarioRepo struct {
	scenarios []dto.Scenario
	listErr   error
	saved     []dto.Scenario
}

func (s *stubScenarioRepo) List(_ context.Context) ([]dto.Scenario, error) {
	return s.scenarios, s.listErr
}

func (s *stubScenarioRepo) Save(_ context.Context, scenarios []dto.Scenario) error {
	s.saved = scenarios
	return nil
}

// stubGateRepo answers per scenario description so concurrent batch runs can
// exercise distinct outcomes.
type stubGateRepo struct {
	overlays map[string]dto.RiskOverlay
	errs     map[string]error
}

func (s *stubGateRepo) Evaluate(_ context.Context, req dto.GateRequest) (*dto.GateResponse, error) {
	if err := s.errs[req.Text]; err != nil {
		return nil, err
	}
	return &dto.GateResponse{RiskOverlay: s.overlays[req.Text]}, nil
}

func newTestValidationService(scenarioRepo *stubScenarioRepo, gateRepo *stubGateRepo) ValidationService {
	cfg := &config.Config{}
	cfg.Engine.BatchConcurrency = 3
	return NewValidationService(cfg, logger.Nop(), scenarioRepo, gateRepo)
}

func floatPtr(f float64) *float64 { return &f }

func TestEvaluateExpectations(t *testing.T) {
	overlay := dto.RiskOverlay{
		Multipliers: map[string]float64{"risk_multiplier": 0.75},
		Absolute:    map[string]float64{"max_stocks_pct": 40, "min_cash_pct": 20},
	}

	tests := []struct {
		name        string
		exps        dto.Expectations
		wantPassed  bool
		wantDetails []string
	}{
		{
			name: "upper bound holds",
			exps: dto.Expectations{
				{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<=", Value: 0.8}},
			},
			wantPassed:  true,
			wantDetails: []string{"PASS risk_multiplier <= 0.8 (actual 0.75)"},
		},
		{
			name: "upper bound violated",
			exps: dto.Expectations{
				{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<=", Value: 0.5}},
			},
			wantPassed:  false,
			wantDetails: []string{"FAIL risk_multiplier <= 0.5 (actual 0.75)"},
		},
		{
			name: "approximate within explicit tolerance",
			exps: dto.Expectations{
				{Key: "max_stocks_pct", Expectation: dto.Expectation{Op: "~", Value: 42, Tolerance: floatPtr(3)}},
			},
			wantPassed:  true,
			wantDetails: []string{"PASS max_stocks_pct ~ 42 ±3 (actual 40)"},
		},
		{
			name: "approximate outside explicit tolerance",
			exps: dto.Expectations{
				{Key: "max_stocks_pct", Expectation: dto.Expectation{Op: "~", Value: 45, Tolerance: floatPtr(3)}},
			},
			wantPassed:  false,
			wantDetails: []string{"FAIL max_stocks_pct ~ 45 ±3 (actual 40)"},
		},
		{
			name: "approximate default tolerance",
			exps: dto.Expectations{
				{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "approx", Value: 0.78}},
			},
			wantPassed:  true,
			wantDetails: []string{"PASS risk_multiplier approx 0.78 ±0.05 (actual 0.75)"},
		},
		{
			name: "typographic operator spellings",
			exps: dto.Expectations{
				{Key: "min_cash_pct", Expectation: dto.Expectation{Op: "≥", Value: 15}},
				{Key: "min_cash_pct", Expectation: dto.Expectation{Op: "≠", Value: 10}},
			},
			wantPassed: true,
			wantDetails: []string{
				"PASS min_cash_pct ≥ 15 (actual 20)",
				"PASS min_cash_pct ≠ 10 (actual 20)",
			},
		},
		{
			name: "missing metric fails that assertion only",
			exps: dto.Expectations{
				{Key: "max_leverage", Expectation: dto.Expectation{Op: "<=", Value: 1}},
				{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<", Value: 1}},
			},
			wantPassed: false,
			wantDetails: []string{
				"FAIL max_leverage: metric not found in risk overlay",
				"PASS risk_multiplier < 1 (actual 0.75)",
			},
		},
		{
			name: "unknown operator fails that assertion",
			exps: dto.Expectations{
				{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<>", Value: 1}},
			},
			wantPassed:  false,
			wantDetails: []string{`FAIL risk_multiplier: unknown operator "<>"`},
		},
		{
			name:        "no expectations vacuously pass",
			exps:        dto.Expectations{},
			wantPassed:  true,
			wantDetails: []string{},
		},
	}

	svc := newTestValidationService(&stubScenarioRepo{}, &stubGateRepo{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := svc.EvaluateExpectations(overlay, tt.exps)
			assert.Equal(t, tt.wantPassed, report.Passed)
			assert.Equal(t, tt.wantDetails, report.Details)
		})
	}
}

func TestEvaluateExpectations_Scopes(t *testing.T) {
	// The same key lives in both maps with different values, so the detail
	// line tells which map was read.
	overlay := dto.RiskOverlay{
		Multipliers: map[string]float64{"stocks": 0.5, "bonds": 1.2, "risk_multiplier": 0.6},
		Absolute:    map[string]float64{"stocks": 35},
	}

	tests := []struct {
		name       string
		entry      dto.ExpectationEntry
		wantDetail string
	}{
		{
			name:       "explicit multipliers scope",
			entry:      dto.ExpectationEntry{Key: "stocks", Expectation: dto.Expectation{Op: "=", Value: 0.5, Scope: dto.ScopeMultipliers}},
			wantDetail: "PASS stocks = 0.5 (actual 0.5)",
		},
		{
			name:       "explicit absolute scope",
			entry:      dto.ExpectationEntry{Key: "stocks", Expectation: dto.Expectation{Op: "=", Value: 35, Scope: dto.ScopeAbsolute}},
			wantDetail: "PASS stocks = 35 (actual 35)",
		},
		{
			name:       "default scope prefers guardrails",
			entry:      dto.ExpectationEntry{Key: "stocks", Expectation: dto.Expectation{Op: "=", Value: 35}},
			wantDetail: "PASS stocks = 35 (actual 35)",
		},
		{
			name:       "default scope routes risk_multiplier to multipliers",
			entry:      dto.ExpectationEntry{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "=", Value: 0.6}},
			wantDetail: "PASS risk_multiplier = 0.6 (actual 0.6)",
		},
		{
			name:       "default scope falls back to multipliers",
			entry:      dto.ExpectationEntry{Key: "bonds", Expectation: dto.Expectation{Op: "=", Value: 1.2}},
			wantDetail: "PASS bonds = 1.2 (actual 1.2)",
		},
		{
			name:       "unknown scope uses the default rule",
			entry:      dto.ExpectationEntry{Key: "stocks", Expectation: dto.Expectation{Op: "=", Value: 35, Scope: "unknown_scope"}},
			wantDetail: "PASS stocks = 35 (actual 35)",
		},
	}

	svc := newTestValidationService(&stubScenarioRepo{}, &stubGateRepo{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := svc.EvaluateExpectations(overlay, dto.Expectations{tt.entry})
			require.Len(t, report.Details, 1)
			assert.Equal(t, tt.wantDetail, report.Details[0])
		})
	}
}

func TestExpectations_JSONOrderPreserved(t *testing.T) {
	raw := `{
		"zeta": {"op": "<=", "value": 1},
		"alpha": {"op": "~", "value": 0.5, "tol": 0.1},
		"mid": {"op": ">", "value": 0, "scope": "absolute"}
	}`

	var exps dto.Expectations
	require.NoError(t, json.Unmarshal([]byte(raw), &exps))
	require.Len(t, exps, 3)

	assert.Equal(t, "zeta", exps[0].Key)
	assert.Equal(t, "alpha", exps[1].Key)
	assert.Equal(t, "mid", exps[2].Key)
	assert.Equal(t, 0.1, *exps[1].Tolerance)
	assert.Equal(t, dto.ScopeAbsolute, exps[2].Scope)

	out, err := json.Marshal(exps)
	require.NoError(t, err)
	assert.Equal(t,
		`{"zeta":{"op":"<=","value":1},"alpha":{"op":"~","value":0.5,"tol":0.1},"mid":{"op":">","value":0,"scope":"absolute"}}`,
		string(out))
}

func TestValidateScenario(t *testing.T) {
	gateRepo := &stubGateRepo{
		overlays: map[string]dto.RiskOverlay{
			"a deep crisis": {
				Multipliers: map[string]float64{"risk_multiplier": 0.4},
				Absolute:    map[string]float64{"max_stocks_pct": 25},
			},
		},
	}
	svc := newTestValidationService(&stubScenarioRepo{}, gateRepo)

	report, err := svc.ValidateScenario(context.Background(), dto.Scenario{
		ID:          "crisis-1",
		Label:       "Crisis floor",
		Description: "a deep crisis",
		Expectations: dto.Expectations{
			{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<=", Value: 0.5}},
			{Key: "max_stocks_pct", Expectation: dto.Expectation{Op: "<", Value: 30}},
		},
	})
	require.NoError(t, err)
	assert.True(t, report.Passed)
	assert.Len(t, report.Details, 2)
}

func TestValidateScenarioByID(t *testing.T) {
	scenarioRepo := &stubScenarioRepo{scenarios: []dto.Scenario{
		{ID: "s1", Label: "One", Description: "one"},
		{ID: "s2", Label: "Two", Description: "two"},
	}}
	gateRepo := &stubGateRepo{overlays: map[string]dto.RiskOverlay{
		"two": {Multipliers: map[string]float64{"risk_multiplier": 1}},
	}}
	svc := newTestValidationService(scenarioRepo, gateRepo)

	report, err := svc.ValidateScenarioByID(context.Background(), "s2")
	require.NoError(t, err)
	assert.True(t, report.Passed)

	_, err = svc.ValidateScenarioByID(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScenarioNotFound)
	assert.Contains(t, err.Error(), `scenario "missing"`)
}

func TestValidateAll(t *testing.T) {
	scenarios := make([]dto.Scenario, 0, 6)
	overlays := make(map[string]dto.RiskOverlay, 6)
	for i := 0; i < 6; i++ {
		desc := fmt.Sprintf("scenario %d", i)
		// Even scenarios satisfy their expectation, odd ones do not.
		scenarios = append(scenarios, dto.Scenario{
			ID:          fmt.Sprintf("s%d", i),
			Label:       fmt.Sprintf("Scenario %d", i),
			Description: desc,
			Expectations: dto.Expectations{
				{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<=", Value: 1}},
			},
		})
		value := 0.9
		if i%2 == 1 {
			value = 1.5
		}
		overlays[desc] = dto.RiskOverlay{Multipliers: map[string]float64{"risk_multiplier": value}}
	}

	svc := newTestValidationService(&stubScenarioRepo{scenarios: scenarios}, &stubGateRepo{overlays: overlays})

	report, err := svc.ValidateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, report.Total)
	assert.Equal(t, 3, report.Passed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, report.Total, report.Passed+report.Failed)

	// Items keep scenario declaration order regardless of completion order.
	require.Len(t, report.Items, 6)
	for i, item := range report.Items {
		assert.Equal(t, fmt.Sprintf("Scenario %d", i), item.Scenario)
		assert.Equal(t, i%2 == 0, item.Passed)
	}
}

func TestValidateAll_GateFailureIsolated(t *testing.T) {
	scenarios := []dto.Scenario{
		{ID: "ok", Label: "Fine", Description: "fine",
			Expectations: dto.Expectations{{Key: "risk_multiplier", Expectation: dto.Expectation{Op: "<=", Value: 1}}}},
		{ID: "broken", Label: "Broken", Description: "broken"},
	}
	gateRepo := &stubGateRepo{
		overlays: map[string]dto.RiskOverlay{
			"fine": {Multipliers: map[string]float64{"risk_multiplier": 0.5}},
		},
		errs: map[string]error{"broken": errors.New("policy gate: connection refused")},
	}
	svc := newTestValidationService(&stubScenarioRepo{scenarios: scenarios}, gateRepo)

	report, err := svc.ValidateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Passed)
	assert.Equal(t, 1, report.Failed)

	assert.True(t, report.Items[0].Passed)
	assert.False(t, report.Items[1].Passed)
	assert.Equal(t, []string{"policy gate: connection refused"}, report.Items[1].Details)
}

func TestValidateAll_ListFailureSurfaces(t *testing.T) {
	svc := newTestValidationService(&stubScenarioRepo{listErr: errors.New("boom")}, &stubGateRepo{})

	_, err := svc.ValidateAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load scenarios")
}

func TestScenarioDisplayLabel(t *testing.T) {
	assert.Equal(t, "Named", dto.Scenario{ID: "x", Label: "Named"}.DisplayLabel())
	assert.Equal(t, "x", dto.Scenario{ID: "x"}.DisplayLabel())
}

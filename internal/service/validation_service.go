package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"backtest-workbench/config"
	"backtest-workbench/internal/dto"
	"backtest-workbench/internal/repository"
	"backtest-workbench/pkg/logger"
)

// DefaultTolerance applies when an approximate expectation omits its own.
const DefaultTolerance = 0.05

// ErrScenarioNotFound reports a lookup for an identifier the scenario library
// does not contain.
var ErrScenarioNotFound = errors.New("scenario not found")

// ValidationService checks declarative scenario expectations against the
// risk overlay the Policy Gate computes.
type ValidationService interface {
	// EvaluateExpectations is the pure core: no collaborator calls.
	EvaluateExpectations(overlay dto.RiskOverlay, exps dto.Expectations) dto.ValidationReport
	ValidateScenario(ctx context.Context, scenario dto.Scenario) (*dto.ValidationReport, error)
	ValidateScenarioByID(ctx context.Context, id string) (*dto.ValidationReport, error)
	ValidateAll(ctx context.Context) (*dto.BatchReport, error)
	ListScenarios(ctx context.Context) ([]dto.Scenario, error)
	SaveScenarios(ctx context.Context, scenarios []dto.Scenario) error
}

type validationService struct {
	cfg            *config.Config
	log            *logger.Logger
	scenarioRepo   repository.ScenarioRepository
	policyGateRepo repository.PolicyGateRepository
}

func NewValidationService(
	cfg *config.Config,
	log *logger.Logger,
	scenarioRepo repository.ScenarioRepository,
	policyGateRepo repository.PolicyGateRepository,
) ValidationService {
	return &validationService{
		cfg:            cfg,
		log:            log,
		scenarioRepo:   scenarioRepo,
		policyGateRepo: policyGateRepo,
	}
}

// comparator decides one assertion. tol only matters to approximate equality.
type comparator func(actual, expected, tol float64) bool

// approximate reports whether an operator token means approximate equality,
// which changes how the explanation line is rendered.
var approximate = map[string]bool{"~": true, "≈": true, "approx": true}

// The operator table accepts both the ASCII and the typographic spellings
// scenarios have been authored with.
var comparators = map[string]comparator{
	"<=":     func(a, e, _ float64) bool { return a <= e },
	"≤":      func(a, e, _ float64) bool { return a <= e },
	">=":     func(a, e, _ float64) bool { return a >= e },
	"≥":      func(a, e, _ float64) bool { return a >= e },
	"<":      func(a, e, _ float64) bool { return a < e },
	">":      func(a, e, _ float64) bool { return a > e },
	"=":      func(a, e, _ float64) bool { return a == e },
	"==":     func(a, e, _ float64) bool { return a == e },
	"!=":     func(a, e, _ float64) bool { return a != e },
	"≠":      func(a, e, _ float64) bool { return a != e },
	"~":      func(a, e, tol float64) bool { return math.Abs(a-e) <= tol },
	"≈":      func(a, e, tol float64) bool { return math.Abs(a-e) <= tol },
	"approx": func(a, e, tol float64) bool { return math.Abs(a-e) <= tol },
}

// resolver looks an expectation key up in the overlay.
type resolver func(overlay dto.RiskOverlay, key string) (float64, bool)

// The scope decision table. The empty-scope rule is observed convention, not
// a stated invariant: "risk_multiplier" reads the multiplier map, everything
// else reads guardrails first and falls back to multipliers.
var scopeResolvers = map[string]resolver{
	dto.ScopeMultipliers: func(o dto.RiskOverlay, key string) (float64, bool) {
		v, ok := o.Multipliers[key]
		return v, ok
	},
	dto.ScopeAbsolute: func(o dto.RiskOverlay, key string) (float64, bool) {
		v, ok := o.Absolute[key]
		return v, ok
	},
	"": func(o dto.RiskOverlay, key string) (float64, bool) {
		if key == "risk_multiplier" {
			v, ok := o.Multipliers[key]
			return v, ok
		}
		if v, ok := o.Absolute[key]; ok {
			return v, true
		}
		v, ok := o.Multipliers[key]
		return v, ok
	},
}

// EvaluateExpectations produces one explanation line per assertion, in
// declaration order. A malformed entry (unknown operator, unresolvable
// metric) fails that assertion with a message; it never panics or errors, so
// one bad scenario cannot take down a batch run.
func (s *validationService) EvaluateExpectations(overlay dto.RiskOverlay, exps dto.Expectations) dto.ValidationReport {
	report := dto.ValidationReport{Passed: true, Details: make([]string, 0, len(exps))}

	for _, entry := range exps {
		ok, detail := evaluateEntry(overlay, entry)
		if !ok {
			report.Passed = false
		}
		report.Details = append(report.Details, detail)
	}
	return report
}

func evaluateEntry(overlay dto.RiskOverlay, entry dto.ExpectationEntry) (bool, string) {
	resolve, ok := scopeResolvers[entry.Scope]
	if !ok {
		// Unknown scope falls back to the default rule rather than failing:
		// the key may still resolve.
		resolve = scopeResolvers[""]
	}

	compare, ok := comparators[entry.Op]
	if !ok {
		return false, fmt.Sprintf("FAIL %s: unknown operator %q", entry.Key, entry.Op)
	}

	actual, found := resolve(overlay, entry.Key)
	if !found {
		return false, fmt.Sprintf("FAIL %s: metric not found in risk overlay", entry.Key)
	}
	if math.IsNaN(actual) || math.IsInf(actual, 0) {
		return false, fmt.Sprintf("FAIL %s: actual value is not finite", entry.Key)
	}

	tol := DefaultTolerance
	if entry.Tolerance != nil {
		tol = *entry.Tolerance
	}

	passed := compare(actual, entry.Value, tol)
	prefix := "PASS"
	if !passed {
		prefix = "FAIL"
	}

	if approximate[entry.Op] {
		return passed, fmt.Sprintf("%s %s %s %g ±%g (actual %g)", prefix, entry.Key, entry.Op, entry.Value, tol, actual)
	}
	return passed, fmt.Sprintf("%s %s %s %g (actual %g)", prefix, entry.Key, entry.Op, entry.Value, actual)
}

// ValidateScenario computes the scenario's risk overlay through the Policy
// Gate and evaluates the expectations against it.
func (s *validationService) ValidateScenario(ctx context.Context, scenario dto.Scenario) (*dto.ValidationReport, error) {
	gate, err := s.policyGateRepo.Evaluate(ctx, dto.GateRequest{
		Text:           scenario.Description,
		Features:       scenario.Features,
		PortfolioState: scenario.PortfolioState,
	})
	if err != nil {
		return nil, err
	}

	report := s.EvaluateExpectations(gate.RiskOverlay, scenario.Expectations)
	return &report, nil
}

func (s *validationService) ValidateScenarioByID(ctx context.Context, id string) (*dto.ValidationReport, error) {
	scenarios, err := s.scenarioRepo.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, scenario := range scenarios {
		if scenario.ID == id {
			return s.ValidateScenario(ctx, scenario)
		}
	}
	return nil, fmt.Errorf("scenario %q: %w", id, ErrScenarioNotFound)
}

// ValidateAll runs every known scenario through the gate and aggregates a
// scorecard. One scenario's transport failure becomes a failing item with
// the error as its sole detail line; only an unfetchable scenario list
// surfaces as an error, since then there is nothing to validate. Items keep
// scenario declaration order regardless of completion order.
func (s *validationService) ValidateAll(ctx context.Context) (*dto.BatchReport, error) {
	scenarios, err := s.scenarioRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load scenarios: %w", err)
	}

	items := make([]dto.BatchReportItem, len(scenarios))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.batchConcurrency())

	for i, scenario := range scenarios {
		i, scenario := i, scenario
		g.Go(func() error {
			report, err := s.ValidateScenario(gctx, scenario)
			if err != nil {
				s.log.WarnContext(gctx, "Scenario computation failed, recorded as failing item",
					logger.StringField("scenario", scenario.ID),
					logger.ErrorField(err),
				)
				items[i] = dto.BatchReportItem{
					Scenario: scenario.DisplayLabel(),
					Passed:   false,
					Details:  []string{err.Error()},
				}
				return nil
			}
			items[i] = dto.BatchReportItem{
				Scenario: scenario.DisplayLabel(),
				Passed:   report.Passed,
				Details:  report.Details,
			}
			return nil
		})
	}

	_ = g.Wait()

	return dto.NewBatchReport(items), nil
}

func (s *validationService) ListScenarios(ctx context.Context) ([]dto.Scenario, error) {
	return s.scenarioRepo.List(ctx)
}

func (s *validationService) SaveScenarios(ctx context.Context, scenarios []dto.Scenario) error {
	return s.scenarioRepo.Save(ctx, scenarios)
}

func (s *validationService) batchConcurrency() int {
	if s.cfg.Engine.BatchConcurrency > 0 {
		return s.cfg.Engine.BatchConcurrency
	}
	return 1
}

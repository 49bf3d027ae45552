package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"backtest-workbench/config"
	"backtest-workbench/internal/dto"
	"backtest-workbench/pkg/httpclient"
	"backtest-workbench/pkg/logger"
)

// ScenarioRepository speaks to the scenario collaborator: GET the full list,
// POST a replacement list.
type ScenarioRepository interface {
	List(ctx context.Context) ([]dto.Scenario, error)
	Save(ctx context.Context, scenarios []dto.Scenario) error
}

type scenarioRepository struct {
	cfg        *config.Config
	log        *logger.Logger
	httpClient httpclient.HTTPClient
}

func NewScenarioRepository(cfg *config.Config, log *logger.Logger) ScenarioRepository {
	return &scenarioRepository{
		cfg:        cfg,
		log:        log,
		httpClient: httpclient.New(cfg.Scenarios.BaseURL, cfg.Scenarios.BaseTimeout, cfg.Scenarios.BearerToken),
	}
}

func (r *scenarioRepository) List(ctx context.Context) ([]dto.Scenario, error) {
	resp, err := r.httpClient.Get(ctx, "/scenarios", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch scenarios: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch scenarios: unexpected status %d", resp.StatusCode)
	}

	// The collaborator answers either a bare array or {"scenarios": [...]}.
	var scenarios []dto.Scenario
	if err := json.Unmarshal(resp.Body, &scenarios); err == nil {
		return scenarios, nil
	}
	var wrapped struct {
		Scenarios []dto.Scenario `json:"scenarios"`
	}
	if err := json.Unmarshal(resp.Body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode scenarios: %w", err)
	}
	return wrapped.Scenarios, nil
}

func (r *scenarioRepository) Save(ctx context.Context, scenarios []dto.Scenario) error {
	resp, err := r.httpClient.Post(ctx, "/scenarios", scenarios, nil)
	if err != nil {
		return fmt.Errorf("save scenarios: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		r.log.WarnContext(ctx, "Scenario save returned NON-200",
			logger.IntField("status_code", resp.StatusCode),
		)
		return fmt.Errorf("save scenarios: unexpected status %d", resp.StatusCode)
	}
	return nil
}

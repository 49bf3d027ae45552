package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"backtest-workbench/config"
	"backtest-workbench/internal/dto"
	"backtest-workbench/pkg/httpclient"
	"backtest-workbench/pkg/logger"
)

// PolicyGateRepository runs one synchronous risk-overlay computation per
// request against the Policy Gate collaborator.
type PolicyGateRepository interface {
	Evaluate(ctx context.Context, req dto.GateRequest) (*dto.GateResponse, error)
}

type policyGateRepository struct {
	cfg        *config.Config
	log        *logger.Logger
	httpClient httpclient.HTTPClient
	limiter    *rate.Limiter
}

func NewPolicyGateRepository(cfg *config.Config, log *logger.Logger) PolicyGateRepository {
	return &policyGateRepository{
		cfg:        cfg,
		log:        log,
		httpClient: httpclient.New(cfg.PolicyGate.BaseURL, cfg.PolicyGate.BaseTimeout, cfg.PolicyGate.BearerToken),
		limiter:    rate.NewLimiter(rate.Limit(cfg.PolicyGate.MaxRequestPerSec), cfg.PolicyGate.RequestBurst),
	}
}

func (r *policyGateRepository) Evaluate(ctx context.Context, req dto.GateRequest) (*dto.GateResponse, error) {
	// Gate computations are expensive; throttle before sending.
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("policy gate throttle: %w", err)
	}

	if req.TopK == 0 {
		req.TopK = r.cfg.PolicyGate.TopK
	}

	resp, err := r.httpClient.Post(ctx, "/evaluate", req, nil)
	if err != nil {
		return nil, fmt.Errorf("policy gate request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		r.log.WarnContext(ctx, "Policy gate returned NON-200",
			logger.IntField("status_code", resp.StatusCode),
		)
		return nil, fmt.Errorf("policy gate request: unexpected status %d", resp.StatusCode)
	}

	var gate dto.GateResponse
	if err := json.Unmarshal(resp.Body, &gate); err != nil {
		return nil, fmt.Errorf("decode policy gate response: %w", err)
	}
	return &gate, nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"backtest-workbench/config"
	"backtest-workbench/internal/dto"
	"backtest-workbench/pkg/httpclient"
	"backtest-workbench/pkg/logger"
)

// Artifact names a run directory may contain.
const (
	ArtifactIndex      = "index.json"
	ArtifactRunConfig  = "run_config.json"
	ArtifactComparison = "comparison.md"
)

func ArtifactMetrics(mode string) string     { return fmt.Sprintf("metrics_%s.json", mode) }
func ArtifactEquityCurve(mode string) string { return fmt.Sprintf("equity_curve_%s.csv", mode) }
func ArtifactHistory(mode string) string     { return fmt.Sprintf("history_%s.csv", mode) }

// ArtifactRepository reads the per-run artifacts from the remote store.
//
// The second return reports presence: a missing run directory, a 404 and an
// undecodable document all come back as (zero, false, nil) so the assembler
// can record absence without aborting the rest of the fetch fan-out. Only
// transport-level failures return an error.
type ArtifactRepository interface {
	Index(ctx context.Context) (*dto.RunIndex, error)
	RunConfig(ctx context.Context, runID string) (map[string]interface{}, bool, error)
	Metrics(ctx context.Context, runID, mode string) (dto.Metrics, bool, error)
	EquityCurve(ctx context.Context, runID, mode string) (string, bool, error)
	History(ctx context.Context, runID, mode string) (string, bool, error)
	Comparison(ctx context.Context, runID string) (string, bool, error)
}

type artifactRepository struct {
	cfg        *config.Config
	log        *logger.Logger
	httpClient httpclient.HTTPClient
}

func NewArtifactRepository(cfg *config.Config, log *logger.Logger) ArtifactRepository {
	return &artifactRepository{
		cfg:        cfg,
		log:        log,
		httpClient: httpclient.New(cfg.Storage.BaseURL, cfg.Storage.BaseTimeout, cfg.Storage.BearerToken),
	}
}

func (r *artifactRepository) Index(ctx context.Context) (*dto.RunIndex, error) {
	resp, err := r.httpClient.Get(ctx, "/"+ArtifactIndex, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch run index: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch run index: unexpected status %d", resp.StatusCode)
	}

	var index dto.RunIndex
	if err := json.Unmarshal(resp.Body, &index); err != nil {
		return nil, fmt.Errorf("decode run index: %w", err)
	}
	return &index, nil
}

func (r *artifactRepository) RunConfig(ctx context.Context, runID string) (map[string]interface{}, bool, error) {
	body, ok, err := r.fetch(ctx, runID, ArtifactRunConfig)
	if err != nil || !ok {
		return nil, false, err
	}

	var cfg map[string]interface{}
	if err := json.Unmarshal(body, &cfg); err != nil {
		r.log.WarnContext(ctx, "Undecodable run config treated as absent",
			logger.StringField("run_id", runID),
			logger.ErrorField(err),
		)
		return nil, false, nil
	}
	return cfg, true, nil
}

func (r *artifactRepository) Metrics(ctx context.Context, runID, mode string) (dto.Metrics, bool, error) {
	body, ok, err := r.fetch(ctx, runID, ArtifactMetrics(mode))
	if err != nil || !ok {
		return nil, false, err
	}

	var metrics dto.Metrics
	if err := json.Unmarshal(body, &metrics); err != nil {
		r.log.WarnContext(ctx, "Undecodable metrics treated as absent",
			logger.StringField("run_id", runID),
			logger.StringField("mode", mode),
			logger.ErrorField(err),
		)
		return nil, false, nil
	}
	return metrics, true, nil
}

func (r *artifactRepository) EquityCurve(ctx context.Context, runID, mode string) (string, bool, error) {
	return r.fetchText(ctx, runID, ArtifactEquityCurve(mode))
}

func (r *artifactRepository) History(ctx context.Context, runID, mode string) (string, bool, error) {
	return r.fetchText(ctx, runID, ArtifactHistory(mode))
}

func (r *artifactRepository) Comparison(ctx context.Context, runID string) (string, bool, error) {
	return r.fetchText(ctx, runID, ArtifactComparison)
}

func (r *artifactRepository) fetchText(ctx context.Context, runID, name string) (string, bool, error) {
	body, ok, err := r.fetch(ctx, runID, name)
	if err != nil || !ok {
		return "", false, err
	}
	return string(body), true, nil
}

func (r *artifactRepository) fetch(ctx context.Context, runID, name string) ([]byte, bool, error) {
	endpoint := fmt.Sprintf("/%s/%s", url.PathEscape(runID), name)
	resp, err := r.httpClient.Get(ctx, endpoint, nil, nil)
	if err != nil {
		return nil, false, fmt.Errorf("fetch %s for run %s: %w", name, runID, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		r.log.WarnContext(ctx, "Artifact fetch returned NON-200, treated as absent",
			logger.StringField("run_id", runID),
			logger.StringField("artifact", name),
			logger.IntField("status_code", resp.StatusCode),
		)
		return nil, false, nil
	}
	return resp.Body, true, nil
}

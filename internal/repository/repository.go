package repository

import (
	"backtest-workbench/config"
	"backtest-workbench/pkg/logger"
)

type Repository struct {
	ArtifactRepo   ArtifactRepository
	PolicyGateRepo PolicyGateRepository
	ScenarioRepo   ScenarioRepository
}

func NewRepository(cfg *config.Config, log *logger.Logger) *Repository {
	return &Repository{
		ArtifactRepo:   NewArtifactRepository(cfg, log),
		PolicyGateRepo: NewPolicyGateRepository(cfg, log),
		ScenarioRepo:   NewScenarioRepository(cfg, log),
	}
}

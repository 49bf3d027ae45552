package service

import (
	"backtest-workbench/config"
	"backtest-workbench/internal/repository"
	"backtest-workbench/pkg/cache"
	"backtest-workbench/pkg/logger"
)

type Service struct {
	BacktestService   BacktestService
	ValidationService ValidationService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
) *Service {
	return &Service{
		BacktestService:   NewBacktestService(cfg, log, repo.ArtifactRepo, inmemoryCache),
		ValidationService: NewValidationService(cfg, log, repo.ScenarioRepo, repo.PolicyGateRepo),
	}
}

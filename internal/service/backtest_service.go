package service

import (
	"context"
	"math"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"

	"backtest-workbench/config"
	"backtest-workbench/internal/decoder"
	"backtest-workbench/internal/dto"
	"backtest-workbench/internal/repository"
	"backtest-workbench/pkg/cache"
	"backtest-workbench/pkg/logger"
	"backtest-workbench/pkg/tabular"
	"backtest-workbench/pkg/timeseries"
)

const runsIndexCacheKey = "backtest:runs_index"

// modeSlot collects one mode's artifacts during the fetch fan-out.
type modeSlot struct {
	metrics    dto.Metrics
	equityDoc  string
	historyDoc string
	hasMetrics bool
	hasEquity  bool
	hasHistory bool
}

// BacktestService assembles browseable views of offline backtest runs from
// the remote artifact store.
type BacktestService interface {
	ListRuns(ctx context.Context) (*dto.RunIndex, error)
	GetRunDetail(ctx context.Context, runID string) (*dto.RunDetail, error)
}

type backtestService struct {
	cfg          *config.Config
	log          *logger.Logger
	artifactRepo repository.ArtifactRepository
	cache        cache.Cache
}

func NewBacktestService(
	cfg *config.Config,
	log *logger.Logger,
	artifactRepo repository.ArtifactRepository,
	inmemoryCache cache.Cache,
) BacktestService {
	return &backtestService{
		cfg:          cfg,
		log:          log,
		artifactRepo: artifactRepo,
		cache:        inmemoryCache,
	}
}

// ListRuns returns the run index, newest first. The listing is the one thing
// worth a short-lived cache; run detail is always re-fetched.
func (s *backtestService) ListRuns(ctx context.Context) (*dto.RunIndex, error) {
	if index, ok := cache.Get[*dto.RunIndex](s.cache, runsIndexCacheKey); ok {
		return index, nil
	}

	index, err := s.artifactRepo.Index(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(index.Runs, func(i, j int) bool {
		return index.Runs[i].LastModifiedISO > index.Runs[j].LastModifiedISO
	})

	s.cache.Set(runsIndexCacheKey, index, s.cfg.Cache.RunsIndexTTL)
	return index, nil
}

// GetRunDetail fetches the run's up-to-eight artifacts concurrently and
// assembles one immutable snapshot. A missing or broken artifact yields a
// presence=false slot, never an error for the whole run, so total latency is
// bounded by the slowest single fetch.
func (s *backtestService) GetRunDetail(ctx context.Context, runID string) (*dto.RunDetail, error) {
	// One slot per artifact; each goroutine owns exactly one slot, so the
	// fan-out needs no locking.
	var (
		runConfig  map[string]interface{}
		comparison string
		hasConfig  bool
		hasComp    bool

		slots = make([]modeSlot, len(dto.KnownModes))
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		cfg, ok, err := s.artifactRepo.RunConfig(gctx, runID)
		s.recordAbsence(gctx, runID, repository.ArtifactRunConfig, err)
		runConfig, hasConfig = cfg, ok && err == nil
		return nil
	})
	g.Go(func() error {
		md, ok, err := s.artifactRepo.Comparison(gctx, runID)
		s.recordAbsence(gctx, runID, repository.ArtifactComparison, err)
		comparison, hasComp = md, ok && err == nil
		return nil
	})

	for i, mode := range dto.KnownModes {
		slot := &slots[i]
		mode := mode
		g.Go(func() error {
			m, ok, err := s.artifactRepo.Metrics(gctx, runID, mode)
			s.recordAbsence(gctx, runID, repository.ArtifactMetrics(mode), err)
			if ok && err == nil {
				slot.metrics = m
				slot.hasMetrics = true
			}
			return nil
		})
		g.Go(func() error {
			doc, ok, err := s.artifactRepo.EquityCurve(gctx, runID, mode)
			s.recordAbsence(gctx, runID, repository.ArtifactEquityCurve(mode), err)
			if ok && err == nil {
				slot.equityDoc = doc
				slot.hasEquity = true
			}
			return nil
		})
		g.Go(func() error {
			doc, ok, err := s.artifactRepo.History(gctx, runID, mode)
			s.recordAbsence(gctx, runID, repository.ArtifactHistory(mode), err)
			if ok && err == nil {
				slot.historyDoc = doc
				slot.hasHistory = true
			}
			return nil
		})
	}

	// Closures above never return errors; absence is data, not failure.
	_ = g.Wait()

	detail := &dto.RunDetail{
		RunID: runID,
		Root:  s.cfg.Storage.BaseURL,
		Files: map[string]bool{
			repository.ArtifactRunConfig:  hasConfig,
			repository.ArtifactComparison: hasComp,
		},
		Metrics: make(map[string]dto.Metrics),
		Equity:  make(map[string][]dto.EquityPoint),
		History: make(map[string][]dto.HistoryRow),
	}

	if hasConfig {
		detail.Config = runConfig
	}
	if hasComp {
		detail.ComparisonMD = &comparison
	}

	for i, mode := range dto.KnownModes {
		slot := slots[i]
		detail.Files[repository.ArtifactMetrics(mode)] = slot.hasMetrics
		detail.Files[repository.ArtifactEquityCurve(mode)] = slot.hasEquity
		detail.Files[repository.ArtifactHistory(mode)] = slot.hasHistory

		if slot.hasMetrics {
			detail.Metrics[mode] = slot.metrics
		}
		if slot.hasEquity {
			if pts := s.parseEquity(slot.equityDoc); len(pts) > 0 {
				detail.Equity[mode] = pts
			}
		}
		if slot.hasHistory {
			if rows := s.parseHistory(slot.historyDoc); len(rows) > 0 {
				detail.History[mode] = rows
			}
		}
	}

	detail.DefaultMode = defaultMode(detail.Metrics)
	return detail, nil
}

// parseEquity runs one equity document through the point parser, keeps only
// finite-valued samples, and bounds the series for display.
func (s *backtestService) parseEquity(doc string) []dto.EquityPoint {
	raw := tabular.ReadPoints(doc, s.cfg.Engine.EquityRowBudget)

	points := make([]dto.EquityPoint, 0, len(raw))
	for _, p := range raw {
		v, err := strconv.ParseFloat(p.Value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		points = append(points, dto.EquityPoint{Date: p.Date, Equity: v})
	}

	return timeseries.Downsample(points, s.cfg.Engine.MaxEquityPoints, func(p dto.EquityPoint) string {
		return p.Date
	})
}

// parseHistory maps the rebalance table into typed rows. The equity column is
// coerced to a number when parseable and kept as raw text otherwise;
// allocation goes through the tolerant decoder; every other column passes
// through untouched.
func (s *backtestService) parseHistory(doc string) []dto.HistoryRow {
	records := tabular.ReadRecords(doc, s.cfg.Engine.HistoryRowBudget)

	rows := make([]dto.HistoryRow, 0, len(records))
	for _, rec := range records {
		row := dto.HistoryRow{Date: rec["date"]}

		if raw, ok := rec["equity"]; ok {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				row.Equity = &v
			} else {
				row.EquityRaw = raw
			}
		}

		if alloc, ok := decoder.Allocation(rec["allocation"]); ok {
			row.Allocation = alloc
		}

		for key, val := range rec {
			switch key {
			case "date", "equity", "allocation":
				continue
			}
			if row.Fields == nil {
				row.Fields = make(map[string]string)
			}
			row.Fields[key] = val
		}

		rows = append(rows, row)
	}
	return rows
}

// defaultMode prefers committee-driven mode A, then B, then none.
func defaultMode(metrics map[string]dto.Metrics) string {
	for _, mode := range dto.KnownModes {
		if _, ok := metrics[mode]; ok {
			return mode
		}
	}
	return ""
}

func (s *backtestService) recordAbsence(ctx context.Context, runID, artifact string, err error) {
	if err != nil {
		s.log.WarnContext(ctx, "Artifact fetch failed, slot recorded as absent",
			logger.StringField("run_id", runID),
			logger.StringField("artifact", artifact),
			logger.ErrorField(err),
		)
	}
}

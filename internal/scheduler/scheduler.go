// Package scheduler runs the bakery's periodic jobs: the low-stock check and
// the nightly archive of the previous day's production summary.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"bakerycore/internal/core"
	"bakerycore/internal/infra/archive"
	"bakerycore/internal/reporting"
)

// Default cron expressions (standard five-field syntax).
const (
	DefaultLowStockSpec     = "*/15 * * * *"
	DefaultDailySummarySpec = "5 0 * * *"
)

const jobTimeout = 2 * time.Minute

// StockSource lists ingredients at or below their minimum.
type StockSource interface {
	GetLowStock(ctx context.Context) []core.Ingredient
}

// SummarySource builds the production summary of one day.
type SummarySource interface {
	DailySummary(ctx context.Context, date time.Time) (reporting.DailySummary, error)
}

// LowStockGauge publishes the low-stock count.
type LowStockGauge interface {
	SetLowStock(n int)
}

// Config holds the job schedules.
type Config struct {
	LowStockSpec     string `yaml:"low_stock"`
	DailySummarySpec string `yaml:"daily_summary"`
	Timezone         string `yaml:"timezone"`
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron      *cron.Cron
	cfg       Config
	stock     StockSource
	summaries SummarySource
	archive   archive.Archive
	gauge     LowStockGauge
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a scheduler. gauge may be nil.
func New(cfg Config, stock StockSource, summaries SummarySource, store archive.Archive, gauge LowStockGauge, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.LowStockSpec == "" {
		cfg.LowStockSpec = DefaultLowStockSpec
	}
	if cfg.DailySummarySpec == "" {
		cfg.DailySummarySpec = DefaultDailySummarySpec
	}
	loc := time.UTC
	if cfg.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Timezone); err != nil {
			return nil, fmt.Errorf("scheduler timezone %q: %w", cfg.Timezone, err)
		}
	}
	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		cfg:       cfg,
		stock:     stock,
		summaries: summaries,
		archive:   store,
		gauge:     gauge,
		logger:    logger,
		now:       time.Now,
	}
	if _, err := s.cron.AddFunc(cfg.LowStockSpec, s.lowStockJob); err != nil {
		return nil, fmt.Errorf("schedule low stock check %q: %w", cfg.LowStockSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.DailySummarySpec, s.dailySummaryJob); err != nil {
		return nil, fmt.Errorf("schedule daily summary %q: %w", cfg.DailySummarySpec, err)
	}
	return s, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler",
		zap.String("low_stock", s.cfg.LowStockSpec),
		zap.String("daily_summary", s.cfg.DailySummarySpec))
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) lowStockJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	s.CheckLowStock(ctx)
}

func (s *Scheduler) dailySummaryJob() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	yesterday := s.now().AddDate(0, 0, -1)
	if err := s.ArchiveDailySummary(ctx, yesterday); err != nil {
		s.logger.Error("failed to archive daily summary", zap.Error(err))
	}
}

// CheckLowStock publishes the low-stock count and logs the affected ingredients.
func (s *Scheduler) CheckLowStock(ctx context.Context) []core.Ingredient {
	low := s.stock.GetLowStock(ctx)
	if s.gauge != nil {
		s.gauge.SetLowStock(len(low))
	}
	if len(low) == 0 {
		s.logger.Debug("stock levels healthy")
		return low
	}
	names := make([]string, len(low))
	for i, in := range low {
		names[i] = in.Name
	}
	s.logger.Warn("ingredients need restock", zap.Int("count", len(low)), zap.Strings("ingredients", names))
	return low
}

// ArchiveDailySummary builds and stores the summary for day.
func (s *Scheduler) ArchiveDailySummary(ctx context.Context, day time.Time) error {
	summary, err := s.summaries.DailySummary(ctx, day)
	if err != nil {
		return fmt.Errorf("build summary for %s: %w", archive.DayKey(day), err)
	}
	if err := s.archive.Save(ctx, summary); err != nil {
		return err
	}
	s.logger.Info("daily summary archived",
		zap.String("day", archive.DayKey(day)),
		zap.Int("runs", summary.Runs),
		zap.String("efficiency", summary.Efficiency.String()))
	return nil
}

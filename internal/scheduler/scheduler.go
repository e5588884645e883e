package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"proposal-review/internal/config"
	"proposal-review/internal/models"
	"proposal-review/internal/service"
)

// Reclaimer returns stale assignments to the pool
type Reclaimer interface {
	ReclaimExpired(ctx context.Context) ([]models.Assignment, error)
}

// Reconciler corrects cached reputation balances
type Reconciler interface {
	ReconcileAll(ctx context.Context) (service.ReconcileReport, error)
}

// Scheduler handles periodic tasks
type Scheduler struct {
	reclaimer  Reclaimer
	reconciler Reconciler
	config     *config.SchedulerConfig
	cron       *cron.Cron
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewScheduler creates a new scheduler
func NewScheduler(reclaimer Reclaimer, reconciler Reconciler, cfg *config.SchedulerConfig) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	logger := cron.PrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn))
	return &Scheduler{
		reclaimer:  reclaimer,
		reconciler: reconciler,
		config:     cfg,
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the enabled tasks and starts the cron runner. Reclaim
// also runs once immediately so claims that expired during downtime are
// returned without waiting for the first tick.
func (s *Scheduler) Start() error {
	slog.Info("Starting scheduler",
		"reclaim_enabled", s.config.EnableReclaim,
		"reconcile_enabled", s.config.EnableReconcile)

	if s.config.EnableReclaim {
		if err := s.addTask(s.config.ReclaimCron, "reclaim_expired", s.reclaimExpired); err != nil {
			return fmt.Errorf("failed to start reclaim task: %w", err)
		}
	}

	if s.config.EnableReconcile {
		if err := s.addTask(s.config.ReconcileCron, "reconcile_ledger", s.reconcileLedger); err != nil {
			return fmt.Errorf("failed to start reconcile task: %w", err)
		}
	}

	s.cron.Start()

	if s.config.EnableReclaim {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run("reclaim_expired", s.reclaimExpired)
		}()
	}

	slog.Info("Scheduler started", "tasks", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running tasks to return
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		slog.Info("Stopping scheduler")
		s.cancel()
		<-s.cron.Stop().Done()
	})
	s.wg.Wait()
}

// addTask schedules task on a standard five-field cron expression
// ("minute hour day-of-month month weekday") or a descriptor such as
// "@daily" or "@every 10m"
func (s *Scheduler) addTask(cronExpr, taskName string, task func(ctx context.Context)) error {
	sched, err := parseSchedule(cronExpr)
	if err != nil {
		return err
	}
	id := s.cron.Schedule(sched, cron.FuncJob(func() { s.run(taskName, task) }))
	slog.Info("Scheduled task",
		"task", taskName,
		"cron", cronExpr,
		"next_run", sched.Next(time.Now()).Format("2006-01-02 15:04:05"),
		"entry_id", id)
	return nil
}

func parseSchedule(cronExpr string) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return sched, nil
}

func (s *Scheduler) run(taskName string, task func(ctx context.Context)) {
	if s.ctx.Err() != nil {
		return
	}
	slog.Debug("Running scheduled task", "task", taskName)
	task(s.ctx)
}

// reclaimExpired returns abandoned assignments to the pool
func (s *Scheduler) reclaimExpired(ctx context.Context) {
	expired, err := s.reclaimer.ReclaimExpired(ctx)
	if err != nil {
		slog.Error("Failed to reclaim expired assignments", "error", err)
		return
	}
	slog.Info("Expiry reclaim completed", "expired", len(expired))
}

// reconcileLedger corrects drift between cached and derived balances
func (s *Scheduler) reconcileLedger(ctx context.Context) {
	report, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		slog.Error("Ledger reconciliation finished with errors", "error", err, "checked", report.Checked)
		return
	}
	if report.Corrected > 0 {
		slog.Warn("Ledger drift corrected", "corrected", report.Corrected, "drift", report.Drift)
	}
}

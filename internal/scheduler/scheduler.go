package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	auditcontext "github.com/smallbiznis/creatorpay/internal/auditcontext"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/clock"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	PayoutSvc payoutdomain.Service
	AuthzSvc  authorization.Service `optional:"true"`
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    Config `optional:"true"`
}

type Scheduler struct {
	db        *gorm.DB
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	payoutSvc payoutdomain.Service
	authzSvc  authorization.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.PayoutSvc == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	cfg := p.Config.withDefaults()
	return &Scheduler{
		db:        p.DB,
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       cfg,
		genID:     p.GenID,
		clock:     p.Clock,
		payoutSvc: p.PayoutSvc,
		authzSvc:  p.AuthzSvc,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")
	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name    string
		Timeout time.Duration
		Run     func(context.Context) error
	}{
		{"payout_batch", 5 * time.Minute, s.PayoutBatchJob},
		{"stale_pending_sweep", 30 * time.Second, s.StalePendingSweepJob},
	}

	for _, job := range jobs {
		if !s.isJobEnabled(job.Name) {
			continue
		}
		run := job.Run
		err = errors.Join(err, s.runJob(parent, job.Name, job.Timeout, run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// Empty EnabledJobs means all jobs run (monolith mode).
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if enabled == jobName {
			return true
		}
	}
	return false
}

// PayoutBatchJob generates the payout batch for the most recently closed
// month once the delay after month end has elapsed. An already generated or
// concurrently generating period is not an error.
func (s *Scheduler) PayoutBatchJob(ctx context.Context) error {
	now := s.clock.Now()
	period := payoutdomain.PreviousPeriod(now)
	if now.Before(period.End.Add(s.cfg.PayoutDelay)) {
		s.logger(ctx).Debug("payout batch not yet due",
			zap.String("period", period.Label),
			zap.Duration("delay", s.cfg.PayoutDelay),
		)
		return nil
	}

	run := jobRunFromContext(ctx)
	log := s.logger(ctx).With(zap.String("period", period.Label))

	if s.authzSvc != nil {
		if err := s.authzSvc.Authorize(ctx, "system", authorization.ObjectPayout, authorization.ActionPayoutGenerate); err != nil {
			return err
		}
	}

	resp, err := s.payoutSvc.Generate(ctx, payoutdomain.GeneratePayoutRequest{Period: period.Label})
	switch {
	case errors.Is(err, payoutdomain.ErrPeriodAlreadyGenerated):
		log.Debug("payout batch already generated")
		return nil
	case errors.Is(err, payoutdomain.ErrGenerateInProgress):
		obsmetrics.Scheduler().IncLockSkipped("payout_batch")
		log.Info("payout batch held by another worker")
		return nil
	case err != nil:
		s.logSchedulerError(ctx, run, "payout batch generation failed", "payout_batch", err)
		return err
	}

	obsmetrics.Scheduler().IncLockAcquired("payout_batch")
	run.AddProcessed(len(resp.PayoutIDs))
	log.Info("payout batch generated",
		zap.String("batch_run_id", resp.BatchRunID),
		zap.Int("payouts_created", len(resp.PayoutIDs)),
	)
	return nil
}

// StalePendingSweepJob flags payouts that sat pending past the threshold so
// operators notice undispatched batches. Read only.
func (s *Scheduler) StalePendingSweepJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.StalePendingThreshold)

	var rows []struct {
		ID        snowflake.ID `gorm:"column:id"`
		CreatorID snowflake.ID `gorm:"column:creator_id"`
		Period    string       `gorm:"column:period"`
		CreatedAt time.Time    `gorm:"column:created_at"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT id, creator_id, period, created_at
		 FROM payouts
		 WHERE status = ? AND created_at < ?
		 ORDER BY created_at ASC
		 LIMIT 100`,
		payoutdomain.PayoutStatusPending,
		cutoff,
	).Scan(&rows).Error; err != nil {
		return err
	}

	run := jobRunFromContext(ctx)
	for _, row := range rows {
		run.AddProcessed(1)
		s.logger(ctx).Warn("payout pending past threshold",
			zap.String("payout_id", row.ID.String()),
			zap.String("creator_id", row.CreatorID.String()),
			zap.String("period", row.Period),
			zap.Time("created_at", row.CreatedAt),
		)
	}
	return nil
}

package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"haulhub_backend/internal/jobs/repository"
	"haulhub_backend/platform/logger"
)

// StuckSettlementLister reports completed jobs whose money movement is not
// finished: failed captures and captured-but-deferred payouts.
type StuckSettlementLister interface {
	ListStuckSettlements(ctx context.Context, limit int) ([]repository.ServiceRequest, error)
}

// ReconciliationSweeper periodically re-drives settlement for stuck jobs.
// The scheduled task path is the fast path; this sweep is the source of
// truth, so a lost task or crashed worker delays settlement but never loses
// it.
type ReconciliationSweeper struct {
	store    StuckSettlementLister
	settler  Settler
	interval time.Duration
	log      *logger.Logger
}

func NewReconciliationSweeper(store StuckSettlementLister, settler Settler, log *logger.Logger) *ReconciliationSweeper {
	return &ReconciliationSweeper{
		store:    store,
		settler:  settler,
		interval: 15 * time.Minute,
		log:      log,
	}
}

func (s *ReconciliationSweeper) Run(ctx context.Context) {
	if s == nil || s.store == nil || s.settler == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.sweep(ctx)
	}
}

func (s *ReconciliationSweeper) sweep(ctx context.Context) {
	stuck, err := s.store.ListStuckSettlements(ctx, 100)
	if err != nil {
		s.log.Warn("stuck settlement scan failed", "error", err)
		return
	}
	if len(stuck) == 0 {
		return
	}

	s.log.Info("reconciling stuck settlements", "count", len(stuck))
	for _, sr := range stuck {
		s.reconcileOne(ctx, sr.ID)
	}
}

func (s *ReconciliationSweeper) reconcileOne(ctx context.Context, jobID uuid.UUID) {
	result, err := s.settler.Settle(ctx, jobID)
	if err != nil {
		s.log.Warn("reconciliation settle failed", "job_id", jobID.String(), "error", err)
		return
	}
	s.log.Info("reconciliation settle finished",
		"job_id", jobID.String(), "outcome", string(result.Outcome), "reason", result.Reason)
}

package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"haulhub_backend/internal/jobs/settlement"
	"haulhub_backend/platform/apperr"
	"haulhub_backend/platform/config"
	"haulhub_backend/platform/logger"
)

// Settler runs the settlement pipeline for one job.
type Settler interface {
	Settle(ctx context.Context, jobID uuid.UUID) (settlement.Result, error)
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	settler Settler
	log     *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, settler Settler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:  server,
		mux:     mux,
		settler: settler,
		log:     log,
	}

	mux.HandleFunc(TaskSettlementRun, w.handleSettlementRun)
	mux.HandleFunc(TaskVerificationAutoRelease, w.handleVerificationAutoRelease)

	return w, nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) handleSettlementRun(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseSettlementRunPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.settle(ctx, jobID)
}

// handleVerificationAutoRelease fires once the release window after the
// completion report has passed. The settlement pipeline re-checks the gate,
// so a premature or duplicate task is harmless.
func (w *Worker) handleVerificationAutoRelease(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseVerificationAutoReleasePayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	return w.settle(ctx, jobID)
}

func (w *Worker) settle(ctx context.Context, jobID uuid.UUID) error {
	result, err := w.settler.Settle(ctx, jobID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			return fmt.Errorf("%w: job %s not found", asynq.SkipRetry, jobID)
		}
		return err
	}

	switch result.Outcome {
	case settlement.OutcomeSettled:
		w.log.Info("settlement completed", "job_id", jobID.String(),
			"captured_cents", result.CapturedCents, "payout_status", string(result.PayoutStatus))
	case settlement.OutcomeDeferred:
		// Not an error: the job is not ready (verification hold, another
		// settlement in flight, or already captured). The sweep retries
		// whatever remains actionable.
		w.log.Info("settlement deferred", "job_id", jobID.String(), "reason", result.Reason)
	case settlement.OutcomeFailed:
		// Capture failed and was recorded. Immediate retry would hit the
		// same decline, so leave it to reconciliation.
		w.log.Warn("settlement capture failed", "job_id", jobID.String(), "reason", result.Reason)
	}
	return nil
}

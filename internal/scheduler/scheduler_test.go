package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"haulhub_backend/internal/jobs/settlement"
	"haulhub_backend/platform/logger"
)

type testSchedulerConfig struct {
	redisURL string
	queue    string
}

func (c testSchedulerConfig) GetRedisURL() string       { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string { return c.queue }
func (c testSchedulerConfig) GetAsynqConcurrency() int  { return 1 }

func newTestClient(t *testing.T) (*Client, *asynq.Inspector, string) {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := testSchedulerConfig{redisURL: "redis://" + mr.Addr(), queue: "lifecycle"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: mr.Addr()})
	t.Cleanup(func() { _ = inspector.Close() })
	return client, inspector, cfg.queue
}

func TestEnqueueSettlement(t *testing.T) {
	client, inspector, queue := newTestClient(t)
	jobID := uuid.New()

	if err := client.EnqueueSettlement(context.Background(), jobID); err != nil {
		t.Fatalf("EnqueueSettlement() error = %v", err)
	}

	tasks, err := inspector.ListPendingTasks(queue)
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskSettlementRun {
		t.Fatalf("task type = %s, want %s", tasks[0].Type, TaskSettlementRun)
	}

	var payload SettlementRunPayload
	if err := json.Unmarshal(tasks[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.JobID != jobID.String() {
		t.Fatalf("payload job id = %s, want %s", payload.JobID, jobID)
	}
}

func TestScheduleAutoReleaseIsDeferred(t *testing.T) {
	client, inspector, queue := newTestClient(t)
	jobID := uuid.New()
	runAt := time.Now().Add(48 * time.Hour)

	if err := client.ScheduleAutoRelease(context.Background(), jobID, runAt); err != nil {
		t.Fatalf("ScheduleAutoRelease() error = %v", err)
	}

	scheduled, err := inspector.ListScheduledTasks(queue)
	if err != nil {
		t.Fatalf("ListScheduledTasks() error = %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("scheduled tasks = %d, want 1", len(scheduled))
	}
	if scheduled[0].Type != TaskVerificationAutoRelease {
		t.Fatalf("task type = %s, want %s", scheduled[0].Type, TaskVerificationAutoRelease)
	}

	pending, err := inspector.ListPendingTasks(queue)
	if err != nil {
		t.Fatalf("ListPendingTasks() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending tasks = %d, want 0 before the release window", len(pending))
	}
}

// ── Worker handlers ───────────────────────────────────────────────────────────

type stubSettler struct {
	result settlement.Result
	err    error
	calls  []uuid.UUID
}

func (s *stubSettler) Settle(_ context.Context, jobID uuid.UUID) (settlement.Result, error) {
	s.calls = append(s.calls, jobID)
	return s.result, s.err
}

func settlementTask(t *testing.T, jobID uuid.UUID) *asynq.Task {
	t.Helper()
	task, err := NewSettlementRunTask(SettlementRunPayload{JobID: jobID.String()})
	if err != nil {
		t.Fatalf("NewSettlementRunTask() error = %v", err)
	}
	return task
}

func TestHandleSettlementRun(t *testing.T) {
	settler := &stubSettler{result: settlement.Result{Outcome: settlement.OutcomeSettled, CapturedCents: 10700}}
	w := &Worker{settler: settler, log: logger.New("test")}
	jobID := uuid.New()

	if err := w.handleSettlementRun(context.Background(), settlementTask(t, jobID)); err != nil {
		t.Fatalf("handleSettlementRun() error = %v", err)
	}
	if len(settler.calls) != 1 || settler.calls[0] != jobID {
		t.Fatalf("settler calls = %v, want [%s]", settler.calls, jobID)
	}
}

func TestHandleSettlementRunDeferredIsNotRetried(t *testing.T) {
	settler := &stubSettler{result: settlement.Result{Outcome: settlement.OutcomeDeferred, Reason: "verification hold"}}
	w := &Worker{settler: settler, log: logger.New("test")}

	if err := w.handleSettlementRun(context.Background(), settlementTask(t, uuid.New())); err != nil {
		t.Fatalf("deferred settlement should not error, got %v", err)
	}
}

func TestHandleSettlementRunInfraErrorRetries(t *testing.T) {
	settler := &stubSettler{err: errors.New("connection refused")}
	w := &Worker{settler: settler, log: logger.New("test")}

	err := w.handleSettlementRun(context.Background(), settlementTask(t, uuid.New()))
	if err == nil {
		t.Fatal("infra error should propagate so the task retries")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatal("infra error must not skip retry")
	}
}

func TestHandleSettlementRunBadPayloadSkipsRetry(t *testing.T) {
	w := &Worker{settler: &stubSettler{}, log: logger.New("test")}

	err := w.handleSettlementRun(context.Background(), asynq.NewTask(TaskSettlementRun, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("error = %v, want SkipRetry", err)
	}
}

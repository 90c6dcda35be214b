// Package scheduler runs the asynchronous side of the job lifecycle: payment
// settlement, verification auto-release, stuck-settlement reconciliation and
// notification delivery.
package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSettlementRun = "settlement.run"

const TaskVerificationAutoRelease = "verification.auto_release"

type SettlementRunPayload struct {
	JobID string `json:"jobId"`
}

type VerificationAutoReleasePayload struct {
	JobID string `json:"jobId"`
}

func NewSettlementRunTask(payload SettlementRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSettlementRun, data), nil
}

func ParseSettlementRunPayload(task *asynq.Task) (SettlementRunPayload, error) {
	var payload SettlementRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SettlementRunPayload{}, err
	}
	return payload, nil
}

func NewVerificationAutoReleaseTask(payload VerificationAutoReleasePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVerificationAutoRelease, data), nil
}

func ParseVerificationAutoReleasePayload(task *asynq.Task) (VerificationAutoReleasePayload, error) {
	var payload VerificationAutoReleasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return VerificationAutoReleasePayload{}, err
	}
	return payload, nil
}

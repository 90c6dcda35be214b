// Package notification turns domain events into queued emails. Domain
// modules publish events and never learn about SMTP or templates; this
// module subscribes, resolves recipients and queues outbox records that the
// dispatcher delivers.
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"haulhub_backend/internal/email"
	"haulhub_backend/internal/events"
	"haulhub_backend/internal/notification/outbox"
	"haulhub_backend/platform/logger"
)

// Outbox notification kinds.
const (
	kindBookingConfirmation = "booking_confirmation"
	kindJobReceipt          = "job_receipt"
	kindCancellation        = "cancellation"
	kindPayoutNotice        = "payout_notice"
	kindAdjustmentRequest   = "adjustment_request"
)

// Module handles all notification-related event subscriptions.
type Module struct {
	pool   *pgxpool.Pool
	sender email.Sender
	outbox *outbox.Repository
	log    *logger.Logger
}

// New creates a new notification module.
func New(pool *pgxpool.Pool, sender email.Sender, log *logger.Logger) *Module {
	return &Module{
		pool:   pool,
		sender: sender,
		outbox: outbox.New(pool),
		log:    log,
	}
}

func (m *Module) Name() string { return "notification" }

// RegisterHandlers subscribes the module to the domain events it emails on.
func (m *Module) RegisterHandlers(bus *events.InMemoryBus) {
	bus.Subscribe(events.JobCreated{}.EventName(), m)
	bus.Subscribe(events.JobCancelled{}.EventName(), m)
	bus.Subscribe(events.AdjustmentAdded{}.EventName(), m)
	bus.Subscribe(events.PaymentCaptured{}.EventName(), m)
	bus.Subscribe(events.CaptureFailed{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.JobCreated:
		return m.handleJobCreated(ctx, e)
	case events.JobCancelled:
		return m.handleJobCancelled(ctx, e)
	case events.AdjustmentAdded:
		return m.handleAdjustmentAdded(ctx, e)
	case events.PaymentCaptured:
		return m.handlePaymentCaptured(ctx, e)
	case events.CaptureFailed:
		m.log.Warn("payment capture failed, awaiting reconciliation",
			"jobId", e.JobID, "reason", e.Reason)
		return nil
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

// jobRef is the short human-facing job reference used in emails.
func jobRef(id uuid.UUID) string {
	return "#" + strings.ToUpper(id.String()[:8])
}

// ── Recipient resolution ──────────────────────────────────────────────────────

type recipient struct {
	Name  string
	Email string
}

func (m *Module) resolveCustomer(ctx context.Context, id uuid.UUID) (*recipient, error) {
	var r recipient
	err := m.pool.QueryRow(ctx, `SELECT name, email FROM customers WHERE id = $1`, id).
		Scan(&r.Name, &r.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %s: %w", id, err)
	}
	return &r, nil
}

func (m *Module) resolveHauler(ctx context.Context, id uuid.UUID) (*recipient, error) {
	var r recipient
	err := m.pool.QueryRow(ctx, `SELECT name, email FROM haulers WHERE id = $1`, id).
		Scan(&r.Name, &r.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve hauler %s: %w", id, err)
	}
	return &r, nil
}

// ── Event handlers ────────────────────────────────────────────────────────────

type bookingConfirmationPayload struct {
	CustomerName string `json:"customerName"`
	ServiceType  string `json:"serviceType"`
	JobRef       string `json:"jobRef"`
	TotalCents   int64  `json:"totalCents"`
}

func (m *Module) handleJobCreated(ctx context.Context, e events.JobCreated) error {
	cust, err := m.resolveCustomer(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	_, err = m.outbox.Insert(ctx, outbox.InsertParams{
		Recipient: cust.Email,
		Kind:      kindBookingConfirmation,
		Payload: bookingConfirmationPayload{
			CustomerName: cust.Name,
			ServiceType:  e.ServiceType,
			JobRef:       jobRef(e.JobID),
			TotalCents:   e.TotalCents,
		},
	})
	return err
}

type cancellationPayload struct {
	JobRef string `json:"jobRef"`
	Reason string `json:"reason,omitempty"`
}

func (m *Module) handleJobCancelled(ctx context.Context, e events.JobCancelled) error {
	cust, err := m.resolveCustomer(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	_, err = m.outbox.Insert(ctx, outbox.InsertParams{
		Recipient: cust.Email,
		Kind:      kindCancellation,
		Payload:   cancellationPayload{JobRef: jobRef(e.JobID), Reason: e.Reason},
	})
	return err
}

type adjustmentRequestPayload struct {
	JobRef           string `json:"jobRef"`
	PriceChangeCents int64  `json:"priceChangeCents"`
	Reason           string `json:"reason"`
}

func (m *Module) handleAdjustmentAdded(ctx context.Context, e events.AdjustmentAdded) error {
	cust, err := m.resolveCustomer(ctx, e.CustomerID)
	if err != nil {
		return err
	}
	_, err = m.outbox.Insert(ctx, outbox.InsertParams{
		Recipient: cust.Email,
		Kind:      kindAdjustmentRequest,
		Payload: adjustmentRequestPayload{
			JobRef:           jobRef(e.JobID),
			PriceChangeCents: e.PriceChangeCents,
			Reason:           e.Reason,
		},
	})
	return err
}

type jobReceiptPayload struct {
	CustomerName string `json:"customerName"`
	ServiceType  string `json:"serviceType"`
	JobRef       string `json:"jobRef"`
	TotalCents   int64  `json:"totalCents"`
}

type payoutNoticePayload struct {
	HaulerName  string `json:"haulerName"`
	JobRef      string `json:"jobRef"`
	AmountCents int64  `json:"amountCents"`
	Instant     bool   `json:"instant"`
}

func (m *Module) handlePaymentCaptured(ctx context.Context, e events.PaymentCaptured) error {
	cust, err := m.resolveCustomer(ctx, e.CustomerID)
	if err != nil {
		return err
	}

	var serviceType string
	if err := m.pool.QueryRow(ctx,
		`SELECT service_type FROM service_requests WHERE id = $1`, e.JobID).Scan(&serviceType); err != nil {
		return fmt.Errorf("resolve job %s: %w", e.JobID, err)
	}

	if _, err := m.outbox.Insert(ctx, outbox.InsertParams{
		Recipient: cust.Email,
		Kind:      kindJobReceipt,
		Payload: jobReceiptPayload{
			CustomerName: cust.Name,
			ServiceType:  serviceType,
			JobRef:       jobRef(e.JobID),
			TotalCents:   e.CapturedCents,
		},
	}); err != nil {
		return err
	}

	if e.HaulerPayoutCents <= 0 || e.PayoutStatus == "none" {
		return nil
	}
	hauler, err := m.resolveHauler(ctx, e.HaulerID)
	if err != nil {
		return err
	}
	_, err = m.outbox.Insert(ctx, outbox.InsertParams{
		Recipient: hauler.Email,
		Kind:      kindPayoutNotice,
		Payload: payoutNoticePayload{
			HaulerName:  hauler.Name,
			JobRef:      jobRef(e.JobID),
			AmountCents: e.HaulerPayoutCents,
			Instant:     e.PayoutStatus == "instant",
		},
	})
	return err
}

// ── Dispatch ──────────────────────────────────────────────────────────────────

// DispatchDue claims due outbox records and delivers them, returning how
// many were attempted. Failed sends are re-queued with backoff.
func (m *Module) DispatchDue(ctx context.Context, limit int) (int, error) {
	records, err := m.outbox.ClaimDue(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("claim outbox records: %w", err)
	}

	for _, rec := range records {
		if err := m.deliver(ctx, rec); err != nil {
			m.log.Warn("notification delivery failed",
				"id", rec.ID, "kind", rec.Kind, "attempts", rec.Attempts, "error", err)
			if markErr := m.outbox.MarkRetry(ctx, rec, err); markErr != nil {
				m.log.Error("failed to re-queue notification", "id", rec.ID, "error", markErr)
			}
			continue
		}
		if err := m.outbox.MarkSucceeded(ctx, rec.ID); err != nil {
			m.log.Error("failed to mark notification succeeded", "id", rec.ID, "error", err)
		}
	}
	return len(records), nil
}

func (m *Module) deliver(ctx context.Context, rec outbox.Record) error {
	switch rec.Kind {
	case kindBookingConfirmation:
		var p bookingConfirmationPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return m.sender.SendBookingConfirmation(ctx, rec.Recipient, p.CustomerName, p.ServiceType, p.JobRef, p.TotalCents)
	case kindJobReceipt:
		var p jobReceiptPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return m.sender.SendJobReceipt(ctx, rec.Recipient, email.ReceiptData{
			CustomerName: p.CustomerName,
			ServiceType:  p.ServiceType,
			JobRef:       p.JobRef,
			TotalCents:   p.TotalCents,
		})
	case kindCancellation:
		var p cancellationPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return m.sender.SendCancellationNotice(ctx, rec.Recipient, p.JobRef, p.Reason)
	case kindPayoutNotice:
		var p payoutNoticePayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return m.sender.SendPayoutNotice(ctx, rec.Recipient, email.PayoutData{
			HaulerName:  p.HaulerName,
			JobRef:      p.JobRef,
			AmountCents: p.AmountCents,
			Instant:     p.Instant,
		})
	case kindAdjustmentRequest:
		var p adjustmentRequestPayload
		if err := json.Unmarshal(rec.Payload, &p); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return m.sender.SendAdjustmentRequest(ctx, rec.Recipient, p.JobRef, p.PriceChangeCents, p.Reason)
	default:
		return fmt.Errorf("unknown notification kind %q", rec.Kind)
	}
}

// Package email delivers customer and pro notifications over SMTP.
package email

import (
	"context"
	"fmt"
)

// ReceiptData is the settled breakdown shown on a completion receipt.
type ReceiptData struct {
	CustomerName  string
	ServiceType   string
	JobRef        string
	TotalCents    int64
	AdjustedCents int64
}

// PayoutData describes a pro's payout for one job.
type PayoutData struct {
	HaulerName  string
	JobRef      string
	AmountCents int64
	Instant     bool
}

// Sender delivers notification emails. Implementations render their own
// templates so callers pass domain data, not markup.
type Sender interface {
	SendBookingConfirmation(ctx context.Context, toEmail, customerName, serviceType, jobRef string, totalCents int64) error
	SendJobReceipt(ctx context.Context, toEmail string, data ReceiptData) error
	SendCancellationNotice(ctx context.Context, toEmail, jobRef, reason string) error
	SendPayoutNotice(ctx context.Context, toEmail string, data PayoutData) error
	SendAdjustmentRequest(ctx context.Context, toEmail, jobRef string, priceChangeCents int64, reason string) error
}

// formatUSD renders cents as a dollar string for templates.
func formatUSD(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// NoopSender drops every email. Used when email delivery is disabled.
type NoopSender struct{}

func (NoopSender) SendBookingConfirmation(context.Context, string, string, string, string, int64) error {
	return nil
}
func (NoopSender) SendJobReceipt(context.Context, string, ReceiptData) error { return nil }
func (NoopSender) SendCancellationNotice(context.Context, string, string, string) error {
	return nil
}
func (NoopSender) SendPayoutNotice(context.Context, string, PayoutData) error { return nil }
func (NoopSender) SendAdjustmentRequest(context.Context, string, string, int64, string) error {
	return nil
}

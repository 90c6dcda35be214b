package email

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"haulhub_backend/platform/config"
)

// SMTPSender implements Sender over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromEmail string
}

// NewSMTPSender creates a sender from the email configuration.
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat("HaulHub", s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (s *SMTPSender) SendBookingConfirmation(ctx context.Context, toEmail, customerName, serviceType, jobRef string, totalCents int64) error {
	content, err := renderEmailTemplate("base.html", baseEmailData{
		Title:      "Booking confirmed",
		Heading:    fmt.Sprintf("Thanks, %s!", customerName),
		Subheading: "Your booking is confirmed. A hold was placed on your card; you are only charged when the job is done.",
		Lines: []lineItem{
			{Label: "Service", Value: serviceType},
			{Label: "Job", Value: jobRef},
			{Label: "Estimated total", Value: formatUSD(totalCents)},
		},
		Footer: "The final charge can differ if you approve on-site adjustments, but never exceeds your guaranteed ceiling.",
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Your HaulHub booking is confirmed", content)
}

func (s *SMTPSender) SendJobReceipt(ctx context.Context, toEmail string, data ReceiptData) error {
	lines := []lineItem{
		{Label: "Service", Value: data.ServiceType},
		{Label: "Job", Value: data.JobRef},
		{Label: "Charged", Value: formatUSD(data.TotalCents)},
	}
	if data.AdjustedCents != 0 {
		lines = append(lines, lineItem{Label: "Approved adjustments", Value: formatUSD(data.AdjustedCents)})
	}
	content, err := renderEmailTemplate("base.html", baseEmailData{
		Title:      "Receipt",
		Heading:    "Your job is complete",
		Subheading: fmt.Sprintf("Thanks %s, here is your receipt.", data.CustomerName),
		Lines:      lines,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Your HaulHub receipt", content)
}

func (s *SMTPSender) SendCancellationNotice(ctx context.Context, toEmail, jobRef, reason string) error {
	sub := "Your booking was cancelled and the hold on your card was released."
	if reason != "" {
		sub = fmt.Sprintf("Your booking was cancelled (%s). The hold on your card was released.", reason)
	}
	content, err := renderEmailTemplate("base.html", baseEmailData{
		Title:      "Booking cancelled",
		Heading:    "Booking cancelled",
		Subheading: sub,
		Lines:      []lineItem{{Label: "Job", Value: jobRef}},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Your HaulHub booking was cancelled", content)
}

func (s *SMTPSender) SendPayoutNotice(ctx context.Context, toEmail string, data PayoutData) error {
	method := "standard payout (2-3 business days)"
	if data.Instant {
		method = "instant payout"
	}
	content, err := renderEmailTemplate("base.html", baseEmailData{
		Title:      "Payout sent",
		Heading:    fmt.Sprintf("You earned %s", formatUSD(data.AmountCents)),
		Subheading: fmt.Sprintf("Nice work, %s. Your earnings are on the way via %s.", data.HaulerName, method),
		Lines: []lineItem{
			{Label: "Job", Value: data.JobRef},
			{Label: "Payout", Value: formatUSD(data.AmountCents)},
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Your HaulHub payout is on the way", content)
}

func (s *SMTPSender) SendAdjustmentRequest(ctx context.Context, toEmail, jobRef string, priceChangeCents int64, reason string) error {
	content, err := renderEmailTemplate("base.html", baseEmailData{
		Title:      "Price adjustment requested",
		Heading:    "Your pro requested a price adjustment",
		Subheading: "Open the app to approve or decline. Nothing is charged until you decide.",
		Lines: []lineItem{
			{Label: "Job", Value: jobRef},
			{Label: "Change", Value: formatUSD(priceChangeCents)},
			{Label: "Reason", Value: reason},
		},
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, "Action needed: price adjustment on your HaulHub job", content)
}

package scheduler

import (
	"context"
	"time"

	"haulhub_backend/internal/notification"
	"haulhub_backend/platform/logger"
)

// NotificationDispatcher polls the outbox and delivers due notifications.
type NotificationDispatcher struct {
	notifier *notification.Module
	interval time.Duration
	log      *logger.Logger
}

func NewNotificationDispatcher(notifier *notification.Module, log *logger.Logger) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifier: notifier,
		interval: 2 * time.Second,
		log:      log,
	}
}

func (d *NotificationDispatcher) Run(ctx context.Context) {
	if d == nil || d.notifier == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := d.notifier.DispatchDue(ctx, 50); err != nil {
			d.log.Warn("notification dispatch failed", "error", err)
		}
	}
}

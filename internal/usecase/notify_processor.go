package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/internal/domain/repository"
	"seatwatch-service/pkg/logger"
	"seatwatch-service/pkg/metrics"
)

// NotifyProcessor handles notification tasks: one email delivery per claim
type NotifyProcessor struct {
	sender          repository.EmailSender
	notificationLog repository.NotificationLogRepository
	logger          logger.Logger
	metrics         *metrics.Metrics
}

// NewNotifyProcessor creates a new notify processor
func NewNotifyProcessor(
	sender repository.EmailSender,
	notificationLog repository.NotificationLogRepository,
	logger logger.Logger,
	metrics *metrics.Metrics,
) *NotifyProcessor {
	return &NotifyProcessor{
		sender:          sender,
		notificationLog: notificationLog,
		logger:          logger,
		metrics:         metrics,
	}
}

// Handle delivers one notification email. Transient sender failures bubble
// up for the queue to retry; sends the provider rejected outright come back
// marked permanent and are dead-lettered without further attempts.
func (p *NotifyProcessor) Handle(ctx context.Context, task *entity.Task) error {
	var payload entity.NotifyTaskPayload
	if err := json.Unmarshal([]byte(task.Payload), &payload); err != nil {
		return entity.Permanent(fmt.Errorf("decode notify payload: %w", err))
	}

	messageID, err := p.sender.Send(ctx, payload.Recipient, payload.Subject, payload.Body)
	if err != nil {
		p.metrics.ErrorsCount.WithLabelValues("send_notification").Inc()
		return fmt.Errorf("send notification: %w", err)
	}

	p.metrics.NotificationsSent.Inc()
	p.logger.Info("Notification delivered",
		"recipient", payload.Recipient,
		"routeId", payload.Route.RouteID,
		"messageId", messageID)

	record := &entity.DeliveryRecord{
		Recipient:       payload.Recipient,
		Subject:         payload.Subject,
		RouteID:         payload.Route.RouteID,
		ProviderRouteID: payload.Route.ProviderRouteID,
		MessageID:       messageID,
		SentAt:          time.Now().UTC(),
	}
	if err := p.notificationLog.Record(ctx, record); err != nil {
		// The email is out; a missing audit row is not worth a duplicate send.
		p.logger.Error("Failed to record delivery",
			"recipient", payload.Recipient, "error", err)
	}

	return nil
}

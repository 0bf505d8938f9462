package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/secureflow/vulnticket/internal/config"
	"github.com/secureflow/vulnticket/internal/events"
)

// NotificationService forwards ticket events to an optional webhook sink and
// logs them. It is a pure subscriber; email delivery lives in the SLA path.
type NotificationService struct {
	cfg    config.NotificationConfig
	http   *http.Client
	logger *zap.Logger
}

// NewNotificationService constructs the subscriber.
func NewNotificationService(cfg config.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		cfg:    cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}
}

// Register subscribes to every ticket event type on the dispatcher.
func (s *NotificationService) Register(dispatcher events.Dispatcher) {
	for _, eventType := range []events.EventType{
		events.EventTicketCreated,
		events.EventTicketStatusChanged,
		events.EventTicketAssigned,
		events.EventTicketSLABreached,
		events.EventSiteReconciled,
	} {
		dispatcher.Subscribe(eventType, s.handle)
	}
}

func (s *NotificationService) handle(ctx context.Context, event events.Event) error {
	s.logger.Info("ticket event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("ticket_id", event.TicketID))

	if s.cfg.WebhookURL == "" {
		return nil
	}
	if err := s.forward(ctx, event); err != nil {
		s.logger.Warn("webhook delivery failed",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return err
	}
	return nil
}

func (s *NotificationService) forward(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

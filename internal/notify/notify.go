package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"storefront-service/internal/domain"
)

// Notifier tells the store staff that an order was placed.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order, message string) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) OrderPlaced(context.Context, *domain.Order, string) error { return nil }

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridConfig addresses the staff mailbox.
type SendGridConfig struct {
	APIKey   string
	FromName string
	From     string
	To       string
}

// SendGrid mails the confirmation text of every new order to the staff mailbox.
type SendGrid struct {
	client mailSender
	cfg    SendGridConfig
	logger *zap.Logger
}

func NewSendGrid(cfg SendGridConfig, logger *zap.Logger) *SendGrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SendGrid{client: sendgrid.NewSendClient(cfg.APIKey), cfg: cfg, logger: logger}
}

func (s *SendGrid) OrderPlaced(ctx context.Context, order *domain.Order, message string) error {
	from := mail.NewEmail(s.cfg.FromName, s.cfg.From)
	to := mail.NewEmail(s.cfg.FromName, s.cfg.To)
	subject := fmt.Sprintf("New order #%d from %s", order.OrderNumber, order.CustomerInfo.Name)
	email := mail.NewSingleEmail(from, subject, to, message, "")

	response, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return &domain.ExternalServiceError{Service: "sendgrid", Op: "send order mail", Err: err}
	}
	if response.StatusCode >= 400 {
		return &domain.ExternalServiceError{
			Service: "sendgrid",
			Op:      "send order mail",
			Err:     fmt.Errorf("status code %d: %s", response.StatusCode, response.Body),
		}
	}
	s.logger.Info("order mail sent", zap.String("order_id", order.ID), zap.Int("status_code", response.StatusCode))
	return nil
}

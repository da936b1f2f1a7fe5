package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dealflow/internal/core/domain"
	"dealflow/internal/pkg/logger"
)

// statusMessages are the human readable notices sent for each deal status.
var statusMessages = map[domain.DealStatus]string{
	domain.DealAwaitingSignatures: "Documents were sent out for signature",
	domain.DealSigned:             "All agreements are signed",
	domain.DealInvoiced:           "Invoice issued to the client",
	domain.DealPaymentPending:     "Client payment is being processed",
	domain.DealPaymentFailed:      "Client payment failed",
	domain.DealHoldPeriod:         "Payment received, funds are on hold",
	domain.DealPayoutReady:        "Hold period is over, payout is ready",
	domain.DealPayoutInProgress:   "Payout is in progress",
	domain.DealClosed:             "Deal closed",
	domain.DealRefunded:           "Payment refunded to the client",
	domain.DealDispute:            "The client opened a dispute",
	domain.DealCancelled:          "Deal cancelled",
}

// TransitionNotice is the webhook payload for one deal transition.
type TransitionNotice struct {
	DealID      string            `json:"deal_id"`
	AgentUserID uint              `json:"agent_user_id"`
	From        domain.DealStatus `json:"from"`
	To          domain.DealStatus `json:"to"`
	Message     string            `json:"message"`
	HoldUntil   *time.Time        `json:"hold_until,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
}

// NotificationService posts deal transition notices to a webhook.
type NotificationService struct {
	webhookURL string
	client     *http.Client
	enabled    bool
}

// NewNotificationService creates a new notification service. An empty URL only logs.
func NewNotificationService(webhookURL string, timeout time.Duration) *NotificationService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NotificationService{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: timeout},
		enabled:    webhookURL != "",
	}
}

// IsEnabled checks if notification is enabled
func (s *NotificationService) IsEnabled() bool {
	return s.enabled
}

// OnTransition implements DealTransitionSideEffects.
func (s *NotificationService) OnTransition(ctx context.Context, deal domain.Deal, from, to domain.DealStatus) error {
	notice := TransitionNotice{
		DealID:      deal.ID,
		AgentUserID: deal.AgentUserID,
		From:        from,
		To:          to,
		Message:     statusMessages[to],
		HoldUntil:   deal.HoldUntil,
		OccurredAt:  deal.UpdatedAt,
	}
	logger.Info(ctx, "deal notification", "deal_id", deal.ID, "from", from, "to", to)

	if !s.enabled {
		return nil
	}
	return s.post(ctx, notice)
}

func (s *NotificationService) post(ctx context.Context, notice TransitionNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// SideEffectChain fans a transition out to several handlers. Every handler runs
// even when an earlier one fails.
type SideEffectChain []DealTransitionSideEffects

func (c SideEffectChain) OnTransition(ctx context.Context, deal domain.Deal, from, to domain.DealStatus) error {
	var errs []error
	for _, h := range c {
		if h == nil {
			continue
		}
		if err := h.OnTransition(ctx, deal, from, to); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

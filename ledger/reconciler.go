package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/kafka"
	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
)

// HandleWebhook consumes one provider notification. Deliveries are
// at-least-once and unordered; every path through here is safe to
// replay.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	event, err := s.Provider.VerifyWebhook(payload, sigHeader)
	if err != nil {
		// No state change on a payload we cannot authenticate.
		return err
	}

	switch event.Type {
	case provider.EventIntentSucceeded:
		return s.applyIntentSucceeded(ctx, event.IntentID)
	case provider.EventIntentFailed:
		return s.applyIntentFailed(ctx, event.IntentID)
	default:
		log.Printf("webhook: ignoring event type %s", event.Type)
		return nil
	}
}

type completedDonation struct {
	ID         uint
	ProjectID  *uint
	Amount     string
	IntentID   string
	OccurredAt time.Time
}

// applyIntentSucceeded drives the success transition in one
// transaction: payment completed, every linked donation completed,
// raised incremented. Partial application cannot survive a crash.
func (s *Service) applyIntentSucceeded(ctx context.Context, intentID string) error {
	var completed []completedDonation

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := paymentByIntent(tx, intentID)
		if err != nil {
			return err
		}
		if p == nil {
			// Unknown intent: acknowledge, or the provider retries
			// forever for an id we never persisted.
			log.Printf("webhook: no payment for intent %s", intentID)
			return nil
		}

		res := tx.Model(&model.Payment{}).
			Where("id = ? AND status IN ?", p.ID,
				[]model.PaymentStatus{model.PaymentPending, model.PaymentRequiresAction}).
			Update("status", model.PaymentCompleted)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already terminal: duplicate or late delivery, ack only.
			return nil
		}

		var donations []model.Donation
		if err := tx.Where("payment_ref = ?", intentID).Find(&donations).Error; err != nil {
			return err
		}
		for _, d := range donations {
			applied, err := applyCompletion(tx, d.ID)
			if err != nil {
				return err
			}
			if applied {
				completed = append(completed, completedDonation{
					ID:         d.ID,
					ProjectID:  d.ProjectID,
					Amount:     d.Amount.String(),
					IntentID:   intentID,
					OccurredAt: time.Now().UTC(),
				})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(completed) > 0 {
		s.invalidateProjects(ctx)
		for _, c := range completed {
			kafka.Publish(s.Producer, kafka.TopicDonationCompleted, map[string]interface{}{
				"donation_id":       c.ID,
				"project_id":        c.ProjectID,
				"amount":            c.Amount,
				"payment_intent_id": c.IntentID,
				"completed_at":      c.OccurredAt.Format(time.RFC3339),
			})
		}
	}
	return nil
}

// applyIntentFailed marks the payment and its pending donations
// failed. The ledger is never touched on this path.
func (s *Service) applyIntentFailed(ctx context.Context, intentID string) error {
	var failedPaymentID uint

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := paymentByIntent(tx, intentID)
		if err != nil {
			return err
		}
		if p == nil {
			log.Printf("webhook: no payment for intent %s", intentID)
			return nil
		}

		res := tx.Model(&model.Payment{}).
			Where("id = ? AND status IN ?", p.ID,
				[]model.PaymentStatus{model.PaymentPending, model.PaymentRequiresAction}).
			Update("status", model.PaymentFailed)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		failedPaymentID = p.ID

		return markFailed(tx, intentID)
	})
	if err != nil {
		return err
	}

	if failedPaymentID != 0 {
		kafka.Publish(s.Producer, kafka.TopicPaymentFailed, map[string]interface{}{
			"payment_id":        failedPaymentID,
			"payment_intent_id": intentID,
		})
	}
	return nil
}

// paymentByIntent resolves strictly by the provider's intent id; no
// caller-supplied value is ever used for the lookup.
func paymentByIntent(tx *gorm.DB, intentID string) (*model.Payment, error) {
	if intentID == "" {
		return nil, nil
	}
	var p model.Payment
	if err := tx.Where("payment_intent_id = ?", intentID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

// Package ledger is the authoritative record of committed and
// received funds: donations, payments and the per-project raised
// totals, plus the checkout and webhook flows that mutate them.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/IBM/sarama"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
)

// Service carries the ledger's dependencies. Everything is injected;
// there is no package-level state.
type Service struct {
	DB       *gorm.DB
	Provider provider.Provider
	Producer sarama.SyncProducer
	Redis    *redis.Client
}

func NewService(db *gorm.DB, p provider.Provider, producer sarama.SyncProducer, rdb *redis.Client) *Service {
	return &Service{DB: db, Provider: p, Producer: producer, Redis: rdb}
}

type CreateDonationInput struct {
	ProjectID   *uint
	NonprofitID *uint
	Amount      decimal.Decimal
	Owner       model.Owner
	Anonymous   bool
	Message     string
	Email       string
	DonorName   string
	PaymentRef  string
}

// CreateDonation validates and inserts a pending donation. A donation
// needs either an authenticated donor or a contact email.
func (s *Service) CreateDonation(ctx context.Context, in CreateDonationInput) (*model.Donation, error) {
	d, err := buildDonation(in)
	if err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Create(d).Error; err != nil {
		return nil, err
	}
	return d, nil
}

func buildDonation(in CreateDonationInput) (*model.Donation, error) {
	if !in.Amount.IsPositive() {
		return nil, model.NewValidationError("amount must be greater than zero")
	}
	if in.Owner.UserID == nil && strings.TrimSpace(in.Email) == "" {
		return nil, model.NewValidationError("email is required for non-authenticated donors")
	}
	return &model.Donation{
		ProjectID:   in.ProjectID,
		NonprofitID: in.NonprofitID,
		DonorID:     in.Owner.UserID,
		Amount:      in.Amount,
		PaymentRef:  in.PaymentRef,
		Status:      model.DonationPending,
		Anonymous:   in.Anonymous,
		Message:     in.Message,
		Email:       strings.TrimSpace(in.Email),
		DonorName:   in.DonorName,
	}, nil
}

// ApplyCompletion marks one donation completed and adds its amount to
// the project's raised total, as one transaction.
func (s *Service) ApplyCompletion(ctx context.Context, donationID uint) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := applyCompletion(tx, donationID)
		return err
	})
}

// applyCompletion is the single place a donation turns completed. The
// status flip is a compare-and-swap on pending, so a second delivery
// of the same event loses the swap and never touches raised.
func applyCompletion(tx *gorm.DB, donationID uint) (bool, error) {
	var d model.Donation
	if err := tx.First(&d, donationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, &model.NotFoundError{Resource: "donation"}
		}
		return false, err
	}

	res := tx.Model(&model.Donation{}).
		Where("id = ? AND status = ?", d.ID, model.DonationPending).
		Update("status", model.DonationCompleted)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		// Already terminal; the first writer won.
		return false, nil
	}

	if d.ProjectID != nil {
		err := tx.Model(&model.Project{}).
			Where("id = ?", *d.ProjectID).
			UpdateColumn("raised", gorm.Expr("raised + ?", d.Amount)).Error
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// markFailed flips pending donations for one intent to failed. No
// ledger mutation happens on the failure path.
func markFailed(tx *gorm.DB, intentID string) error {
	return tx.Model(&model.Donation{}).
		Where("payment_ref = ? AND status = ?", intentID, model.DonationPending).
		Update("status", model.DonationFailed).Error
}

// Refund is the explicit admin path out of completed. It reverses the
// raised increment in the same transaction.
func (s *Service) Refund(ctx context.Context, donationID uint) (*model.Donation, error) {
	var d model.Donation
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&d, donationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "donation"}
			}
			return err
		}

		res := tx.Model(&model.Donation{}).
			Where("id = ? AND status = ?", d.ID, model.DonationCompleted).
			Update("status", model.DonationRefunded)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.NewConflictError("donation is not completed, cannot refund")
		}

		if d.ProjectID != nil {
			err := tx.Model(&model.Project{}).
				Where("id = ?", *d.ProjectID).
				UpdateColumn("raised", gorm.Expr("raised - ?", d.Amount)).Error
			if err != nil {
				return err
			}
		}

		if d.PaymentRef != "" {
			err := tx.Model(&model.Payment{}).
				Where("payment_intent_id = ? AND status = ?", d.PaymentRef, model.PaymentCompleted).
				Update("status", model.PaymentRefunded).Error
			if err != nil {
				return err
			}
		}

		d.Status = model.DonationRefunded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.invalidateProjects(ctx)
	return &d, nil
}

// createPayment inserts a payment row, retrying the reference number
// on a unique-constraint collision. Collisions are possible, not
// assumed impossible.
func createPayment(tx *gorm.DB, p *model.Payment) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		p.ReferenceNumber = model.NewReferenceNumber()
		err = tx.Create(p).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		p.ID = 0
	}
	return err
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (s *Service) invalidateProjects(ctx context.Context) {
	if s.Redis == nil {
		return
	}
	s.Redis.Del(ctx, "projects:all")
}

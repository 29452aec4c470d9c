// Package giftcards manages gift card issuance and single-shot
// redemption.
package giftcards

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/model"
)

type Service struct {
	DB *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{DB: db}
}

type CreateInput struct {
	Amount         decimal.Decimal
	SenderName     string
	SenderEmail    string
	RecipientName  string
	RecipientEmail string
	Message        string
	DesignID       *uint
	CardType       string
	CreatedByID    *uint
	PaymentRef     string
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*model.GiftCard, error) {
	if !in.Amount.IsPositive() {
		return nil, model.NewValidationError("amount must be greater than zero")
	}
	if strings.TrimSpace(in.SenderEmail) == "" || strings.TrimSpace(in.RecipientEmail) == "" {
		return nil, model.NewValidationError("sender and recipient email are required")
	}
	cardType := in.CardType
	if cardType == "" {
		cardType = "digital"
	}

	card := &model.GiftCard{
		Code:           newCode(),
		Amount:         in.Amount,
		SenderName:     in.SenderName,
		SenderEmail:    in.SenderEmail,
		RecipientName:  in.RecipientName,
		RecipientEmail: in.RecipientEmail,
		Message:        in.Message,
		DesignID:       in.DesignID,
		Status:         model.GiftCardActive,
		CardType:       cardType,
		CreatedByID:    in.CreatedByID,
		ExpirationDate: time.Now().AddDate(1, 0, 0),
		PaymentRef:     in.PaymentRef,
	}
	if err := s.DB.WithContext(ctx).Create(card).Error; err != nil {
		return nil, err
	}
	return card, nil
}

// Validate reports whether a code can still be redeemed.
func (s *Service) Validate(ctx context.Context, code string) (*model.GiftCard, error) {
	if code == "" {
		return nil, model.NewValidationError("gift card code is required")
	}
	var card model.GiftCard
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{Resource: "gift card"}
		}
		return nil, err
	}
	if !card.Valid(time.Now()) {
		return nil, model.NewValidationError("gift card is no longer valid")
	}
	return &card, nil
}

type RedeemInput struct {
	Code          string
	NonprofitID   uint
	NonprofitName string
	Amount        decimal.Decimal
	RedeemedByID  *uint
}

// Redeem spends a card exactly once. The active→redeemed flip is a
// compare-and-swap keyed by the card row, so of N concurrent attempts
// on the same code exactly one wins; the rest get a conflict.
func (s *Service) Redeem(ctx context.Context, in RedeemInput) (*model.GiftCardRedemption, error) {
	if in.Code == "" {
		return nil, model.NewValidationError("gift card code is required")
	}

	var redemption *model.GiftCardRedemption
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var card model.GiftCard
		if err := tx.Where("code = ?", in.Code).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &model.NotFoundError{Resource: "gift card"}
			}
			return err
		}

		amount := in.Amount
		if amount.IsZero() {
			amount = card.Amount
		}
		if !amount.IsPositive() || amount.GreaterThan(card.Amount) {
			return model.NewValidationError("invalid redemption amount")
		}

		now := time.Now()
		res := tx.Model(&model.GiftCard{}).
			Where("id = ? AND status = ? AND expiration_date > ?", card.ID, model.GiftCardActive, now).
			Updates(map[string]interface{}{
				"status":         model.GiftCardRedeemed,
				"redeemed_at":    now,
				"redeemed_by_id": in.RedeemedByID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return model.NewConflictError("gift card already redeemed or expired")
		}

		redemption = &model.GiftCardRedemption{
			GiftCardID:    card.ID,
			RedeemedByID:  in.RedeemedByID,
			NonprofitID:   in.NonprofitID,
			NonprofitName: in.NonprofitName,
			Amount:        amount,
			RedeemedAt:    now,
		}
		return tx.Create(redemption).Error
	})
	if err != nil {
		return nil, err
	}
	return redemption, nil
}

// ListCreated returns the cards a user purchased.
func (s *Service) ListCreated(ctx context.Context, userID uint) ([]model.GiftCard, error) {
	var cards []model.GiftCard
	err := s.DB.WithContext(ctx).
		Where("created_by_id = ?", userID).
		Order("purchased_at DESC").
		Find(&cards).Error
	return cards, err
}

// ListRedeemed returns the cards a user has spent.
func (s *Service) ListRedeemed(ctx context.Context, userID uint) ([]model.GiftCard, error) {
	var cards []model.GiftCard
	err := s.DB.WithContext(ctx).
		Where("redeemed_by_id = ?", userID).
		Order("purchased_at DESC").
		Find(&cards).Error
	return cards, err
}

func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
}

package ledger

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
)

type CheckoutInput struct {
	Owner           model.Owner
	PaymentMethodID string
	Currency        string
	Email           string
	Name            string
}

type CheckoutResult struct {
	ClientSecret string          `json:"client_secret"`
	DonationIDs  []uint          `json:"donation_ids"`
	Payment      *model.Payment  `json:"payment"`
	Total        decimal.Decimal `json:"total"`
	NetPayable   decimal.Decimal `json:"net_payable"`
}

// Checkout converts one owner's cart into a single intent and one
// pending donation per item, then clears the cart. The read-aggregate-
// clear sequence is one consistency unit: if the provider call fails
// the cart is untouched, and the donations, payment row and cart
// deletion commit together or not at all.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if !in.Owner.Valid() {
		return nil, model.NewValidationError("user must be authenticated or provide a session id")
	}
	if in.PaymentMethodID == "" {
		return nil, model.NewValidationError("payment method is required")
	}
	if in.Owner.UserID == nil && in.Email == "" {
		return nil, model.NewValidationError("email is required for non-authenticated users")
	}
	currency := normalizeCurrency(in.Currency)

	items, err := s.cartItems(ctx, in.Owner)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, model.NewValidationError("no items in cart")
	}

	total := cartTotal(items)
	net, giftCard, err := s.applyGiftCardOffset(ctx, items, total)
	if err != nil {
		return nil, err
	}

	metadata := map[string]string{"is_cart": "true"}
	if in.Owner.UserID != nil {
		metadata["user_id"] = strconv.FormatUint(uint64(*in.Owner.UserID), 10)
	}
	if in.Owner.SessionID != "" {
		metadata["session_id"] = in.Owner.SessionID
	}
	if giftCard != nil {
		metadata["gift_card_code"] = giftCard.Code
	}

	intent, err := s.Provider.CreateIntent(ctx, provider.CreateIntentInput{
		AmountMinor:  minorUnits(net),
		Currency:     currency,
		ReceiptEmail: in.Email,
		Metadata:     metadata,
	})
	if err != nil {
		return nil, err
	}

	result := &CheckoutResult{
		ClientSecret: intent.ClientSecret,
		Total:        total,
		NetPayable:   net,
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read inside the transaction: a concurrent add or remove
		// since aggregation makes the intent amount wrong, so abort.
		var current []model.CartItem
		if err := ownerScope(tx, in.Owner).Find(&current).Error; err != nil {
			return err
		}
		if !cartTotal(current).Equal(total) {
			return model.NewConflictError("cart changed during checkout")
		}

		ids := make([]uint, 0, len(current))
		for _, item := range current {
			d := &model.Donation{
				NonprofitID:        &item.NonprofitID,
				DonorID:            in.Owner.UserID,
				Amount:             item.TotalAmount(),
				PaymentRef:         intent.ID,
				Status:             model.DonationPending,
				Email:              in.Email,
				DonorName:          in.Name,
				IsRecurring:        item.IsRecurring,
				RecurringFrequency: recurringFrequency(item),
				GiftCardID:         item.GiftCardID,
			}
			if err := tx.Create(d).Error; err != nil {
				return err
			}
			result.DonationIDs = append(result.DonationIDs, d.ID)
			ids = append(ids, item.ID)
		}

		p := &model.Payment{
			UserID:          in.Owner.UserID,
			SessionID:       in.Owner.SessionID,
			PaymentIntentID: intent.ID,
			PaymentMethodID: in.PaymentMethodID,
			Amount:          net,
			Currency:        currency,
			Status:          model.PaymentPending,
			Method:          "stripe",
			BillingEmail:    in.Email,
			BillingName:     in.Name,
		}
		if err := createPayment(tx, p); err != nil {
			return err
		}
		result.Payment = p

		res := tx.Where("id IN ?", ids).Delete(&model.CartItem{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return model.NewConflictError("cart changed during checkout")
		}
		return nil
	})
	if err != nil {
		// The provider intent stays uncaptured on its side; nothing
		// local was committed.
		log.Printf("checkout aborted for intent %s: %v", intent.ID, err)
		return nil, err
	}
	return result, nil
}

// AttachGiftCard marks intended use of a card on every item of the
// owner's cart. Attachment is advisory: it never redeems the card, so
// an abandoned checkout cannot burn it.
func (s *Service) AttachGiftCard(ctx context.Context, owner model.Owner, code string) (*model.GiftCard, error) {
	if !owner.Valid() {
		return nil, model.NewValidationError("user must be authenticated or provide a session id")
	}
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

	res := ownerScope(s.DB.WithContext(ctx), owner).
		Model(&model.CartItem{}).
		Update("gift_card_id", card.ID)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, model.NewValidationError("no items in cart")
	}
	return &card, nil
}

func (s *Service) cartItems(ctx context.Context, owner model.Owner) ([]model.CartItem, error) {
	var items []model.CartItem
	err := ownerScope(s.DB.WithContext(ctx), owner).Find(&items).Error
	return items, err
}

// applyGiftCardOffset subtracts an attached, still-valid card from the
// payable amount. The card itself is only spent at redemption.
func (s *Service) applyGiftCardOffset(ctx context.Context, items []model.CartItem, total decimal.Decimal) (decimal.Decimal, *model.GiftCard, error) {
	var cardID *uint
	for _, item := range items {
		if item.GiftCardID != nil {
			cardID = item.GiftCardID
			break
		}
	}
	if cardID == nil {
		return total, nil, nil
	}

	var card model.GiftCard
	if err := s.DB.WithContext(ctx).First(&card, *cardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return total, nil, nil
		}
		return decimal.Zero, nil, err
	}
	if !card.Valid(time.Now()) {
		return total, nil, nil
	}

	net := total.Sub(card.Amount)
	if !net.IsPositive() {
		return decimal.Zero, nil, model.NewValidationError("gift card covers the full amount; redeem it directly instead")
	}
	return net, &card, nil
}

func ownerScope(db *gorm.DB, owner model.Owner) *gorm.DB {
	if owner.UserID != nil {
		return db.Where("user_id = ?", *owner.UserID)
	}
	return db.Where("session_id = ?", owner.SessionID)
}

func cartTotal(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalAmount())
	}
	return total
}

func recurringFrequency(item model.CartItem) string {
	if !item.IsRecurring {
		return ""
	}
	return item.RecurringFrequency
}

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
)

func seedCart(t *testing.T, db *gorm.DB, owner model.Owner, items ...model.CartItem) {
	t.Helper()
	for i := range items {
		items[i].UserID = owner.UserID
		items[i].SessionID = owner.SessionID
		if err := db.Create(&items[i]).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
	}
}

func cartCount(t *testing.T, db *gorm.DB, owner model.Owner) int64 {
	t.Helper()
	var n int64
	q := db.Model(&model.CartItem{})
	if owner.UserID != nil {
		q = q.Where("user_id = ?", *owner.UserID)
	} else {
		q = q.Where("session_id = ?", owner.SessionID)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	return n
}

func TestCheckoutAggregatesCartIntoOneIntent(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	owner := model.Owner{SessionID: "sess-1"}
	seedCart(t, s.DB, owner,
		model.CartItem{NonprofitID: 1, Amount: decimal.RequireFromString("25.00"), Quantity: 2},
		model.CartItem{NonprofitID: 2, Amount: decimal.RequireFromString("10.00"), Quantity: 1},
	)

	var intentAmount int64
	fp.createFn = func(_ context.Context, in provider.CreateIntentInput) (*provider.Intent, error) {
		intentAmount = in.AmountMinor
		return &provider.Intent{ID: "pi_cart", Status: provider.IntentProcessing, ClientSecret: "cs"}, nil
	}

	result, err := s.Checkout(ctx, CheckoutInput{
		Owner:           owner,
		PaymentMethodID: "pm_card",
		Email:           "a@example.com",
	})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if intentAmount != 6000 {
		t.Errorf("intent amount = %d minor units, want 6000", intentAmount)
	}
	if len(result.DonationIDs) != 2 {
		t.Fatalf("donation ids = %d, want 2", len(result.DonationIDs))
	}
	if n := cartCount(t, s.DB, owner); n != 0 {
		t.Errorf("cart has %d items after checkout, want 0", n)
	}

	var donations []model.Donation
	s.DB.Where("payment_ref = ?", "pi_cart").Find(&donations)
	if len(donations) != 2 {
		t.Fatalf("donations for intent = %d, want 2", len(donations))
	}
	for _, d := range donations {
		if d.Status != model.DonationPending {
			t.Errorf("donation %d status = %s, want pending", d.ID, d.Status)
		}
	}

	var p model.Payment
	if err := s.DB.Where("payment_intent_id = ?", "pi_cart").First(&p).Error; err != nil {
		t.Fatalf("payment row missing: %v", err)
	}
	if !p.Amount.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("payment amount = %s, want 60.00", p.Amount)
	}
}

func TestCheckoutProviderFailureLeavesCartUntouched(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	owner := model.Owner{SessionID: "sess-2"}
	seedCart(t, s.DB, owner,
		model.CartItem{NonprofitID: 1, Amount: decimal.RequireFromString("25.00"), Quantity: 2},
	)

	fp.createFn = func(context.Context, provider.CreateIntentInput) (*provider.Intent, error) {
		return nil, &model.ProviderError{Op: "create intent", Err: errors.New("card network down")}
	}

	_, err := s.Checkout(ctx, CheckoutInput{Owner: owner, PaymentMethodID: "pm_card", Email: "a@example.com"})
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}

	if n := cartCount(t, s.DB, owner); n != 1 {
		t.Errorf("cart has %d items, want untouched 1", n)
	}
	var n int64
	s.DB.Model(&model.Donation{}).Count(&n)
	if n != 0 {
		t.Errorf("donations created = %d, want 0", n)
	}
}

func TestCheckoutValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	t.Run("no identity", func(t *testing.T) {
		_, err := s.Checkout(ctx, CheckoutInput{PaymentMethodID: "pm"})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("empty cart", func(t *testing.T) {
		_, err := s.Checkout(ctx, CheckoutInput{
			Owner:           model.Owner{SessionID: "empty"},
			PaymentMethodID: "pm",
			Email:           "a@example.com",
		})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("missing payment method", func(t *testing.T) {
		owner := model.Owner{SessionID: "sess-pm"}
		seedCart(t, s.DB, owner, model.CartItem{NonprofitID: 1, Amount: decimal.NewFromInt(5), Quantity: 1})
		_, err := s.Checkout(ctx, CheckoutInput{Owner: owner, Email: "a@example.com"})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})
}

func TestCheckoutConflictsWhenCartChangesMidFlight(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	owner := model.Owner{SessionID: "sess-3"}
	seedCart(t, s.DB, owner,
		model.CartItem{NonprofitID: 1, Amount: decimal.RequireFromString("25.00"), Quantity: 2},
	)

	// Mutate the cart between aggregation and commit, from inside the
	// provider call.
	fp.createFn = func(context.Context, provider.CreateIntentInput) (*provider.Intent, error) {
		item := model.CartItem{SessionID: owner.SessionID, NonprofitID: 9, Amount: decimal.NewFromInt(5), Quantity: 1}
		if err := s.DB.Create(&item).Error; err != nil {
			t.Fatalf("concurrent add: %v", err)
		}
		return &provider.Intent{ID: "pi_conflict", Status: provider.IntentProcessing}, nil
	}

	_, err := s.Checkout(ctx, CheckoutInput{Owner: owner, PaymentMethodID: "pm", Email: "a@example.com"})
	var ce *model.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConflictError", err)
	}

	if n := cartCount(t, s.DB, owner); n != 2 {
		t.Errorf("cart has %d items, want both preserved", n)
	}
	var n int64
	s.DB.Model(&model.Donation{}).Count(&n)
	if n != 0 {
		t.Errorf("donations created = %d, want 0", n)
	}
}

func TestCheckoutWithGiftCardOffset(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	owner := model.Owner{SessionID: "sess-4"}

	card := model.GiftCard{
		Code:           "TESTGIFT123CHECK",
		Amount:         decimal.RequireFromString("50.00"),
		Status:         model.GiftCardActive,
		ExpirationDate: time.Now().Add(24 * time.Hour),
	}
	if err := s.DB.Create(&card).Error; err != nil {
		t.Fatalf("seed gift card: %v", err)
	}
	seedCart(t, s.DB, owner,
		model.CartItem{NonprofitID: 1, Amount: decimal.RequireFromString("25.00"), Quantity: 2, GiftCardID: &card.ID},
		model.CartItem{NonprofitID: 2, Amount: decimal.RequireFromString("10.00"), Quantity: 1, GiftCardID: &card.ID},
	)

	var intentAmount int64
	fp.createFn = func(_ context.Context, in provider.CreateIntentInput) (*provider.Intent, error) {
		intentAmount = in.AmountMinor
		return &provider.Intent{ID: "pi_gift", Status: provider.IntentProcessing, ClientSecret: "cs"}, nil
	}

	result, err := s.Checkout(ctx, CheckoutInput{Owner: owner, PaymentMethodID: "pm", Email: "a@example.com"})
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if intentAmount != 1000 {
		t.Errorf("intent amount = %d, want net 1000 minor units", intentAmount)
	}
	if !result.Total.Equal(decimal.RequireFromString("60.00")) {
		t.Errorf("total = %s, want 60.00", result.Total)
	}
	if !result.NetPayable.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("net = %s, want 10.00", result.NetPayable)
	}
	if len(result.DonationIDs) != 2 {
		t.Errorf("donation ids = %d, want 2", len(result.DonationIDs))
	}
	if n := cartCount(t, s.DB, owner); n != 0 {
		t.Errorf("cart has %d items after checkout, want 0", n)
	}

	// Attachment is advisory: checkout must not redeem the card.
	var after model.GiftCard
	s.DB.First(&after, card.ID)
	if after.Status != model.GiftCardActive {
		t.Errorf("gift card status = %s, want still active", after.Status)
	}
}

func TestAttachGiftCard(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	owner := model.Owner{SessionID: "sess-5"}
	seedCart(t, s.DB, owner,
		model.CartItem{NonprofitID: 1, Amount: decimal.NewFromInt(20), Quantity: 1},
	)

	card := model.GiftCard{
		Code:           "ATTACHME12345678",
		Amount:         decimal.NewFromInt(10),
		Status:         model.GiftCardActive,
		ExpirationDate: time.Now().Add(24 * time.Hour),
	}
	if err := s.DB.Create(&card).Error; err != nil {
		t.Fatalf("seed gift card: %v", err)
	}

	if _, err := s.AttachGiftCard(ctx, owner, "ATTACHME12345678"); err != nil {
		t.Fatalf("AttachGiftCard: %v", err)
	}

	var item model.CartItem
	s.DB.Where("session_id = ?", owner.SessionID).First(&item)
	if item.GiftCardID == nil || *item.GiftCardID != card.ID {
		t.Errorf("gift card not attached to cart item")
	}

	t.Run("unknown code", func(t *testing.T) {
		_, err := s.AttachGiftCard(ctx, owner, "NOPE")
		var nf *model.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("err = %v, want NotFoundError", err)
		}
	})
}

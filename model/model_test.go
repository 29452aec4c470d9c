package model

import (
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestFundAllocationValidate(t *testing.T) {
	tests := []struct {
		operational, direct, reserve string
		wantErr                      bool
	}{
		{"10", "85", "5", false},
		{"0", "100", "0", false},
		{"33.33", "33.33", "33.34", false},
		{"10", "85", "10", true},
		{"0", "0", "0", true},
	}
	for _, tt := range tests {
		fa := FundAllocation{
			OperationalCosts: decimal.RequireFromString(tt.operational),
			DirectAid:        decimal.RequireFromString(tt.direct),
			EmergencyReserve: decimal.RequireFromString(tt.reserve),
		}
		err := fa.Validate()
		if (err != nil) != tt.wantErr {
			t.Errorf("Validate(%s/%s/%s) err = %v, wantErr %v",
				tt.operational, tt.direct, tt.reserve, err, tt.wantErr)
		}
	}
}

func TestNewReferenceNumber(t *testing.T) {
	re := regexp.MustCompile(`^HB-\d+-[0-9A-Z]{6}$`)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		ref := NewReferenceNumber()
		if !re.MatchString(ref) {
			t.Fatalf("reference %q does not match format", ref)
		}
		seen[ref] = true
	}
	if len(seen) < 95 {
		t.Errorf("only %d distinct references out of 100", len(seen))
	}
}

func TestCartItemTotalAmount(t *testing.T) {
	ci := CartItem{Amount: decimal.RequireFromString("25.00"), Quantity: 3}
	if got := ci.TotalAmount(); !got.Equal(decimal.RequireFromString("75.00")) {
		t.Errorf("TotalAmount = %s, want 75.00", got)
	}
}

func TestGiftCardValid(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name   string
		status GiftCardStatus
		expiry time.Time
		want   bool
	}{
		{"active unexpired", GiftCardActive, now.Add(time.Hour), true},
		{"active expired", GiftCardActive, now.Add(-time.Hour), false},
		{"redeemed", GiftCardRedeemed, now.Add(time.Hour), false},
		{"cancelled", GiftCardCancelled, now.Add(time.Hour), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := GiftCard{Status: tt.status, ExpirationDate: tt.expiry}
			if got := g.Valid(now); got != tt.want {
				t.Errorf("Valid = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOwnerValid(t *testing.T) {
	id := uint(7)
	if (Owner{}).Valid() {
		t.Error("empty owner accepted")
	}
	if !(Owner{UserID: &id}).Valid() {
		t.Error("user owner rejected")
	}
	if !(Owner{SessionID: "abc"}).Valid() {
		t.Error("session owner rejected")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{NewValidationError("bad"), 400},
		{&AuthenticityError{Err: errors.New("sig")}, 400},
		{&NotFoundError{Resource: "project"}, 404},
		{NewConflictError("raced"), 409},
		{&ProviderError{Op: "create intent", Err: errors.New("down")}, 502},
		{errors.New("plain"), 500},
		{fmt.Errorf("wrapped: %w", NewConflictError("raced")), 409},
	}
	for _, tt := range tests {
		if got := HTTPStatus(tt.err); got != tt.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// DonationStatus tracks a donation through the payment lifecycle.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

// PaymentStatus mirrors the provider intent lifecycle 1:1.
type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "pending"
	PaymentRequiresAction PaymentStatus = "requires_action"
	PaymentCompleted      PaymentStatus = "completed"
	PaymentFailed         PaymentStatus = "failed"
	PaymentRefunded       PaymentStatus = "refunded"
)

type GiftCardStatus string

const (
	GiftCardActive    GiftCardStatus = "active"
	GiftCardRedeemed  GiftCardStatus = "redeemed"
	GiftCardExpired   GiftCardStatus = "expired"
	GiftCardCancelled GiftCardStatus = "cancelled"
)

const (
	ProjectActive    = "active"
	ProjectUrgent    = "urgent"
	ProjectCompleted = "completed"
)

// Owner identifies who a cart or donation belongs to: an authenticated
// user or an anonymous session.
type Owner struct {
	UserID    *uint
	SessionID string
}

func (o Owner) Valid() bool {
	return o.UserID != nil || o.SessionID != ""
}

type Project struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Categories   datatypes.JSON  `json:"categories"`
	Location     string          `json:"location"`
	Organization string          `json:"organization"`
	Goal         decimal.Decimal `gorm:"type:decimal(10,2)" json:"goal"`
	Raised       decimal.Decimal `gorm:"type:decimal(10,2)" json:"raised"`
	Status       string          `gorm:"default:active" json:"status"`
	Featured     bool            `json:"featured"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Nonprofit struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Mission   string    `json:"mission"`
	Website   string    `json:"website"`
	CreatedAt time.Time `json:"created_at"`
}

type Donation struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProjectID   *uint           `gorm:"index" json:"project_id,omitempty"`
	NonprofitID *uint           `gorm:"index" json:"nonprofit_id,omitempty"`
	DonorID     *uint           `gorm:"index" json:"donor_id,omitempty"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	// PaymentRef is the provider intent id. Cart checkouts share one
	// intent across several donations, so it is indexed, not unique.
	PaymentRef         string         `gorm:"index" json:"payment_ref"`
	Status             DonationStatus `gorm:"default:pending;index" json:"status"`
	Anonymous          bool           `json:"anonymous"`
	Message            string         `json:"message,omitempty"`
	Email              string         `json:"email,omitempty"`
	DonorName          string         `json:"donor_name,omitempty"`
	IsRecurring        bool           `json:"is_recurring"`
	RecurringFrequency string         `json:"recurring_frequency,omitempty"`
	GiftCardID         *uint          `json:"gift_card_id,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type Payment struct {
	ID                 uint              `gorm:"primaryKey" json:"id"`
	UserID             *uint             `gorm:"index" json:"user_id,omitempty"`
	DonationID         *uint             `json:"donation_id,omitempty"`
	SessionID          string            `json:"session_id,omitempty"`
	PaymentIntentID    string            `gorm:"uniqueIndex" json:"payment_intent_id"`
	PaymentMethodID    string            `json:"payment_method_id,omitempty"`
	Amount             decimal.Decimal   `gorm:"type:decimal(10,2)" json:"amount"`
	Currency           string            `gorm:"size:3;default:USD" json:"currency"`
	Status             PaymentStatus     `gorm:"default:pending;index" json:"status"`
	Method             string            `gorm:"default:stripe" json:"method"`
	IsRecurring        bool              `json:"is_recurring"`
	RecurringFrequency string            `json:"recurring_frequency,omitempty"`
	BillingEmail       string            `json:"billing_email,omitempty"`
	BillingName        string            `json:"billing_name,omitempty"`
	ReferenceNumber    string            `gorm:"uniqueIndex;size:50" json:"reference_number"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type CartItem struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	UserID             *uint           `gorm:"index" json:"user_id,omitempty"`
	SessionID          string          `gorm:"index" json:"session_id,omitempty"`
	NonprofitID        uint            `json:"nonprofit_id"`
	Amount             decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	Quantity           uint            `gorm:"default:1" json:"quantity"`
	IsRecurring        bool            `json:"is_recurring"`
	RecurringFrequency string          `gorm:"default:monthly" json:"recurring_frequency"`
	GiftCardID         *uint           `json:"gift_card_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TotalAmount is unit amount times quantity.
func (ci CartItem) TotalAmount() decimal.Decimal {
	return ci.Amount.Mul(decimal.NewFromInt(int64(ci.Quantity)))
}

type GiftCardDesign struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `json:"name"`
	Image     string    `json:"image,omitempty"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type GiftCard struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Code           string          `gorm:"uniqueIndex;size:16" json:"code"`
	Amount         decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	SenderName     string          `json:"sender_name"`
	SenderEmail    string          `json:"sender_email"`
	RecipientName  string          `json:"recipient_name"`
	RecipientEmail string          `json:"recipient_email"`
	Message        string          `json:"message,omitempty"`
	DesignID       *uint           `json:"design_id,omitempty"`
	Status         GiftCardStatus  `gorm:"default:active;index" json:"status"`
	CardType       string          `gorm:"default:digital" json:"card_type"`
	CreatedByID    *uint           `json:"created_by,omitempty"`
	RedeemedByID   *uint           `json:"redeemed_by,omitempty"`
	PurchasedAt    time.Time       `gorm:"autoCreateTime" json:"purchased_at"`
	ExpirationDate time.Time       `json:"expiration_date"`
	RedeemedAt     *time.Time      `json:"redeemed_at,omitempty"`
	PaymentRef     string          `json:"payment_ref,omitempty"`
}

// Valid reports whether the card can still be redeemed.
func (g GiftCard) Valid(now time.Time) bool {
	return g.Status == GiftCardActive && g.ExpirationDate.After(now)
}

type GiftCardRedemption struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	GiftCardID    uint            `gorm:"index" json:"gift_card_id"`
	RedeemedByID  *uint           `json:"redeemed_by,omitempty"`
	NonprofitID   uint            `json:"nonprofit_id"`
	NonprofitName string          `json:"nonprofit_name"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2)" json:"amount"`
	RedeemedAt    time.Time       `gorm:"autoCreateTime" json:"redeemed_at"`
}

type FundAllocation struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	ProjectID        uint            `gorm:"uniqueIndex" json:"project_id"`
	OperationalCosts decimal.Decimal `gorm:"type:decimal(5,2)" json:"operational_costs"`
	DirectAid        decimal.Decimal `gorm:"type:decimal(5,2)" json:"direct_aid"`
	EmergencyReserve decimal.Decimal `gorm:"type:decimal(5,2)" json:"emergency_reserve"`
}

// Validate enforces that the three percentages sum to exactly 100.
func (fa FundAllocation) Validate() error {
	total := fa.OperationalCosts.Add(fa.DirectAid).Add(fa.EmergencyReserve)
	if !total.Equal(decimal.NewFromInt(100)) {
		return NewValidationError("fund allocation percentages must add up to 100")
	}
	return nil
}

type ExchangeRate struct {
	ID             uint            `gorm:"primaryKey" json:"-"`
	BaseCurrency   string          `gorm:"size:3;uniqueIndex:idx_base_target" json:"base_currency"`
	TargetCurrency string          `gorm:"size:3;uniqueIndex:idx_base_target" json:"target_currency"`
	Rate           decimal.Decimal `gorm:"type:decimal(12,6)" json:"rate"`
	LastUpdated    time.Time       `gorm:"autoUpdateTime" json:"last_updated"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&Project{},
		&Nonprofit{},
		&Donation{},
		&Payment{},
		&CartItem{},
		&GiftCardDesign{},
		&GiftCard{},
		&GiftCardRedemption{},
		&FundAllocation{},
		&ExchangeRate{},
	}
}

package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a product is charged
type PaymentMethod string

const (
	PaymentMethodOneTime   PaymentMethod = "ONE_TIME"
	PaymentMethodRecurring PaymentMethod = "RECURRING"
)

// Valid reports whether m is a known payment method
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodOneTime || m == PaymentMethodRecurring
}

// Product represents the item sold through a payment link
type Product struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	ImageURL      string          `json:"imageUrl,omitempty"`
	Price         decimal.Decimal `json:"price"` // USD
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
}

// PaymentLink is a merchant-published link to pay for one product
type PaymentLink struct {
	ID                           uuid.UUID `json:"id"`
	Slug                         string    `json:"slug"`
	MerchantID                   uuid.UUID `json:"merchantId"`
	Merchant                     *User     `json:"user"`
	Product                      Product   `json:"product"`
	RequiresIdentityVerification bool      `json:"requiresWorldId"`
	RedirectURL                  string    `json:"redirectUrl,omitempty"`
	CreatedAt                    time.Time `json:"createdAt"`
}

// IsRecurring reports whether the linked product is a subscription
func (l *PaymentLink) IsRecurring() bool {
	return l.Product.PaymentMethod == PaymentMethodRecurring
}

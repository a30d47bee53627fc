package orders

import (
	"fmt"
	"time"
)

type LineInput struct {
	ProductID      string  `json:"product_id"`
	VariationID    *string `json:"variation_id,omitempty"`
	Qty            int     `json:"qty"`
	UnitPriceCents int     `json:"unit_price_cents"`
}

type PlaceOrderInput struct {
	Code            string      `json:"code"`
	PlacedAt        time.Time   `json:"placed_at"`
	PaymentMethod   string      `json:"payment_method"`
	Note            string      `json:"note"`
	DiscountPercent int         `json:"discount_percent"`
	UserID          string      `json:"user_id"`
	AddressID       string      `json:"address_id"`
	InitialStatus   Status      `json:"initial_status"` // empty -> PENDING
	Lines           []LineInput `json:"lines"`
}

// Validate checks the input before any database work so the transactor can
// assume a well-formed order.
func (in PlaceOrderInput) Validate() error {
	if in.Code == "" {
		return &InvalidInputError{Field: "code", Reason: "must not be empty"}
	}
	if in.UserID == "" {
		return &InvalidInputError{Field: "user_id", Reason: "must not be empty"}
	}
	if in.AddressID == "" {
		return &InvalidInputError{Field: "address_id", Reason: "must not be empty"}
	}
	if in.DiscountPercent < 0 || in.DiscountPercent > 100 {
		return &InvalidInputError{Field: "discount_percent", Reason: "must be between 0 and 100"}
	}
	if in.InitialStatus != "" && !ValidStatus(in.InitialStatus) {
		return &InvalidInputError{Field: "initial_status", Reason: fmt.Sprintf("unknown status %q", in.InitialStatus)}
	}
	if len(in.Lines) == 0 {
		return &InvalidInputError{Field: "lines", Reason: "must not be empty"}
	}
	for i, ln := range in.Lines {
		if ln.ProductID == "" {
			return &InvalidInputError{Field: fmt.Sprintf("lines[%d].product_id", i), Reason: "must not be empty"}
		}
		if ln.Qty < 1 {
			return &InvalidInputError{Field: fmt.Sprintf("lines[%d].qty", i), Reason: "must be at least 1"}
		}
		if ln.UnitPriceCents < 0 {
			return &InvalidInputError{Field: fmt.Sprintf("lines[%d].unit_price_cents", i), Reason: "must not be negative"}
		}
	}
	return nil
}

// TotalCents sums the line prices and applies the order-level discount.
func (in PlaceOrderInput) TotalCents() int {
	total := 0
	for _, ln := range in.Lines {
		total += ln.Qty * ln.UnitPriceCents
	}
	if in.DiscountPercent > 0 {
		total = total * (100 - in.DiscountPercent) / 100
	}
	return total
}

package orders

import "time"

type Product struct {
	ID         string             `json:"id"`
	SKU        string             `json:"sku"`
	Name       string             `json:"name"`
	Stock      int                `json:"stock"`
	PriceCents int                `json:"price_cents"`
	ImageURL   string             `json:"image_url,omitempty"`
	Variations []ProductVariation `json:"variations,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// ProductVariation carries its own stock counter. When a product defines
// variations, stock is tracked per variation and the product row's own
// counter stays at zero.
type ProductVariation struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Label     string `json:"label"`
	Stock     int    `json:"stock"`
}

type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type Address struct {
	ID    string `json:"id"`
	Line1 string `json:"line1"`
	City  string `json:"city"`
	Phone string `json:"phone"`
}

type Order struct {
	ID              string      `json:"id"`
	Code            string      `json:"code"` // unique, human readable
	PlacedAt        time.Time   `json:"placed_at"`
	PaymentMethod   string      `json:"payment_method"`
	Note            string      `json:"note,omitempty"`
	DiscountPercent int         `json:"discount_percent"`
	TotalCents      int         `json:"total_cents"`
	Status          Status      `json:"status"` // see status.go
	UserID          string      `json:"user_id"`
	AddressID       string      `json:"address_id"`
	User            *User       `json:"user,omitempty"`
	Address         *Address    `json:"address,omitempty"`
	Lines           []OrderLine `json:"lines"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// OrderLine is immutable once written. UnitPriceCents is the price snapshot
// taken at placement time, never recomputed from the current product price.
type OrderLine struct {
	ID              string  `json:"id"`
	OrderID         string  `json:"order_id"`
	ProductID       string  `json:"product_id"`
	VariationID     *string `json:"variation_id,omitempty"`
	Qty             int     `json:"qty"`
	UnitPriceCents  int     `json:"unit_price_cents"`
	ProductName     string  `json:"product_name,omitempty"`
	ProductImageURL string  `json:"product_image_url,omitempty"`
	VariationLabel  *string `json:"variation_label,omitempty"`
}

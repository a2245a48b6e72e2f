package catalog

import (
	"errors"
	"math"
	"time"

	"github.com/gofrs/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Product is a storefront item. Prices are whole won.
type Product struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Brand         string    `json:"brand" db:"brand"`
	Category      string    `json:"category" db:"category"`
	Price         int64     `json:"price" db:"price"`
	OriginalPrice int64     `json:"originalPrice" db:"original_price"`
	Image         string    `json:"image" db:"image"`
	Country       string    `json:"country" db:"country"`
	Badge         string    `json:"badge" db:"badge"`
	Description   string    `json:"description" db:"description"`
	Specs         []string  `json:"specs" db:"specs"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// MaxQuantity is the most units a single checkout may buy.
const MaxQuantity = 99

// ClampQuantity returns q, or 1 when q is below 1.
func ClampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// Total is price times the clamped quantity. ok is false when the quantity exceeds MaxQuantity
// or the product does not fit in an int64.
func (p Product) Total(quantity int) (total int64, ok bool) {
	q := int64(ClampQuantity(quantity))
	if q > MaxQuantity || p.Price < 0 {
		return 0, false
	}
	if p.Price > math.MaxInt64/q {
		return 0, false
	}
	return p.Price * q, true
}

// DiscountPercent is round((1 - price/originalPrice) * 100).
func (p Product) DiscountPercent() int {
	if p.OriginalPrice <= 0 {
		return 0
	}
	return int(math.Round((1 - float64(p.Price)/float64(p.OriginalPrice)) * 100))
}

func (p Product) validate() error {
	switch {
	case p.Name == "":
		return errors.Join(ErrInvalidProduct, errors.New("name is required"))
	case p.Price < 0:
		return errors.Join(ErrInvalidProduct, errors.New("price cannot be negative"))
	case p.OriginalPrice < 0:
		return errors.Join(ErrInvalidProduct, errors.New("original price cannot be negative"))
	}
	return nil
}

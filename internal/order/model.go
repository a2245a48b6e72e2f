package order

import (
	"time"

	"github.com/gofrs/uuid"
)

type OrderStatus string

const (
	StatusPaymentComplete OrderStatus = "PAYMENT_COMPLETE"
	StatusProxyPurchasing OrderStatus = "PROXY_PURCHASING"
	StatusShipping        OrderStatus = "SHIPPING"
	StatusDelivered       OrderStatus = "DELIVERED"
	StatusCancelled       OrderStatus = "CANCELLED"
)

func (s OrderStatus) String() string {
	return string(s)
}

// Label is the Korean name shown to customers.
func (s OrderStatus) Label() string {
	switch s {
	case StatusPaymentComplete:
		return "결제완료"
	case StatusProxyPurchasing:
		return "구매대행중"
	case StatusShipping:
		return "배송중"
	case StatusDelivered:
		return "배송완료"
	case StatusCancelled:
		return "취소"
	}
	return string(s)
}

func (s OrderStatus) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Order is one paid purchase. OrderID is the correlation id shared with the payment gateway.
type Order struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	UserID      uuid.NullUUID `json:"userId" db:"user_id"`
	ProductID   uuid.UUID     `json:"productId" db:"product_id"`
	ProductName string        `json:"productName" db:"product_name"`
	Category    string        `json:"category" db:"category"`
	Quantity    int           `json:"quantity" db:"quantity"`
	TotalAmount int64         `json:"totalAmount" db:"total_amount"`
	Status      OrderStatus   `json:"status" db:"status"`
	PaymentKey  string        `json:"paymentKey" db:"payment_key"`
	OrderID     string        `json:"orderId" db:"order_id"`
	CreatedAt   time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" db:"updated_at"`
}

type Address struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"userId"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	Detail    string    `json:"detail"`
	IsDefault bool      `json:"isDefault"`
	CreatedAt time.Time `json:"createdAt"`
}

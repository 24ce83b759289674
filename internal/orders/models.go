package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser is the registration payload. Password is handed to the backend and
// never kept by the store.
type NewUser struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Address  string `json:"address,omitempty"`
}

// ProfileUpdate carries the editable profile fields. All four are written.
type ProfileUpdate struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// LineItem is one product in the cart, and once checked out, one line of an
// order's item snapshot.
type LineItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Image       string          `json:"image"`
	Description string          `json:"description,omitempty"`
}

func (li LineItem) Subtotal() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type PaymentMethod string

const (
	PaymentCOD      PaymentMethod = "cod"
	PaymentTransfer PaymentMethod = "transfer"
)

// NoSenderAccount is recorded when the payment method needs no sender account.
const NoSenderAccount = "-"

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentTransfer
}

type Order struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Items         Items           `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        Status          `json:"status"` // lihat status.go
	PaymentMethod PaymentMethod   `json:"payment_method"`
	SenderAccount string          `json:"sender_account"`
	Address       string          `json:"address"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewOrder is what gets sent to the backend; id and timestamps are assigned there.
type NewOrder struct {
	UserID        string          `json:"user_id"`
	Items         Items           `json:"items"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	SenderAccount string          `json:"sender_account"`
	Address       string          `json:"address"`
}

// Session is a backend-issued login on one device.
type Session struct {
	Token    string    `json:"token"`
	UserID   string    `json:"user_id"`
	DeviceID string    `json:"device_id"`
	IssuedAt time.Time `json:"issued_at"`
}

// Clone returns a copy whose item snapshot does not share memory with o.
func (o Order) Clone() Order {
	o.Items = o.Items.Clone()
	return o
}

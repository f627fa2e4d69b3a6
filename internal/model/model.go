package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID                uuid.UUID
	Name              string
	Email             string
	Password          string
	Phone             string
	Role              string
	EmailVerified     bool
	VerificationToken string
	ResetToken        string
	ResetTokenExpires *time.Time
	LoginAttempts     int
	LockedUntil       *time.Time
	LastLogin         *time.Time
	Addresses         []Address
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Locked reports whether the account is currently inside a lockout window.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// RefreshToken is one outstanding refresh credential. Each token is good for
// exactly one rotation.
type RefreshToken struct {
	Token     string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}

type Product struct {
	ID                uuid.UUID
	Name              string
	Description       string
	Category          string
	Brand             string
	SKU               string
	Price             decimal.Decimal
	Stock             int
	LowStockThreshold int
	ImageURL          string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo enforces the forward-only lifecycle: pending → processing →
// shipped → delivered, with cancelled reachable from any non-terminal state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.Terminal() || s == next {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	order := map[OrderStatus]int{
		OrderStatusPending:    0,
		OrderStatusProcessing: 1,
		OrderStatusShipped:    2,
		OrderStatusDelivered:  3,
	}
	cur, ok1 := order[s]
	nxt, ok2 := order[next]
	return ok1 && ok2 && nxt == cur+1
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

type PaymentInfo struct {
	Method        string
	TransactionID string
	Status        PaymentStatus
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID
	Items           []OrderItem
	ShippingAddress Address
	BillingAddress  Address
	Payment         PaymentInfo
	ItemsPrice      decimal.Decimal
	TaxPrice        decimal.Decimal
	ShippingPrice   decimal.Decimal
	TotalPrice      decimal.Decimal
	Status          OrderStatus
	StatusHistory   []StatusChange
	PaidAt          *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem captures the product name, price and image at placement time;
// later catalog edits do not touch it.
type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Name      string
	Price     decimal.Decimal
	Quantity  int
	ImageURL  string
}

type StatusChange struct {
	Status    OrderStatus
	Note      string
	Timestamp time.Time
}

type ReviewStatus string

const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
)

type Review struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	ProductID uuid.UUID
	Rating    int
	Title     string
	Comment   string
	Status    ReviewStatus
	CreatedAt time.Time
}

type OrderEventKind string

const (
	OrderEventCreated       OrderEventKind = "order_created"
	OrderEventStatusChanged OrderEventKind = "order_status_changed"
)

// OrderEvent is published to the notification queue after a placement or a
// status transition commits.
type OrderEvent struct {
	Kind    OrderEventKind `json:"kind"`
	OrderID uuid.UUID      `json:"order_id"`
	UserID  uuid.UUID      `json:"user_id"`
	Status  OrderStatus    `json:"status,omitempty"`
}

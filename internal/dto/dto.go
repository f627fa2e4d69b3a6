package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/go-storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=8"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=8"`
}

type UpdateProfileRequest struct {
	Name      *string         `json:"name"`
	Phone     *string         `json:"phone"`
	Addresses []model.Address `json:"addresses"`
}

type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
}

type TokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// UserResponse is the redacted profile view; it never carries the hash.
type UserResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone,omitempty"`
	Role          string          `json:"role"`
	EmailVerified bool            `json:"email_verified"`
	Addresses     []model.Address `json:"addresses,omitempty"`
	LastLogin     *time.Time      `json:"last_login,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// --- Product ---

type CreateProductRequest struct {
	Name              string          `json:"name" binding:"required"`
	Description       string          `json:"description" binding:"required"`
	Category          string          `json:"category" binding:"required"`
	Brand             string          `json:"brand" binding:"required"`
	SKU               string          `json:"sku" binding:"required"`
	Price             decimal.Decimal `json:"price" binding:"required"`
	Stock             int             `json:"stock" binding:"min=0"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	ImageURL          string          `json:"image_url"`
}

type UpdateProductRequest struct {
	Name              *string          `json:"name"`
	Description       *string          `json:"description"`
	Category          *string          `json:"category"`
	Brand             *string          `json:"brand"`
	Price             *decimal.Decimal `json:"price"`
	Stock             *int             `json:"stock"`
	LowStockThreshold *int             `json:"low_stock_threshold"`
	ImageURL          *string          `json:"image_url"`
}

type ListProductsRequest struct {
	Page   int    `form:"page,default=1" binding:"min=1"`
	Limit  int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search string `form:"search"`
	Sort   string `form:"sort,default=created_at" binding:"oneof=name price created_at"`
	Order  string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type ProductResponse struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Brand       string          `json:"brand"`
	SKU         string          `json:"sku"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	LowStock    bool            `json:"low_stock"`
	ImageURL    string          `json:"image_url,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Order ---

type PlaceOrderItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

type PaymentInfoRequest struct {
	Method        string `json:"method" binding:"required,oneof=stripe paypal cod"`
	TransactionID string `json:"transaction_id"`
}

type PlaceOrderRequest struct {
	Items           []PlaceOrderItem   `json:"items" binding:"required,min=1,dive"`
	ShippingAddress model.Address      `json:"shipping_address" binding:"required"`
	BillingAddress  *model.Address     `json:"billing_address"`
	Payment         PaymentInfoRequest `json:"payment" binding:"required"`
	ItemsPrice      decimal.Decimal    `json:"items_price"`
	TaxPrice        decimal.Decimal    `json:"tax_price"`
	ShippingPrice   decimal.Decimal    `json:"shipping_price"`
	TotalPrice      decimal.Decimal    `json:"total_price"`
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required"`
	Note   string            `json:"note"`
}

type MarkOrderPaidRequest struct {
	TransactionID string `json:"transaction_id"`
}

type OrderResponse struct {
	ID              uuid.UUID              `json:"id"`
	OrderNumber     string                 `json:"order_number"`
	UserID          uuid.UUID              `json:"user_id"`
	Items           []OrderItemResponse    `json:"items"`
	ShippingAddress model.Address          `json:"shipping_address"`
	BillingAddress  model.Address          `json:"billing_address"`
	Payment         PaymentResponse        `json:"payment"`
	ItemsPrice      decimal.Decimal        `json:"items_price"`
	TaxPrice        decimal.Decimal        `json:"tax_price"`
	ShippingPrice   decimal.Decimal        `json:"shipping_price"`
	TotalPrice      decimal.Decimal        `json:"total_price"`
	Status          model.OrderStatus      `json:"status"`
	StatusHistory   []StatusChangeResponse `json:"status_history,omitempty"`
	PaidAt          *time.Time             `json:"paid_at,omitempty"`
	DeliveredAt     *time.Time             `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time             `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

type OrderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

type PaymentResponse struct {
	Method        string              `json:"method"`
	TransactionID string              `json:"transaction_id,omitempty"`
	Status        model.PaymentStatus `json:"status"`
}

type StatusChangeResponse struct {
	Status    model.OrderStatus `json:"status"`
	Note      string            `json:"note,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Review ---

type CreateReviewRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Rating    int       `json:"rating" binding:"required,min=1,max=5"`
	Title     string    `json:"title" binding:"required"`
	Comment   string    `json:"comment" binding:"required"`
}

type ReviewResponse struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	ProductID uuid.UUID          `json:"product_id"`
	Rating    int                `json:"rating"`
	Title     string             `json:"title"`
	Comment   string             `json:"comment"`
	Status    model.ReviewStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/metrics"
	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
	"github.com/flicky/go-storefront-api/internal/worker"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTotal      = errors.New("total price does not match breakdown")
	ErrBadTransition     = errors.New("invalid status transition")
	ErrAlreadyPaid       = errors.New("order already paid")
)

type OrderService struct {
	orderRepo   repository.OrderRepository
	productRepo repository.ProductRepository
	amqpCh      *amqp.Channel
	log         *slog.Logger
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	productRepo repository.ProductRepository,
	amqpCh *amqp.Channel,
	log *slog.Logger,
) *OrderService {
	return &OrderService{orderRepo: orderRepo, productRepo: productRepo, amqpCh: amqpCh, log: log}
}

// PlaceOrder validates every line against the catalog before touching
// anything, then hands the whole placement to one atomic repository
// transaction. The pre-check exists to give the caller a named product in
// the error; the transaction's conditional decrements are what actually
// protect stock under concurrency.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, req dto.PlaceOrderRequest) (*model.Order, error) {
	if !req.TotalPrice.Equal(req.ItemsPrice.Add(req.TaxPrice).Add(req.ShippingPrice)) {
		metrics.OrdersRejected.WithLabelValues("invalid_total").Inc()
		return nil, ErrInvalidTotal
	}

	items := make([]model.OrderItem, 0, len(req.Items))
	for _, line := range req.Items {
		product, err := s.productRepo.GetByID(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product == nil {
			metrics.OrdersRejected.WithLabelValues("product_not_found").Inc()
			return nil, fmt.Errorf("product %s: %w", line.ProductID, ErrProductNotFound)
		}
		if product.Stock < line.Quantity {
			metrics.OrdersRejected.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("%s: %w", product.Name, ErrInsufficientStock)
		}
		items = append(items, model.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  line.Quantity,
			ImageURL:  product.ImageURL,
		})
	}

	billing := req.ShippingAddress
	if req.BillingAddress != nil {
		billing = *req.BillingAddress
	}
	paymentStatus := model.PaymentStatusPending
	order := &model.Order{
		UserID:          userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  billing,
		Payment: model.PaymentInfo{
			Method:        req.Payment.Method,
			TransactionID: req.Payment.TransactionID,
			Status:        paymentStatus,
		},
		ItemsPrice:    req.ItemsPrice,
		TaxPrice:      req.TaxPrice,
		ShippingPrice: req.ShippingPrice,
		TotalPrice:    req.TotalPrice,
	}

	if err := s.orderRepo.Place(ctx, order); err != nil {
		if errors.Is(err, repository.ErrStockConflict) {
			// A concurrent placement won the stock between the pre-check and
			// the transaction.
			metrics.OrdersRejected.WithLabelValues("insufficient_stock").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInsufficientStock, err)
		}
		return nil, fmt.Errorf("place order: %w", err)
	}
	metrics.OrdersPlaced.Inc()

	s.publish(ctx, model.OrderEvent{
		Kind:    model.OrderEventCreated,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  order.Status,
	})

	return order, nil
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID && !isAdmin {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListByUserID(ctx context.Context, userID uuid.UUID) ([]model.Order, error) {
	return s.orderRepo.ListByUserID(ctx, userID)
}

func (s *OrderService) ListAll(ctx context.Context) ([]model.Order, error) {
	return s.orderRepo.ListAll(ctx)
}

// UpdateStatus advances the order lifecycle. A transition into cancelled
// returns the reserved stock to the shelf inside the same repository
// transaction as the status change.
func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status model.OrderStatus, note string) (*model.Order, error) {
	err := s.orderRepo.UpdateStatus(ctx, orderID, status, note)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		if errors.Is(err, repository.ErrInvalidTransition) {
			return nil, fmt.Errorf("%w: %v", ErrBadTransition, err)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	s.publish(ctx, model.OrderEvent{
		Kind:    model.OrderEventStatusChanged,
		OrderID: order.ID,
		UserID:  order.UserID,
		Status:  status,
	})

	return order, nil
}

// MarkPaid records a completed payment against the order. Only the order's
// owner or an admin may confirm it, and a paid order stays paid: a second
// confirmation is rejected rather than overwritten.
func (s *OrderService) MarkPaid(ctx context.Context, orderID, userID uuid.UUID, isAdmin bool, transactionID string) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID && !isAdmin {
		return nil, ErrOrderAccessDenied
	}
	if order.Payment.Status != model.PaymentStatusPending {
		return nil, ErrAlreadyPaid
	}

	if err := s.orderRepo.MarkPaid(ctx, orderID, transactionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A concurrent confirmation got there first.
			return nil, ErrAlreadyPaid
		}
		return nil, fmt.Errorf("mark paid: %w", err)
	}

	order, err = s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	return order, nil
}

// Delete removes an order entirely. Admin-only; the routing layer enforces
// that.
func (s *OrderService) Delete(ctx context.Context, orderID uuid.UUID) error {
	if err := s.orderRepo.Delete(ctx, orderID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// publish is fire-and-forget: notification delivery must never fail an
// order operation that has already committed.
func (s *OrderService) publish(ctx context.Context, event model.OrderEvent) {
	if s.amqpCh == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		s.log.Error("marshal order event", "order_id", event.OrderID, "error", err)
		return
	}
	err = s.amqpCh.PublishWithContext(ctx, "", worker.OrderEventsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		s.log.Error("publish order event", "order_id", event.OrderID, "kind", event.Kind, "error", err)
	}
}

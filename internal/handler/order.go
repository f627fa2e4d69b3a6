package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flicky/go-storefront-api/internal/dto"
	"github.com/flicky/go-storefront-api/internal/middleware"
	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	order, err := h.orderService.PlaceOrder(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			fail(c, http.StatusNotFound, err.Error())
		case errors.Is(err, service.ErrInsufficientStock):
			fail(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrInvalidTotal):
			fail(c, http.StatusBadRequest, "total price does not match breakdown")
		default:
			fail(c, http.StatusInternalServerError, "server error creating order")
		}
		return
	}

	ok(c, http.StatusCreated, "order created successfully", gin.H{"order": toOrderResponse(order)})
}

func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	orders, err := h.orderService.ListByUserID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "server error fetching your orders")
		return
	}
	ok(c, http.StatusOK, "", toOrderListResponse(orders))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListAll(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, "server error fetching orders")
		return
	}
	ok(c, http.StatusOK, "", toOrderListResponse(orders))
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), orderID,
		middleware.GetUserID(c), middleware.IsAdmin(c))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			fail(c, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrOrderAccessDenied):
			fail(c, http.StatusForbidden, "not authorized to view this order")
		default:
			fail(c, http.StatusInternalServerError, "server error fetching order")
		}
		return
	}

	ok(c, http.StatusOK, "", gin.H{"order": toOrderResponse(order)})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid order ID")
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Note)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			fail(c, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrBadTransition):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, "server error updating order")
		}
		return
	}

	ok(c, http.StatusOK, "order status updated", gin.H{"order": toOrderResponse(order)})
}

func (h *OrderHandler) PayOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid order ID")
		return
	}

	// The body is optional; COD confirmations carry no transaction id.
	var req dto.MarkOrderPaidRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, "validation failed: "+err.Error())
			return
		}
	}

	order, err := h.orderService.MarkPaid(c.Request.Context(), orderID,
		middleware.GetUserID(c), middleware.IsAdmin(c), req.TransactionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			fail(c, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrOrderAccessDenied):
			fail(c, http.StatusForbidden, "not authorized to pay this order")
		case errors.Is(err, service.ErrAlreadyPaid):
			fail(c, http.StatusBadRequest, "order already paid")
		default:
			fail(c, http.StatusInternalServerError, "server error updating order")
		}
		return
	}

	ok(c, http.StatusOK, "order marked as paid", gin.H{"order": toOrderResponse(order)})
}

func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid order ID")
		return
	}

	if err := h.orderService.Delete(c.Request.Context(), orderID); err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			fail(c, http.StatusNotFound, "order not found")
			return
		}
		fail(c, http.StatusInternalServerError, "server error deleting order")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *OrderHandler) MarkDelivered(c *gin.Context) {
	h.transition(c, model.OrderStatusDelivered, "order marked as delivered")
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	h.transition(c, model.OrderStatusCancelled, "order cancelled")
}

func (h *OrderHandler) transition(c *gin.Context, status model.OrderStatus, message string) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid order ID")
		return
	}

	order, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, status, "")
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			fail(c, http.StatusNotFound, "order not found")
		case errors.Is(err, service.ErrBadTransition):
			fail(c, http.StatusBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, "server error updating order")
		}
		return
	}

	ok(c, http.StatusOK, message, gin.H{"order": toOrderResponse(order)})
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
			ImageURL:  item.ImageURL,
		})
	}
	history := make([]dto.StatusChangeResponse, 0, len(order.StatusHistory))
	for _, ch := range order.StatusHistory {
		history = append(history, dto.StatusChangeResponse{
			Status:    ch.Status,
			Note:      ch.Note,
			Timestamp: ch.Timestamp,
		})
	}
	return dto.OrderResponse{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Items:           items,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Payment: dto.PaymentResponse{
			Method:        order.Payment.Method,
			TransactionID: order.Payment.TransactionID,
			Status:        order.Payment.Status,
		},
		ItemsPrice:    order.ItemsPrice,
		TaxPrice:      order.TaxPrice,
		ShippingPrice: order.ShippingPrice,
		TotalPrice:    order.TotalPrice,
		Status:        order.Status,
		StatusHistory: history,
		PaidAt:        order.PaidAt,
		DeliveredAt:   order.DeliveredAt,
		CancelledAt:   order.CancelledAt,
		CreatedAt:     order.CreatedAt,
	}
}

func toOrderListResponse(orders []model.Order) dto.OrderListResponse {
	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}
	return dto.OrderListResponse{Orders: items, Total: len(items)}
}

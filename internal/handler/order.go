package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/grocer/internal/cart"
	"github.com/flicky/grocer/internal/dto"
	"github.com/flicky/grocer/internal/middleware"
	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/service"
)

type OrderHandler struct {
	orderService *service.OrderService
	carts        cart.Store
}

func NewOrderHandler(orderService *service.OrderService, carts cart.Store) *OrderHandler {
	return &OrderHandler{orderService: orderService, carts: carts}
}

// Checkout places an order from the session cart. The stored cart is only
// dropped once the order has committed.
func (h *OrderHandler) Checkout(c *gin.Context) {
	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	sid := middleware.GetSessionID(c)
	crt, err := h.carts.Load(ctx, sid)
	if err != nil {
		respondError(c, err)
		return
	}

	orderID, err := h.orderService.PlaceOrder(ctx, middleware.GetUserID(c), crt, req.PaymentMethod, req.ShippingAddress)
	if err != nil {
		respondError(c, err)
		return
	}

	if err := h.carts.Delete(ctx, sid); err != nil {
		slog.WarnContext(ctx, "clear cart after checkout", "order_id", orderID, "error", err)
	}
	c.JSON(http.StatusCreated, dto.CheckoutResponse{OrderID: orderID})
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.orderService.ListByUserID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	items := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		items = append(items, toOrderResponse(&orders[i]))
	}

	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: items, Total: len(items)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID, ok := pathID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetByID(c.Request.Context(), orderID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	var items []dto.OrderItemResponse
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.ProductName,
			Image:     item.ProductImage,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Subtotal:  item.Subtotal(),
		})
	}
	itemCount := order.ItemCount
	if itemCount == 0 {
		itemCount = len(order.Items)
	}
	return dto.OrderResponse{
		ID:              order.ID,
		UserID:          order.UserID,
		Status:          order.Status,
		Total:           order.Total,
		PaymentMethod:   order.PaymentMethod,
		ShippingAddress: order.ShippingAddress,
		ItemCount:       itemCount,
		Items:           items,
		CreatedAt:       order.CreatedAt,
	}
}

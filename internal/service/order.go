package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/flicky/grocer/internal/cart"
	"github.com/flicky/grocer/internal/metrics"
	"github.com/flicky/grocer/internal/model"
	"github.com/flicky/grocer/internal/repository"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderAccessDenied = errors.New("access denied")
)

// EventPublisher announces committed orders. Publishing is best-effort.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, msg model.OrderPlacedMessage) error
}

var tracer = otel.Tracer("github.com/flicky/grocer/internal/service")

type OrderService struct {
	orderRepo repository.OrderRepository
	userRepo  repository.UserRepository
	publisher EventPublisher
	log       *slog.Logger
}

func NewOrderService(orderRepo repository.OrderRepository, userRepo repository.UserRepository, publisher EventPublisher, log *slog.Logger) *OrderService {
	if log == nil {
		log = slog.Default()
	}
	return &OrderService{orderRepo: orderRepo, userRepo: userRepo, publisher: publisher, log: log}
}

// PlaceOrder turns the cart into a committed order. Stock for every line is
// validated under row locks before anything is written; the order header,
// its items and all stock decrements then commit together or not at all.
// The cart is cleared only after a successful commit.
func (s *OrderService) PlaceOrder(ctx context.Context, userID int64, c *cart.Cart, paymentMethod, shippingAddress string) (orderID int64, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	defer func() {
		if err != nil {
			kind := Kind(err)
			metrics.Checkouts.WithLabelValues(kind).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, kind)
			s.log.Warn("checkout failed", "user_id", userID, "kind", kind, "error", err)
		}
	}()

	if c == nil || c.IsEmpty() {
		return 0, ErrEmptyCart
	}
	span.SetAttributes(attribute.Int("cart.lines", c.Len()))
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod == "" {
		return 0, ErrPaymentMethodRequired
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: load user: %w", ErrTransactionFailed, err)
	}
	if user == nil {
		return 0, ErrAuthenticationRequired
	}
	if strings.TrimSpace(shippingAddress) == "" {
		shippingAddress = user.Address
	}

	lines := c.Lines()
	order := &model.Order{
		UserID:          userID,
		Status:          model.OrderStatusProcessing,
		PaymentMethod:   paymentMethod,
		ShippingAddress: shippingAddress,
	}

	err = s.orderRepo.RunInTx(ctx, func(tx repository.OrderTx) error {
		// Validation pass: every line must fit before any write happens.
		locked, err := tx.LockProducts(ctx, c.ProductIDs())
		if err != nil {
			return err
		}
		for _, l := range lines {
			p, ok := locked[l.ProductID]
			if !ok {
				return fmt.Errorf("product %d: %w", l.ProductID, ErrProductNotFound)
			}
			if l.Quantity > p.Stock {
				return &StockError{ProductID: p.ID, Name: p.Name, Requested: l.Quantity, Available: p.Stock}
			}
		}

		// Line items carry the price read here, and the total is their sum.
		items := make([]model.OrderItem, len(lines))
		total := decimal.Zero
		for i, l := range lines {
			price, err := tx.CurrentPrice(ctx, l.ProductID)
			if err != nil {
				return err
			}
			items[i] = model.OrderItem{ProductID: l.ProductID, Quantity: l.Quantity, Price: price}
			total = total.Add(items[i].Subtotal())
		}
		order.Total = total

		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.InsertItem(ctx, &items[i]); err != nil {
				return err
			}
			if err := tx.DecrementStock(ctx, items[i].ProductID, items[i].Quantity); err != nil {
				if errors.Is(err, repository.ErrStockConflict) {
					p := locked[items[i].ProductID]
					return &StockError{ProductID: p.ID, Name: p.Name, Requested: items[i].Quantity, Available: p.Stock}
				}
				return err
			}
		}
		order.Items = items
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", ErrTransactionFailed, err)
	}

	c.Clear()

	units := 0
	for _, l := range lines {
		units += l.Quantity
	}
	metrics.Checkouts.WithLabelValues("ok").Inc()
	metrics.ItemsSold.Add(float64(units))
	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.log.Info("order placed", "order_id", order.ID, "user_id", userID, "total", order.Total.String())

	s.publish(ctx, order)
	return order.ID, nil
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInsufficientStock) || errors.Is(err, ErrProductNotFound)
}

func (s *OrderService) publish(ctx context.Context, order *model.Order) {
	if s.publisher == nil {
		return
	}
	ids := make([]int64, len(order.Items))
	for i, item := range order.Items {
		ids[i] = item.ProductID
	}
	msg := model.OrderPlacedMessage{OrderID: order.ID, UserID: order.UserID, ProductIDs: ids}
	if err := s.publisher.PublishOrderPlaced(ctx, msg); err != nil {
		s.log.Error("publish order placed", "order_id", order.ID, "error", err)
	}
}

func (s *OrderService) GetByID(ctx context.Context, orderID, userID int64) (*model.Order, error) {
	order, err := s.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.UserID != userID {
		return nil, ErrOrderAccessDenied
	}
	return order, nil
}

func (s *OrderService) ListByUserID(ctx context.Context, userID int64) ([]model.Order, error) {
	orders, err := s.orderRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/grocer/internal/metrics"
	"github.com/flicky/grocer/internal/model"
)

const idempotencyTTL = 24 * time.Hour

// CacheInvalidator drops cached catalog entries whose stock has changed.
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context, ids ...int64)
}

// OrderEventWorker consumes order-placed events and evicts the product
// cache entries of everything the order bought.
type OrderEventWorker struct {
	channel     *amqp.Channel
	cache       CacheInvalidator
	redisClient *redis.Client
	log         *slog.Logger
	done        chan struct{}
}

func NewOrderEventWorker(ch *amqp.Channel, cache CacheInvalidator, redisClient *redis.Client, log *slog.Logger) *OrderEventWorker {
	return &OrderEventWorker{
		channel:     ch,
		cache:       cache,
		redisClient: redisClient,
		log:         log,
		done:        make(chan struct{}),
	}
}

func (w *OrderEventWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(orderPlacedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	go func() {
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				w.processMessage(ctx, msg)
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	w.log.Info("order event worker started", "queue", orderPlacedQueue)
	return nil
}

func (w *OrderEventWorker) Stop() { close(w.done) }

func idempotencyKey(orderID int64) string {
	return "order_event:" + strconv.FormatInt(orderID, 10)
}

func (w *OrderEventWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderPlacedMessage
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.OrderID == 0 {
		w.log.Error("unmarshal order event", "error", err)
		metrics.EventsHandled.WithLabelValues("failed").Inc()
		_ = msg.Nack(false, false) // dead-lettered
		return
	}

	log := w.log.With("order_id", event.OrderID, "user_id", event.UserID)

	key := idempotencyKey(event.OrderID)
	exists, err := w.redisClient.Exists(ctx, key).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("order event already handled, skipping")
		metrics.EventsHandled.WithLabelValues("duplicate").Inc()
		_ = msg.Ack(false)
		return
	}

	w.cache.InvalidateCache(ctx, event.ProductIDs...)

	if err := w.redisClient.Set(ctx, key, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	metrics.EventsHandled.WithLabelValues("processed").Inc()
	_ = msg.Ack(false)
	log.Info("order event handled", "products", len(event.ProductIDs))
}

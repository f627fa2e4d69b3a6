package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/go-storefront-api/internal/mailer"
	"github.com/flicky/go-storefront-api/internal/metrics"
	"github.com/flicky/go-storefront-api/internal/model"
	"github.com/flicky/go-storefront-api/internal/repository"
)

const (
	// OrderEventsQueue carries order lifecycle events from the API to this
	// worker. Delivery to the customer is asynchronous by design: mail must
	// never block or fail an order request.
	OrderEventsQueue = "order.events"
	dlxExchange      = "order.events.dlx"
	dlqQueueName     = "order.events.dlq"
	idempotencyTTL   = 24 * time.Hour
)

type NotificationWorker struct {
	channel     *amqp.Channel
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	mailer      mailer.Mailer
	redisClient *redis.Client
	clientURL   string
	log         *slog.Logger
	done        chan struct{}
}

func NewNotificationWorker(
	ch *amqp.Channel,
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	m mailer.Mailer,
	redisClient *redis.Client,
	clientURL string,
	log *slog.Logger,
) *NotificationWorker {
	return &NotificationWorker{
		channel:     ch,
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		mailer:      m,
		redisClient: redisClient,
		clientURL:   clientURL,
		log:         log,
		done:        make(chan struct{}),
	}
}

// SetupRabbitMQ declares exchanges, queues, and bindings (DLX/DLQ).
func SetupRabbitMQ(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchange, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLX: %w", err)
	}
	if _, err := ch.QueueDeclare(dlqQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare DLQ: %w", err)
	}
	if err := ch.QueueBind(dlqQueueName, OrderEventsQueue, dlxExchange, false, nil); err != nil {
		return fmt.Errorf("bind DLQ: %w", err)
	}
	if _, err := ch.QueueDeclare(OrderEventsQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    dlxExchange,
		"x-dead-letter-routing-key": OrderEventsQueue,
	}); err != nil {
		return fmt.Errorf("declare order events queue: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set QoS: %w", err)
	}
	return nil
}

func (w *NotificationWorker) Start(ctx context.Context) error {
	msgs, err := w.channel.Consume(OrderEventsQueue, "", false, false, false, false, nil)
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

	w.log.Info("notification worker started")
	return nil
}

func (w *NotificationWorker) Stop() { close(w.done) }

func (w *NotificationWorker) processMessage(ctx context.Context, msg amqp.Delivery) {
	var event model.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		w.log.Error("unmarshal order event", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	log := w.log.With("order_id", event.OrderID, "kind", event.Kind)

	// Idempotency check via Redis: a redelivered event must not produce a
	// second email.
	idempotencyKey := fmt.Sprintf("notified:%s:%s:%s", event.Kind, event.OrderID, event.Status)
	exists, err := w.redisClient.Exists(ctx, idempotencyKey).Result()
	if err != nil {
		log.Error("check idempotency key", "error", err)
		_ = msg.Nack(false, true)
		return
	}
	if exists > 0 {
		log.Info("event already handled, skipping")
		_ = msg.Ack(false)
		return
	}

	if err := w.notify(ctx, event); err != nil {
		log.Error("send notification", "error", err)
		_ = msg.Nack(false, false) // → DLQ
		return
	}

	if err := w.redisClient.Set(ctx, idempotencyKey, "1", idempotencyTTL).Err(); err != nil {
		log.Error("set idempotency key", "error", err)
	}

	_ = msg.Ack(false)
	log.Info("notification sent")
}

func (w *NotificationWorker) notify(ctx context.Context, event model.OrderEvent) error {
	order, err := w.orderRepo.GetByID(ctx, event.OrderID)
	if err != nil {
		return fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return fmt.Errorf("order not found: %s", event.OrderID)
	}
	user, err := w.userRepo.GetByID(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user not found: %s", event.UserID)
	}

	msg := mailer.Message{To: user.Email}
	switch event.Kind {
	case model.OrderEventCreated:
		msg.Subject = "Order Confirmation"
		msg.Template = mailer.TemplateOrderConfirmation
		msg.Data = map[string]any{
			"Name":        user.Name,
			"OrderNumber": order.OrderNumber,
			"Total":       order.TotalPrice.StringFixed(2),
			"OrderURL":    fmt.Sprintf("%s/orders/%s", w.clientURL, order.ID),
		}
	case model.OrderEventStatusChanged:
		msg.Subject = "Order Status Update"
		msg.Template = mailer.TemplateOrderStatusUpdate
		msg.Data = map[string]any{
			"Name":        user.Name,
			"OrderNumber": order.OrderNumber,
			"Status":      string(event.Status),
			"OrderURL":    fmt.Sprintf("%s/orders/%s", w.clientURL, order.ID),
		}
	default:
		return fmt.Errorf("unknown event kind %q", event.Kind)
	}

	if err := w.mailer.Send(ctx, msg); err != nil {
		metrics.EmailFailures.WithLabelValues(string(msg.Template)).Inc()
		return err
	}
	metrics.EmailsSent.WithLabelValues(string(msg.Template)).Inc()
	return nil
}

package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	kafkax "github.com/itsstore/go-shop-orders/internal/kafka"
	"github.com/itsstore/go-shop-orders/internal/orders"
	"github.com/itsstore/go-shop-orders/internal/redisx"
)

// Service reacts to order events: it keeps the order-status cache fresh and
// emits the notification records that the mail collaborator picks up. It is
// safe against redelivery via the event-id dedup key.
type Service struct {
	Redis       *redis.Client
	Log         *logrus.Logger
	ServiceName string
}

func (s *Service) HandleOrderEvent(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
		return nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()

	switch env.EventType {
	case orders.EventOrderPlaced:
		p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, orders.StatusProcessing, false)
		s.Log.WithFields(logrus.Fields{
			"order_id":     p.OrderID,
			"order_number": p.OrderNumber,
			"user_id":      p.UserID,
			"items":        len(p.Items),
			"total_cents":  p.TotalPriceCents,
		}).Info("order placed notification")

	case orders.EventOrderStatusChanged:
		p, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return err
		}
		s.cacheStatus(ctx, p.OrderID, p.Status, p.IsDelivered)
		s.Log.WithFields(logrus.Fields{
			"order_id":     p.OrderID,
			"order_number": p.OrderNumber,
			"status":       p.Status,
			"is_delivered": p.IsDelivered,
		}).Info("order status notification")

	default:
		// unknown event types are ignored, not retried
	}
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, orderID string, status orders.Status, delivered bool) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	body, _ := json.Marshal(map[string]any{"status": status, "isDelivered": delivered})
	_ = s.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

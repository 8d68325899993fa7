package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/itsstore/go-shop-orders/internal/kafka"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type Store interface {
	CreateOrder(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	UpdateStatus(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
}

type SequenceSource interface {
	Next(ctx context.Context, name string) (int64, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// PlaceCommand is the typed form of a POST /orders body, validated once at
// the boundary.
type PlaceCommand struct {
	Items              []ItemInput
	ShippingAddress    ShippingAddress
	PaymentMethod      string
	ItemsPriceCents    int64
	TaxPriceCents      int64
	ShippingPriceCents int64
	TotalPriceCents    int64
	TraceID            string
}

// Service orchestrates the order-placement workflow: validate items, allocate
// an order number, persist with stock decrement, publish the domain event.
type Service struct {
	Store         Store
	Sequences     SequenceSource
	Validator     *Validator
	Placed        Publisher
	StatusChanged Publisher
	ServiceName   string
}

func (s *Service) PlaceOrder(ctx context.Context, userID string, cmd PlaceCommand) (Order, error) {
	items, err := s.Validator.ValidateItems(ctx, cmd.Items)
	if err != nil {
		return Order{}, err
	}

	seq, err := s.Sequences.Next(ctx, SeqOrderID)
	if err != nil {
		return Order{}, err
	}

	now := time.Now().UTC()
	order := Order{
		ID:                 uuid.NewString(),
		UserID:             userID,
		OrderNumber:        FormatOrderNumber(seq),
		Items:              items,
		ShippingAddress:    cmd.ShippingAddress,
		PaymentMethod:      cmd.PaymentMethod,
		ItemsPriceCents:    cmd.ItemsPriceCents,
		TaxPriceCents:      cmd.TaxPriceCents,
		ShippingPriceCents: cmd.ShippingPriceCents,
		TotalPriceCents:    cmd.TotalPriceCents,
		Status:             StatusProcessing,
		IsPaid:             true,
		PaidAt:             &now,
	}

	if err := s.Store.CreateOrder(ctx, &order); err != nil {
		return Order{}, err
	}

	s.publish(s.Placed, EventOrderPlaced, order.ID, cmd.TraceID, OrderPlacedPayload{
		OrderID:         order.ID,
		OrderNumber:     order.OrderNumber,
		UserID:          order.UserID,
		Items:           order.Items,
		TotalPriceCents: order.TotalPriceCents,
	})
	return order, nil
}

// UpdateStatus moves an order through the status machine and keeps delivered
// bookkeeping consistent.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, next Status, traceID string) (Order, error) {
	order, err := s.Store.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if !CanTransition(order.Status, next) {
		return Order{}, errors.Wrapf(ErrInvalidTransition, "%s -> %s", order.Status, next)
	}
	if order.Status == next {
		return order, nil
	}

	order.ApplyStatus(next, time.Now().UTC())
	if err := s.Store.UpdateStatus(ctx, &order); err != nil {
		return Order{}, err
	}

	s.publish(s.StatusChanged, EventOrderStatusChanged, order.ID, traceID, OrderStatusChangedPayload{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      order.Status,
		IsDelivered: order.IsDelivered,
	})
	return order, nil
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.Store.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]Order, error) {
	return s.Store.ListAll(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.Store.Delete(ctx, id)
}

func (s *Service) publish(p Publisher, eventType, orderID, traceID string, payload any) {
	if p == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(PartitionKey(orderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

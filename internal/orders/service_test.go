package orders

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsstore/go-shop-orders/internal/catalog"
	kafkago "github.com/segmentio/kafka-go"
)

type fakeStore struct {
	mu      sync.Mutex
	orders  map[string]Order
	stock   map[string]int // product id -> stock applied on CreateOrder
	created int
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]Order{}, stock: map[string]int{}}
}

func (f *fakeStore) CreateOrder(ctx context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var problems []string
	for _, it := range o.Items {
		if avail, ok := f.stock[it.ProductID]; ok && avail < it.Quantity {
			problems = append(problems, "not enough stock for "+it.Name)
		}
	}
	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	for _, it := range o.Items {
		if _, ok := f.stock[it.ProductID]; ok {
			f.stock[it.ProductID] -= it.Quantity
		}
	}
	now := time.Now().UTC()
	o.CreatedAt, o.UpdatedAt = now, now
	f.orders[o.ID] = *o
	f.created++
	return nil
}

func (f *fakeStore) Get(ctx context.Context, id string) (Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (f *fakeStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeStore) ListAll(ctx context.Context) ([]Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, o *Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[o.ID]; !ok {
		return ErrNotFound
	}
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeSequence struct {
	mu  sync.Mutex
	seq int64
}

func (f *fakeSequence) Next(ctx context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.seq, nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []Envelope
}

func (f *fakePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	var env Envelope
	_ = json.Unmarshal(value, &env)
	f.mu.Lock()
	f.messages = append(f.messages, env)
	f.mu.Unlock()
}

func newTestService(products ...catalog.Product) (*Service, *fakeStore, *fakePublisher, *fakePublisher) {
	store := newFakeStore()
	for _, p := range products {
		store.stock[p.ID] = p.StockQuantity
	}
	placed := &fakePublisher{}
	changed := &fakePublisher{}
	svc := &Service{
		Store:         store,
		Sequences:     &fakeSequence{},
		Validator:     &Validator{Products: newFakeProducts(products...)},
		Placed:        placed,
		StatusChanged: changed,
		ServiceName:   "shop-api-test",
	}
	return svc, store, placed, changed
}

func TestPlaceOrder(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Desk Lamp", PriceCents: 2599, StockQuantity: 5}
	svc, store, placed, _ := newTestService(p)

	order, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items:           []ItemInput{{ProductID: ProductID(p.ID), Quantity: 3}},
		PaymentMethod:   "card",
		TotalPriceCents: 7797,
	})
	require.NoError(t, err)

	assert.Equal(t, "ITS000000001", order.OrderNumber)
	assert.Equal(t, StatusProcessing, order.Status)
	assert.True(t, order.IsPaid)
	require.NotNil(t, order.PaidAt)
	assert.False(t, order.IsDelivered)
	require.Len(t, order.Items, 1)
	assert.Equal(t, int64(2599), order.Items[0].PriceCents)

	assert.Equal(t, 2, store.stock[p.ID], "stock decremented by the ordered quantity")

	require.Len(t, placed.messages, 1)
	ev := placed.messages[0]
	assert.Equal(t, EventOrderPlaced, ev.EventType)
	assert.Equal(t, order.ID, ev.CorrelationID)
	var payload OrderPlacedPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &payload))
	assert.Equal(t, order.OrderNumber, payload.OrderNumber)
	assert.Equal(t, "user-1", payload.UserID)
}

func TestPlaceOrderNumbersIncrease(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", PriceCents: 900, StockQuantity: 100}
	svc, _, _, _ := newTestService(p)

	var last string
	for i := 1; i <= 3; i++ {
		o, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
			Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Greater(t, o.OrderNumber, last)
		last = o.OrderNumber
	}
	assert.Equal(t, "ITS000000003", last)
}

func TestPlaceOrderValidationFailureWritesNothing(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", StockQuantity: 5}
	svc, store, placed, _ := newTestService(p)

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 6}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Zero(t, store.created, "no order persisted")
	assert.Equal(t, 5, store.stock[p.ID], "stock untouched")
	assert.Empty(t, placed.messages, "no event published")
}

func TestPlaceOrderLateStockRejection(t *testing.T) {
	// catalog says 5 available but the store lost the race and has 1 left
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", StockQuantity: 5}
	svc, store, placed, _ := newTestService(p)
	store.stock[p.ID] = 1

	_, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 3}},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 1, store.stock[p.ID])
	assert.Empty(t, placed.messages)
}

func TestUpdateStatusToDelivered(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", StockQuantity: 5}
	svc, store, _, changed := newTestService(p)

	order, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusShipped, "")
	require.NoError(t, err)
	updated, err := svc.UpdateStatus(context.Background(), order.ID, StatusDelivered, "")
	require.NoError(t, err)

	assert.True(t, updated.IsDelivered)
	require.NotNil(t, updated.DeliveredAt)

	stored, _ := store.Get(context.Background(), order.ID)
	assert.Equal(t, StatusDelivered, stored.Status)

	require.Len(t, changed.messages, 2)
	assert.Equal(t, EventOrderStatusChanged, changed.messages[1].EventType)
}

func TestUpdateStatusAwayFromDeliveredClearsFlags(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", StockQuantity: 5}
	svc, _, _, _ := newTestService(p)

	order, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusShipped, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusDelivered, "")
	require.NoError(t, err)

	updated, err := svc.UpdateStatus(context.Background(), order.ID, StatusShipped, "")
	require.NoError(t, err)
	assert.False(t, updated.IsDelivered)
	assert.Nil(t, updated.DeliveredAt)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", StockQuantity: 5}
	svc, _, _, changed := newTestService(p)

	order, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusPending, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusCancelled, "")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusProcessing, "")
	assert.ErrorIs(t, err, ErrInvalidTransition, "cancelled is terminal")

	assert.Len(t, changed.messages, 1, "only the cancellation was published")
}

func TestUpdateStatusCancellationKeepsStock(t *testing.T) {
	p := catalog.Product{ID: uuid.NewString(), Name: "Mug", StockQuantity: 5}
	svc, store, _, _ := newTestService(p)

	order, err := svc.PlaceOrder(context.Background(), "user-1", PlaceCommand{
		Items: []ItemInput{{ProductID: ProductID(p.ID), Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, store.stock[p.ID])

	_, err = svc.UpdateStatus(context.Background(), order.ID, StatusCancelled, "")
	require.NoError(t, err)

	assert.Equal(t, 3, store.stock[p.ID], "cancellation does not restore stock")
}

func TestUpdateStatusUnknownOrder(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.UpdateStatus(context.Background(), uuid.NewString(), StatusShipped, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentSequenceNextIsUnique(t *testing.T) {
	seq := &fakeSequence{}
	const n = 64

	var wg sync.WaitGroup
	results := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), SeqOrderID)
			assert.NoError(t, err)
			results <- v
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for v := range results {
		assert.False(t, seen[v], "duplicate sequence value %d", v)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}

package orders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("Refunded").Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("pending").Valid(), "status values are case sensitive")
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusCancelled, true},
		{StatusDelivered, StatusCancelled, true},
		{StatusDelivered, StatusShipped, true},
		{StatusPending, StatusDelivered, false},
		{StatusPending, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
		{StatusDelivered, StatusPending, false},
		// same-status updates are no-ops
		{StatusProcessing, StatusProcessing, true},
		{StatusCancelled, StatusCancelled, true},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestApplyStatusDelivered(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := Order{Status: StatusShipped}

	o.ApplyStatus(StatusDelivered, now)

	assert.Equal(t, StatusDelivered, o.Status)
	assert.True(t, o.IsDelivered)
	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, now, *o.DeliveredAt)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestApplyStatusAwayFromDeliveredClearsFlags(t *testing.T) {
	delivered := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	o := Order{Status: StatusShipped}
	o.ApplyStatus(StatusDelivered, delivered)
	require.True(t, o.IsDelivered)

	later := delivered.Add(time.Hour)
	o.ApplyStatus(StatusShipped, later)

	assert.Equal(t, StatusShipped, o.Status)
	assert.False(t, o.IsDelivered)
	assert.Nil(t, o.DeliveredAt)
}

func TestApplyStatusCancelLeavesDeliveredFlagsUntouched(t *testing.T) {
	o := Order{Status: StatusPending}
	o.ApplyStatus(StatusCancelled, time.Now().UTC())
	assert.Equal(t, StatusCancelled, o.Status)
	assert.False(t, o.IsDelivered)
	assert.Nil(t, o.DeliveredAt)
}

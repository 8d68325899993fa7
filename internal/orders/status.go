package orders

import "time"

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true, StatusCancelled: true},
	// Delivered may be walked back as a correction; doing so clears the
	// delivered flag and timestamp.
	StatusDelivered: {StatusShipped: true, StatusCancelled: true},
	StatusCancelled: {},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func CanTransition(from, to Status) bool {
	if from == to {
		return true // no-op update
	}
	return validNext[from][to]
}

// ApplyStatus moves the order to the given status and keeps the delivered
// flag and timestamp in sync. Cancellation does not restore stock.
func (o *Order) ApplyStatus(s Status, now time.Time) {
	o.Status = s
	if s == StatusDelivered && !o.IsDelivered {
		o.IsDelivered = true
		t := now
		o.DeliveredAt = &t
	} else if s != StatusDelivered && o.IsDelivered {
		o.IsDelivered = false
		o.DeliveredAt = nil
	}
	o.UpdatedAt = now
}

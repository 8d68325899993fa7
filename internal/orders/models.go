package orders

import "time"

type ShippingAddress struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderItem is an immutable snapshot of the product at order time; later
// catalog edits never change it.
type OrderItem struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	PriceCents int64  `json:"price"`
	Image      string `json:"image"`
}

type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	OrderNumber string      `json:"orderNumber"`
	Items       []OrderItem `json:"orderItems"`

	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`

	// All money values are cents.
	ItemsPriceCents    int64 `json:"itemsPrice"`
	TaxPriceCents      int64 `json:"taxPrice"`
	ShippingPriceCents int64 `json:"shippingPrice"`
	TotalPriceCents    int64 `json:"totalPrice"`

	Status      Status     `json:"status"`
	IsPaid      bool       `json:"isPaid"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	IsDelivered bool       `json:"isDelivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

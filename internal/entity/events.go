package entity

// Event is a domain event published on the order events topic.
type Event interface {
	EventType() string
}

// OrderApproved is emitted when an order transitions to approved. The stock
// consumer turns the soft reservation into a durable stock decrement.
type OrderApproved struct {
	OrderID           string `json:"order_id"`
	ExternalReference string `json:"external_reference"`
	ReservationID     string `json:"reservation_id"`
	PaymentID         string `json:"payment_id"`
}

func (OrderApproved) EventType() string { return "OrderApproved" }

// OrderRejected is emitted when an order transitions to rejected. The stock
// consumer releases the soft reservation if one is still held.
type OrderRejected struct {
	OrderID           string `json:"order_id"`
	ExternalReference string `json:"external_reference"`
	ReservationID     string `json:"reservation_id"`
	PaymentID         string `json:"payment_id"`
}

func (OrderRejected) EventType() string { return "OrderRejected" }

package domain

import "github.com/google/uuid"

// OrderStatus tracks order lifecycle.
type OrderStatus string

const (
	// OrderPreparing: paid, machine is Renting, training not started.
	OrderPreparing OrderStatus = "PREPARING"
	// OrderTraining: seller started the job, machine is Renting.
	OrderTraining  OrderStatus = "TRAINING"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderFailed    OrderStatus = "FAILED"
	OrderRefunded  OrderStatus = "REFUNDED"
)

// Valid reports whether s is one of the declared statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPreparing, OrderTraining, OrderCompleted, OrderFailed, OrderRefunded:
		return true
	default:
		return false
	}
}

// IsTerminal returns true once the order no longer holds its machine.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderCompleted, OrderFailed, OrderRefunded:
		return true
	case OrderPreparing, OrderTraining:
		return false
	default:
		return false
	}
}

// Order timing constants.
const (
	// RefundGracePeriod is how long a Preparing order must wait before the
	// buyer may cancel it.
	RefundGracePeriod int64 = 300
	SecondsPerHour    int64 = 3600
)

// Order is a rental of one machine by one buyer.
type Order struct {
	OrderID   uuid.UUID `json:"order_id"`
	Buyer     Pubkey    `json:"buyer"`
	Seller    Pubkey    `json:"seller"`
	MachineID uuid.UUID `json:"machine_id"`

	Price    uint64 `json:"price"`    // machine price snapshot
	Duration uint32 `json:"duration"` // hours
	Total    uint64 `json:"total"`

	Metadata string      `json:"metadata"`
	Status   OrderStatus `json:"status"`

	OrderTime  int64 `json:"order_time"`
	StartTime  int64 `json:"start_time"`
	RefundTime int64 `json:"refund_time"`
}

// Key returns the order's store key.
func (o *Order) Key() string { return OrderKey(o.Buyer, o.OrderID) }

// MachineKey returns the store key of the rented machine.
func (o *Order) MachineKey() string { return MachineKey(o.Seller, o.MachineID) }

// EndTime is when the full rented term has elapsed.
func (o *Order) EndTime() int64 {
	return SaturatingAddI64(o.StartTime, int64(o.Duration)*SecondsPerHour)
}

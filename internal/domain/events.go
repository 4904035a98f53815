package domain

import "github.com/google/uuid"

// Event is a structured record emitted by a committed operation for
// external indexers. Delivery is best effort.
type Event interface {
	// Topic groups events by entity ("machine", "order", ...).
	Topic() string
}

// Event actions name the transition that produced the event.
const (
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionOffer    = "offer"
	ActionCancel   = "cancel"
	ActionPlace    = "place"
	ActionRenew    = "renew"
	ActionStart    = "start"
	ActionRefund   = "refund"
	ActionComplete = "complete"
	ActionFail     = "fail"
	ActionSubmit   = "submit"
	ActionClaim    = "claim"
	ActionDeposit  = "deposit"
	ActionReport   = "report"
	ActionCreate   = "create"
)

type MachineEvent struct {
	Action string        `json:"action"`
	Owner  Pubkey        `json:"owner"`
	UUID   uuid.UUID     `json:"uuid"`
	Status MachineStatus `json:"status"`
}

func (MachineEvent) Topic() string { return "machine" }

type OrderEvent struct {
	Action    string      `json:"action"`
	OrderID   uuid.UUID   `json:"order_id"`
	Buyer     Pubkey      `json:"buyer"`
	Seller    Pubkey      `json:"seller"`
	MachineID uuid.UUID   `json:"machine_id"`
	Status    OrderStatus `json:"status"`
}

func (OrderEvent) Topic() string { return "order" }

type TaskEvent struct {
	UUID      uuid.UUID `json:"uuid"`
	Period    uint32    `json:"period"`
	Owner     Pubkey    `json:"owner"`
	MachineID uuid.UUID `json:"machine_id"`
}

func (TaskEvent) Topic() string { return "task" }

type RewardEvent struct {
	Action    string    `json:"action"`
	Period    uint32    `json:"period"`
	Owner     Pubkey    `json:"owner"`
	MachineID uuid.UUID `json:"machine_id,omitempty"`
	Amount    uint64    `json:"amount"`
}

func (RewardEvent) Topic() string { return "reward" }

type AiModelEvent struct {
	Action string `json:"action"`
	Owner  Pubkey `json:"owner"`
	Name   string `json:"name"`
}

func (AiModelEvent) Topic() string { return "ai_model" }

type DatasetEvent struct {
	Action string `json:"action"`
	Owner  Pubkey `json:"owner"`
	Name   string `json:"name"`
}

func (DatasetEvent) Topic() string { return "dataset" }

type StatisticsEvent struct {
	Action string `json:"action"`
	Owner  Pubkey `json:"owner"`
	Amount uint64 `json:"amount"`
}

func (StatisticsEvent) Topic() string { return "statistics" }

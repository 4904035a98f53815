// Machine types.
// A Machine is a compute resource an owner offers for rent:
// add → offer → rent → resolve → offer again → remove.
package domain

import "github.com/google/uuid"

// MetadataMaxLength bounds machine, order and task metadata in bytes.
const MetadataMaxLength = 2048

// MachineStatus holds the current state of a machine.
type MachineStatus string

const (
	// MachineIdle is not displayed in the market.
	MachineIdle    MachineStatus = "IDLE"
	// MachineForRent is displayed in the market.
	MachineForRent MachineStatus = "FOR_RENT"
	// MachineRenting is on lease, exactly one active order references it.
	MachineRenting MachineStatus = "RENTING"
)

// Valid reports whether s is one of the declared statuses.
func (s MachineStatus) Valid() bool {
	switch s {
	case MachineIdle, MachineForRent, MachineRenting:
		return true
	default:
		return false
	}
}

// Machine is a compute resource offered for rent.
type Machine struct {
	Owner    Pubkey        `json:"owner"`
	UUID     uuid.UUID     `json:"uuid"`
	Metadata string        `json:"metadata"` // JSON document, ≤ MetadataMaxLength
	Status   MachineStatus `json:"status"`

	Price       uint64 `json:"price"`        // per hour
	MaxDuration uint32 `json:"max_duration"` // hours
	Disk        uint32 `json:"disk"`         // GB available

	CompletedCount uint32 `json:"completed_count"`
	FailedCount    uint32 `json:"failed_count"`
	Score          uint8  `json:"score"` // last order quality rating

	ClaimedPeriodicRewards uint64 `json:"claimed_periodic_rewards"`
	ClaimedTaskRewards     uint64 `json:"claimed_task_rewards"`

	// OrderKey is the store key of the most recent order.
	OrderKey string `json:"order_key,omitempty"`
}

// Key returns the machine's store key.
func (m *Machine) Key() string { return MachineKey(m.Owner, m.UUID) }

package domain

import "github.com/google/uuid"

// Reward is the shared per-period pool record. It is created by the
// first task submission of a period and updated by every later one.
type Reward struct {
	Period    uint32 `json:"period"`
	StartTime int64  `json:"start_time"`
	Pool      uint64 `json:"pool"`

	// MachineNum counts distinct machines with at least one task.
	MachineNum         uint32 `json:"machine_num"`
	UnitPeriodicReward uint64 `json:"unit_periodic_reward"`

	TaskNum        uint32 `json:"task_num"`
	UnitTaskReward uint64 `json:"unit_task_reward"` // reserved
}

// RewardMachine tracks one machine's participation in one period.
type RewardMachine struct {
	Period    uint32    `json:"period"`
	Owner     Pubkey    `json:"owner"`
	MachineID uuid.UUID `json:"machine_id"`
	TaskNum   uint32    `json:"task_num"`
	Claimed   bool      `json:"claimed"`
}

// Task is one submission by a machine in a period.
type Task struct {
	UUID      uuid.UUID `json:"uuid"`
	Period    uint32    `json:"period"`
	Owner     Pubkey    `json:"owner"`
	MachineID uuid.UUID `json:"machine_id"`
	Metadata  string    `json:"metadata"`
}

package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/distri-network/distri/internal/domain"
)

// ─── Reads ──────────────────────────────────────────────────────────────────
// Reads run in a read-only transaction and never create records.

// GetMachine returns one machine.
func (e *Engine) GetMachine(ctx context.Context, owner domain.Pubkey, id uuid.UUID) (*domain.Machine, error) {
	var m *domain.Machine
	err := e.view(ctx, func(tx domain.Tx) error {
		var err error
		m, err = loadMachine(tx, owner, id)
		return err
	})
	return m, err
}

// MachineFilter narrows ListMachines. Zero fields match everything.
type MachineFilter struct {
	Owner  domain.Pubkey
	Status domain.MachineStatus
}

// ListMachines returns machines in key order.
func (e *Engine) ListMachines(ctx context.Context, f MachineFilter) ([]domain.Machine, error) {
	prefix := domain.MachinePrefix
	if !f.Owner.IsZero() {
		prefix = domain.OwnerPrefix(domain.MachinePrefix, f.Owner)
	}
	var out []domain.Machine
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Scan(prefix, func(_ string, decode func(any) error) error {
			var m domain.Machine
			if err := decode(&m); err != nil {
				return err
			}
			if f.Status == "" || m.Status == f.Status {
				out = append(out, m)
			}
			return nil
		})
	})
	return out, err
}

// GetOrder returns one order.
func (e *Engine) GetOrder(ctx context.Context, buyer domain.Pubkey, id uuid.UUID) (*domain.Order, error) {
	var o *domain.Order
	err := e.view(ctx, func(tx domain.Tx) error {
		var err error
		o, err = loadOrder(tx, buyer, id)
		return err
	})
	return o, err
}

// ListOrders returns a buyer's orders.
func (e *Engine) ListOrders(ctx context.Context, buyer domain.Pubkey) ([]domain.Order, error) {
	var out []domain.Order
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Scan(domain.OwnerPrefix(domain.OrderPrefix, buyer), func(_ string, decode func(any) error) error {
			var o domain.Order
			if err := decode(&o); err != nil {
				return err
			}
			out = append(out, o)
			return nil
		})
	})
	return out, err
}

// GetTask returns one submitted task.
func (e *Engine) GetTask(ctx context.Context, owner domain.Pubkey, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Get(domain.TaskKey(owner, id), &task)
	})
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", id, err)
	}
	return &task, nil
}

// GetReward returns a period's reward record.
func (e *Engine) GetReward(ctx context.Context, period uint32) (*domain.Reward, error) {
	var r domain.Reward
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Get(domain.RewardKey(period), &r)
	})
	if err != nil {
		return nil, fmt.Errorf("reward for period %d: %w", period, err)
	}
	return &r, nil
}

// GetRewardMachine returns a machine's participation in a period.
func (e *Engine) GetRewardMachine(ctx context.Context, period uint32, owner domain.Pubkey, machineID uuid.UUID) (*domain.RewardMachine, error) {
	var rm domain.RewardMachine
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Get(domain.RewardMachineKey(period, owner, machineID), &rm)
	})
	if err != nil {
		return nil, fmt.Errorf("reward of machine %s in period %d: %w", machineID, period, err)
	}
	return &rm, nil
}

// GetStatistics returns an owner's statistics. An owner without a record
// reads as all zeros.
func (e *Engine) GetStatistics(ctx context.Context, owner domain.Pubkey) (*domain.Statistics, error) {
	s := domain.Statistics{Owner: owner}
	err := e.view(ctx, func(tx domain.Tx) error {
		err := tx.Get(domain.StatisticsKey(owner), &s)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetAiModel returns one model by owner and name.
func (e *Engine) GetAiModel(ctx context.Context, owner domain.Pubkey, name string) (*domain.AiModel, error) {
	var m domain.AiModel
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Get(domain.AiModelKey(owner, name), &m)
	})
	if err != nil {
		return nil, fmt.Errorf("ai model %q: %w", name, err)
	}
	return &m, nil
}

// ListAiModels returns an owner's models, or every model for a zero owner.
func (e *Engine) ListAiModels(ctx context.Context, owner domain.Pubkey) ([]domain.AiModel, error) {
	return scanAll[domain.AiModel](ctx, e, ownerScope(domain.AiModelPrefix, owner))
}

// GetDataset returns one dataset by owner and name.
func (e *Engine) GetDataset(ctx context.Context, owner domain.Pubkey, name string) (*domain.Dataset, error) {
	var d domain.Dataset
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Get(domain.DatasetKey(owner, name), &d)
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", name, err)
	}
	return &d, nil
}

// ListDatasets returns an owner's datasets, or every dataset for a zero owner.
func (e *Engine) ListDatasets(ctx context.Context, owner domain.Pubkey) ([]domain.Dataset, error) {
	return scanAll[domain.Dataset](ctx, e, ownerScope(domain.DatasetPrefix, owner))
}

// ─── Balances ───────────────────────────────────────────────────────────────

// Balance returns owner's balance of the engine's mint.
func (e *Engine) Balance(ctx context.Context, owner domain.Pubkey) (uint64, error) {
	var bal uint64
	err := e.view(ctx, func(tx domain.Tx) error {
		var err error
		bal, err = e.tokens.Balance(tx, e.mint, owner)
		return err
	})
	return bal, err
}

// VaultBalance returns the funds held for live orders.
func (e *Engine) VaultBalance(ctx context.Context) (uint64, error) {
	return e.Balance(ctx, e.vault)
}

// RewardPoolBalance returns the funds available for reward claims.
func (e *Engine) RewardPoolBalance(ctx context.Context) (uint64, error) {
	return e.Balance(ctx, e.rewardPool)
}

// ─── Schedule ───────────────────────────────────────────────────────────────

// PeriodInfo describes one reward period.
type PeriodInfo struct {
	Period    uint32 `json:"period"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	Pool      uint64 `json:"pool"`
}

// CurrentPeriod describes the period the clock is in now.
func (e *Engine) CurrentPeriod() PeriodInfo {
	return e.Period(e.schedule.CurrentPeriod(e.clock.Now()))
}

// Period describes an arbitrary period.
func (e *Engine) Period(p uint32) PeriodInfo {
	next := e.schedule.StartTime(p)
	if p < ^uint32(0) {
		next = e.schedule.StartTime(p + 1)
	}
	return PeriodInfo{
		Period:    p,
		StartTime: e.schedule.StartTime(p),
		EndTime:   next,
		Pool:      e.schedule.Pool(p),
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func ownerScope(prefix string, owner domain.Pubkey) string {
	if owner.IsZero() {
		return prefix
	}
	return domain.OwnerPrefix(prefix, owner)
}

func scanAll[T any](ctx context.Context, e *Engine, prefix string) ([]T, error) {
	var out []T
	err := e.view(ctx, func(tx domain.Tx) error {
		return tx.Scan(prefix, func(_ string, decode func(any) error) error {
			var v T
			if err := decode(&v); err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	})
	return out, err
}

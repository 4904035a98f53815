package market

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/metrics"
)

// ─── Task Submission & Periodic Rewards ─────────────────────────────────────
// A machine earns a share of a period's pool by submitting at least one
// task during that period. The pool is split evenly among all machines
// that joined; the share is read at claim time.

// SubmitTaskRequest describes one task submission.
type SubmitTaskRequest struct {
	MachineID uuid.UUID `json:"machine_id"`
	TaskID    uuid.UUID `json:"task_id"`
	Period    uint32    `json:"period"`
	Metadata  string    `json:"metadata"`
}

// SubmitTask records a task for a ForRent machine in the current period.
func (e *Engine) SubmitTask(ctx context.Context, owner domain.Pubkey, req SubmitTaskRequest) error {
	return e.run(ctx, "submit_task", func(t *txn) error {
		if err := checkLength("metadata", req.Metadata, domain.MetadataMaxLength); err != nil {
			return err
		}
		m, err := loadMachine(t, owner, req.MachineID)
		if err != nil {
			return err
		}
		if err := requireMachineStatus(m, domain.MachineForRent); err != nil {
			return err
		}
		if current := e.schedule.CurrentPeriod(t.now); req.Period != current {
			return fmt.Errorf("%w: submitted for period %d, current is %d",
				domain.ErrInvalidPeriod, req.Period, current)
		}

		task := domain.Task{
			UUID:      req.TaskID,
			Period:    req.Period,
			Owner:     owner,
			MachineID: m.UUID,
			Metadata:  req.Metadata,
		}
		if err := t.Create(domain.TaskKey(owner, req.TaskID), owner, task); err != nil {
			return fmt.Errorf("submit task %s: %w", req.TaskID, err)
		}

		rm, err := e.rewardMachine(t, req.Period, owner, m.UUID)
		if err != nil {
			return err
		}
		rm.TaskNum = domain.SaturatingAddU32(rm.TaskNum, 1)

		r, err := e.reward(t, req.Period, owner)
		if err != nil {
			return err
		}
		if rm.TaskNum == 1 {
			r.MachineNum = domain.SaturatingAddU32(r.MachineNum, 1)
		}
		r.UnitPeriodicReward = r.Pool / uint64(r.MachineNum)
		r.TaskNum = domain.SaturatingAddU32(r.TaskNum, 1)

		if err := t.Put(domain.RewardMachineKey(rm.Period, rm.Owner, rm.MachineID), rm); err != nil {
			return err
		}
		if err := t.Put(domain.RewardKey(r.Period), r); err != nil {
			return err
		}

		t.afterCommit = append(t.afterCommit, metrics.TasksSubmitted.Inc)
		t.emit(domain.TaskEvent{UUID: task.UUID, Period: task.Period, Owner: owner, MachineID: task.MachineID})
		return nil
	})
}

// Claim pays a machine its share of a closed period's pool. Each
// (period, machine) pair pays out at most once.
func (e *Engine) Claim(ctx context.Context, owner domain.Pubkey, machineID uuid.UUID, period uint32) (uint64, error) {
	var paid uint64
	err := e.run(ctx, "claim", func(t *txn) error {
		if current := e.schedule.CurrentPeriod(t.now); period >= current {
			return fmt.Errorf("%w: period %d is still open (current %d)",
				domain.ErrInvalidPeriod, period, current)
		}

		var r domain.Reward
		if err := t.Get(domain.RewardKey(period), &r); err != nil {
			return fmt.Errorf("reward for period %d: %w", period, err)
		}
		var rm domain.RewardMachine
		if err := t.Get(domain.RewardMachineKey(period, owner, machineID), &rm); err != nil {
			return fmt.Errorf("reward of machine %s in period %d: %w", machineID, period, err)
		}
		if rm.Claimed {
			return fmt.Errorf("%w: machine %s, period %d", domain.ErrRepeatClaim, machineID, period)
		}
		m, err := loadMachine(t, owner, machineID)
		if err != nil {
			return err
		}

		amount := r.UnitPeriodicReward
		rm.Claimed = true
		if m.ClaimedPeriodicRewards, err = e.overflow.Add(m.ClaimedPeriodicRewards, amount); err != nil {
			return fmt.Errorf("claimed periodic rewards: %w", err)
		}
		s, err := statistics(t, owner)
		if err != nil {
			return err
		}
		if s.MachineRewardClaimed, err = e.overflow.Add(s.MachineRewardClaimed, amount); err != nil {
			return fmt.Errorf("machine reward claimed: %w", err)
		}

		if err := t.Put(domain.RewardMachineKey(period, owner, machineID), rm); err != nil {
			return err
		}
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}
		if err := t.Put(domain.StatisticsKey(owner), s); err != nil {
			return err
		}
		if err := e.release(t, e.rewardPool, owner, amount, "claim"); err != nil {
			return err
		}

		t.afterCommit = append(t.afterCommit, metrics.RewardsClaimed.WithLabelValues("periodic").Inc)
		t.emit(domain.RewardEvent{
			Action: domain.ActionClaim, Period: period, Owner: owner, MachineID: machineID, Amount: amount,
		})
		paid = amount
		return nil
	})
	return paid, err
}

// RewardPoolDeposit tops up the reward pool from the signer's balance.
func (e *Engine) RewardPoolDeposit(ctx context.Context, signer domain.Pubkey, amount uint64) error {
	return e.run(ctx, "reward_pool_deposit", func(t *txn) error {
		if err := e.pay(t, signer, e.rewardPool, amount, "deposit"); err != nil {
			return err
		}
		t.emit(domain.RewardEvent{Action: domain.ActionDeposit, Owner: signer, Amount: amount})
		return nil
	})
}

// ─── Lazy Period Records ────────────────────────────────────────────────────

// reward returns the period's Reward, creating it with the scheduled
// start time and pool on first use.
func (e *Engine) reward(t *txn, period uint32, payer domain.Pubkey) (*domain.Reward, error) {
	var r domain.Reward
	err := t.Get(domain.RewardKey(period), &r)
	switch {
	case err == nil:
		return &r, nil
	case errors.Is(err, domain.ErrNotFound):
		r = domain.Reward{
			Period:    period,
			StartTime: e.schedule.StartTime(period),
			Pool:      e.schedule.Pool(period),
		}
		if err := t.Create(domain.RewardKey(period), payer, r); err != nil {
			return nil, err
		}
		return &r, nil
	default:
		return nil, err
	}
}

func (e *Engine) rewardMachine(t *txn, period uint32, owner domain.Pubkey, machineID uuid.UUID) (*domain.RewardMachine, error) {
	key := domain.RewardMachineKey(period, owner, machineID)
	var rm domain.RewardMachine
	err := t.Get(key, &rm)
	switch {
	case err == nil:
		return &rm, nil
	case errors.Is(err, domain.ErrNotFound):
		rm = domain.RewardMachine{Period: period, Owner: owner, MachineID: machineID}
		if err := t.Create(key, owner, rm); err != nil {
			return nil, err
		}
		return &rm, nil
	default:
		return nil, err
	}
}

package market

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/distri-network/distri/internal/domain"
)

func (e *env) submit(owner domain.Pubkey, machineID uuid.UUID, period uint32) error {
	e.t.Helper()
	return e.eng.SubmitTask(e.ctx, owner, SubmitTaskRequest{
		MachineID: machineID, TaskID: uuid.New(), Period: period, Metadata: `{"task":"train"}`,
	})
}

func TestCurrentPeriod(t *testing.T) {
	e := newEnv(t)
	p := e.eng.CurrentPeriod()
	require.Equal(t, uint32(10), p.Period)
	require.Equal(t, genesis+10*day, p.StartTime)
	require.Equal(t, genesis+11*day, p.EndTime)
	require.Equal(t, uint64(1000), p.Pool)
}

// ─── Submit ─────────────────────────────────────────────────────────────────

func TestSubmitTask_SplitsPool(t *testing.T) {
	e := newEnv(t)
	a := e.offeredMachine(seller, 10, 10)
	b := e.offeredMachine(seller, 10, 10)
	c := e.offeredMachine(funder, 10, 10)

	require.NoError(t, e.submit(seller, a, 10))
	r, err := e.eng.GetReward(e.ctx, 10)
	require.NoError(t, err)
	require.Equal(t, genesis+10*day, r.StartTime)
	require.Equal(t, uint64(1000), r.Pool)
	require.Equal(t, uint32(1), r.MachineNum)
	require.Equal(t, uint64(1000), r.UnitPeriodicReward)

	require.NoError(t, e.submit(seller, b, 10))
	require.NoError(t, e.submit(seller, a, 10))
	r, err = e.eng.GetReward(e.ctx, 10)
	require.NoError(t, err)
	require.Equal(t, uint32(2), r.MachineNum)
	require.Equal(t, uint32(3), r.TaskNum)
	require.Equal(t, uint64(500), r.UnitPeriodicReward)

	rm, err := e.eng.GetRewardMachine(e.ctx, 10, seller, a)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rm.TaskNum)
	require.False(t, rm.Claimed)

	require.NoError(t, e.submit(funder, c, 10))
	r, err = e.eng.GetReward(e.ctx, 10)
	require.NoError(t, err)
	require.Equal(t, uint32(3), r.MachineNum)
	require.Equal(t, uint64(333), r.UnitPeriodicReward)
}

func TestSubmitTask_Rejected(t *testing.T) {
	e := newEnv(t)
	machineID := e.offeredMachine(seller, 10, 10)

	require.ErrorIs(t, e.submit(seller, machineID, 9), domain.ErrInvalidPeriod)
	require.ErrorIs(t, e.submit(seller, machineID, 11), domain.ErrInvalidPeriod)

	idle := uuid.New()
	require.NoError(t, e.eng.AddMachine(e.ctx, seller, idle, "{}"))
	require.ErrorIs(t, e.submit(seller, idle, 10), domain.ErrIncorrectStatus)

	renting, _ := e.placed()
	require.ErrorIs(t, e.submit(seller, renting, 10), domain.ErrIncorrectStatus)

	_, err := e.eng.GetReward(e.ctx, 10)
	require.ErrorIs(t, err, domain.ErrNotFound, "rejected submissions must not create the period record")
}

func TestSubmitTask_DuplicateTask(t *testing.T) {
	e := newEnv(t)
	machineID := e.offeredMachine(seller, 10, 10)
	req := SubmitTaskRequest{MachineID: machineID, TaskID: uuid.New(), Period: 10, Metadata: "{}"}

	require.NoError(t, e.eng.SubmitTask(e.ctx, seller, req))
	require.ErrorIs(t, e.eng.SubmitTask(e.ctx, seller, req), domain.ErrExists)

	r, err := e.eng.GetReward(e.ctx, 10)
	require.NoError(t, err)
	require.Equal(t, uint32(1), r.TaskNum)

	task, err := e.eng.GetTask(e.ctx, seller, req.TaskID)
	require.NoError(t, err)
	require.Equal(t, machineID, task.MachineID)
	require.Equal(t, uint32(10), task.Period)
}

// ─── Claim ──────────────────────────────────────────────────────────────────

func TestClaim(t *testing.T) {
	for _, store := range []string{"sqlite", "badger"} {
		t.Run(store, func(t *testing.T) {
			e := newEnvWith(t, envConfig{store: store})
			a := e.offeredMachine(seller, 10, 10)
			b := e.offeredMachine(seller, 10, 10)
			c := e.offeredMachine(funder, 10, 10)
			require.NoError(t, e.submit(seller, a, 10))
			require.NoError(t, e.submit(seller, b, 10))
			require.NoError(t, e.submit(funder, c, 10))
			require.NoError(t, e.eng.RewardPoolDeposit(e.ctx, funder, 1000))

			_, err := e.eng.Claim(e.ctx, seller, a, 10)
			require.ErrorIs(t, err, domain.ErrInvalidPeriod, "period 10 is still open")

			e.clock.Advance(day)
			paid, err := e.eng.Claim(e.ctx, seller, a, 10)
			require.NoError(t, err)
			require.Equal(t, uint64(333), paid)
			require.Equal(t, uint64(333), e.balance(seller))
			require.Equal(t, uint64(333), e.machine(seller, a).ClaimedPeriodicRewards)

			_, err = e.eng.Claim(e.ctx, seller, a, 10)
			require.ErrorIs(t, err, domain.ErrRepeatClaim)
			require.Equal(t, uint64(333), e.balance(seller))

			_, err = e.eng.Claim(e.ctx, seller, b, 10)
			require.NoError(t, err)
			_, err = e.eng.Claim(e.ctx, funder, c, 10)
			require.NoError(t, err)

			pool, err := e.eng.RewardPoolBalance(e.ctx)
			require.NoError(t, err)
			require.Equal(t, uint64(1), pool)

			stats, err := e.eng.GetStatistics(e.ctx, seller)
			require.NoError(t, err)
			require.Equal(t, uint64(666), stats.MachineRewardClaimed)

			rm, err := e.eng.GetRewardMachine(e.ctx, 10, seller, a)
			require.NoError(t, err)
			require.True(t, rm.Claimed)
		})
	}
}

func TestClaim_NotParticipating(t *testing.T) {
	e := newEnv(t)
	a := e.offeredMachine(seller, 10, 10)
	b := e.offeredMachine(seller, 10, 10)
	require.NoError(t, e.submit(seller, a, 10))
	e.clock.Advance(day)

	_, err := e.eng.Claim(e.ctx, seller, b, 10)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.eng.Claim(e.ctx, seller, a, 9)
	require.ErrorIs(t, err, domain.ErrNotFound, "no task was submitted in period 9")
}

func TestClaim_EmptyPool(t *testing.T) {
	e := newEnv(t)
	machineID := e.offeredMachine(seller, 10, 10)
	require.NoError(t, e.submit(seller, machineID, 10))
	e.clock.Advance(day)
	e.events.Reset()

	_, err := e.eng.Claim(e.ctx, seller, machineID, 10)
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	rm, err := e.eng.GetRewardMachine(e.ctx, 10, seller, machineID)
	require.NoError(t, err)
	require.False(t, rm.Claimed)
	require.Zero(t, e.machine(seller, machineID).ClaimedPeriodicRewards)
	require.Zero(t, e.events.Len())

	// Funding the pool later makes the claim succeed.
	require.NoError(t, e.eng.RewardPoolDeposit(e.ctx, funder, 1000))
	paid, err := e.eng.Claim(e.ctx, seller, machineID, 10)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), paid)
}

func TestRewardPoolDeposit(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.eng.RewardPoolDeposit(e.ctx, funder, 2_500))
	pool, err := e.eng.RewardPoolBalance(e.ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2_500), pool)
	require.Equal(t, uint64(7_500), e.balance(funder))

	require.ErrorIs(t, e.eng.RewardPoolDeposit(e.ctx, funder, 10_000), domain.ErrInsufficientFunds)
}

package market

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/distri-network/distri/internal/app/ledger"
	"github.com/distri-network/distri/internal/app/schedule"
	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/badger"
	"github.com/distri-network/distri/internal/infra/events"
	"github.com/distri-network/distri/internal/infra/sqlite"
)

const (
	genesis = int64(1_708_992_000)
	day     = int64(86_400)
	hour    = domain.SecondsPerHour
)

var (
	mint          = domain.Pubkey{0xD1}
	mintAuthority = domain.Pubkey{0xD2}
	admin         = domain.Pubkey{0xAD}
	seller        = domain.Pubkey{0x51}
	buyer         = domain.Pubkey{0xB1}
	funder        = domain.Pubkey{0xF1}
)

// testClock is a settable clock. Tests drive it from one goroutine.
type testClock struct{ now int64 }

func (c *testClock) Now() int64        { return c.now }
func (c *testClock) Advance(secs int64) { c.now += secs }

type env struct {
	t      *testing.T
	ctx    context.Context
	store  domain.Store
	ledger *ledger.Ledger
	eng    *Engine
	clock  *testClock
	events *events.Recorder
}

type envConfig struct {
	store      string // "sqlite" (default) or "badger"
	overflow   domain.OverflowPolicy
	pool       uint64
	buyerFunds uint64
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, envConfig{})
}

func newEnvWith(t *testing.T, cfg envConfig) *env {
	t.Helper()
	if cfg.pool == 0 {
		cfg.pool = 1000
	}
	if cfg.buyerFunds == 0 {
		cfg.buyerFunds = 10_000
	}

	var store domain.Store
	switch cfg.store {
	case "", "sqlite":
		db, err := sqlite.Open(t.TempDir())
		require.NoError(t, err)
		store = db
	case "badger":
		db, err := badger.OpenInMemory()
		require.NoError(t, err)
		store = db
	default:
		t.Fatalf("unknown store %q", cfg.store)
	}
	t.Cleanup(func() { store.Close() })

	// Start one hour into period 10.
	clk := &testClock{now: genesis + 10*day + hour}
	l := ledger.New(clk)
	rec := events.NewRecorder()

	ctx := context.Background()
	require.NoError(t, store.Update(ctx, func(tx domain.Tx) error {
		if err := l.CreateMint(tx, domain.Mint{Address: mint, Decimals: 9, Authority: mintAuthority}); err != nil {
			return err
		}
		if err := l.MintTo(tx, mint, buyer, mintAuthority, cfg.buyerFunds); err != nil {
			return err
		}
		if cfg.buyerFunds == math.MaxUint64 {
			return nil
		}
		return l.MintTo(tx, mint, funder, mintAuthority, 10_000)
	}))

	sched := schedule.New(schedule.Config{
		GenesisTime:      genesis,
		PeriodDuration:   day,
		DecayPeriods:     100, // no decay within the tests
		DecayNumerator:   9737,
		DecayDenominator: 10000,
		GenesisPool:      cfg.pool,
	})
	eng, err := New(Params{
		Store:    store,
		Tokens:   l,
		Schedule: sched,
		Mint:     mint,
		Admins:   []domain.Pubkey{admin},
		Overflow: cfg.overflow,
		Clock:    clk,
		Events:   rec,
	})
	require.NoError(t, err)

	return &env{t: t, ctx: ctx, store: store, ledger: l, eng: eng, clock: clk, events: rec}
}

func (e *env) balance(owner domain.Pubkey) uint64 {
	e.t.Helper()
	bal, err := e.eng.Balance(e.ctx, owner)
	require.NoError(e.t, err)
	return bal
}

func (e *env) machine(owner domain.Pubkey, id uuid.UUID) *domain.Machine {
	e.t.Helper()
	m, err := e.eng.GetMachine(e.ctx, owner, id)
	require.NoError(e.t, err)
	return m
}

func (e *env) order(id uuid.UUID) *domain.Order {
	e.t.Helper()
	o, err := e.eng.GetOrder(e.ctx, buyer, id)
	require.NoError(e.t, err)
	return o
}

// offeredMachine adds a machine owned by owner and lists it for rent.
func (e *env) offeredMachine(owner domain.Pubkey, price uint64, maxDuration uint32) uuid.UUID {
	e.t.Helper()
	id := uuid.New()
	require.NoError(e.t, e.eng.AddMachine(e.ctx, owner, id, `{"gpu":"A100"}`))
	require.NoError(e.t, e.eng.MakeOffer(e.ctx, owner, id, Offer{Price: price, MaxDuration: maxDuration, Disk: 500}))
	return id
}

// placed returns a machine (price 100, max 10h) rented by buyer for 5h.
func (e *env) placed() (machineID, orderID uuid.UUID) {
	e.t.Helper()
	machineID = e.offeredMachine(seller, 100, 10)
	orderID = uuid.New()
	_, err := e.eng.PlaceOrder(e.ctx, buyer, PlaceOrderRequest{
		Seller: seller, MachineID: machineID, OrderID: orderID, Duration: 5, Metadata: "{}",
	})
	require.NoError(e.t, err)
	return machineID, orderID
}

// training returns a placed order that the seller has started.
func (e *env) training() (machineID, orderID uuid.UUID) {
	e.t.Helper()
	machineID, orderID = e.placed()
	require.NoError(e.t, e.eng.StartOrder(e.ctx, seller, buyer, orderID))
	return machineID, orderID
}

// ─── Engine Construction ────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	defer db.Close()
	l := ledger.New(nil)

	_, err = New(Params{Tokens: l, Mint: mint})
	require.Error(t, err)

	_, err = New(Params{Store: db, Tokens: l})
	require.ErrorIs(t, err, domain.ErrInvalidPubkey)

	_, err = New(Params{Store: db, Tokens: l, Mint: mint, Overflow: "wrap"})
	require.Error(t, err)

	eng, err := New(Params{Store: db, Tokens: l, Mint: mint})
	require.NoError(t, err)
	require.Equal(t, domain.DeriveAuthority(domain.PurposeVault, mint), eng.Vault())
	require.Equal(t, domain.DeriveAuthority(domain.PurposeRewardPool, mint), eng.RewardPool())
	require.NotEqual(t, eng.Vault(), eng.RewardPool())
}

// Package market implements the Distri marketplace engine: the machine and
// order state machines, periodic reward accrual, and the AI model/dataset
// catalog with its reward statistics.
//
// Every public operation runs as exactly one store transaction. Guards are
// checked against the state inside that transaction, value transfers go
// through the same transaction, and events are published only after it
// commits. A rejected operation leaves no trace.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/distri-network/distri/internal/app/schedule"
	"github.com/distri-network/distri/internal/domain"
	"github.com/distri-network/distri/internal/infra/metrics"
)

// Params groups the collaborators of an Engine.
type Params struct {
	// Store holds every record. Required.
	Store domain.Store
	// Tokens moves value between balances. Required.
	Tokens domain.ValueTransfer
	// Schedule computes periods and pools. Defaults to schedule.DefaultConfig().
	Schedule *schedule.Schedule

	// Mint is the token every price and reward is denominated in. Required.
	Mint domain.Pubkey
	// Admins may report AI model/dataset rewards.
	Admins []domain.Pubkey
	// Overflow selects saturating or rejecting money arithmetic.
	Overflow domain.OverflowPolicy

	Clock  domain.Clock
	Events domain.EventSink
	Logger *zap.Logger
	Tracer trace.Tracer
}

// Engine executes marketplace operations.
type Engine struct {
	store    domain.Store
	tokens   domain.ValueTransfer
	schedule *schedule.Schedule

	mint       domain.Pubkey
	vault      domain.Pubkey
	rewardPool domain.Pubkey
	admins     map[domain.Pubkey]bool
	overflow   domain.OverflowPolicy

	clock  domain.Clock
	events domain.EventSink
	log    *zap.Logger
	tracer trace.Tracer
}

// New creates an engine.
func New(p Params) (*Engine, error) {
	if p.Store == nil || p.Tokens == nil {
		return nil, errors.New("market: store and tokens are required")
	}
	if p.Mint.IsZero() {
		return nil, fmt.Errorf("market: mint: %w", domain.ErrInvalidPubkey)
	}
	if p.Overflow == "" {
		p.Overflow = domain.OverflowSaturate
	}
	if p.Overflow != domain.OverflowSaturate && p.Overflow != domain.OverflowReject {
		return nil, fmt.Errorf("market: unknown overflow policy %q", p.Overflow)
	}
	if p.Schedule == nil {
		p.Schedule = schedule.New(schedule.DefaultConfig())
	}
	if p.Clock == nil {
		p.Clock = domain.SystemClock{}
	}
	if p.Events == nil {
		p.Events = nopSink{}
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Tracer == nil {
		p.Tracer = otel.Tracer("github.com/distri-network/distri/internal/app/market")
	}

	admins := make(map[domain.Pubkey]bool, len(p.Admins))
	for _, a := range p.Admins {
		admins[a] = true
	}

	return &Engine{
		store:      p.Store,
		tokens:     p.Tokens,
		schedule:   p.Schedule,
		mint:       p.Mint,
		vault:      domain.DeriveAuthority(domain.PurposeVault, p.Mint),
		rewardPool: domain.DeriveAuthority(domain.PurposeRewardPool, p.Mint),
		admins:     admins,
		overflow:   p.Overflow,
		clock:      p.Clock,
		events:     p.Events,
		log:        p.Logger.Named("market"),
		tracer:     p.Tracer,
	}, nil
}

// Mint returns the engine's token mint.
func (e *Engine) Mint() domain.Pubkey { return e.mint }

// Vault returns the custodial account holding order payments.
func (e *Engine) Vault() domain.Pubkey { return e.vault }

// RewardPool returns the custodial account funding rewards.
func (e *Engine) RewardPool() domain.Pubkey { return e.rewardPool }

// Schedule returns the reward schedule.
func (e *Engine) Schedule() *schedule.Schedule { return e.schedule }

// IsAdmin reports whether key may report AI model/dataset rewards.
func (e *Engine) IsAdmin(key domain.Pubkey) bool { return e.admins[key] }

// ─── Transaction Plumbing ───────────────────────────────────────────────────

// txn is the state of one operation attempt. A retried attempt starts
// from a fresh txn, so nothing leaks from a lost attempt.
type txn struct {
	domain.Tx
	now    int64
	events []domain.Event
	moved  []movement

	// afterCommit runs once the transaction has committed.
	afterCommit []func()
}

type movement struct {
	purpose string
	amount  uint64
}

func (t *txn) emit(ev domain.Event) { t.events = append(t.events, ev) }

func (t *txn) resolved(status domain.OrderStatus) {
	t.afterCommit = append(t.afterCommit, func() {
		metrics.OrdersResolved.WithLabelValues(string(status)).Inc()
	})
}

// run executes fn as one store transaction and publishes its events once
// the transaction has committed.
func (e *Engine) run(ctx context.Context, op string, fn func(t *txn) error) error {
	ctx, span := e.tracer.Start(ctx, "market."+op)
	defer span.End()

	started := time.Now()
	var done *txn
	err := e.store.Update(ctx, func(tx domain.Tx) error {
		t := &txn{Tx: tx, now: e.clock.Now()}
		if err := fn(t); err != nil {
			return err
		}
		done = t
		return nil
	})
	metrics.OperationLatency.WithLabelValues(op).Observe(time.Since(started).Seconds())

	if err != nil {
		kind := ErrorKind(err)
		metrics.Operations.WithLabelValues(op, kind).Inc()
		span.SetAttributes(attribute.String("distri.error_kind", kind))
		span.RecordError(err)
		span.SetStatus(codes.Error, kind)
		e.log.Debug("operation rejected", zap.String("op", op), zap.Error(err))
		return err
	}

	metrics.Operations.WithLabelValues(op, "ok").Inc()
	metrics.CurrentPeriod.Set(float64(e.schedule.CurrentPeriod(done.now)))
	for _, m := range done.moved {
		metrics.TransferredAmount.WithLabelValues(m.purpose).Add(float64(m.amount))
	}
	for _, fn := range done.afterCommit {
		fn()
	}
	span.SetAttributes(attribute.Int("distri.events", len(done.events)))
	if len(done.events) > 0 {
		e.events.Publish(ctx, done.events)
	}
	e.log.Debug("operation committed", zap.String("op", op), zap.Int("events", len(done.events)))
	return nil
}

// view runs fn in a read-only transaction.
func (e *Engine) view(ctx context.Context, fn func(tx domain.Tx) error) error {
	return e.store.View(ctx, fn)
}

// ─── Value Movement ─────────────────────────────────────────────────────────

// pay moves amount from a user to a custodial account. The user signed the
// operation, so the user is the transfer authority.
func (e *Engine) pay(t *txn, from, to domain.Pubkey, amount uint64, purpose string) error {
	return e.transfer(t, from, to, from, amount, purpose)
}

// release moves amount out of a custodial account under its derived
// authority.
func (e *Engine) release(t *txn, custodial, to domain.Pubkey, amount uint64, purpose string) error {
	return e.transfer(t, custodial, to, custodial, amount, purpose)
}

func (e *Engine) transfer(t *txn, from, to, authority domain.Pubkey, amount uint64, purpose string) error {
	decimals, err := e.tokens.Decimals(t, e.mint)
	if err != nil {
		return err
	}
	err = e.tokens.Transfer(t, domain.TransferRequest{
		Mint:      e.mint,
		From:      from,
		To:        to,
		Authority: authority,
		Amount:    amount,
		Decimals:  decimals,
		Memo:      purpose,
	})
	if err != nil {
		return fmt.Errorf("%s transfer of %d: %w", purpose, amount, err)
	}
	t.moved = append(t.moved, movement{purpose: purpose, amount: amount})
	return nil
}

// ─── Record Helpers ─────────────────────────────────────────────────────────

func checkLength(field, s string, max int) error {
	if len(s) > max {
		return fmt.Errorf("%w: %s is %d bytes, max %d", domain.ErrStringTooLong, field, len(s), max)
	}
	return nil
}

func loadMachine(tx domain.Tx, owner domain.Pubkey, id uuid.UUID) (*domain.Machine, error) {
	var m domain.Machine
	if err := tx.Get(domain.MachineKey(owner, id), &m); err != nil {
		return nil, fmt.Errorf("machine %s: %w", id, err)
	}
	return &m, nil
}

func loadOrder(tx domain.Tx, buyer domain.Pubkey, id uuid.UUID) (*domain.Order, error) {
	var o domain.Order
	if err := tx.Get(domain.OrderKey(buyer, id), &o); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, err)
	}
	return &o, nil
}

// statistics loads an owner's statistics, creating the record on first use.
func statistics(tx domain.Tx, owner domain.Pubkey) (*domain.Statistics, error) {
	s := domain.Statistics{Owner: owner}
	err := tx.Get(domain.StatisticsKey(owner), &s)
	switch {
	case err == nil:
		return &s, nil
	case errors.Is(err, domain.ErrNotFound):
		if err := tx.Create(domain.StatisticsKey(owner), owner, s); err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, err
	}
}

// ErrorKind labels an error for metrics, traces and API responses.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrStringTooLong):
		return "string_too_long"
	case errors.Is(err, domain.ErrIncorrectStatus):
		return "incorrect_status"
	case errors.Is(err, domain.ErrDurationTooMuch):
		return "duration_too_much"
	case errors.Is(err, domain.ErrInvalidPeriod):
		return "invalid_period"
	case errors.Is(err, domain.ErrRepeatClaim):
		return "repeat_claim"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrExists):
		return "exists"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrDecimalsMismatch), errors.Is(err, domain.ErrMintNotFound):
		return "token"
	case errors.Is(err, domain.ErrArithmeticOverflow):
		return "overflow"
	case errors.Is(err, domain.ErrInvalidPubkey):
		return "invalid_pubkey"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

type nopSink struct{}

func (nopSink) Publish(context.Context, []domain.Event) {}

package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/distri-network/distri/internal/domain"
)

// ─── Machine Lifecycle ──────────────────────────────────────────────────────
// Idle ⇄ ForRent → Renting → ForRent … → removed (never while Renting).
// The machine key is derived from the signer, so only the owner can
// address its own machines.

// AddMachine registers a new machine in Idle state.
func (e *Engine) AddMachine(ctx context.Context, owner domain.Pubkey, id uuid.UUID, metadata string) error {
	return e.run(ctx, "add_machine", func(t *txn) error {
		if err := checkLength("metadata", metadata, domain.MetadataMaxLength); err != nil {
			return err
		}
		m := domain.Machine{
			Owner:    owner,
			UUID:     id,
			Metadata: metadata,
			Status:   domain.MachineIdle,
		}
		if err := t.Create(m.Key(), owner, m); err != nil {
			return fmt.Errorf("add machine %s: %w", id, err)
		}
		if _, err := statistics(t, owner); err != nil {
			return err
		}
		t.emit(domain.MachineEvent{Action: domain.ActionAdd, Owner: owner, UUID: id, Status: m.Status})
		return nil
	})
}

// RemoveMachine deletes a machine that is not Renting. The record's
// storage is reclaimed to the owner.
func (e *Engine) RemoveMachine(ctx context.Context, owner domain.Pubkey, id uuid.UUID) error {
	return e.run(ctx, "remove_machine", func(t *txn) error {
		m, err := loadMachine(t, owner, id)
		if err != nil {
			return err
		}
		switch m.Status {
		case domain.MachineIdle, domain.MachineForRent:
		case domain.MachineRenting:
			return fmt.Errorf("remove machine %s while %s: %w", id, m.Status, domain.ErrIncorrectStatus)
		default:
			return fmt.Errorf("remove machine %s in unknown status %q: %w", id, m.Status, domain.ErrIncorrectStatus)
		}

		rc, err := t.Delete(m.Key(), owner)
		if err != nil {
			return fmt.Errorf("remove machine %s: %w", id, err)
		}
		e.log.Debug("machine storage reclaimed",
			zap.String("key", rc.Key), zap.Stringer("to", rc.Beneficiary), zap.Int64("bytes", rc.Bytes))
		t.emit(domain.MachineEvent{Action: domain.ActionRemove, Owner: owner, UUID: id, Status: m.Status})
		return nil
	})
}

// Offer carries the rental terms of MakeOffer.
type Offer struct {
	Price       uint64 `json:"price"`        // per hour
	MaxDuration uint32 `json:"max_duration"` // hours
	Disk        uint32 `json:"disk"`         // GB
}

// MakeOffer lists an Idle machine for rent with the given terms.
func (e *Engine) MakeOffer(ctx context.Context, owner domain.Pubkey, id uuid.UUID, offer Offer) error {
	return e.run(ctx, "make_offer", func(t *txn) error {
		m, err := loadMachine(t, owner, id)
		if err != nil {
			return err
		}
		if err := requireMachineStatus(m, domain.MachineIdle); err != nil {
			return err
		}
		m.Price = offer.Price
		m.MaxDuration = offer.MaxDuration
		m.Disk = offer.Disk
		m.Status = domain.MachineForRent
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}
		t.emit(domain.MachineEvent{Action: domain.ActionOffer, Owner: owner, UUID: id, Status: m.Status})
		return nil
	})
}

// CancelOffer takes a ForRent machine off the market.
func (e *Engine) CancelOffer(ctx context.Context, owner domain.Pubkey, id uuid.UUID) error {
	return e.run(ctx, "cancel_offer", func(t *txn) error {
		m, err := loadMachine(t, owner, id)
		if err != nil {
			return err
		}
		if err := requireMachineStatus(m, domain.MachineForRent); err != nil {
			return err
		}
		m.Status = domain.MachineIdle
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}
		t.emit(domain.MachineEvent{Action: domain.ActionCancel, Owner: owner, UUID: id, Status: m.Status})
		return nil
	})
}

// requireMachineStatus fails with ErrIncorrectStatus unless m is in want.
func requireMachineStatus(m *domain.Machine, want domain.MachineStatus) error {
	if !m.Status.Valid() {
		return fmt.Errorf("machine %s has unknown status %q: %w", m.UUID, m.Status, domain.ErrIncorrectStatus)
	}
	if m.Status != want {
		return fmt.Errorf("machine %s is %s, want %s: %w", m.UUID, m.Status, want, domain.ErrIncorrectStatus)
	}
	return nil
}

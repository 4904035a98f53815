package market

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/distri-network/distri/internal/domain"
)

// ─── Order Lifecycle ────────────────────────────────────────────────────────
// Preparing → Training → Completed | Failed
// Preparing | Training → Refunded | Failed
// Terminal orders may be removed by the buyer.
//
// Payments sit in the vault while an order is live. Every resolution
// releases exactly the order total from the vault, split or whole.

// PlaceOrderRequest describes a new rental.
type PlaceOrderRequest struct {
	Seller    domain.Pubkey `json:"seller"`
	MachineID uuid.UUID     `json:"machine_id"`
	OrderID   uuid.UUID     `json:"order_id"`
	Duration  uint32        `json:"duration"` // hours
	Metadata  string        `json:"metadata"`
}

// PlaceOrder rents a ForRent machine. The buyer pays price × duration into
// the vault and the machine becomes Renting.
func (e *Engine) PlaceOrder(ctx context.Context, buyer domain.Pubkey, req PlaceOrderRequest) (*domain.Order, error) {
	var placed domain.Order
	err := e.run(ctx, "place_order", func(t *txn) error {
		if err := checkLength("metadata", req.Metadata, domain.MetadataMaxLength); err != nil {
			return err
		}
		m, err := loadMachine(t, req.Seller, req.MachineID)
		if err != nil {
			return err
		}
		if err := requireMachineStatus(m, domain.MachineForRent); err != nil {
			return err
		}
		if req.Duration > m.MaxDuration {
			return fmt.Errorf("%w: %d hours requested, machine allows %d",
				domain.ErrDurationTooMuch, req.Duration, m.MaxDuration)
		}

		total, err := e.overflow.Mul(m.Price, uint64(req.Duration))
		if err != nil {
			return fmt.Errorf("order total: %w", err)
		}

		o := domain.Order{
			OrderID:    req.OrderID,
			Buyer:      buyer,
			Seller:     m.Owner,
			MachineID:  m.UUID,
			Price:      m.Price,
			Duration:   req.Duration,
			Total:      total,
			Metadata:   req.Metadata,
			Status:     domain.OrderPreparing,
			OrderTime:  t.now,
			RefundTime: 0,
		}
		if err := t.Create(o.Key(), buyer, o); err != nil {
			return fmt.Errorf("place order %s: %w", o.OrderID, err)
		}
		if err := e.pay(t, buyer, e.vault, total, "rent"); err != nil {
			return err
		}

		m.Status = domain.MachineRenting
		m.OrderKey = o.Key()
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}

		t.emit(orderEvent(domain.ActionPlace, &o))
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &placed, nil
}

// StartOrder marks a Preparing order as Training. Seller only.
func (e *Engine) StartOrder(ctx context.Context, seller, buyer domain.Pubkey, orderID uuid.UUID) error {
	return e.run(ctx, "start_order", func(t *txn) error {
		o, err := loadSellerOrder(t, buyer, orderID, seller)
		if err != nil {
			return err
		}
		if err := requireOrderStatus(o, domain.OrderPreparing); err != nil {
			return err
		}
		o.Status = domain.OrderTraining
		o.StartTime = t.now
		if err := t.Put(o.Key(), o); err != nil {
			return err
		}
		t.emit(orderEvent(domain.ActionStart, o))
		return nil
	})
}

// RenewOrder extends a Training order by extra hours at the machine's
// current price. Buyer only.
func (e *Engine) RenewOrder(ctx context.Context, buyer domain.Pubkey, orderID uuid.UUID, extra uint32) error {
	return e.run(ctx, "renew_order", func(t *txn) error {
		o, err := loadOrder(t, buyer, orderID)
		if err != nil {
			return err
		}
		if err := requireOrderStatus(o, domain.OrderTraining); err != nil {
			return err
		}
		m, err := loadMachine(t, o.Seller, o.MachineID)
		if err != nil {
			return err
		}

		duration := domain.SaturatingAddU32(o.Duration, extra)
		if duration > m.MaxDuration {
			return fmt.Errorf("%w: renewed duration %d hours, machine allows %d",
				domain.ErrDurationTooMuch, duration, m.MaxDuration)
		}
		increment, err := e.overflow.Mul(m.Price, uint64(extra))
		if err != nil {
			return fmt.Errorf("renewal total: %w", err)
		}
		total, err := e.overflow.Add(o.Total, increment)
		if err != nil {
			return fmt.Errorf("renewal total: %w", err)
		}

		o.Duration = duration
		o.Total = total
		if err := t.Put(o.Key(), o); err != nil {
			return err
		}
		if err := e.pay(t, buyer, e.vault, increment, "rent"); err != nil {
			return err
		}
		t.emit(orderEvent(domain.ActionRenew, o))
		return nil
	})
}

// RefundOrder cancels a live order. Buyer only.
//
// From Preparing the buyer may cancel once RefundGracePeriod has passed
// since the order was placed, and gets the whole total back. From Training
// the seller keeps price × hours used (the current hour counts as used)
// and the buyer gets the rest; an order whose term has fully elapsed must
// be completed or failed instead.
func (e *Engine) RefundOrder(ctx context.Context, buyer domain.Pubkey, orderID uuid.UUID) error {
	return e.run(ctx, "refund_order", func(t *txn) error {
		o, err := loadOrder(t, buyer, orderID)
		if err != nil {
			return err
		}
		if o.Status.IsTerminal() || !o.Status.Valid() {
			return fmt.Errorf("refund order %s in %q: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
		}
		m, err := loadMachine(t, o.Seller, o.MachineID)
		if err != nil {
			return err
		}

		switch o.Status {
		case domain.OrderPreparing:
			cancelable := domain.SaturatingAddI64(o.OrderTime, domain.RefundGracePeriod)
			if t.now < cancelable {
				return fmt.Errorf("order %s cancelable at %d, now %d: %w",
					o.OrderID, cancelable, t.now, domain.ErrIncorrectStatus)
			}
			o.Status = domain.OrderRefunded
			m.Status = domain.MachineForRent
			m.FailedCount = domain.SaturatingAddU32(m.FailedCount, 1)

			if err := e.release(t, e.vault, o.Buyer, o.Total, "refund"); err != nil {
				return err
			}

		case domain.OrderTraining:
			used := usedHours(t.now, o.StartTime)
			if used >= uint64(o.Duration) {
				return fmt.Errorf("order %s used %d of %d hours: %w",
					o.OrderID, used, o.Duration, domain.ErrIncorrectStatus)
			}
			o.Status = domain.OrderRefunded
			o.RefundTime = t.now
			m.Status = domain.MachineForRent
			m.CompletedCount = domain.SaturatingAddU32(m.CompletedCount, 1)

			usedTotal, err := e.overflow.Mul(o.Price, used)
			if err != nil {
				return fmt.Errorf("used total: %w", err)
			}
			if err := e.release(t, e.vault, o.Seller, usedTotal, "payout"); err != nil {
				return err
			}
			if err := e.release(t, e.vault, o.Buyer, domain.SaturatingSubU64(o.Total, usedTotal), "refund"); err != nil {
				return err
			}
			if err := e.addEarning(t, o.Seller, usedTotal); err != nil {
				return err
			}

		case domain.OrderCompleted, domain.OrderFailed, domain.OrderRefunded:
			return fmt.Errorf("refund order %s in %s: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
		default:
			return fmt.Errorf("refund order %s in unknown status %q: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
		}

		if err := t.Put(o.Key(), o); err != nil {
			return err
		}
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}
		t.resolved(o.Status)
		t.emit(orderEvent(domain.ActionRefund, o))
		return nil
	})
}

// OrderCompleted settles a Training order whose full term has elapsed.
// The seller receives the whole total and records the score. Seller only.
func (e *Engine) OrderCompleted(ctx context.Context, seller, buyer domain.Pubkey, orderID uuid.UUID, metadata string, score uint8) error {
	return e.run(ctx, "order_completed", func(t *txn) error {
		if err := checkLength("metadata", metadata, domain.MetadataMaxLength); err != nil {
			return err
		}
		o, err := loadSellerOrder(t, buyer, orderID, seller)
		if err != nil {
			return err
		}
		if err := requireOrderStatus(o, domain.OrderTraining); err != nil {
			return err
		}
		if end := o.EndTime(); t.now < end {
			return fmt.Errorf("order %s ends at %d, now %d: %w", o.OrderID, end, t.now, domain.ErrIncorrectStatus)
		}
		m, err := loadMachine(t, o.Seller, o.MachineID)
		if err != nil {
			return err
		}
		if err := requireMachineStatus(m, domain.MachineRenting); err != nil {
			return err
		}

		o.Metadata = metadata
		o.Status = domain.OrderCompleted
		m.Status = domain.MachineForRent
		m.CompletedCount = domain.SaturatingAddU32(m.CompletedCount, 1)
		m.Score = score

		if err := e.release(t, e.vault, o.Seller, o.Total, "payout"); err != nil {
			return err
		}
		if err := e.addEarning(t, o.Seller, o.Total); err != nil {
			return err
		}
		if err := t.Put(o.Key(), o); err != nil {
			return err
		}
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}
		t.resolved(o.Status)
		t.emit(orderEvent(domain.ActionComplete, o))
		return nil
	})
}

// OrderFailed aborts a live order on the seller's side. The buyer gets
// the whole total back. Seller only.
func (e *Engine) OrderFailed(ctx context.Context, seller, buyer domain.Pubkey, orderID uuid.UUID, metadata string) error {
	return e.run(ctx, "order_failed", func(t *txn) error {
		if err := checkLength("metadata", metadata, domain.MetadataMaxLength); err != nil {
			return err
		}
		o, err := loadSellerOrder(t, buyer, orderID, seller)
		if err != nil {
			return err
		}
		switch o.Status {
		case domain.OrderPreparing, domain.OrderTraining:
		case domain.OrderCompleted, domain.OrderFailed, domain.OrderRefunded:
			return fmt.Errorf("fail order %s in %s: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
		default:
			return fmt.Errorf("fail order %s in unknown status %q: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
		}
		m, err := loadMachine(t, o.Seller, o.MachineID)
		if err != nil {
			return err
		}
		if err := requireMachineStatus(m, domain.MachineRenting); err != nil {
			return err
		}

		o.Metadata = metadata
		o.Status = domain.OrderFailed
		m.Status = domain.MachineForRent
		m.FailedCount = domain.SaturatingAddU32(m.FailedCount, 1)

		if err := e.release(t, e.vault, o.Buyer, o.Total, "refund"); err != nil {
			return err
		}
		if err := t.Put(o.Key(), o); err != nil {
			return err
		}
		if err := t.Put(m.Key(), m); err != nil {
			return err
		}
		t.resolved(o.Status)
		t.emit(orderEvent(domain.ActionFail, o))
		return nil
	})
}

// RemoveOrder deletes a terminal order and reclaims its storage to the
// buyer. Buyer only.
func (e *Engine) RemoveOrder(ctx context.Context, buyer domain.Pubkey, orderID uuid.UUID) error {
	return e.run(ctx, "remove_order", func(t *txn) error {
		o, err := loadOrder(t, buyer, orderID)
		if err != nil {
			return err
		}
		if !o.Status.IsTerminal() {
			return fmt.Errorf("remove order %s in %s: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
		}
		rc, err := t.Delete(o.Key(), buyer)
		if err != nil {
			return fmt.Errorf("remove order %s: %w", o.OrderID, err)
		}
		e.log.Debug("order storage reclaimed",
			zap.String("key", rc.Key), zap.Stringer("to", rc.Beneficiary), zap.Int64("bytes", rc.Bytes))
		t.emit(orderEvent(domain.ActionRemove, o))
		return nil
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// loadSellerOrder loads an order addressed by its buyer and checks that
// seller is the order's seller.
func loadSellerOrder(tx domain.Tx, buyer domain.Pubkey, orderID uuid.UUID, seller domain.Pubkey) (*domain.Order, error) {
	o, err := loadOrder(tx, buyer, orderID)
	if err != nil {
		return nil, err
	}
	if o.Seller != seller {
		return nil, fmt.Errorf("order %s: signer is not the seller: %w", orderID, domain.ErrUnauthorized)
	}
	return o, nil
}

// requireOrderStatus fails with ErrIncorrectStatus unless o is in want.
func requireOrderStatus(o *domain.Order, want domain.OrderStatus) error {
	if !o.Status.Valid() {
		return fmt.Errorf("order %s has unknown status %q: %w", o.OrderID, o.Status, domain.ErrIncorrectStatus)
	}
	if o.Status != want {
		return fmt.Errorf("order %s is %s, want %s: %w", o.OrderID, o.Status, want, domain.ErrIncorrectStatus)
	}
	return nil
}

// usedHours counts started hours since start; the running hour counts.
func usedHours(now, start int64) uint64 {
	elapsed := domain.SaturatingSubI64(now, start)
	if elapsed < 0 {
		elapsed = 0
	}
	return uint64(elapsed/domain.SecondsPerHour) + 1
}

// addEarning credits a seller's statistics with settled rent.
func (e *Engine) addEarning(t *txn, seller domain.Pubkey, amount uint64) error {
	s, err := statistics(t, seller)
	if err != nil {
		return err
	}
	if s.MachineEarning, err = e.overflow.Add(s.MachineEarning, amount); err != nil {
		return fmt.Errorf("machine earning: %w", err)
	}
	return t.Put(domain.StatisticsKey(seller), s)
}

func orderEvent(action string, o *domain.Order) domain.OrderEvent {
	return domain.OrderEvent{
		Action:    action,
		OrderID:   o.OrderID,
		Buyer:     o.Buyer,
		Seller:    o.Seller,
		MachineID: o.MachineID,
		Status:    o.Status,
	}
}

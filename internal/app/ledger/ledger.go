// Package ledger implements the token ledger behind every value transfer.
// Every movement creates matched DEBIT/CREDIT entries, so per mint
// SUM(debits) == SUM(credits) and the sum of balances equals supply.
package ledger

import (
	"errors"
	"fmt"

	"github.com/distri-network/distri/internal/domain"
)

// Ledger manages mints, token accounts and the transfer journal.
// It holds no state of its own; everything lives in the caller's Tx.
type Ledger struct {
	clock domain.Clock
}

// New creates a ledger.
func New(clock domain.Clock) *Ledger {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Ledger{clock: clock}
}

var _ domain.ValueTransfer = (*Ledger)(nil)

// CreateMint declares a new token type.
func (l *Ledger) CreateMint(tx domain.Tx, mint domain.Mint) error {
	if mint.Address.IsZero() {
		return fmt.Errorf("create mint: %w", domain.ErrInvalidPubkey)
	}
	mint.Supply = 0
	if err := tx.Create(domain.MintKey(mint.Address), mint.Authority, mint); err != nil {
		return fmt.Errorf("create mint %s: %w", mint.Address, err)
	}
	return nil
}

// GetMint loads a mint.
func (l *Ledger) GetMint(tx domain.Tx, address domain.Pubkey) (*domain.Mint, error) {
	var m domain.Mint
	if err := tx.Get(domain.MintKey(address), &m); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMintNotFound, address)
		}
		return nil, err
	}
	return &m, nil
}

// Decimals returns a mint's declared decimals.
func (l *Ledger) Decimals(tx domain.Tx, mint domain.Pubkey) (uint8, error) {
	m, err := l.GetMint(tx, mint)
	if err != nil {
		return 0, err
	}
	return m.Decimals, nil
}

// Balance returns owner's balance of mint (0 if the account does not exist).
func (l *Ledger) Balance(tx domain.Tx, mint, owner domain.Pubkey) (uint64, error) {
	acct, err := l.account(tx, mint, owner)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// MintTo issues new supply to an account. Only the mint authority may do so.
func (l *Ledger) MintTo(tx domain.Tx, mint, to, authority domain.Pubkey, amount uint64) error {
	m, err := l.GetMint(tx, mint)
	if err != nil {
		return err
	}
	if authority != m.Authority {
		return fmt.Errorf("mint to: %w", domain.ErrUnauthorized)
	}
	if amount == 0 {
		return nil
	}

	supply, err := domain.OverflowReject.Add(m.Supply, amount)
	if err != nil {
		return fmt.Errorf("mint to: %w", err)
	}
	acct, err := l.account(tx, mint, to)
	if err != nil {
		return err
	}
	acct.Amount += amount // bounded by supply

	m.Supply = supply
	if err := tx.Put(domain.MintKey(mint), m); err != nil {
		return fmt.Errorf("update mint: %w", err)
	}
	if err := tx.Put(domain.TokenAccountKey(mint, to), acct); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return l.journal(tx, domain.LedgerEntry{
		Type:      domain.TxMint,
		EntryType: domain.EntryCredit,
		Mint:      mint,
		Account:   to,
		Amount:    amount,
		Memo:      "mint",
		Balance:   acct.Amount,
	})
}

// Transfer moves req.Amount from req.From to req.To.
// Fails without side effects on decimals mismatch, missing authority or
// insufficient funds. The destination account is created on demand.
func (l *Ledger) Transfer(tx domain.Tx, req domain.TransferRequest) error {
	decimals, err := l.Decimals(tx, req.Mint)
	if err != nil {
		return err
	}
	if decimals != req.Decimals {
		return fmt.Errorf("%w: mint has %d, transfer declared %d",
			domain.ErrDecimalsMismatch, decimals, req.Decimals)
	}
	if req.Authority != req.From {
		return fmt.Errorf("transfer from %s: %w", req.From, domain.ErrUnauthorized)
	}

	from, err := l.account(tx, req.Mint, req.From)
	if err != nil {
		return err
	}
	if from.Amount < req.Amount {
		return fmt.Errorf("%w: %s has %d, need %d",
			domain.ErrInsufficientFunds, req.From, from.Amount, req.Amount)
	}
	if req.Amount == 0 {
		return nil
	}

	// DEBIT source
	from.Amount -= req.Amount
	if err := tx.Put(domain.TokenAccountKey(req.Mint, req.From), from); err != nil {
		return fmt.Errorf("debit %s: %w", req.From, err)
	}
	if err := l.journal(tx, domain.LedgerEntry{
		Type:      domain.TxTransfer,
		EntryType: domain.EntryDebit,
		Mint:      req.Mint,
		Account:   req.From,
		Amount:    req.Amount,
		Memo:      req.Memo,
		Balance:   from.Amount,
	}); err != nil {
		return err
	}

	// CREDIT destination (re-read: From and To may be the same account)
	to, err := l.account(tx, req.Mint, req.To)
	if err != nil {
		return err
	}
	to.Amount += req.Amount // bounded by supply
	if err := tx.Put(domain.TokenAccountKey(req.Mint, req.To), to); err != nil {
		return fmt.Errorf("credit %s: %w", req.To, err)
	}
	return l.journal(tx, domain.LedgerEntry{
		Type:      domain.TxTransfer,
		EntryType: domain.EntryCredit,
		Mint:      req.Mint,
		Account:   req.To,
		Amount:    req.Amount,
		Memo:      req.Memo,
		Balance:   to.Amount,
	})
}

// History returns up to limit most recent ledger entries of an account,
// newest first.
func (l *Ledger) History(tx domain.Tx, mint, owner domain.Pubkey, limit int) ([]domain.LedgerEntry, error) {
	var all []domain.LedgerEntry
	err := tx.Scan(domain.LedgerPrefix(mint, owner), func(_ string, decode func(any) error) error {
		var e domain.LedgerEntry
		if err := decode(&e); err != nil {
			return err
		}
		all = append(all, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.LedgerEntry, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

// account loads a token account, returning an empty one if absent.
func (l *Ledger) account(tx domain.Tx, mint, owner domain.Pubkey) (domain.TokenAccount, error) {
	acct := domain.TokenAccount{Mint: mint, Owner: owner}
	err := tx.Get(domain.TokenAccountKey(mint, owner), &acct)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return acct, fmt.Errorf("load account %s: %w", owner, err)
	}
	return acct, nil
}

func (l *Ledger) journal(tx domain.Tx, e domain.LedgerEntry) error {
	id, err := nextID(tx, "ledger")
	if err != nil {
		return err
	}
	e.ID = id
	e.Timestamp = l.clock.Now()
	if err := tx.Put(domain.LedgerEntryKey(e.Mint, e.Account, id), e); err != nil {
		return fmt.Errorf("journal entry: %w", err)
	}
	return nil
}

// nextID increments a named counter stored alongside the records.
func nextID(tx domain.Tx, name string) (uint64, error) {
	var n uint64
	key := domain.SequenceKey(name)
	if err := tx.Get(key, &n); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("read sequence %s: %w", name, err)
	}
	n++
	if err := tx.Put(key, n); err != nil {
		return 0, fmt.Errorf("write sequence %s: %w", name, err)
	}
	return n, nil
}

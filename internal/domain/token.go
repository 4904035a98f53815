package domain

// Mint declares a token type.
type Mint struct {
	Address   Pubkey `json:"address"`
	Decimals  uint8  `json:"decimals"`
	Authority Pubkey `json:"authority"` // may mint new supply
	Supply    uint64 `json:"supply"`
}

// TokenAccount is one owner's balance of one mint. Custodial accounts are
// owned by a derived authority (see DeriveAuthority).
type TokenAccount struct {
	Mint   Pubkey `json:"mint"`
	Owner  Pubkey `json:"owner"`
	Amount uint64 `json:"amount"`
}

// TransferRequest moves Amount of Mint from From's account to To's.
// Authority must equal From: a signer for user accounts, the derived
// authority for custodial ones.
type TransferRequest struct {
	Mint      Pubkey
	From      Pubkey
	To        Pubkey
	Authority Pubkey
	Amount    uint64
	Decimals  uint8
	Memo      string
}

// EntryType is the side of a double-entry ledger line.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TxType categorizes a ledger line.
type TxType string

const (
	TxTransfer TxType = "TRANSFER"
	TxMint     TxType = "MINT"
)

// LedgerEntry is one side of a value movement. Every transfer writes a
// DEBIT on the source and a CREDIT on the destination.
type LedgerEntry struct {
	ID        uint64    `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Type      TxType    `json:"type"`
	EntryType EntryType `json:"entry_type"`
	Mint      Pubkey    `json:"mint"`
	Account   Pubkey    `json:"account"`
	Amount    uint64    `json:"amount"`
	Memo      string    `json:"memo,omitempty"`
	Balance   uint64    `json:"balance"` // account balance after this line
}

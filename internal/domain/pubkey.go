package domain

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLen is the byte length of an identity (ed25519 public key size).
const PubkeyLen = 32

// Pubkey identifies an owner, buyer, seller or custodial authority.
// The text form is base58.
type Pubkey [PubkeyLen]byte

// ParsePubkey decodes a base58 identity.
func ParsePubkey(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("%w: %v", ErrInvalidPubkey, err)
	}
	if len(raw) != PubkeyLen {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPubkey, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// PubkeyFromBytes copies a raw 32-byte key.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLen {
		return pk, fmt.Errorf("%w: length %d", ErrInvalidPubkey, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

func (p Pubkey) String() string { return base58.Encode(p[:]) }

// IsZero reports whether the key is unset.
func (p Pubkey) IsZero() bool { return p == Pubkey{} }

func (p Pubkey) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pubkey) UnmarshalText(b []byte) error {
	pk, err := ParsePubkey(string(b))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}

// Authority purposes for custodial balances.
const (
	PurposeVault      = "vault"
	PurposeRewardPool = "reward-pool"
)

// DeriveAuthority computes the custodial authority for a purpose and mint.
// No private key exists for the result; only the engine signs for it.
func DeriveAuthority(purpose string, mint Pubkey) Pubkey {
	h := sha256.New()
	h.Write([]byte("distri/authority"))
	h.Write([]byte(purpose))
	h.Write(mint[:])
	var pk Pubkey
	copy(pk[:], h.Sum(nil))
	return pk
}

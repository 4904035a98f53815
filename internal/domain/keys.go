package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ─── Composite Keys ─────────────────────────────────────────────────────────
// Every record is addressed by a deterministic key built from stable fields.
// Periods are zero-padded so prefix scans return them in order.

func MachineKey(owner Pubkey, id uuid.UUID) string {
	return "machine/" + owner.String() + "/" + id.String()
}

func OrderKey(buyer Pubkey, id uuid.UUID) string {
	return "order/" + buyer.String() + "/" + id.String()
}

func TaskKey(owner Pubkey, id uuid.UUID) string {
	return "task/" + owner.String() + "/" + id.String()
}

func RewardKey(period uint32) string {
	return fmt.Sprintf("reward/%010d", period)
}

func RewardMachineKey(period uint32, owner Pubkey, machineID uuid.UUID) string {
	return fmt.Sprintf("reward-machine/%010d/%s/%s", period, owner, machineID)
}

func StatisticsKey(owner Pubkey) string {
	return "statistics/" + owner.String()
}

func AiModelKey(owner Pubkey, name string) string {
	return "ai-model/" + owner.String() + "/" + nameHash(name)
}

func DatasetKey(owner Pubkey, name string) string {
	return "dataset/" + owner.String() + "/" + nameHash(name)
}

func MintKey(mint Pubkey) string {
	return "mint/" + mint.String()
}

func TokenAccountKey(mint, owner Pubkey) string {
	return "token/" + mint.String() + "/" + owner.String()
}

func LedgerEntryKey(mint, account Pubkey, id uint64) string {
	return fmt.Sprintf("ledger/%s/%s/%020d", mint, account, id)
}

func SequenceKey(name string) string {
	return "seq/" + name
}

// Prefixes for scans.
const (
	MachinePrefix = "machine/"
	OrderPrefix   = "order/"
	AiModelPrefix = "ai-model/"
	DatasetPrefix = "dataset/"
	RewardPrefix  = "reward/"
)

// OwnerPrefix narrows an entity prefix to one owner.
func OwnerPrefix(prefix string, owner Pubkey) string {
	return prefix + owner.String() + "/"
}

// LedgerPrefix lists one account's ledger lines.
func LedgerPrefix(mint, account Pubkey) string {
	return "ledger/" + mint.String() + "/" + account.String() + "/"
}

// nameHash keeps catalog keys fixed-length regardless of the name.
func nameHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

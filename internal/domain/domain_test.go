package domain

import (
	"encoding/json"
	"errors"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/google/uuid"
)

// ─── Pubkey ─────────────────────────────────────────────────────────────────

func TestPubkey_RoundTrip(t *testing.T) {
	var pk Pubkey
	for i := range pk {
		pk[i] = byte(i * 7)
	}
	got, err := ParsePubkey(pk.String())
	if err != nil {
		t.Fatalf("ParsePubkey() error: %v", err)
	}
	if got != pk {
		t.Errorf("round trip = %x, want %x", got, pk)
	}
}

func TestPubkey_ParseInvalid(t *testing.T) {
	for _, s := range []string{"", "0OIl", "abc", strings.Repeat("z", 60)} {
		if _, err := ParsePubkey(s); !errors.Is(err, ErrInvalidPubkey) {
			t.Errorf("ParsePubkey(%q) error = %v, want ErrInvalidPubkey", s, err)
		}
	}
}

func TestPubkey_JSON(t *testing.T) {
	in := struct {
		Owner Pubkey `json:"owner"`
	}{Owner: Pubkey{1, 2, 3}}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	if !strings.Contains(string(data), in.Owner.String()) {
		t.Errorf("JSON %s does not carry the base58 form", data)
	}

	var out struct {
		Owner Pubkey `json:"owner"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if out.Owner != in.Owner {
		t.Errorf("Owner = %s, want %s", out.Owner, in.Owner)
	}
}

func TestPubkey_IsZero(t *testing.T) {
	if !(Pubkey{}).IsZero() {
		t.Error("zero Pubkey should be zero")
	}
	if (Pubkey{1}).IsZero() {
		t.Error("non-zero Pubkey reported zero")
	}
}

func TestDeriveAuthority(t *testing.T) {
	mintA, mintB := Pubkey{1}, Pubkey{2}

	if DeriveAuthority(PurposeVault, mintA) != DeriveAuthority(PurposeVault, mintA) {
		t.Error("DeriveAuthority is not deterministic")
	}
	if DeriveAuthority(PurposeVault, mintA) == DeriveAuthority(PurposeRewardPool, mintA) {
		t.Error("vault and reward pool share an authority")
	}
	if DeriveAuthority(PurposeVault, mintA) == DeriveAuthority(PurposeVault, mintB) {
		t.Error("different mints share a vault authority")
	}
}

// ─── Keys ───────────────────────────────────────────────────────────────────

func TestKeys_Distinct(t *testing.T) {
	owner := Pubkey{9}
	id := uuid.MustParse("7f1d0c2e-4b8a-4f7c-9a51-3c2b1d0e9f8a")

	keys := []string{
		MachineKey(owner, id),
		OrderKey(owner, id),
		TaskKey(owner, id),
		RewardKey(1),
		RewardMachineKey(1, owner, id),
		StatisticsKey(owner),
		AiModelKey(owner, "llama"),
		DatasetKey(owner, "llama"),
		MintKey(owner),
		TokenAccountKey(owner, owner),
	}
	seen := map[string]bool{}
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate key %q", k)
		}
		seen[k] = true
	}
}

func TestKeys_Prefixes(t *testing.T) {
	owner := Pubkey{9}
	id := uuid.New()

	if k := MachineKey(owner, id); !strings.HasPrefix(k, OwnerPrefix(MachinePrefix, owner)) {
		t.Errorf("machine key %q outside owner prefix", k)
	}
	if k := OrderKey(owner, id); !strings.HasPrefix(k, OwnerPrefix(OrderPrefix, owner)) {
		t.Errorf("order key %q outside owner prefix", k)
	}
	if k := AiModelKey(owner, "m"); !strings.HasPrefix(k, OwnerPrefix(AiModelPrefix, owner)) {
		t.Errorf("ai model key %q outside owner prefix", k)
	}
	if k := LedgerEntryKey(owner, owner, 3); !strings.HasPrefix(k, LedgerPrefix(owner, owner)) {
		t.Errorf("ledger key %q outside account prefix", k)
	}
}

func TestKeys_RewardOrder(t *testing.T) {
	periods := []uint32{10, 9, 100, 0, math.MaxUint32}
	keys := make([]string, len(periods))
	for i, p := range periods {
		keys[i] = RewardKey(p)
	}
	sort.Strings(keys)
	want := []string{RewardKey(0), RewardKey(9), RewardKey(10), RewardKey(100), RewardKey(math.MaxUint32)}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("sorted reward keys = %v", keys)
		}
	}
}

func TestKeys_CatalogNameHashed(t *testing.T) {
	owner := Pubkey{9}
	long := strings.Repeat("n", NameMaxLength)
	if len(AiModelKey(owner, long)) != len(AiModelKey(owner, "x")) {
		t.Error("catalog key length depends on the name")
	}
	if AiModelKey(owner, "a") == AiModelKey(owner, "b") {
		t.Error("different names map to one key")
	}
}

// ─── Statuses ───────────────────────────────────────────────────────────────

func TestOrderStatus_IsTerminal(t *testing.T) {
	tests := map[OrderStatus]bool{
		OrderPreparing: false,
		OrderTraining:  false,
		OrderCompleted: true,
		OrderFailed:    true,
		OrderRefunded:  true,
		"BOGUS":        false,
	}
	for s, want := range tests {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestStatus_Valid(t *testing.T) {
	if !MachineRenting.Valid() || MachineStatus("OFFLINE").Valid() {
		t.Error("MachineStatus.Valid mismatch")
	}
	if !OrderRefunded.Valid() || OrderStatus("").Valid() {
		t.Error("OrderStatus.Valid mismatch")
	}
}

func TestOrder_EndTime(t *testing.T) {
	o := Order{StartTime: 1000, Duration: 5}
	if got := o.EndTime(); got != 1000+5*3600 {
		t.Errorf("EndTime() = %d", got)
	}
	o = Order{StartTime: math.MaxInt64 - 10, Duration: 1}
	if got := o.EndTime(); got != math.MaxInt64 {
		t.Errorf("EndTime() = %d, want saturated", got)
	}
}

// ─── Arithmetic ─────────────────────────────────────────────────────────────

func TestSaturating(t *testing.T) {
	if got := SaturatingMulU64(math.MaxUint64, 2); got != math.MaxUint64 {
		t.Errorf("SaturatingMulU64 = %d", got)
	}
	if got := SaturatingMulU64(100, 5); got != 500 {
		t.Errorf("SaturatingMulU64(100,5) = %d", got)
	}
	if got := SaturatingAddU64(math.MaxUint64, 1); got != math.MaxUint64 {
		t.Errorf("SaturatingAddU64 = %d", got)
	}
	if got := SaturatingSubU64(3, 5); got != 0 {
		t.Errorf("SaturatingSubU64 = %d", got)
	}
	if got := SaturatingAddU32(math.MaxUint32, 1); got != math.MaxUint32 {
		t.Errorf("SaturatingAddU32 = %d", got)
	}
	if got := SaturatingAddI64(math.MaxInt64, 1); got != math.MaxInt64 {
		t.Errorf("SaturatingAddI64 = %d", got)
	}
	if got := SaturatingAddI64(math.MinInt64, -1); got != math.MinInt64 {
		t.Errorf("SaturatingAddI64 negative = %d", got)
	}
	if got := SaturatingSubI64(0, math.MinInt64); got != math.MaxInt64 {
		t.Errorf("SaturatingSubI64 = %d", got)
	}
	if got := SaturatingMulI64(math.MaxInt64, 2); got != math.MaxInt64 {
		t.Errorf("SaturatingMulI64 = %d", got)
	}
	if got := SaturatingMulI64(math.MaxInt64, -2); got != math.MinInt64 {
		t.Errorf("SaturatingMulI64 negative = %d", got)
	}
}

func TestOverflowPolicy(t *testing.T) {
	if p, err := ParseOverflowPolicy(""); err != nil || p != OverflowSaturate {
		t.Errorf("ParseOverflowPolicy(\"\") = %q, %v", p, err)
	}
	if p, err := ParseOverflowPolicy("reject"); err != nil || p != OverflowReject {
		t.Errorf("ParseOverflowPolicy(reject) = %q, %v", p, err)
	}
	if _, err := ParseOverflowPolicy("wrap"); err == nil {
		t.Error("ParseOverflowPolicy(wrap) should fail")
	}

	if got, err := OverflowSaturate.Mul(math.MaxUint64, 3); err != nil || got != math.MaxUint64 {
		t.Errorf("saturate Mul = %d, %v", got, err)
	}
	if _, err := OverflowReject.Mul(math.MaxUint64, 3); !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("reject Mul error = %v", err)
	}
	if _, err := OverflowReject.Add(math.MaxUint64, 1); !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("reject Add error = %v", err)
	}
	if got, err := OverflowReject.Add(2, 3); err != nil || got != 5 {
		t.Errorf("reject Add(2,3) = %d, %v", got, err)
	}
}

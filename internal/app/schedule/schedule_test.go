package schedule

import (
	"math"
	"testing"
)

// ─── Periods ────────────────────────────────────────────────────────────────

func TestCurrentPeriod(t *testing.T) {
	s := New(DefaultConfig())
	genesis := DefaultConfig().GenesisTime

	tests := []struct {
		name string
		now  int64
		want uint32
	}{
		{"before genesis", genesis - 1, 0},
		{"far before genesis", math.MinInt64, 0},
		{"at genesis", genesis, 0},
		{"last second of period 0", genesis + 86399, 0},
		{"first second of period 1", genesis + 86400, 1},
		{"period 100", genesis + 100*86400 + 5, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.CurrentPeriod(tt.now); got != tt.want {
				t.Errorf("CurrentPeriod(%d) = %d, want %d", tt.now, got, tt.want)
			}
		})
	}
}

func TestCurrentPeriod_ClampsToMaxUint32(t *testing.T) {
	s := New(Config{GenesisTime: 0, PeriodDuration: 1})
	if got := s.CurrentPeriod(math.MaxInt64); got != math.MaxUint32 {
		t.Errorf("CurrentPeriod(MaxInt64) = %d, want %d", got, uint32(math.MaxUint32))
	}
}

func TestCurrentPeriod_Monotonic(t *testing.T) {
	s := New(DefaultConfig())
	genesis := DefaultConfig().GenesisTime

	prev := s.CurrentPeriod(genesis - 86400)
	for now := genesis - 86400; now < genesis+30*86400; now += 3607 {
		got := s.CurrentPeriod(now)
		if got < prev {
			t.Fatalf("CurrentPeriod(%d) = %d, decreased from %d", now, got, prev)
		}
		prev = got
	}
}

func TestStartTime(t *testing.T) {
	s := New(DefaultConfig())
	genesis := DefaultConfig().GenesisTime

	if got := s.StartTime(0); got != genesis {
		t.Errorf("StartTime(0) = %d, want %d", got, genesis)
	}
	if got := s.StartTime(10); got != genesis+10*86400 {
		t.Errorf("StartTime(10) = %d, want %d", got, genesis+10*86400)
	}
	for _, p := range []uint32{0, 1, 7, 365, 10_000} {
		if got := s.CurrentPeriod(s.StartTime(p)); got != p {
			t.Errorf("CurrentPeriod(StartTime(%d)) = %d", p, got)
		}
	}
}

func TestStartTime_Saturates(t *testing.T) {
	s := New(Config{GenesisTime: math.MaxInt64 - 10, PeriodDuration: math.MaxInt64})
	if got := s.StartTime(math.MaxUint32); got != math.MaxInt64 {
		t.Errorf("StartTime saturated = %d, want MaxInt64", got)
	}
}

// ─── Pool Decay ─────────────────────────────────────────────────────────────

func TestPool_Genesis(t *testing.T) {
	s := New(DefaultConfig())
	for p := uint32(0); p < 4; p++ {
		if got := s.Pool(p); got != 65_750_000_000_000 {
			t.Errorf("Pool(%d) = %d, want genesis pool", p, got)
		}
	}
	// First decay happens at period 4.
	if got := s.Pool(4); got != 65_750_000_000_000*9737/10000 {
		t.Errorf("Pool(4) = %d, want %d", got, uint64(65_750_000_000_000*9737/10000))
	}
}

func TestPool_MatchesNaiveDecay(t *testing.T) {
	s := New(DefaultConfig())
	// Covers every checkpoint boundary and runs past the end of the table
	// (300 decays = period 1200).
	for p := uint32(0); p <= 1600; p++ {
		if got, want := s.Pool(p), s.NaivePool(p); got != want {
			t.Fatalf("Pool(%d) = %d, naive decay = %d", p, got, want)
		}
	}
}

func TestPool_NonIncreasing(t *testing.T) {
	s := New(DefaultConfig())
	prev := s.Pool(0)
	for p := uint32(1); p <= 2000; p++ {
		got := s.Pool(p)
		if got > prev {
			t.Fatalf("Pool(%d) = %d > Pool(%d) = %d", p, got, p-1, prev)
		}
		prev = got
	}
}

func TestPool_FarFuture(t *testing.T) {
	s := New(DefaultConfig())
	if got := s.Pool(math.MaxUint32); got != 0 {
		t.Errorf("Pool(MaxUint32) = %d, want fully decayed 0", got)
	}
}

func TestPool_SmallGenesis(t *testing.T) {
	s := New(Config{GenesisPool: 1000, DecayPeriods: 1, DecayNumerator: 1, DecayDenominator: 2})
	want := []uint64{1000, 500, 250, 125, 62, 31}
	for p, w := range want {
		if got := s.Pool(uint32(p)); got != w {
			t.Errorf("Pool(%d) = %d, want %d", p, got, w)
		}
	}
}

func TestNew_ZeroDivisorsFallBack(t *testing.T) {
	s := New(Config{GenesisPool: 100})
	cfg := s.Config()
	if cfg.PeriodDuration != 86400 || cfg.DecayPeriods != 4 || cfg.DecayDenominator != 10000 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

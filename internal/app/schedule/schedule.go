// Package schedule computes reward periods and the decaying reward pool.
// Everything here is a pure function of time and configuration.
//
//	period(now)    = (now − genesis) / period_duration
//	pool(period)   = genesis_pool decayed once every decay_periods periods
//	start(period)  = genesis + period × period_duration
package schedule

import (
	"math"
	"sync"

	"github.com/distri-network/distri/internal/domain"
)

// CheckpointEvery is the number of decay steps between cached pool values.
const CheckpointEvery = 10

// CheckpointCount is the size of the checkpoint table (0..300 decays).
const CheckpointCount = 31

// Config holds the schedule parameters.
type Config struct {
	GenesisTime      int64  `toml:"genesis_time" json:"genesis_time"`
	PeriodDuration   int64  `toml:"period_duration" json:"period_duration"`
	DecayPeriods     uint32 `toml:"decay_periods" json:"decay_periods"`
	DecayNumerator   uint64 `toml:"decay_numerator" json:"decay_numerator"`
	DecayDenominator uint64 `toml:"decay_denominator" json:"decay_denominator"`
	GenesisPool      uint64 `toml:"genesis_pool" json:"genesis_pool"`
}

// DefaultConfig returns the network parameters.
// Period 0 starts 2024-02-27 00:00:00 UTC; periods are one day long.
func DefaultConfig() Config {
	return Config{
		GenesisTime:      1708992000,
		PeriodDuration:   86400,
		DecayPeriods:     4,
		DecayNumerator:   9737,
		DecayDenominator: 10000,
		GenesisPool:      65_750_000_000_000,
	}
}

// Schedule evaluates a Config. Safe for concurrent use.
type Schedule struct {
	cfg Config

	once        sync.Once
	checkpoints [CheckpointCount]uint64
}

// New creates a schedule. Zero-valued divisors fall back to defaults so a
// partially filled config can never divide by zero.
func New(cfg Config) *Schedule {
	def := DefaultConfig()
	if cfg.PeriodDuration <= 0 {
		cfg.PeriodDuration = def.PeriodDuration
	}
	if cfg.DecayPeriods == 0 {
		cfg.DecayPeriods = def.DecayPeriods
	}
	if cfg.DecayDenominator == 0 {
		cfg.DecayNumerator = def.DecayNumerator
		cfg.DecayDenominator = def.DecayDenominator
	}
	return &Schedule{cfg: cfg}
}

// Config returns the effective parameters.
func (s *Schedule) Config() Config { return s.cfg }

// CurrentPeriod returns the period containing now. Times before genesis
// map to period 0.
func (s *Schedule) CurrentPeriod(now int64) uint32 {
	elapsed := domain.SaturatingSubI64(now, s.cfg.GenesisTime)
	if elapsed <= 0 {
		return 0
	}
	period := elapsed / s.cfg.PeriodDuration
	if period > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(period)
}

// StartTime returns the first second of period.
func (s *Schedule) StartTime(period uint32) int64 {
	return domain.SaturatingAddI64(
		domain.SaturatingMulI64(s.cfg.PeriodDuration, int64(period)),
		s.cfg.GenesisTime,
	)
}

// Pool returns the reward pool of period. The result is exactly what
// decaying the genesis pool step by step would give: checkpoints are
// produced by that same iteration.
func (s *Schedule) Pool(period uint32) uint64 {
	s.once.Do(s.buildCheckpoints)

	decays := uint64(period / s.cfg.DecayPeriods)
	idx := decays / CheckpointEvery
	if idx > CheckpointCount-1 {
		idx = CheckpointCount - 1
	}
	remaining := decays - idx*CheckpointEvery

	pool := s.checkpoints[idx]
	for i := uint64(0); i < remaining && pool > 0; i++ {
		pool = s.decay(pool)
	}
	return pool
}

// NaivePool decays from the genesis pool one step at a time. It is the
// reference Pool must agree with.
func (s *Schedule) NaivePool(period uint32) uint64 {
	decays := uint64(period / s.cfg.DecayPeriods)
	pool := s.cfg.GenesisPool
	for i := uint64(0); i < decays && pool > 0; i++ {
		pool = s.decay(pool)
	}
	return pool
}

func (s *Schedule) decay(pool uint64) uint64 {
	return domain.SaturatingMulU64(pool, s.cfg.DecayNumerator) / s.cfg.DecayDenominator
}

func (s *Schedule) buildCheckpoints() {
	pool := s.cfg.GenesisPool
	for i := range s.checkpoints {
		s.checkpoints[i] = pool
		for j := 0; j < CheckpointEvery; j++ {
			pool = s.decay(pool)
		}
	}
}

package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/distri-network/distri/internal/domain"
)

// genesisKey marks a store that has been seeded.
const genesisKey = "genesis"

// Genesis describes the initial token distribution of a network.
type Genesis struct {
	// Decimals must match the node's mint when set.
	Decimals   *uint8           `yaml:"decimals,omitempty" json:"decimals,omitempty"`
	RewardPool uint64           `yaml:"reward_pool" json:"reward_pool"`
	Balances   []GenesisBalance `yaml:"balances" json:"balances"`
}

// GenesisBalance is one initial allocation.
type GenesisBalance struct {
	Owner  domain.Pubkey `yaml:"owner" json:"owner"`
	Amount uint64        `yaml:"amount" json:"amount"`
}

// UnmarshalYAML accepts the owner as a base58 string.
func (b *GenesisBalance) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		Owner  string `yaml:"owner"`
		Amount uint64 `yaml:"amount"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	owner, err := domain.ParsePubkey(raw.Owner)
	if err != nil {
		return fmt.Errorf("line %d: owner: %w", node.Line, err)
	}
	b.Owner, b.Amount = owner, raw.Amount
	return nil
}

// LoadGenesis reads a YAML genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis %s: %w", path, err)
	}
	return &g, nil
}

// ApplyGenesis mints the initial balances and funds the reward pool in one
// transaction. The node key must be the mint authority. A store can be
// seeded only once.
func (d *Daemon) ApplyGenesis(ctx context.Context, g *Genesis) error {
	mint := d.Engine.Mint()
	authority := d.Keypair.Pubkey()

	err := d.Store.Update(ctx, func(tx domain.Tx) error {
		if err := tx.Create(genesisKey, authority, g); err != nil {
			if errors.Is(err, domain.ErrExists) {
				return fmt.Errorf("genesis already applied: %w", err)
			}
			return err
		}
		if g.Decimals != nil {
			decimals, err := d.Ledger.Decimals(tx, mint)
			if err != nil {
				return err
			}
			if decimals != *g.Decimals {
				return fmt.Errorf("genesis declares %d decimals, mint has %d: %w",
					*g.Decimals, decimals, domain.ErrDecimalsMismatch)
			}
		}
		for _, b := range g.Balances {
			if err := d.Ledger.MintTo(tx, mint, b.Owner, authority, b.Amount); err != nil {
				return fmt.Errorf("genesis balance of %s: %w", b.Owner, err)
			}
		}
		if err := d.Ledger.MintTo(tx, mint, d.Engine.RewardPool(), authority, g.RewardPool); err != nil {
			return fmt.Errorf("genesis reward pool: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	d.Log.Info("genesis applied",
		zap.Int("balances", len(g.Balances)),
		zap.Uint64("reward_pool", g.RewardPool))
	return nil
}

package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/distri-network/distri/internal/daemon"
)

func init() {
	rootCmd.AddCommand(genesisCmd)
}

var genesisCmd = &cobra.Command{
	Use:   "genesis <file.yaml>",
	Short: "Seed initial balances and the reward pool from a YAML file",
	Long: `Seed a fresh store from a genesis file:

  decimals: 9
  reward_pool: 65750000000000
  balances:
    - owner: <base58 pubkey>
      amount: 1000000000

The node key must be the mint authority. A store is seeded once.`,
	Args: cobra.ExactArgs(1),
	RunE: runGenesis,
}

func runGenesis(cmd *cobra.Command, args []string) error {
	g, err := daemon.LoadGenesis(args[0])
	if err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.ApplyGenesis(context.Background(), g); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Seeded %d balances and a reward pool of %d.\n", len(g.Balances), g.RewardPool)
	return nil
}

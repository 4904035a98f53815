package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/distri-network/distri/internal/domain"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
}

var balanceCmd = &cobra.Command{
	Use:   "balance [pubkey|vault|reward-pool]",
	Short: "Show a token balance (defaults to the node key)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	owner := d.Keypair.Pubkey()
	if len(args) == 1 {
		switch args[0] {
		case "vault":
			owner = d.Engine.Vault()
		case "reward-pool":
			owner = d.Engine.RewardPool()
		default:
			if owner, err = domain.ParsePubkey(args[0]); err != nil {
				return err
			}
		}
	}

	bal, err := d.Engine.Balance(context.Background(), owner)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: %d (mint %s)\n", owner, bal, d.Engine.Mint())
	return nil
}

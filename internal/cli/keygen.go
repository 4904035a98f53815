package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/distri-network/distri/internal/daemon"
	"github.com/distri-network/distri/internal/security"
)

func init() {
	rootCmd.AddCommand(keygenCmd)
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Create the node keypair, or print it if it already exists",
	Args:  cobra.NoArgs,
	RunE:  runKeygen,
}

func runKeygen(cmd *cobra.Command, args []string) error {
	home := daemon.DistriHome()
	kp, err := security.LoadOrCreateKeypair(home)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Public key: %s\n", kp.Pubkey())
	fmt.Fprintf(stdout, "Key files:  %s\n", filepath.Join(home, "keys"))
	return nil
}

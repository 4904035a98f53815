package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/distri-network/distri/internal/app/market"
	"github.com/distri-network/distri/internal/domain"
)

func init() {
	machinesCmd.Flags().StringVar(&machinesOwner, "owner", "", "Only machines of this owner (base58 pubkey)")
	machinesCmd.Flags().StringVar(&machinesStatus, "status", "", "Only machines in this status (IDLE, FOR_RENT, RENTING)")
	rootCmd.AddCommand(machinesCmd)
}

var (
	machinesOwner  string
	machinesStatus string
)

var machinesCmd = &cobra.Command{
	Use:     "machines",
	Aliases: []string{"ls"},
	Short:   "List registered machines",
	Args:    cobra.NoArgs,
	RunE:    runMachines,
}

func runMachines(cmd *cobra.Command, args []string) error {
	var f market.MachineFilter
	if machinesOwner != "" {
		owner, err := domain.ParsePubkey(machinesOwner)
		if err != nil {
			return fmt.Errorf("--owner: %w", err)
		}
		f.Owner = owner
	}
	if machinesStatus != "" {
		f.Status = domain.MachineStatus(machinesStatus)
		if !f.Status.Valid() {
			return fmt.Errorf("--status: unknown status %q", machinesStatus)
		}
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	machines, err := d.Engine.ListMachines(context.Background(), f)
	if err != nil {
		return err
	}
	if len(machines) == 0 {
		fmt.Fprintln(stdout, "No machines registered.")
		return nil
	}

	w := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OWNER\tUUID\tSTATUS\tPRICE/H\tMAX H\tDONE\tFAILED\tSCORE")
	for _, m := range machines {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			m.Owner, m.UUID, m.Status, m.Price, m.MaxDuration,
			m.CompletedCount, m.FailedCount, m.Score)
	}
	return w.Flush()
}

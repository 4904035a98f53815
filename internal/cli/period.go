package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/distri-network/distri/internal/app/market"
)

func init() {
	rootCmd.AddCommand(periodCmd)
}

var periodCmd = &cobra.Command{
	Use:   "period [number]",
	Short: "Show the current reward period, or a given one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPeriod,
}

func runPeriod(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	var info market.PeriodInfo
	if len(args) == 1 {
		p, err := strconv.ParseUint(args[0], 10, 32)
		if err != nil {
			return fmt.Errorf("period %q: %w", args[0], err)
		}
		info = d.Engine.Period(uint32(p))
	} else {
		info = d.Engine.CurrentPeriod()
	}

	fmt.Fprintf(stdout, "Period: %d\n", info.Period)
	fmt.Fprintf(stdout, "Start:  %s\n", time.Unix(info.StartTime, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(stdout, "End:    %s\n", time.Unix(info.EndTime, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(stdout, "Pool:   %d\n", info.Pool)
	return nil
}

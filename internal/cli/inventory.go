package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/inventory"
)

// NewInventoryCommand creates the inventory command.
func NewInventoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Show stock levels",
		Long: `Show remaining stock of the profile's medications, with the estimated
days left at the current schedules' rate.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			items, err := s.tracker.InventoryStatus(s.profile)
			if err != nil {
				return s.out.Fail(ExitFailure, "inventory status", err)
			}
			if items == nil {
				items = []inventory.Status{}
			}
			if s.out.Format == "json" {
				return s.out.Success(items)
			}
			if len(items) == 0 {
				fmt.Fprintln(s.out.Writer, "No inventory records")
				return nil
			}
			for _, it := range items {
				fmt.Fprintf(s.out.Writer, "  %-20s %g %s [%s]", it.MedicationName, it.Item.Quantity, it.Item.Unit, it.Level)
				if it.DaysRemaining != nil {
					fmt.Fprintf(s.out.Writer, " ~%.1f day(s)", *it.DaysRemaining)
				}
				fmt.Fprintln(s.out.Writer)
			}
			return nil
		},
	}
	cmd.AddCommand(newInventorySetCommand(rootOpts))
	return cmd
}

func newInventorySetCommand(rootOpts *RootOptions) *cobra.Command {
	var adj inventory.Adjustment
	cmd := &cobra.Command{
		Use:   "set <medication-id> <quantity>",
		Short: "Set a medication's stock",
		Long: `Set the absolute quantity on hand after a refill or a count. A record is
created when the medication has none and --unit is given.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			q, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return s.out.Fail(ExitCommandError, "invalid quantity", err)
			}
			a := adj
			a.ProfileID = s.profile
			a.MedicationID = args[0]
			a.Quantity = q

			ch, err := s.tracker.AdjustInventory(cmd.Context(), a)
			if err != nil {
				return s.out.Fail(ExitFailure, "set inventory", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(ch)
			}
			fmt.Fprintf(s.out.Writer, "✓ stock %g → %g (%s)\n", ch.Before, ch.After, ch.Level)
			return nil
		},
	}
	cmd.Flags().StringVar(&adj.Unit, "unit", "", "unit for a new record (tablet, ml, ...)")
	cmd.Flags().Float64Var(&adj.LowStockThreshold, "threshold", 0, "low-stock threshold")
	cmd.Flags().StringVar(&adj.Reason, "reason", "", "why the stock changed")
	return cmd
}

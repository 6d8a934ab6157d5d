package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/guardian"
)

// AlertsResult is the output of the alerts command.
type AlertsResult struct {
	Pending []guardian.Alert `json:"pending"`
	// Triggered is set with --trigger: the alerts notified by this run.
	Triggered []guardian.Alert `json:"triggered,omitempty"`
}

// NewAlertsCommand creates the alerts command.
func NewAlertsCommand(rootOpts *RootOptions) *cobra.Command {
	var trigger bool
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List missed-dose alerts",
		Long: `List today's doses still unactioned past the profile's grace and follow-up
windows. Only profiles with guardian mode enabled produce alerts.

With --trigger, alerts not yet notified are sent to the profile's guardian
contacts and recorded. Run it from a scheduler to poll.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			var res AlertsResult
			if trigger {
				if res.Triggered, err = s.tracker.TriggerAlerts(cmd.Context(), s.profile); err != nil {
					return s.out.Fail(ExitFailure, "trigger alerts", err)
				}
				s.out.VerboseLog("Triggered %d alert(s)", len(res.Triggered))
			}
			if res.Pending, err = s.tracker.PendingAlerts(s.profile); err != nil {
				return s.out.Fail(ExitFailure, "list alerts", err)
			}
			if res.Pending == nil {
				res.Pending = []guardian.Alert{}
			}

			if s.out.Format == "json" {
				return s.out.Success(res)
			}
			if trigger {
				fmt.Fprintf(s.out.Writer, "Notified %d new alert(s)\n", len(res.Triggered))
			}
			if len(res.Pending) == 0 {
				fmt.Fprintln(s.out.Writer, "No missed doses")
				return nil
			}
			loc := s.location()
			for _, a := range res.Pending {
				fmt.Fprintf(s.out.Writer, "  ! %s planned %s\n      %s\n",
					a.MedicationName, a.PlannedAt.In(loc).Format("15:04"), a.DoseInstanceID)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&trigger, "trigger", false, "notify guardian contacts of new alerts")
	return cmd
}

// AckResult is the output of the ack command.
type AckResult struct {
	DoseInstanceID string `json:"doseInstanceId"`
	// Acknowledged is false when the occurrence was already acknowledged.
	Acknowledged bool `json:"acknowledged"`
}

// NewAckCommand creates the ack command.
func NewAckCommand(rootOpts *RootOptions) *cobra.Command {
	var alertID string
	cmd := &cobra.Command{
		Use:           "ack <occurrence-id>",
		Short:         "Acknowledge a missed-dose alert",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			acked, err := s.tracker.AcknowledgeAlert(cmd.Context(), s.profile, args[0], alertID)
			if err != nil {
				return s.out.Fail(ExitFailure, "acknowledge alert", err)
			}
			res := AckResult{DoseInstanceID: args[0], Acknowledged: acked}
			if s.out.Format == "json" {
				return s.out.Success(res)
			}
			if acked {
				fmt.Fprintf(s.out.Writer, "✓ acknowledged %s\n", args[0])
			} else {
				fmt.Fprintf(s.out.Writer, "%s was already acknowledged\n", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&alertID, "alert-id", "", "alert id to record with the acknowledgement")
	return cmd
}

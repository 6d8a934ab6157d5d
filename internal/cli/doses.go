package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/dose"
	"github.com/roach88/medtrack/internal/model"
)

// DayResult is the output of the doses command.
type DayResult struct {
	ProfileID string          `json:"profileId"`
	Date      model.Date      `json:"date"`
	Doses     []dose.Instance `json:"doses"`
}

// NewDosesCommand creates the doses command.
func NewDosesCommand(rootOpts *RootOptions) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "doses",
		Short: "List the day's dose occurrences",
		Long: `List every planned occurrence of the profile's active schedules on a day,
with its status derived from the action log.

Occurrence ids printed here are what take, skip, snooze and undo accept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoses(rootOpts, date, cmd)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to list (YYYY-MM-DD, default today)")
	return cmd
}

func runDoses(opts *RootOptions, date string, cmd *cobra.Command) error {
	s, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	d, err := s.parseDate(date)
	if err != nil {
		return s.out.Fail(ExitCommandError, "invalid --date", err)
	}
	doses, err := s.tracker.DosesForDate(s.profile, d)
	if err != nil {
		return s.out.Fail(ExitFailure, "list doses", err)
	}
	if doses == nil {
		doses = []dose.Instance{}
	}
	res := DayResult{ProfileID: profileOf(s), Date: d, Doses: doses}

	if s.out.Format == "json" {
		return s.out.Success(res)
	}
	writeDay(s.out.Writer, res.Date, res.Doses, s.location())
	return nil
}

func profileOf(s *session) string {
	if s.profile != "" {
		return s.profile
	}
	return s.tracker.ActiveProfileID()
}

// writeDay renders a day view as text.
func writeDay(w io.Writer, date model.Date, doses []dose.Instance, loc *time.Location) {
	fmt.Fprintf(w, "Doses for %s\n", date)
	if len(doses) == 0 {
		fmt.Fprintln(w, "  (none planned)")
		return
	}
	for _, d := range doses {
		fmt.Fprintf(w, "  %s  %-8s %s", d.EffectiveAt.In(loc).Format("15:04"), d.Status, d.MedicationName)
		if d.DoseAmount > 0 {
			fmt.Fprintf(w, " %g %s", d.DoseAmount, d.DoseUnit)
		}
		switch {
		case d.Status == dose.StatusSnoozed && d.SnoozedUntil != nil:
			fmt.Fprintf(w, " (until %s)", d.SnoozedUntil.In(loc).Format("15:04"))
		case d.IsLate:
			fmt.Fprint(w, " (late)")
		}
		fmt.Fprintf(w, "\n      %s\n", d.ID)
	}
}

// ActionResult is the output of take, skip, snooze and undo.
type ActionResult struct {
	Action  dose.ActionKind `json:"action"`
	Outcome *dose.Outcome   `json:"outcome"`
}

func newActionCommand(rootOpts *RootOptions, kind dose.ActionKind, short, long string) (*cobra.Command, *dose.Action, *string) {
	a := &dose.Action{Kind: kind}
	var at string
	cmd := &cobra.Command{
		Use:           string(kind) + " <occurrence-id>",
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		act := *a
		act.InstanceID = args[0]
		return runAction(rootOpts, act, at, cmd)
	}
	return cmd, a, &at
}

// NewTakeCommand creates the take command.
func NewTakeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd, _, at := newActionCommand(rootOpts, dose.ActionTake,
		"Mark an occurrence taken",
		`Record that a planned dose was taken. Stock is decremented by the
schedule's dose amount when automatic decrement is enabled.`)
	cmd.Flags().StringVar(at, "at", "", "when it was taken (HH:mm today or RFC 3339, default now)")
	return cmd
}

// NewSkipCommand creates the skip command.
func NewSkipCommand(rootOpts *RootOptions) *cobra.Command {
	cmd, a, at := newActionCommand(rootOpts, dose.ActionSkip,
		"Mark an occurrence skipped",
		`Record that a planned dose was deliberately not taken.`)
	cmd.Flags().StringVar(at, "at", "", "when it was skipped (HH:mm today or RFC 3339, default now)")
	cmd.Flags().StringVar(&a.Reason, "reason", "", "why the dose was skipped")
	return cmd
}

// NewSnoozeCommand creates the snooze command.
func NewSnoozeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd, a, _ := newActionCommand(rootOpts, dose.ActionSnooze,
		"Postpone an occurrence",
		`Postpone a pending dose. The occurrence keeps its id; its effective time
moves to the end of the snooze. Snoozing again replaces the earlier snooze.`)
	cmd.Flags().DurationVar(&a.SnoozeFor, "for", 0, "snooze length (default from config snooze_minutes)")
	return cmd
}

// NewUndoCommand creates the undo command.
func NewUndoCommand(rootOpts *RootOptions) *cobra.Command {
	cmd, _, _ := newActionCommand(rootOpts, dose.ActionUndo,
		"Undo the last action on an occurrence",
		`Neutralize the take, skip or snooze that decided an occurrence's status.
The event stays in the log; an undo event marks it. Stock decremented by a
take is restored.`)
	return cmd
}

func runAction(opts *RootOptions, a dose.Action, at string, cmd *cobra.Command) error {
	s, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if a.At, err = s.parseAt(at); err != nil {
		return s.out.Fail(ExitCommandError, "invalid --at", err)
	}
	if a.Kind == dose.ActionSnooze && a.SnoozeFor == 0 {
		a.SnoozeFor = s.cfg.Snooze()
	}

	s.out.VerboseLog("Recording %s on %s", a.Kind, a.InstanceID)
	outcome, err := s.tracker.RecordDoseAction(cmd.Context(), a)
	if err != nil {
		return s.out.Fail(ExitFailure, string(a.Kind), err)
	}

	if s.out.Format == "json" {
		return s.out.Success(ActionResult{Action: a.Kind, Outcome: outcome})
	}
	inst := outcome.Instance
	fmt.Fprintf(s.out.Writer, "✓ %s: %s %s is now %s\n", a.Kind, inst.MedicationName,
		inst.PlannedAt.In(s.location()).Format("2006-01-02 15:04"), inst.Status)
	writeInventoryChange(s.out.Writer, outcome)
	return nil
}

func writeInventoryChange(w io.Writer, o *dose.Outcome) {
	if o.Inventory == nil {
		return
	}
	fmt.Fprintf(w, "  stock %g → %g (%s)\n", o.Inventory.Before, o.Inventory.After, o.Inventory.Level)
}

// NewPRNCommand creates the prn command group.
func NewPRNCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prn",
		Short: "Log and list as-needed doses",
	}
	cmd.AddCommand(newPRNTakeCommand(rootOpts))
	cmd.AddCommand(newPRNListCommand(rootOpts))
	cmd.AddCommand(newPRNUndoCommand(rootOpts))
	return cmd
}

func newPRNTakeCommand(rootOpts *RootOptions) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "take <schedule-id>",
		Short: "Log an as-needed dose",
		Long: `Log a dose against an as-needed schedule. The schedule's minimum interval
and daily maximum are enforced.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			when, err := s.parseAt(at)
			if err != nil {
				return s.out.Fail(ExitCommandError, "invalid --at", err)
			}
			outcome, err := s.tracker.RecordPRN(cmd.Context(), args[0], when)
			if err != nil {
				return s.out.Fail(ExitFailure, "log as-needed dose", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(outcome)
			}
			fmt.Fprintf(s.out.Writer, "✓ logged as-needed dose %s\n", outcome.Event.ID)
			writeInventoryChange(s.out.Writer, outcome)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "when it was taken (HH:mm today or RFC 3339, default now)")
	return cmd
}

func newPRNListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list <schedule-id>",
		Short:         "List as-needed doses of a schedule",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			doses := s.tracker.PRNLog(args[0])
			if doses == nil {
				doses = []dose.PRNDose{}
			}
			if s.out.Format == "json" {
				return s.out.Success(doses)
			}
			if len(doses) == 0 {
				fmt.Fprintln(s.out.Writer, "No as-needed doses logged")
				return nil
			}
			loc := s.location()
			for _, d := range doses {
				fmt.Fprintf(s.out.Writer, "  %s  %g  %s\n", d.TakenAt.In(loc).Format("2006-01-02 15:04"), d.Amount, d.EventID)
			}
			return nil
		},
	}
}

func newPRNUndoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "undo <event-id>",
		Short:         "Undo a logged as-needed dose",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			outcome, err := s.tracker.UndoPRN(cmd.Context(), args[0])
			if err != nil {
				return s.out.Fail(ExitFailure, "undo as-needed dose", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(outcome)
			}
			fmt.Fprintf(s.out.Writer, "✓ undid as-needed dose %s\n", args[0])
			writeInventoryChange(s.out.Writer, outcome)
			return nil
		},
	}
}

// NewAdherenceCommand creates the adherence command.
func NewAdherenceCommand(rootOpts *RootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:           "adherence",
		Short:         "Summarise taken, skipped and missed doses over a range",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			end, err := s.parseDate(to)
			if err != nil {
				return s.out.Fail(ExitCommandError, "invalid --to", err)
			}
			start := end.AddDays(-6)
			if from != "" {
				if start, err = model.ParseDate(from); err != nil {
					return s.out.Fail(ExitCommandError, "invalid --from", err)
				}
			}
			if end.Before(start) {
				return s.out.Fail(ExitCommandError, "invalid range", fmt.Errorf("--to %s precedes --from %s", end, start))
			}

			a, err := s.tracker.Adherence(s.profile, start, end)
			if err != nil {
				return s.out.Fail(ExitFailure, "adherence", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(a)
			}
			fmt.Fprintf(s.out.Writer, "Adherence %s to %s\n", a.From, a.To)
			fmt.Fprintf(s.out.Writer, "  planned %d, taken %d (%d late), skipped %d, missed %d\n",
				a.Planned, a.Taken, a.Late, a.Skipped, a.Missed)
			fmt.Fprintf(s.out.Writer, "  ratio %.0f%%\n", a.Ratio*100)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (YYYY-MM-DD, default six days before --to)")
	cmd.Flags().StringVar(&to, "to", "", "last day (YYYY-MM-DD, default today)")
	return cmd
}

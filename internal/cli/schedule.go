package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/model"
)

// ScheduleFlags holds flags for schedule add.
type ScheduleFlags struct {
	ID         string
	SchemeJSON string
	Times      []string
	Start      string
	End        string
	Dose       float64
	Unit       string
}

// NewScheduleCommand creates the schedule command group.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage dosing schedules",
	}
	cmd.AddCommand(newScheduleAddCommand(rootOpts))
	cmd.AddCommand(newScheduleListCommand(rootOpts))
	cmd.AddCommand(newSchedulePauseCommand(rootOpts, "pause", true))
	cmd.AddCommand(newSchedulePauseCommand(rootOpts, "resume", false))
	return cmd
}

func newScheduleAddCommand(rootOpts *RootOptions) *cobra.Command {
	var f ScheduleFlags
	cmd := &cobra.Command{
		Use:   "add <medication-id>",
		Short: "Add a schedule for a medication",
		Long: `Add a recurrence rule for a medication.

--times is shorthand for a daily scheme. Other rules are given as a tagged
JSON object with --scheme, for example:

  {"type":"weekly","weekdays":[1,3,5],"times":["08:00"]}
  {"type":"intervalDays","interval":2,"times":["09:00"]}
  {"type":"intervalHours","interval":6}
  {"type":"courseDays","days":7,"times":["08:00","20:00"]}
  {"type":"prn","minIntervalHours":4,"maxPerDay":3}`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleAdd(rootOpts, f, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&f.ID, "id", "", "schedule id (default generated)")
	cmd.Flags().StringVar(&f.SchemeJSON, "scheme", "", "recurrence rule as tagged JSON")
	cmd.Flags().StringSliceVar(&f.Times, "times", nil, "daily times, HH:mm (comma separated)")
	cmd.Flags().StringVar(&f.Start, "start", "", "first day (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&f.End, "end", "", "last day (YYYY-MM-DD, default open-ended)")
	cmd.Flags().Float64Var(&f.Dose, "dose", 1, "amount per occurrence")
	cmd.Flags().StringVar(&f.Unit, "unit", "", "dose unit (tablet, ml, ...)")
	return cmd
}

func (f ScheduleFlags) scheme() (model.Scheme, error) {
	switch {
	case f.SchemeJSON != "" && len(f.Times) > 0:
		return nil, errors.New("--scheme and --times are mutually exclusive")
	case f.SchemeJSON != "":
		return model.UnmarshalScheme([]byte(f.SchemeJSON))
	case len(f.Times) > 0:
		return model.Daily{TimesPerDay: len(f.Times), Times: f.Times}, nil
	}
	return nil, errors.New("one of --scheme or --times is required")
}

func runScheduleAdd(opts *RootOptions, f ScheduleFlags, medicationID string, cmd *cobra.Command) error {
	s, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	sc, err := f.scheme()
	if err != nil {
		return s.out.Fail(ExitCommandError, "invalid scheme", err)
	}
	start, err := s.parseDate(f.Start)
	if err != nil {
		return s.out.Fail(ExitCommandError, "invalid --start", err)
	}
	sched := model.Schedule{
		ID:           f.ID,
		MedicationID: medicationID,
		Scheme:       sc,
		StartDate:    start,
		DoseAmount:   f.Dose,
		DoseUnit:     f.Unit,
	}
	if f.End != "" {
		end, err := model.ParseDate(f.End)
		if err != nil {
			return s.out.Fail(ExitCommandError, "invalid --end", err)
		}
		sched.EndDate = &end
	}

	created, err := s.tracker.CreateSchedule(cmd.Context(), sched)
	if err != nil {
		var verrs model.ValidationErrors
		if errors.As(err, &verrs) {
			if outErr := s.out.Error(ErrCodeInvalidInput, err.Error(), verrs); outErr != nil {
				return outErr
			}
			return WrapExitError(ExitCommandError, "create schedule", err)
		}
		return s.out.Fail(ExitFailure, "create schedule", err)
	}
	if s.out.Format == "json" {
		return s.out.Success(created)
	}
	fmt.Fprintf(s.out.Writer, "✓ added %s schedule %s starting %s\n", created.Scheme.Type(), created.ID, created.StartDate)
	return nil
}

func newScheduleListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the profile's schedules",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			snap, err := s.tracker.Snapshot()
			if err != nil {
				return s.out.Fail(ExitFailure, "list schedules", err)
			}
			profile := profileOf(s)
			scheds := []model.Schedule{}
			for _, sc := range snap.Schedules {
				if sc.ProfileID == profile {
					scheds = append(scheds, sc)
				}
			}
			if s.out.Format == "json" {
				return s.out.Success(scheds)
			}
			for _, sc := range scheds {
				name := sc.MedicationID
				if m, ok := snap.Medication(sc.MedicationID); ok {
					name = m.Name
				}
				state := ""
				if sc.IsPaused {
					state = " (paused)"
				}
				fmt.Fprintf(s.out.Writer, "  %s  %s %s from %s%s\n", sc.ID, name, sc.Scheme.Type(), sc.StartDate, state)
			}
			return nil
		},
	}
}

func newSchedulePauseCommand(rootOpts *RootOptions, verb string, paused bool) *cobra.Command {
	return &cobra.Command{
		Use:           verb + " <schedule-id>",
		Short:         fmt.Sprintf("%s a schedule", verb),
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.tracker.SetSchedulePaused(cmd.Context(), args[0], paused); err != nil {
				return s.out.Fail(ExitFailure, verb+" schedule", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(map[string]any{"scheduleId": args[0], "paused": paused})
			}
			fmt.Fprintf(s.out.Writer, "✓ %sd %s\n", verb, args[0])
			return nil
		},
	}
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/model"
	"github.com/roach88/medtrack/internal/tracker"
)

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage profiles",
	}
	cmd.AddCommand(newProfileAddCommand(rootOpts))
	cmd.AddCommand(newProfileListCommand(rootOpts))
	cmd.AddCommand(newProfileUseCommand(rootOpts))
	cmd.AddCommand(newProfileGuardianCommand(rootOpts))
	cmd.AddCommand(newProfileDeleteCommand(rootOpts))
	return cmd
}

func addGuardianFlags(cmd *cobra.Command, in *tracker.ProfileInput) {
	cmd.Flags().BoolVar(&in.GuardianModeEnabled, "guardian", false, "enable missed-dose alerts")
	cmd.Flags().IntVar(&in.GraceWindowMinutes, "grace", 0, "grace window in minutes (default 60)")
	cmd.Flags().IntVar(&in.FollowUpWindowMinutes, "follow-up", 0, "follow-up window in minutes (default 30)")
}

func newProfileAddCommand(rootOpts *RootOptions) *cobra.Command {
	var in tracker.ProfileInput
	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Add a profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			p := in
			p.Name = args[0]
			profile, err := s.tracker.AddProfile(cmd.Context(), p)
			if err != nil {
				return s.out.Fail(ExitFailure, "add profile", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(profile)
			}
			fmt.Fprintf(s.out.Writer, "✓ added profile %s (%s)\n", profile.Name, profile.ID)
			return nil
		},
	}
	addGuardianFlags(cmd, &in)
	return cmd
}

func newProfileGuardianCommand(rootOpts *RootOptions) *cobra.Command {
	var in tracker.ProfileInput
	cmd := &cobra.Command{
		Use:           "guardian",
		Short:         "Change the guardian settings of a profile",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			profile, err := s.tracker.UpdateGuardian(cmd.Context(), s.profile, in)
			if err != nil {
				return s.out.Fail(ExitFailure, "update guardian settings", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(profile)
			}
			fmt.Fprintf(s.out.Writer, "✓ %s: guardian %v, grace %dm, follow-up %dm\n", profile.Name,
				profile.GuardianModeEnabled, profile.GraceWindowMinutes, profile.FollowUpWindowMinutes)
			return nil
		},
	}
	addGuardianFlags(cmd, &in)
	return cmd
}

// ProfileEntry is one row of profile list.
type ProfileEntry struct {
	model.Profile
	Active bool `json:"active"`
}

func newProfileListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List profiles",
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
				return s.out.Fail(ExitFailure, "list profiles", err)
			}
			entries := make([]ProfileEntry, len(snap.Profiles))
			for i, p := range snap.Profiles {
				entries[i] = ProfileEntry{Profile: p, Active: p.ID == snap.ActiveProfileID}
			}
			if s.out.Format == "json" {
				return s.out.Success(entries)
			}
			for _, e := range entries {
				mark := " "
				if e.Active {
					mark = "*"
				}
				fmt.Fprintf(s.out.Writer, "%s %s  %s\n", mark, e.ID, e.Name)
			}
			return nil
		},
	}
}

func newProfileUseCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "use <profile-id>",
		Short:         "Select the active profile",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.tracker.SetActiveProfile(cmd.Context(), args[0]); err != nil {
				return s.out.Fail(ExitFailure, "select profile", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(map[string]string{"activeProfileId": args[0]})
			}
			fmt.Fprintf(s.out.Writer, "✓ active profile is %s\n", args[0])
			return nil
		},
	}
}

func newProfileDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <profile-id>",
		Short: "Delete a profile and everything it owns",
		Long: `Delete a profile together with its medications, schedules, inventory,
events and journal entries. This cannot be undone.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			if !yes {
				return out.Fail(ExitCommandError, "delete profile", fmt.Errorf("refusing without --yes"))
			}
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.tracker.DeleteProfile(cmd.Context(), args[0]); err != nil {
				return s.out.Fail(ExitFailure, "delete profile", err)
			}
			active := s.tracker.ActiveProfileID()
			if s.out.Format == "json" {
				return s.out.Success(map[string]string{"deleted": args[0], "activeProfileId": active})
			}
			fmt.Fprintf(s.out.Writer, "✓ deleted profile %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

// NewMedCommand creates the med command group.
func NewMedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "med",
		Short: "Manage the medication catalog",
	}
	cmd.AddCommand(newMedAddCommand(rootOpts))
	cmd.AddCommand(newMedListCommand(rootOpts))
	cmd.AddCommand(newMedRemoveCommand(rootOpts))
	return cmd
}

func newMedAddCommand(rootOpts *RootOptions) *cobra.Command {
	var m model.Medication
	cmd := &cobra.Command{
		Use:           "add <name>",
		Short:         "Add a medication",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			med := m
			med.Name = args[0]
			med.ProfileID = s.profile
			med, err = s.tracker.AddMedication(cmd.Context(), med)
			if err != nil {
				return s.out.Fail(ExitFailure, "add medication", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(med)
			}
			fmt.Fprintf(s.out.Writer, "✓ added %s (%s)\n", med.Name, med.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&m.ID, "id", "", "medication id (default generated)")
	cmd.Flags().StringVar(&m.Form, "form", "", "dosage form (tablet, syrup, ...)")
	cmd.Flags().StringVar(&m.Strength, "strength", "", "strength (e.g. 500mg)")
	cmd.Flags().StringVar(&m.Notes, "notes", "", "free-form notes")
	return cmd
}

func newMedListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List the profile's medications",
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
				return s.out.Fail(ExitFailure, "list medications", err)
			}
			profile := profileOf(s)
			meds := []model.Medication{}
			for _, m := range snap.Medications {
				if m.ProfileID == profile {
					meds = append(meds, m)
				}
			}
			if s.out.Format == "json" {
				return s.out.Success(meds)
			}
			for _, m := range meds {
				fmt.Fprintf(s.out.Writer, "  %s  %s %s\n", m.ID, m.Name, m.Strength)
			}
			return nil
		},
	}
}

func newMedRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "remove <medication-id>",
		Short:         "Remove a medication no schedule uses",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.tracker.RemoveMedication(cmd.Context(), args[0]); err != nil {
				return s.out.Fail(ExitFailure, "remove medication", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(map[string]string{"removed": args[0]})
			}
			fmt.Fprintf(s.out.Writer, "✓ removed %s\n", args[0])
			return nil
		},
	}
}

// NewContactCommand creates the contact command group.
func NewContactCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contact",
		Short: "Manage guardian contacts",
	}

	var c model.GuardianContact
	add := &cobra.Command{
		Use:           "add <name>",
		Short:         "Add someone to notify about missed doses",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			contact := c
			contact.Name = args[0]
			contact.ProfileID = s.profile
			contact, err = s.tracker.AddGuardianContact(cmd.Context(), contact)
			if err != nil {
				return s.out.Fail(ExitFailure, "add contact", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(contact)
			}
			fmt.Fprintf(s.out.Writer, "✓ added contact %s (%s)\n", contact.Name, contact.ID)
			return nil
		},
	}
	add.Flags().StringVar(&c.Phone, "phone", "", "phone number")
	add.Flags().StringVar(&c.Email, "email", "", "email address")
	cmd.AddCommand(add)
	return cmd
}

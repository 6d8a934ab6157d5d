package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/backup"
	"github.com/roach88/medtrack/internal/store"
	"github.com/roach88/medtrack/internal/tracker"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup of the whole document",
		Long: `Write the document wrapped in an export envelope. Without --output the
envelope is written to stdout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := s.tracker.Export()
			if err != nil {
				return s.out.Fail(ExitFailure, "export", err)
			}
			if output == "" {
				_, err := s.out.Writer.Write(data)
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return s.out.Fail(ExitFailure, "write export", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(map[string]any{"path": output, "bytes": len(data)})
			}
			fmt.Fprintf(s.out.Writer, "✓ exported %d bytes to %s\n", len(data), output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")
	return cmd
}

// ImportFlags holds flags for the import command.
type ImportFlags struct {
	Strategy string
	DryRun   bool
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var f ImportFlags
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore or merge a backup",
		Long: `Validate an export file and apply it.

  replace  discard the current document and use the backup
  merge    add only records whose ids the current document does not have

Older backups are migrated first; backups from a newer build are refused.
--dry-run validates and previews without writing.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, f, args[0], cmd)
		},
	}
	cmd.Flags().StringVar(&f.Strategy, "strategy", string(backup.StrategyReplace), "replace|merge")
	cmd.Flags().BoolVar(&f.DryRun, "dry-run", false, "validate and preview only")
	return cmd
}

func runImport(opts *RootOptions, f ImportFlags, path string, cmd *cobra.Command) error {
	s, err := openSession(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		return s.out.Fail(ExitCommandError, "read import file", err)
	}
	strategy := backup.Strategy(f.Strategy)
	if strategy != backup.StrategyReplace && strategy != backup.StrategyMerge {
		return s.out.Fail(ExitCommandError, "invalid --strategy", fmt.Errorf("%q: must be replace or merge", f.Strategy))
	}

	if f.DryRun {
		c, err := s.tracker.PreviewImport(raw)
		if err != nil {
			return s.out.Fail(ExitFailure, "import", err)
		}
		if s.out.Format == "json" {
			return s.out.Success(c.Preview)
		}
		writePreview(s, c.Preview)
		return nil
	}

	res, err := s.tracker.Import(cmd.Context(), raw, strategy)
	if err != nil {
		return s.out.Fail(ExitFailure, "import", err)
	}
	if s.out.Format == "json" {
		return s.out.Success(res)
	}
	writeImport(s, res)
	return nil
}

func writePreview(s *session, p backup.Preview) {
	fmt.Fprintf(s.out.Writer, "Backup from %s (app %s, schema v%d", p.ExportDate.Format("2006-01-02 15:04"), p.AppVersion, p.SourceVersion)
	if p.Migrated {
		fmt.Fprint(s.out.Writer, ", migrated")
	}
	fmt.Fprintln(s.out.Writer, ")")
	c := p.Counts
	fmt.Fprintf(s.out.Writer, "  %d profile(s), %d medication(s), %d schedule(s), %d inventory record(s), %d event(s)\n",
		c.Profiles, c.Medications, c.Schedules, c.Inventory, c.Events)
}

func writeImport(s *session, res *tracker.ImportResult) {
	writePreview(s, res.Preview)
	if res.Added != nil {
		a := res.Added
		fmt.Fprintf(s.out.Writer, "✓ merged: added %d profile(s), %d medication(s), %d schedule(s), %d event(s)\n",
			a.Profiles, a.Medications, a.Schedules, a.Events)
		return
	}
	fmt.Fprintln(s.out.Writer, "✓ replaced current document")
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check the stored document and backup",
		Long: `Check the primary document against its checksum and report the state of
the backup slot. Nothing is modified; exits 1 when the primary fails.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openBackend(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st := store.New(s.backend, store.WithLogger(s.logger))
			report, err := st.Verify(cmd.Context())
			if err != nil {
				if outErr := s.out.Error(ErrorCode(err), err.Error(), report); outErr != nil {
					return outErr
				}
				return WrapExitError(ExitFailure, "verify", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(report)
			}
			if !report.PrimaryPresent {
				fmt.Fprintln(s.out.Writer, "No document stored yet")
				return nil
			}
			fmt.Fprintf(s.out.Writer, "✓ primary valid (schema v%d)\n", report.SchemaVersion)
			switch {
			case report.BackupValid:
				fmt.Fprintf(s.out.Writer, "✓ backup valid (written %s)\n", report.BackupWrittenAt.Format("2006-01-02 15:04:05"))
			case report.BackupPresent:
				fmt.Fprintln(s.out.Writer, "! backup present but invalid")
			default:
				fmt.Fprintln(s.out.Writer, "  no backup yet")
			}
			return nil
		},
	}
}

// NewResetCommand creates the reset command.
func NewResetCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Replace the document with a fresh one",
		Long: `Discard all data and start over with a fresh document. This is the way out
when both the document and its backup are corrupt. Export first if you can.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			if !yes {
				return out.Fail(ExitCommandError, "reset", fmt.Errorf("refusing without --yes"))
			}
			s, err := openBackend(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			// The document may be unreadable, so reset works on the store directly.
			sopts := []store.Option{store.WithLogger(s.logger)}
			if rootOpts.Clock != nil {
				sopts = append(sopts, store.WithClock(rootOpts.Clock))
			}
			st, err := store.New(s.backend, sopts...).ResetDestructive(cmd.Context())
			if err != nil {
				return s.out.Fail(ExitFailure, "reset", err)
			}
			if s.out.Format == "json" {
				return s.out.Success(map[string]any{"reset": true, "activeProfileId": st.ActiveProfileID})
			}
			fmt.Fprintln(s.out.Writer, "✓ document reset")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

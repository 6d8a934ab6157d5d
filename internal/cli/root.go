package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/medtrack/internal/guardian"
	"github.com/roach88/medtrack/internal/model"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // path to medtrack.yaml; empty reads it from the working directory if present
	Database string // overrides the configured database
	Profile  string // profile to act on; empty means the active profile

	// Clock, IDs and Notifier override the production implementations.
	// Tests set them for deterministic output.
	Clock    model.Clock
	IDs      model.IDGenerator
	Notifier guardian.Notifier
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the medtrack CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "medtrack",
		Short: "medtrack - local medication tracker",
		Long: `Track recurring medication intake for one or more profiles.

State lives in a single checksummed document inside a local SQLite file.
Dose status is derived from schedules and an append-only action log.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default ./medtrack.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database file (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.Profile, "profile", "p", "", "profile id (default: active profile)")

	// Doses
	cmd.AddCommand(NewDosesCommand(opts))
	cmd.AddCommand(NewTakeCommand(opts))
	cmd.AddCommand(NewSkipCommand(opts))
	cmd.AddCommand(NewSnoozeCommand(opts))
	cmd.AddCommand(NewUndoCommand(opts))
	cmd.AddCommand(NewPRNCommand(opts))
	cmd.AddCommand(NewAdherenceCommand(opts))

	// Guardian
	cmd.AddCommand(NewAlertsCommand(opts))
	cmd.AddCommand(NewAckCommand(opts))

	// Catalog
	cmd.AddCommand(NewInventoryCommand(opts))
	cmd.AddCommand(NewProfileCommand(opts))
	cmd.AddCommand(NewMedCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewContactCommand(opts))

	// Data
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

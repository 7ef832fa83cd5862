package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the generator version recorded in fingerprint caches. A major
// or minor bump discards every cached fingerprint.
const Version = "1.4.0"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Config    string // configuration file; default tablegen.yaml when present
	Root      string // document tree root, overrides the configuration
	Operators string // operator document, overrides the configuration
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tablegen CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "tablegen",
		Short:   "tablegen - descriptor table and rewrite rule generator",
		Long:    "Generates native and managed descriptor tables from schema documents and pattern matchers from rewrite-rule documents.",
		Version: Version,
		// main prints errors that commands have not reported themselves
		SilenceErrors: true,
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
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "configuration file (default tablegen.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", "", "document tree root")
	cmd.PersistentFlags().StringVar(&opts.Operators, "ops", "", "operator declaration document")

	// Add subcommands
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewExpandCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

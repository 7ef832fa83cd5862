package cli

import "github.com/spf13/cobra"

// ValidationResult is the outcome of the validate command.
type ValidationResult struct {
	Valid     bool             `json:"valid"`
	Documents int              `json:"documents"`
	Errors    []DocumentReport `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [root]",
		Short: "Check every document without writing outputs",
		Long: `Render every schema and rewrite-rule document under root and report
the documents that fail. Nothing is written and the fingerprint cache is
neither read nor updated.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, rootArg(args), cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	s, err := openSession(opts, root, sessionOptions{DryRun: true}, cmd.ErrOrStderr())
	if err != nil {
		return formatter.CommandError(err)
	}
	defer s.Close()

	sum, err := s.batch(cmd.Context())
	if err != nil {
		return formatter.CommandError(err)
	}

	res := ValidationResult{Valid: sum.OK(), Documents: len(sum.Results)}
	for _, doc := range newGenerationResult(s.root, sum).Documents {
		formatter.VerboseLog("Checked %s", doc.Path)
		if doc.Error != nil {
			res.Errors = append(res.Errors, doc)
		}
	}

	return formatter.Validation(res)
}

package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/can1357/retro/internal/engine"
)

// GenerateOptions holds flags for the generate command.
type GenerateOptions struct {
	*RootOptions
	DryRun bool
	Force  bool
}

// DocumentReport is the outcome of one document.
type DocumentReport struct {
	Path      string    `json:"path"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Namespace string    `json:"namespace,omitempty"`
	Outputs   []string  `json:"outputs,omitempty"`
	Functions int       `json:"functions,omitempty"`
	Error     *CLIError `json:"error,omitempty"`
}

// GenerationResult is the outcome of one batch.
type GenerationResult struct {
	RunID     string           `json:"run_id"`
	Generated int              `json:"generated"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Documents []DocumentReport `json:"documents"`
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GenerateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "generate [root]",
		Short: "Generate tables and rule matchers for every document",
		Long: `Generate native and managed descriptor tables for every schema document
and matcher functions for every rewrite-rule document under root.

Documents whose fingerprint is unchanged since the last run are skipped.
A failing document is reported and does not stop the others.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(opts, rootArg(args), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "render every document without writing outputs or the cache")
	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "regenerate documents even when unchanged")

	return cmd
}

func runGenerate(opts *GenerateOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, root, sessionOptions{DryRun: opts.DryRun, Force: opts.Force}, cmd.ErrOrStderr())
	if err != nil {
		return formatter.CommandError(err)
	}
	defer s.Close()

	formatter.VerboseLog("Generating documents under %s", s.root)

	sum, err := s.batch(cmd.Context())
	if err != nil {
		return formatter.CommandError(err)
	}

	return formatter.Summary(newGenerationResult(s.root, sum))
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

// newGenerationResult converts a summary for output, with paths relative
// to root.
func newGenerationResult(root string, sum engine.Summary) GenerationResult {
	res := GenerationResult{
		RunID:     sum.RunID,
		Generated: sum.Generated,
		Skipped:   sum.Skipped,
		Failed:    sum.Failed,
		Documents: make([]DocumentReport, 0, len(sum.Results)),
	}
	for _, r := range sum.Results {
		doc := DocumentReport{
			Path:      relPath(root, r.Path),
			Kind:      string(r.Kind),
			Status:    string(r.Status),
			Namespace: r.Namespace,
			Functions: r.Functions,
		}
		for _, o := range r.Outputs {
			doc.Outputs = append(doc.Outputs, relPath(root, o))
		}
		if r.Err != nil {
			doc.Error = newCLIError(r.Err)
		}
		res.Documents = append(res.Documents, doc)
	}
	return res
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// firstFailure returns the first failed document.
func (r GenerationResult) firstFailure() *DocumentReport {
	for i := range r.Documents {
		if r.Documents[i].Error != nil {
			return &r.Documents[i]
		}
	}
	return nil
}

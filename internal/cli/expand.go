package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/can1357/retro/internal/engine"
	"github.com/can1357/retro/internal/rules"
)

// ExpansionResult lists every operand ordering a source pattern matches.
type ExpansionResult struct {
	Pattern      string   `json:"pattern"`
	Permutations []string `json:"permutations"`
}

// NewExpandCommand creates the expand command.
func NewExpandCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expand <pattern>",
		Short: "Print every permutation of a source pattern",
		Long: `Parse a rewrite-rule source pattern against the operator document and
print each operand ordering its commutative operators allow, one per line.
Each ordering becomes one matcher function when the rule is generated.

A pattern that starts with "-" would be read as a flag; put it after "--".`,
		Example: `  tablegen expand --ops include/retro/ir/ops.yaml "add(A, mul(B, 2))"
  tablegen expand --ops include/retro/ir/ops.yaml -- "-A + B"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExpand(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runExpand(opts *RootOptions, pattern string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	cfg, _, err := loadConfig(opts)
	if err != nil {
		return formatter.CommandError(err)
	}
	path := cfg.Operators.Document
	if opts.Operators != "" {
		path = opts.Operators
	}
	if path == "" {
		return formatter.CommandError(&LoadError{Code: ErrCodeNotFound, Message: "no operator document configured, pass --ops"})
	}

	table, _, err := engine.LoadOperators(path, cfg.IncludeDir, cfg.Operators.Enum)
	if err != nil {
		return formatter.CommandError(fmt.Errorf("operator document %s: %w", path, err))
	}
	formatter.VerboseLog("Loaded %d operators from %s", table.Len(), path)

	from, err := rules.ParsePattern(table, pattern)
	if err != nil {
		return formatter.CommandError(err)
	}

	res := ExpansionResult{Pattern: from.String()}
	for _, p := range rules.Permutate(from) {
		res.Permutations = append(res.Permutations, p.String())
	}

	return formatter.Expansion(res)
}

package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/can1357/retro/internal/watch"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch [root]",
		Short: "Regenerate documents as they change",
		Long: `Generate every document under root, then watch the tree and run
another batch after each burst of document changes. Unchanged documents
are skipped. Stops on interrupt.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, rootArg(args), cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", 0, "quiet period before a batch runs (default from config, 300ms)")

	return cmd
}

func runWatch(opts *WatchOptions, root string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, root, sessionOptions{}, cmd.ErrOrStderr())
	if err != nil {
		return formatter.CommandError(err)
	}
	defer s.Close()

	debounce := s.cfg.Watch.Debounce
	if opts.Debounce > 0 {
		debounce = opts.Debounce
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := func(ctx context.Context) error {
		sum, err := s.batch(ctx)
		if err != nil {
			return err
		}
		// Failed documents are reported and retried on the next change.
		err = formatter.Summary(newGenerationResult(s.root, sum))
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return err
	}

	w := watch.New(s.root, debounce, run, s.logger)
	if err := w.Run(ctx); err != nil {
		return formatter.CommandError(err)
	}
	return nil
}

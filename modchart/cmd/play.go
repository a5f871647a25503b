package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tempolab/modchart/session"
	"github.com/tempolab/modchart/tracing"
)

type playOptions struct {
	from, to, step int64
	trace          string
	asJSON         bool
	stats          bool
}

var playOpts playOptions

var playCmd = &cobra.Command{
	Use:   "play [chart]",
	Short: "Play a chart and print the final properties.",
	Long: "`play` runs a chart frame by frame between --from and --to. " +
		"A negative --step plays backward. Without --to the chart plays " +
		"until its last change.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := chartPath(args)
		if err != nil {
			return err
		}

		logger := newLogger()

		s, c, err := loadSession(path, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		opts := playOpts
		if !cmd.Flags().Changed("to") {
			opts.to = c.End()
		}

		if !cmd.Flags().Changed("step") {
			opts.step = cfg.FrameStep
			if opts.to < opts.from {
				opts.step = -opts.step
			}
		}

		if !cmd.Flags().Changed("trace") {
			opts.trace = cfg.TracePath
		}

		if opts.trace != "" {
			w, err := startTrace(s, opts.trace, logger)
			if err != nil {
				return err
			}
			defer w.Close()
		}

		counter := tracing.NewEventCounter()
		if opts.stats {
			s.Bus().AcceptHook(counter)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := s.Play(ctx, opts.from, opts.to, opts.step); err != nil {
			return err
		}

		if opts.asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(s.Properties().Snapshot())
		}

		fmt.Fprintf(cmd.OutOrStdout(), "playhead = %d\n", s.Playhead())
		printProperties(cmd.OutOrStdout(), s.Properties())

		for _, name := range counter.Names() {
			fmt.Fprintf(cmd.OutOrStdout(), "event %s x%d\n",
				name, counter.Count(name))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().Int64Var(&playOpts.from, "from", 0,
		"playhead of the first frame in milliseconds")
	playCmd.Flags().Int64Var(&playOpts.to, "to", 0,
		"playhead of the last frame in milliseconds")
	playCmd.Flags().Int64Var(&playOpts.step, "step", 0,
		"milliseconds between frames")
	playCmd.Flags().StringVar(&playOpts.trace, "trace", "",
		"record every dispatch into this SQLite database")
	playCmd.Flags().BoolVar(&playOpts.asJSON, "json", false,
		"print the final properties as JSON")
	playCmd.Flags().BoolVar(&playOpts.stats, "stats", false,
		"count the delivered events")
}

// startTrace records the dispatches of s into a new SQLite database.
func startTrace(
	s *session.Session,
	name string,
	logger *log.Logger,
) (*tracing.SQLiteTraceWriter, error) {
	w := tracing.NewSQLiteTraceWriter(name)
	if err := w.Init(); err != nil {
		return nil, err
	}

	tracing.CollectTrace(s.Triggers(), w, logger)
	logger.Printf("tracing dispatches into %s", w.FileName())

	return w, nil
}

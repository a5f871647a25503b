package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/tempolab/modchart/monitoring"
	"github.com/tempolab/modchart/session"
)

type serveOptions struct {
	port     int
	open     bool
	to, step int64
	interval time.Duration
}

var serveOpts serveOptions

var serveCmd = &cobra.Command{
	Use:   "serve [chart]",
	Short: "Play a chart in real time and inspect it over HTTP.",
	Long: "`serve` starts the monitoring server, plays the chart at the " +
		"frame interval, and keeps serving until interrupted. " +
		"GET /api/seek/{time} moves the playhead while it plays.",
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

		opts := serveOpts
		if !cmd.Flags().Changed("port") {
			opts.port = cfg.MonitorPort
		}

		if !cmd.Flags().Changed("open") {
			opts.open = cfg.OpenBrowser
		}

		if !cmd.Flags().Changed("to") {
			opts.to = c.End()
		}

		if !cmd.Flags().Changed("step") {
			opts.step = cfg.FrameStep
		}

		if !cmd.Flags().Changed("interval") && cfg.FrameInterval > 0 {
			opts.interval = cfg.FrameInterval
		}

		if opts.step <= 0 || opts.interval <= 0 {
			return fmt.Errorf("step and interval must be positive")
		}

		m := monitoring.NewMonitor(s).
			WithPortNumber(opts.port).
			WithBrowser(opts.open).
			WithLogger(logger)

		url, err := m.StartServer()
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Monitoring %s at %s\n", path, url)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		bar := m.TrackPlayback(0, opts.to)
		if err := playLocked(ctx, m, opts); err == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Playback finished")
		}
		m.CompleteProgressBar(bar)

		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(), 5*time.Second)
		defer cancel()

		return m.Shutdown(shutdownCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&serveOpts.port, "port", 0,
		"port of the monitoring server, random if below 1000")
	serveCmd.Flags().BoolVar(&serveOpts.open, "open", false,
		"open the monitor in a browser")
	serveCmd.Flags().Int64Var(&serveOpts.to, "to", 0,
		"stop playing at this playhead in milliseconds")
	serveCmd.Flags().Int64Var(&serveOpts.step, "step", 0,
		"milliseconds between frames")
	serveCmd.Flags().DurationVar(&serveOpts.interval, "interval",
		16*time.Millisecond, "wall-clock time between frames")
}

// playLocked plays forward from the current playhead until opts.to, taking
// the monitor lock for each frame so that HTTP handlers see whole frames. A
// seek from the monitor moves the playhead the loop continues from.
func playLocked(
	ctx context.Context,
	m *monitoring.Monitor,
	opts serveOptions,
) error {
	ticker := time.NewTicker(opts.interval)
	defer ticker.Stop()

	for {
		done := false

		m.Do(func(s *session.Session) {
			if s.Playhead() < opts.to {
				s.Frame(min(s.Playhead()+opts.step, opts.to))
			}

			done = s.Playhead() >= opts.to
		})

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

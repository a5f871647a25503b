// Package cmd provides the command-line interface of modchart.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/tempolab/modchart/chart"
	"github.com/tempolab/modchart/config"
	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/session"
	"github.com/tempolab/modchart/sim/hooking"
	"github.com/tempolab/modchart/sim/queueing"
	"github.com/tempolab/modchart/trigger"
)

var (
	envFile   string
	verbosity int
	cfg       = config.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modchart",
	Short: "modchart plays and inspects rhythm-game mod-charts.",
	Long: `modchart loads a mod-chart, schedules its triggers, intervals, ` +
		`tweens and scripts on a seekable timeline, and plays it forward ` +
		`or backward.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(envFile)
		if err != nil {
			return err
		}

		cfg = c

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "config", "",
		"environment file to read settings from (default .env)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"log dispatches (-v) and delivered events (-vv)")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.LstdFlags)
}

// chartPath picks the chart from the arguments or from the configuration.
func chartPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}

	if cfg.ChartPath != "" {
		return cfg.ChartPath, nil
	}

	return "", errors.New("no chart given, pass a path or set " +
		config.EnvChart)
}

// newSession builds an empty session from the configuration. Hooks are
// attached according to the verbosity.
func newSession(name string, logger *log.Logger) *session.Session {
	capacity := cfg.QueueCapacity
	if capacity == 0 {
		capacity = queueing.Unbounded
	}

	s := session.MakeBuilder().
		WithLogger(logger).
		WithQueueCapacity(capacity).
		WithScriptTimeout(cfg.ScriptTimeout).
		WithFrameInterval(cfg.FrameInterval).
		Build(name)

	if verbosity > 0 {
		s.Triggers().AcceptHook(trigger.NewEventLogger(logger))
	}

	if verbosity > 1 {
		logDelivery := hooking.HookFunc(func(ctx hooking.HookCtx) {
			if evt, ok := ctx.Item.(event.Event); ok &&
				ctx.Pos == event.HookPosEventDelivered {
				logger.Printf("event %s %v", evt.Name, evt.Args)
			}
		})
		s.Bus().AcceptHook(&logDelivery)
	}

	return s
}

// loadSession loads a chart into a new session.
func loadSession(
	path string,
	logger *log.Logger,
) (*session.Session, *chart.Chart, error) {
	c, err := chart.Load(path)
	if err != nil {
		return nil, nil, err
	}

	s := newSession(path, logger)
	if err := s.ApplyChart(c); err != nil {
		s.Close()
		return nil, nil, err
	}

	return s, c, nil
}

func printProperties(w io.Writer, props *chart.PropertySet) {
	snapshot := props.Snapshot()
	for _, name := range props.Names() {
		fmt.Fprintf(w, "%s = %g\n", name, snapshot[name])
	}
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tempolab/modchart/event"
	"github.com/tempolab/modchart/session"
)

var shellPrompt string

var shellCmd = &cobra.Command{
	Use:   "shell [chart]",
	Short: "Drive a chart frame by frame from an interactive prompt.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := newLogger()
		sh := newShell(newSession("shell", logger), logger, cmd.OutOrStdout())
		defer func() { sh.s.Close() }()

		if len(args) > 0 || cfg.ChartPath != "" {
			path, _ := chartPath(args)
			if err := sh.execute([]string{"load", path}); err != nil {
				return err
			}
		}

		return sh.loop(shellPrompt)
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
	shellCmd.Flags().StringVar(&shellPrompt, "prompt", "modchart> ",
		"prompt of the shell")
}

// errExit ends the shell loop.
var errExit = errors.New("exit")

type shellCommand struct {
	usage string
	help  string
	run   func(sh *shell, args []string) error
}

var shellCommands map[string]shellCommand

func init() {
	shellCommands = map[string]shellCommand{
		"load":     {"load <chart>", "replace the session with a chart", (*shell).load},
		"frame":    {"frame <ms>", "advance to a playhead", (*shell).frame},
		"seek":     {"seek <ms>", "jump to a playhead", (*shell).seek},
		"step":     {"step [ms]", "advance by a distance, negative goes back", (*shell).step},
		"play":     {"play --to <ms> [--step <ms>]", "play frames up to a playhead", (*shell).play},
		"props":    {"props", "print the properties", (*shell).props},
		"set":      {"set <name> <value>", "set a property", (*shell).set},
		"vertices": {"vertices [--limit n]", "list the scheduled vertices", (*shell).vertices},
		"segments": {"segments", "list the tweens", (*shell).segments},
		"queue":    {"queue", "print the number of deferred events", (*shell).queue},
		"emit":     {"emit <event> [args...]", "defer an event to the next frame", (*shell).emit},
		"js":       {"js <source>", "run a script on the session", (*shell).js},
		"help":     {"help", "print this help", (*shell).help},
		"exit":     {"exit", "leave the shell", func(*shell, []string) error { return errExit }},
	}
	shellCommands["quit"] = shellCommands["exit"]
}

// A shell runs commands against one session.
type shell struct {
	s      *session.Session
	logger *log.Logger
	out    io.Writer
}

func newShell(s *session.Session, logger *log.Logger, out io.Writer) *shell {
	return &shell{s: s, logger: logger, out: out}
}

func (sh *shell) loop(prompt string) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "modchart-shell.history"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(sh.out, "Type 'help' for commands and 'exit' to leave.")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}

		tokens, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(sh.out, "parse error: %v\n", err)
			continue
		}

		err = sh.execute(tokens)
		if errors.Is(err, errExit) {
			return nil
		}

		if err != nil {
			fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

// execute runs one tokenized command line.
func (sh *shell) execute(tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	c, ok := shellCommands[tokens[0]]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", tokens[0])
	}

	return c.run(sh, tokens[1:])
}

func (sh *shell) load(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: load <chart>")
	}

	s, _, err := loadSession(args[0], sh.logger)
	if err != nil {
		return err
	}

	sh.s.Close()
	sh.s = s
	fmt.Fprintf(sh.out, "loaded %s with %d vertices\n",
		args[0], s.Triggers().Len())

	return nil
}

func (sh *shell) frame(args []string) error {
	t, err := timeArg(args)
	if err != nil {
		return err
	}

	sh.report(sh.s.Frame(t))

	return nil
}

func (sh *shell) seek(args []string) error {
	t, err := timeArg(args)
	if err != nil {
		return err
	}

	sh.report(sh.s.Seek(t))

	return nil
}

func (sh *shell) step(args []string) error {
	d := cfg.FrameStep
	if len(args) > 0 {
		var err error
		if d, err = timeArg(args); err != nil {
			return err
		}
	}

	sh.report(sh.s.Frame(sh.s.Playhead() + d))

	return nil
}

func (sh *shell) play(args []string) error {
	fs := pflag.NewFlagSet("play", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	to := fs.Int64("to", 0, "last playhead")
	step := fs.Int64("step", cfg.FrameStep, "distance between frames")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if !fs.Changed("to") {
		return errors.New("usage: play --to <ms> [--step <ms>]")
	}

	from := sh.s.Playhead()
	if *to < from && *step > 0 {
		*step = -*step
	}

	if err := sh.s.Play(context.Background(), from, *to, *step); err != nil {
		return err
	}

	sh.report(0)

	return nil
}

func (sh *shell) report(dispatched int) {
	fmt.Fprintf(sh.out, "playhead = %d", sh.s.Playhead())
	if dispatched > 0 {
		fmt.Fprintf(sh.out, ", %d events", dispatched)
	}
	fmt.Fprintln(sh.out)
}

func (sh *shell) props([]string) error {
	printProperties(sh.out, sh.s.Properties())
	return nil
}

func (sh *shell) set(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: set <name> <value>")
	}

	v, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("value %q: %w", args[1], err)
	}

	sh.s.Properties().Set(args[0], v)

	return nil
}

func (sh *shell) vertices(args []string) error {
	fs := pflag.NewFlagSet("vertices", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	limit := fs.Int("limit", 0, "print at most this many vertices")

	if err := fs.Parse(args); err != nil {
		return err
	}

	m := sh.s.Triggers()
	for i, v := range m.Vertices() {
		if *limit > 0 && i >= *limit {
			break
		}

		state := "pending"
		if i < m.Index() {
			state = "fired"
		}

		dynamic := ""
		if v.IsDynamic {
			dynamic = " dynamic"
		}

		fmt.Fprintf(sh.out, "%d @ %d %s%s\n", v.ID, v.Time, state, dynamic)
	}

	return nil
}

func (sh *shell) segments([]string) error {
	for _, s := range sh.s.Timeline().Segments() {
		state := ""
		if s.IsActive() {
			state = " active"
		}

		fmt.Fprintf(sh.out, "[%d, %d)%s\n", s.StartTime, s.EndTime, state)
	}

	return nil
}

func (sh *shell) queue([]string) error {
	fmt.Fprintf(sh.out, "%d deferred\n", sh.s.Queue().Len())
	return nil
}

func (sh *shell) emit(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: emit <event> [args...]")
	}

	evt := event.Event{Name: args[0]}
	for _, a := range args[1:] {
		evt.Args = append(evt.Args, a)
	}

	if !sh.s.Queue().Enqueue(evt) {
		return fmt.Errorf("queue is full, %s dropped", evt.Name)
	}

	return nil
}

func (sh *shell) js(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: js <source>")
	}

	return sh.s.RunScript(strings.Join(args, " "), "shell")
}

func (sh *shell) help([]string) error {
	names := make([]string, 0, len(shellCommands))
	for name := range shellCommands {
		if name != "quit" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		c := shellCommands[name]
		fmt.Fprintf(sh.out, "  %-30s %s\n", c.usage, c.help)
	}

	return nil
}

func timeArg(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected one time in milliseconds")
	}

	t, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", args[0], err)
	}

	return t, nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tempolab/modchart/chart"
)

var checkCmd = &cobra.Command{
	Use:   "check [chart]",
	Short: "Validate a chart without playing it.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := chartPath(args)
		if err != nil {
			return err
		}

		c, err := chart.Load(path)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s: version %s, ends at %d\n", path, c.Version, c.End())
		fmt.Fprintf(w, "  %d properties\n", len(c.Properties))
		fmt.Fprintf(w, "  %d triggers\n", len(c.Triggers))
		fmt.Fprintf(w, "  %d intervals\n", len(c.Intervals))
		fmt.Fprintf(w, "  %d segments\n", len(c.Segments))
		fmt.Fprintf(w, "  %d presets\n", len(c.Presets))

		if c.Script != "" {
			fmt.Fprintf(w, "  script of %d bytes\n", len(c.Script))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

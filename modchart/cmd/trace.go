package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tempolab/modchart/tracing"
)

var traceQuery tracing.Query

var traceCmd = &cobra.Command{
	Use:   "trace <file.sqlite3>",
	Short: "Print the dispatches recorded by play --trace.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := tracing.NewSQLiteTraceReader(args[0])
		if err != nil {
			return err
		}
		defer r.Close()

		records, err := r.Records(cmd.Context(), traceQuery)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tVERTEX\tTIME\tPLAYHEAD\tERROR")

		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n",
				rec.Kind, rec.VertexID, rec.VertexTime, rec.Playhead, rec.Err)
		}

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVar((*string)(&traceQuery.Kind), "kind", "",
		"only show trigger, undo, add or remove records")
	traceCmd.Flags().Int64Var(&traceQuery.VertexID, "vertex", 0,
		"only show records of this vertex")
	traceCmd.Flags().IntVar(&traceQuery.Limit, "limit", 0,
		"show at most this many records")
}

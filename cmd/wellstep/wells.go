package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"wellstep/internal/history"
	"wellstep/internal/timeseries"
)

func newWellsCmd(a *app) *cobra.Command {
	var lenient bool

	cmd := &cobra.Command{
		Use:   "wells <history.csv>",
		Short: "List the wells of a history CSV",
		Long:  `Split a history CSV per well and print each well's sample count and date range, in order of first appearance.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := a.cfg.History.Options()
			if lenient {
				opts.Lenient = true
			}

			in, err := openInput(args[0])
			if err != nil {
				return err
			}
			table, err := history.Read(in, opts)
			in.Close()
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WELL\tSAMPLES\tFIRST\tLAST")
			for _, ws := range timeseries.Partition(table.Fields, table.Observations) {
				s := ws.Summary()
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", s.Well, s.SampleCount,
					s.FirstObservedAt.Format("2006-01-02"), s.LastObservedAt.Format("2006-01-02"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(table.Rejected) > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "%d invalid rows skipped\n", len(table.Rejected))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&lenient, "lenient", false, "Skip invalid rows instead of failing")
	return cmd
}

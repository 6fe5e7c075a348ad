package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/joelkehle/medlite/internal/samples"
	"github.com/spf13/cobra"
)

func newSamplesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List the sample reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := samples.List(a.cfg.Samples.Dir)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTITLE\tAVAILABLE\tSIZE")
			for _, e := range entries {
				size := "-"
				if e.Available {
					size = fmt.Sprintf("%d B", e.Size)
				}
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", e.Name, e.Title, e.Available, size)
			}
			return tw.Flush()
		},
	}
}

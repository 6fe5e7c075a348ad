package main

import (
	"fmt"
	"os"

	"github.com/joelkehle/medlite/internal/medsummary"
	"github.com/spf13/cobra"
)

func newRenderCmd(a *app) *cobra.Command {
	var pdfPath string
	cmd := &cobra.Command{
		Use:   "render SUMMARY_FILE",
		Short: "Render a saved summary file as markdown, or as PDF with --pdf",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blob, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, meta, err := medsummary.ParseSummaryFile(string(blob))
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			markdown := medsummary.BuildMarkdown(res, meta)
			if pdfPath == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), markdown)
				return err
			}
			if err := a.writePDF(cmd.Context(), pdfPath, markdown); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "PDF written to %s\n", pdfPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "write a PDF to this path instead of printing markdown")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joelkehle/medlite/internal/docextract"
	"github.com/joelkehle/medlite/internal/medsummary"
	"github.com/joelkehle/medlite/internal/samples"
	"github.com/spf13/cobra"
)

type summarizeOptions struct {
	sample  string
	save    bool
	pdfPath string
	asJSON  bool
}

type summarizeOutput struct {
	Result       medsummary.SummaryResult `json:"result"`
	Tier         medsummary.Tier          `json:"tier,omitempty"`
	Fallback     bool                     `json:"fallback"`
	ShortCircuit bool                     `json:"short_circuit"`
	Source       string                   `json:"source"`
	Stats        medsummary.ReportStats   `json:"stats"`
	SavedTo      string                   `json:"saved_to,omitempty"`
	PDF          string                   `json:"pdf,omitempty"`
}

func newSummarizeCmd(a *app) *cobra.Command {
	var opts summarizeOptions
	cmd := &cobra.Command{
		Use:   "summarize [FILE]",
		Short: "Summarize a .txt or .pdf report, or a bundled sample",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (opts.sample != "") {
				return errors.New("give exactly one of FILE or --sample")
			}
			return a.runSummarize(cmd.Context(), cmd.OutOrStdout(), args, opts)
		},
	}
	cmd.Flags().StringVar(&opts.sample, "sample", "", "summarize the named sample report instead of a file")
	cmd.Flags().BoolVar(&opts.save, "save", false, "write the summary to the output directory")
	cmd.Flags().StringVar(&opts.pdfPath, "pdf", "", "also render the summary as a PDF to this path")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	return cmd
}

func (a *app) runSummarize(ctx context.Context, out io.Writer, args []string, opts summarizeOptions) error {
	text, source, err := a.readReport(ctx, args, opts.sample)
	if err != nil {
		return err
	}
	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	outcome := engine.Run(ctx, text)
	meta := medsummary.ReportMeta{SourceFilename: source, GeneratedAt: time.Now(), Tier: outcome.Tier}
	result := summarizeOutput{
		Result:       outcome.Result,
		Tier:         outcome.Tier,
		Fallback:     outcome.Fallback,
		ShortCircuit: outcome.ShortCircuit,
		Source:       source,
		Stats:        medsummary.ComputeStats(text),
	}

	if opts.save {
		path, err := medsummary.SaveSummaryFile(a.cfg.Output.Dir, outcome.Result, meta)
		if err != nil {
			return fmt.Errorf("save summary: %w", err)
		}
		result.SavedTo = path
	}
	if opts.pdfPath != "" {
		if err := a.writePDF(ctx, opts.pdfPath, medsummary.BuildMarkdown(outcome.Result, meta)); err != nil {
			return err
		}
		result.PDF = opts.pdfPath
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(out, medsummary.FormatSummaryFile(outcome.Result, meta))
	if result.SavedTo != "" {
		fmt.Fprintf(out, "\nSaved to %s\n", result.SavedTo)
	}
	if result.PDF != "" {
		fmt.Fprintf(out, "PDF written to %s\n", result.PDF)
	}
	return nil
}

func (a *app) readReport(ctx context.Context, args []string, sample string) (text, source string, err error) {
	if sample != "" {
		text, err = samples.Load(ctx, a.cfg.Samples.Dir, sample)
		if err != nil {
			return "", "", err
		}
		return text, strings.TrimSuffix(sample, ".txt") + ".txt", nil
	}
	res, err := docextract.ExtractFile(ctx, args[0])
	if err != nil {
		return "", "", fmt.Errorf("read %s: %w", args[0], err)
	}
	if res.Truncated {
		a.logger.WithField("file", args[0]).Warn("report text truncated")
	}
	return res.Text, filepath.Base(args[0]), nil
}

func (a *app) writePDF(ctx context.Context, path, markdown string) error {
	renderer, err := a.newRenderer()
	if err != nil {
		return err
	}
	pdf, err := renderer.Render(ctx, markdown)
	if err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, pdf, 0o644)
}

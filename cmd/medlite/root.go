package main

import (
	"context"
	"fmt"
	"io"

	"github.com/joelkehle/medlite/internal/config"
	"github.com/joelkehle/medlite/internal/generation"
	"github.com/joelkehle/medlite/internal/logging"
	"github.com/joelkehle/medlite/internal/medsummary"
	"github.com/joelkehle/medlite/internal/operator"
	"github.com/joelkehle/medlite/internal/tracing"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *logrus.Logger
	closers []func(context.Context) error

	newRenderer func() (operator.ReportPDFRenderer, error)
}

func newApp() *app {
	a := &app{v: config.New()}
	a.newRenderer = func() (operator.ReportPDFRenderer, error) {
		layout, err := operator.ParsePageLayout(a.cfg.Output.Paper)
		if err != nil {
			return nil, err
		}
		return operator.NewChromiumPDFRenderer(layout), nil
	}
	return a
}

func newRootCmd() *cobra.Command { return newRootCmdFor(newApp()) }

func newRootCmdFor(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "medlite",
		Short:         "Summarize medical reports into plain language",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.ErrOrStderr())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./medlite.yaml or ./config/medlite.yaml)")
	flags.String("backend", "", "generation backend: huggingface, anthropic, gemini or none")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("generation.backend", flags.Lookup("backend"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		newSummarizeCmd(a),
		newSamplesCmd(a),
		newTranslateCmd(a),
		newRenderCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
	)
	return root
}

func (a *app) setup(logOut io.Writer) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}, logOut)
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	a.closers = append(a.closers, func(context.Context) error { return closer.Close() })
	return nil
}

func (a *app) close(ctx context.Context) error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.WithoutCancel(ctx)); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func (a *app) translator() (*medsummary.Translator, error) {
	mode, err := medsummary.ParseTranslationMode(a.cfg.Summarizer.Translation)
	if err != nil {
		return nil, err
	}
	return medsummary.NewTranslator(medsummary.Terms(), mode), nil
}

// engine wires tracing, the generation backend ladder and the translator
// into a summarization engine.
func (a *app) engine(ctx context.Context) (*medsummary.Engine, error) {
	cfg := a.cfg
	tp, shutdown, err := tracing.Setup(ctx, tracing.Options{
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		ServiceName:  cfg.Tracing.ServiceName,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	tr, err := a.translator()
	if err != nil {
		return nil, err
	}

	g := cfg.Generation
	loader, err := generation.NewLoaderFromSettings(generation.Settings{
		Family: g.Backend,
		Models: g.Models,
		HuggingFace: generation.HuggingFaceConfig{
			Token:        g.HuggingFace.Token,
			InferenceURL: g.HuggingFace.InferenceURL,
			HubURL:       g.HuggingFace.HubURL,
		},
		AnthropicAPIKey: g.Anthropic.APIKey,
		GeminiAPIKey:    g.Gemini.APIKey,
		Guard: generation.GuardSettings{
			RatePerSecond:    g.RateLimit,
			Burst:            g.Burst,
			FailureThreshold: g.BreakerFailures,
			Cooldown:         g.BreakerCooldown,
		},
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("generation backend: %w", err)
	}

	opts := []medsummary.Option{
		medsummary.WithLogger(a.logger),
		medsummary.WithTranslator(tr),
		medsummary.WithTracerProvider(tp),
		medsummary.WithGenerationLimits(g.MaxLength, g.MinLength, g.MaxInputChars),
		medsummary.WithThresholds(cfg.Summarizer.GenerativeMinChars, cfg.Summarizer.RuleBasedMinChars),
		medsummary.WithTimeouts(g.Timeout, g.LoadTimeout),
	}
	if loader != nil {
		opts = append(opts, medsummary.WithLoader(loader))
	}
	return medsummary.NewEngine(opts...), nil
}

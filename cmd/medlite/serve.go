package main

import (
	"github.com/joelkehle/medlite/internal/mcpserver"
	"github.com/joelkehle/medlite/internal/operator"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			engine, err := a.engine(ctx)
			if err != nil {
				return err
			}
			// Load the backend up front so the first request does not pay for it.
			a.logger.WithField("tier", engine.ActiveTier(ctx)).Info("engine ready")

			renderer, err := a.newRenderer()
			if err != nil {
				return err
			}
			srv := operator.NewServer(engine, operator.Options{
				SamplesDir:     a.cfg.Samples.Dir,
				OutputDir:      a.cfg.Output.Dir,
				MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
				Renderer:       renderer,
				Logger:         a.logger,
			})
			s := a.cfg.Server
			return srv.ListenAndServe(ctx, s.Addr, s.ReadTimeout, s.WriteTimeout)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :8501)")
	_ = a.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve summarization tools over the Model Context Protocol (stdio)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			return mcpserver.New(engine, version, a.logger).Run(cmd.Context())
		},
	}
}

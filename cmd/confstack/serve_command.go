package main

import (
	"strings"

	"github.com/spf13/cobra"

	"confstack/internal/api"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve configuration lookups over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.ensureEngine(cmd.Context())
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			apiCfg := eng.Config().API
			if trimmed := strings.TrimSpace(bind); trimmed != "" {
				apiCfg.Bind = trimmed
			}
			srv, err := api.NewServer(apiCfg, eng, logger)
			if err != nil {
				return err
			}
			return srv.Serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (overrides [api] bind)")
	return cmd
}

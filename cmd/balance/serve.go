package main

import (
	"github.com/Veraticus/the-books-must-balance/internal/api"
	"github.com/Veraticus/the-books-must-balance/internal/engine"
	"github.com/Veraticus/the-books-must-balance/internal/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine over HTTP",
		Long: `Start a JSON HTTP server exposing accounts, transactions, rules,
matching, merging and mass actions under /api. Responses use the envelope
{"success": true, "data": ...} or {"success": false, "error": "..."}.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(cmd.Context(), func(store service.Storage, eng *engine.Engine) error {
				server := api.NewServer(store, eng)
				return server.Serve(cmd.Context(), appConfig.ServerAddr, appConfig.ShutdownTimeout)
			})
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))

	return cmd
}

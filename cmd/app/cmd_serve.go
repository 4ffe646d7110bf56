package main

import (
	"context"

	"github.com/spf13/cobra"

	"JumpVol/internal/di"
)

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the variation, features and fit endpoints over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		app, cleanup, err := di.InitializeApp(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
		return app.Run(context.Background())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

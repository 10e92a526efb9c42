package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"persona_ad_studio/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(os.Stdout)
		if err != nil {
			return err
		}
		srv, err := server.New(server.Deps{
			Refiner:  a.refiner,
			Pipeline: a.pipeline,
			Variator: a.variator,
			Catalog:  a.catalog,
			Config:   a.cfg,
			Logger:   a.log,
		})
		if err != nil {
			return err
		}
		listen := a.cfg.ServerAddr
		if serveAddr != "" {
			listen = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx, listen)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "http listen address (overrides config.server_addr)")
}

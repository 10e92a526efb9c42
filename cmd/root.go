package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "persona-ad-studio",
	Short: "Refine ad images and tailor ad copy to audience personas.",
	Long: `persona-ad-studio generates an ad image, has a vision model critique it and
edits it until approved, then adapts the image and its copy to audience personas.
Run "serve" for the HTTP API or use the subcommands for one-off runs.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config/config.json", "path to config.json (optional)")
	rootCmd.AddCommand(serveCmd, refineCmd, variateCmd, personasCmd)
}

// Execute is called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"persona_ad_studio/catalog"
	"persona_ad_studio/config"
)

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "Print the seed personas.",
	RunE: func(cmd *cobra.Command, args []string) error {
		// no provider call, so the config is read without validation
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		cat, err := catalog.Load(cfg.CatalogFile, cfg.AdsDir)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cat.Personas)
	},
}

package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"persona_ad_studio/generator"
	"persona_ad_studio/persona"
)

var variateFlags struct {
	image       string
	description string
}

var variateCmd = &cobra.Command{
	Use:   "variate",
	Short: "Rewrite an ad's copy for every seed persona and print JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if variateFlags.image == "" || variateFlags.description == "" {
			return fmt.Errorf("--image and --description are required")
		}
		data, err := os.ReadFile(variateFlags.image)
		if err != nil {
			return fmt.Errorf("read ad image: %w", err)
		}
		a, err := buildApp(os.Stderr)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		res, err := a.pipeline.Run(ctx, persona.CopyRequest{
			Personas:           a.catalog.SeedPersonas(),
			ProductDescription: variateFlags.description,
			AdImage:            generator.Image{Data: data, MimeType: http.DetectContentType(data)},
		})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	variateCmd.Flags().StringVarP(&variateFlags.image, "image", "i", "", "path to the source ad image")
	variateCmd.Flags().StringVarP(&variateFlags.description, "description", "d", "", "product description to tailor the copy to")
}

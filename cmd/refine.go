package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"persona_ad_studio/config"
	"persona_ad_studio/generator"
)

var refineFlags struct {
	prompt      string
	quality     string
	maxAttempts int
	out         string
}

var refineCmd = &cobra.Command{
	Use:   "refine",
	Short: "Generate an image and refine it until the evaluator approves.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if refineFlags.prompt == "" {
			return fmt.Errorf("--prompt is required")
		}
		if refineFlags.quality != "" && !config.ValidQuality(refineFlags.quality) {
			return fmt.Errorf("--quality must be one of low, medium, high, auto")
		}
		a, err := buildApp(os.Stderr)
		if err != nil {
			return err
		}
		req := generator.RefineRequest{Prompt: refineFlags.prompt, Quality: refineFlags.quality}
		if refineFlags.maxAttempts != 0 {
			req.MaxAttempts = config.ClampAttempts(refineFlags.maxAttempts)
		}

		sess, err := a.refiner.Run(cmd.Context(), req, func(ev generator.Event) {
			switch ev.Type {
			case generator.EventEvaluation:
				a.log.Info("evaluation", "step", *ev.Step, "feedback", ev.Feedback)
			case generator.EventImage:
				a.log.Info("image", "step", *ev.Step, "message", ev.Message)
			case generator.EventStatus:
				a.log.Info("status", "message", ev.Message)
			}
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(refineFlags.out, sess.Current.Data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", refineFlags.out, err)
		}
		fmt.Printf("approved=%t evaluations=%d cost=$%s image=%s\n",
			sess.Approved, sess.Evaluations(), generator.FormatCost(sess.Cost.Total()), refineFlags.out)
		return nil
	},
}

func init() {
	f := refineCmd.Flags()
	f.StringVarP(&refineFlags.prompt, "prompt", "p", "", "description of the image to generate")
	f.StringVarP(&refineFlags.quality, "quality", "q", "", "image quality override (low, medium, high, auto)")
	f.IntVarP(&refineFlags.maxAttempts, "max-attempts", "n", 0, "evaluation rounds, 1-5 (default from config)")
	f.StringVarP(&refineFlags.out, "out", "o", "refined.png", "where to write the final image")
}

package persona

import (
	"fmt"
	"strings"
)

const adAnalysisInstruction = `You are an expert marketer. Analyze this advertisement image and return your answer as a JSON object with these keys:
{
  "overallBlurb": "A concise summary of what makes this ad great overall.",
  "elements": [
    {
      "text": "The text from the ad element.",
      "type": "Type of copy (e.g., Headline, Subheadline, Body, CTA, Guarantee, etc.).",
      "whyItWorks": "A detailed explanation of what makes this element effective."
    }
    // ...repeat for each text element in the ad
  ]
}
Be extremely detailed in your analysis, especially in the 'whyItWorks' explanations.`

// adAnalysisSchema mirrors AdAnalysis without element IDs, which are
// assigned locally.
var adAnalysisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"overallBlurb": map[string]any{"type": "string"},
		"elements": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"text":       map[string]any{"type": "string"},
					"type":       map[string]any{"type": "string"},
					"whyItWorks": map[string]any{"type": "string"},
				},
				"required":             []string{"text", "type", "whyItWorks"},
				"additionalProperties": false,
			},
		},
	},
	"required":             []string{"overallBlurb", "elements"},
	"additionalProperties": false,
}

func buildPersonaAnalysisPrompt(p Persona, productDescription string) string {
	var sb strings.Builder
	sb.WriteString("Analyze how the following product resonates with this persona:\n\n")
	sb.WriteString(fmt.Sprintf("Persona Name: %s\n", p.Name))
	sb.WriteString(fmt.Sprintf("Persona Bio: %s\n", p.Bio))
	sb.WriteString(fmt.Sprintf("Product Description: %s\n\n", productDescription))
	sb.WriteString("1. Identify the 3 most compelling product benefits for this specific person\n\n")
	sb.WriteString("2. Explain why these benefits would resonate with them\n\n")
	sb.WriteString("3. Rank which product features would matter most to them\n\n")
	sb.WriteString("4. Suggest messaging angles that would address their specific pain points\n\n")
	sb.WriteString("5. Recommend the emotional triggers most likely to motivate a purchase\n\n")
	sb.WriteString("Be specific and use the actual language patterns identified in each persona.")
	return sb.String()
}

func buildRewritePrompt(el AdElement, productDescription, analysis string) string {
	var sb strings.Builder
	sb.WriteString("You are an expert marketer.\n")
	sb.WriteString("- Rewrite this ad text to better resonate with the persona, keeping the type and intent, ")
	sb.WriteString("but improving it based on the persona's needs tailoring it towards the new product description.\n")
	sb.WriteString("- Return only the improved text.\n")
	sb.WriteString("- You MUST keep the length of the text very similar to the original text.\n\n")
	sb.WriteString("Here is the ad element from an original ad:\n")
	sb.WriteString(fmt.Sprintf("Type: %s\n", el.Type))
	sb.WriteString(fmt.Sprintf("Text: \"%s\"\n", el.Text))
	sb.WriteString(fmt.Sprintf("Why it works: %s\n\n", el.WhyItWorks))
	sb.WriteString(fmt.Sprintf("Product Description: %s\n\n", productDescription))
	sb.WriteString("Persona Analysis:\n")
	sb.WriteString(analysis)
	sb.WriteString("\n")
	return sb.String()
}

func buildVisualPrompt(p Persona, originalPrompt string) string {
	return fmt.Sprintf("Optimize this image for %s audience persona. "+
		"Keep the general concept but adjust colors, style, and presentation to appeal specifically to this persona. "+
		"Original prompt: %s Persona bio: %s", p.Name, originalPrompt, p.Bio)
}

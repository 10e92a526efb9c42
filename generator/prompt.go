package generator

import (
	"strings"
)

const (
	initialImagePreamble = "generate an image of this description. make sure that the text on the image is clear, " +
		"and that you follow the prompt exactly. you are generating this image for a tech product visualization."

	imageEvaluationInstruction = "Evaluate this image for quality issues such as blurry text, distortions, or other problems. " +
		"Be extremely critical. You should also evaluate it if it's appealing as a tech product visualization. " +
		"Make sure all of the text is able to be seen and in frame. If the image looks good and has no major issues, " +
		"say 'APPROVED'. If the image needs to be fixed, be very specific about what needs to be fixed. " +
		"If the image needs to be fixed don't include the word APPROVED in your response. " +
		"Talk about what needs to be fixed, where, and how. Output the suggested text without any ** characters."

	imageImprovementTemplate = "{originalPrompt}. Improvements needed: {evaluationFeedback}. " +
		"Keep everything in the image the same except for what is specified to be changed."

	evaluationMaxTokens = 300
)

// BuildInitialImagePrompt 生成首张图片的提示词。
func BuildInitialImagePrompt(prompt string) string {
	return initialImagePreamble + " " + prompt
}

// BuildEvaluationPrompt asks a vision model to critique img.
func BuildEvaluationPrompt(model string, img Image) Prompt {
	return Prompt{
		Model:     model,
		User:      imageEvaluationInstruction,
		Images:    []ImageInput{{Data: img.Data, MimeType: img.MimeType}},
		MaxTokens: evaluationMaxTokens,
	}
}

// BuildImprovementPrompt 把原始提示词与评审意见合并为编辑提示词。
func BuildImprovementPrompt(original, feedback string) string {
	r := strings.NewReplacer("{originalPrompt}", original, "{evaluationFeedback}", feedback)
	return r.Replace(imageImprovementTemplate)
}

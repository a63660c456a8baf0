package rewrite

import "fmt"

const genericPrompt = "Rewrite the following content so it is clear and engaging:\n\n%s"

var prompts = map[string]string{
	"tweet":      "Convert this into an engaging Twitter thread with 3-5 tweets:\n\n%s",
	"linkedin":   "Rewrite as a professional LinkedIn post:\n\n%s",
	"summary":    "Summarize this in 2-3 sentences:\n\n%s",
	"email":      "Write a professional email based on:\n\n%s",
	"ad":         "Write short, persuasive ad copy with a clear call to action based on:\n\n%s",
	"blog":       "Expand into a blog post with headers:\n\n%s",
	"story":      "Retell this as a short, vivid story:\n\n%s",
	"smalltalk":  "Suggest friendly small talk openers and follow-up questions about:\n\n%s",
	"salespitch": "Turn this into a concise sales pitch that leads with the customer's problem:\n\n%s",
	"thanks":     "Write a warm, sincere thank-you note based on:\n\n%s",
	"followup":   "Write a polite follow-up message based on:\n\n%s",
	"apology":    "Write a genuine apology that takes responsibility and offers a next step, based on:\n\n%s",
	"reminder":   "Write a clear, friendly reminder message based on:\n\n%s",
	"agenda":     "Turn this into a meeting agenda with timed items and owners:\n\n%s",
	"interview":  "Write interview questions and strong sample answers based on:\n\n%s",
}

// Prompt builds the instruction for tool. Unknown tools get a generic rewrite.
func Prompt(tool, text string) string {
	tmpl, ok := prompts[tool]
	if !ok {
		tmpl = genericPrompt
	}
	return fmt.Sprintf(tmpl, text)
}

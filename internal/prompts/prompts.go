// Package prompts holds the embedded prompt templates used for bill
// page extraction.
package prompts

import (
	"bytes"
	_ "embed"
	"text/template"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed page.tmpl
var pagePromptTmpl string

var pageTemplate = template.Must(template.New("page").Parse(pagePromptTmpl))

// PageContext carries the per-page data interpolated into the user prompt.
// PreviousItems lists item names already extracted from earlier pages so
// the model does not re-extract them. PageText, when set, is the embedded
// text layer for text-only models.
type PageContext struct {
	PageNo        int
	PreviousItems []string
	PageText      string
}

// SystemPrompt returns the system prompt for bill extraction.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt builds the per-page user prompt. Output is deterministic for
// a given context.
func UserPrompt(ctx PageContext) string {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, ctx); err != nil {
		// Fallback to raw template on error
		return pagePromptTmpl
	}
	return buf.String()
}

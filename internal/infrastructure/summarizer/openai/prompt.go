package openai

import (
	"fmt"
	"strings"

	"github.com/mkorolev/docbrief/internal/core/domain"
)

// Summarizer input is capped so one oversized document cannot blow the
// provider context window. Follow-up answers use the stored summary only.
const maxPromptChars = 48_000

func buildSummaryPrompt(text string, opts domain.SummaryOptions) string {
	if len(text) > maxPromptChars {
		text = text[:maxPromptChars]
	}

	style := opts.Style
	if style == "" {
		style = "detailed"
	}
	language := opts.Language
	if language == "" {
		language = "english"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following document in %s.\n", language)
	fmt.Fprintf(&b, "Style: %s.\n", style)
	if opts.MaxLength > 0 {
		fmt.Fprintf(&b, "Keep the summary under %d words.\n", opts.MaxLength)
	}
	b.WriteString("Return only the summary text, no preamble.\n\nDocument:\n")
	b.WriteString(text)
	return b.String()
}

func buildAnswerPrompt(question, summary string) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the document summary below.\n")
	b.WriteString("If the summary does not contain the answer, say so.\n\n")
	b.WriteString("Summary:\n")
	b.WriteString(summary)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	return b.String()
}

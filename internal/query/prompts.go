package query

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are Mortgage Agent, a compliant assistant for Canadian mortgage guidance.
Rules:
- Use only the provided Context excerpts for factual claims.
- If the Context is insufficient, state that and ask a clarifying question.
- Do not provide personalized financial or legal advice.
- Cite sources using the provided bracketed IDs exactly (e.g., [S1]); do not invent or alter citation IDs.
- Every factual sentence must include at least one citation tag.
- List only the IDs that were actually used in the answer text.
- Keep the response concise and grounded in the sources.`

// buildContext formats retrieved sources into the prompt context block. Each
// excerpt is labeled with its citation id so the model can only refer to
// sources the retriever returned.
func buildContext(sources []Source) string {
	var lines []string
	for _, source := range sources {
		title := source.PageTitle
		if title == "" {
			title = source.Title
		}
		if title == "" {
			title = "Untitled Source"
		}
		url := source.SourceURL
		if url == "" {
			url = "URL unavailable"
		}
		jurisdiction := source.Jurisdiction
		if jurisdiction == "" {
			jurisdiction = "N/A"
		}

		for _, excerpt := range source.Excerpts {
			text := strings.TrimSpace(excerpt.Text)
			if text == "" {
				continue
			}
			lines = append(lines, fmt.Sprintf("[%s] %s", source.ID, text))
			lines = append(lines, fmt.Sprintf("Source: %s | %s | %s", title, url, jurisdiction))
			lines = append(lines, "")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func buildUserPrompt(contextBlock, question string) string {
	return fmt.Sprintf(
		"Context:\n%s\n\nUser question:\n%s\n\nAnswer using only the provided context excerpts.",
		contextBlock, question,
	)
}

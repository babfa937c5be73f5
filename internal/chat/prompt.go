package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/accionlabs/intelhub/internal/models"
)

// FallbackAnswer is the sentence the model is told to use when the data cannot answer a question.
const FallbackAnswer = "I'm sorry, but I cannot answer that question based on the provided data."

// SummaryPlaceholder is returned by Summarize when no summary could be generated.
const SummaryPlaceholder = "Could not generate a summary for the provided data."

// SummarySampleRows is how many leading rows Summarize sends.
const SummarySampleRows = 10

func chatPrompt(question, description string, rows []models.Row, total int) (string, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are 'Accion Insights Bot', a helpful data analyst. Your ONLY task is to answer questions based on the JSON data provided about %s.\n", description)
	fmt.Fprintf(&b, "If the answer is not in the data, say: %q\n\n", FallbackAnswer)
	b.WriteString("FORMATTING RULES:\n")
	b.WriteString("- Use Markdown for all responses.\n")
	b.WriteString("- Use headings (#, ##), bullets (*), and bold text (**text**).\n")
	b.WriteString("- For lists of items, YOU MUST use a Markdown table.\n\n")
	if len(rows) < total {
		fmt.Fprintf(&b, "NOTE: the data below contains only the first %d of %d rows. Say so if the answer may depend on rows that are not shown.\n\n", len(rows), total)
	}
	b.WriteString("DATA:\n```json\n")
	b.Write(data)
	b.WriteString("\n```\n\n")
	fmt.Fprintf(&b, "Question: %q\n", question)
	return b.String(), nil
}

func summaryPrompt(description string, rows []models.Row) (string, error) {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode rows: %w", err)
	}
	return fmt.Sprintf(`You are a data analyst. Give a concise, factual summary of this data snippet, which represents %s.
The summary MUST be a single paragraph strictly under 150 characters.
Do not add conversational text or introductions such as "This data shows...".
Focus only on key facts such as total counts, main categories or overall status.

Data sample:
`+"```json\n%s\n```\n", description, data), nil
}

package rag

import (
	"fmt"
	"strings"

	"github.com/FinleyAI/finley-mvp/engine/domain"
)

// promptTemplate constrains the model to the supplied excerpts only, fixes
// number formatting, and pins the exact fallback wording so insufficient
// evidence stays distinguishable downstream.
const promptTemplate = `You are a financial analysis assistant with access to a company's financial report. Use only the information provided in the context below to answer the user's question accurately and professionally.

Instructions:
- Respond with clear, concise, and relevant financial insights.
- Present all numerical figures in a clear and well-formatted manner (e.g., use commas for thousands, and include currency or percentage symbols where applicable).
- Do not add or assume any information outside the given context.
- If the answer is not available in the context, respond with: "Information not available."
- Do not mention the context or documents in your answer.

Context:
%s

Question:
%s

Answer:
`

// buildPrompt joins the retrieved chunk texts, in retrieval order, separated
// by blank lines, and embeds them with the verbatim question.
func buildPrompt(retrieved domain.RetrievalResult, question string) string {
	parts := make([]string, 0, len(retrieved))
	for _, c := range retrieved {
		parts = append(parts, c.Text)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}

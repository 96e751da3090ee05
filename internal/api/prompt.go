package api

import (
	"fmt"
	"strings"

	"github.com/sunwardhq/helpdesk/internal/knowledge"
)

// systemPrompt frames the assistant's role for every turn. Retrieved
// articles are appended per request by ragContext.
const systemPrompt = `You are the Sunward Support Assistant, a friendly, knowledgeable AI helper for Sunward HC-1 customers.

Your role is to help customers with:
- Device setup, reset, and configuration
- Connectivity, accessories, and app compatibility
- Troubleshooting common issues

Guidelines:
- Be warm, concise, and helpful
- When you know the answer, provide clear step-by-step instructions
- If you're unsure about something, say so honestly and recommend contacting the support team
- IMPORTANT: when you use information from the provided knowledge base articles, cite the article title naturally (e.g. "According to our guide on [Title]...")

Always maintain a positive, solution-oriented tone.`

// ragContext renders retrieved articles as a prompt block. Returns the
// empty string when there is nothing to add.
func ragContext(articles []knowledge.Article) string {
	if len(articles) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n---\nRELEVANT KNOWLEDGE BASE ARTICLES:\n\n")
	for i, a := range articles {
		fmt.Fprintf(&b, "[Article %d: %q | Category: %s]\n%s\n\n", i+1, a.Title, a.Category, a.Content)
	}
	b.WriteString("---\nUse the above articles to inform your answer. If the articles are relevant, base your response on them. If not, answer from your general knowledge.\n")
	return b.String()
}

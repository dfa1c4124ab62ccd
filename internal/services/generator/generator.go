// Package generator produces the assistant reply for a question, preferring
// a configured provider and degrading to a deterministic extractive answer.
// Generation never fails: the caller always receives a reply string.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/docent/internal/interfaces"
	"github.com/ternarybob/docent/internal/models"
)

// NoRelevantInfoMessage is returned when retrieval produced no usable
// evidence for the question
const NoRelevantInfoMessage = "I couldn't find relevant information in this document to answer your question."

// fallbackQuoteLimit caps the quoted chunk length in extractive answers
const fallbackQuoteLimit = 300

const systemPrompt = "You are a helpful assistant answering questions about a document. " +
	"Answer using only the provided document context. " +
	"If the context does not contain the answer, say so plainly."

// Input carries everything the generator needs for one reply
type Input struct {
	Question      string
	DocumentTitle string
	Evidence      []interfaces.Evidence // best-first retrieval results
	History       []models.Message      // bounded window, oldest first
}

// Generator produces replies with provider fallback
type Generator struct {
	providers []interfaces.LLMService // fallback order; may be empty
	logger    arbor.ILogger
}

// NewGenerator creates a generator over the given provider fallback order.
// An empty provider list means every reply uses the extractive path.
func NewGenerator(providers []interfaces.LLMService, logger arbor.ILogger) *Generator {
	return &Generator{
		providers: providers,
		logger:    logger,
	}
}

// Generate produces a reply for the question. Providers are tried in order;
// when all fail (or none are configured) the extractive fallback answers from
// the retrieved evidence. With no evidence at all, the fixed no-information
// message is returned. This method never returns an error and never panics.
func (g *Generator) Generate(ctx context.Context, input Input) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Generator panicked, returning extractive fallback")
			reply = g.extractiveAnswer(input)
		}
	}()

	if len(input.Evidence) == 0 {
		return NoRelevantInfoMessage
	}

	messages := g.buildMessages(input)
	for _, provider := range g.providers {
		response, err := provider.Generate(ctx, messages)
		if err == nil && strings.TrimSpace(response) != "" {
			return strings.TrimSpace(response)
		}
		g.logger.Warn().Err(err).Msg("Provider generation failed, trying next")
	}

	return g.extractiveAnswer(input)
}

// buildMessages assembles the provider conversation: system framing, the
// bounded history window oldest first, then the question with its evidence
// context
func (g *Generator) buildMessages(input Input) []interfaces.LLMMessage {
	messages := make([]interfaces.LLMMessage, 0, len(input.History)+2)
	messages = append(messages, interfaces.LLMMessage{Role: "system", Content: systemPrompt})

	for _, msg := range input.History {
		role := "user"
		if msg.Role == models.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, interfaces.LLMMessage{Role: role, Content: msg.Content})
	}

	messages = append(messages, interfaces.LLMMessage{
		Role:    "user",
		Content: fmt.Sprintf("Context from documents:\n%s\n\nQuestion: %s", g.buildContextText(input.Evidence), input.Question),
	})
	return messages
}

// buildContextText labels each evidence chunk with its document title
func (g *Generator) buildContextText(evidence []interfaces.Evidence) string {
	var sb strings.Builder
	for i, ev := range evidence {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		title := ev.DocumentTitle
		if title == "" {
			title = "Document"
		}
		sb.WriteString(fmt.Sprintf("[%s]\n%s", title, ev.Text))
	}
	return sb.String()
}

// extractiveAnswer quotes the evidence chunk with the highest keyword overlap
// with the question, truncated and attributed to the document
func (g *Generator) extractiveAnswer(input Input) string {
	if len(input.Evidence) == 0 {
		return NoRelevantInfoMessage
	}

	keywords := questionKeywords(input.Question)

	best := input.Evidence[0]
	bestOverlap := -1
	for _, ev := range input.Evidence {
		overlap := keywordOverlap(keywords, ev.Text)
		if overlap > bestOverlap {
			best = ev
			bestOverlap = overlap
		}
	}

	quote := strings.TrimSpace(best.Text)
	if len(quote) > fallbackQuoteLimit {
		quote = strings.TrimSpace(quote[:fallbackQuoteLimit]) + "..."
	}

	title := best.DocumentTitle
	if title == "" {
		title = input.DocumentTitle
	}
	if title == "" {
		title = "the document"
	}
	return fmt.Sprintf("Based on \"%s\": %s", title, quote)
}

// questionKeywords lowercases and splits the question, dropping short stop
// words that carry no signal
func questionKeywords(question string) []string {
	words := strings.Fields(strings.ToLower(question))
	keywords := make([]string, 0, len(words))
	for _, word := range words {
		word = strings.Trim(word, ".,!?\"'():;")
		if len(word) > 2 {
			keywords = append(keywords, word)
		}
	}
	return keywords
}

// keywordOverlap counts how many question keywords appear in the text
func keywordOverlap(keywords []string, text string) int {
	lower := strings.ToLower(text)
	count := 0
	for _, keyword := range keywords {
		if strings.Contains(lower, keyword) {
			count++
		}
	}
	return count
}

package documents

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ternarybob/docent/internal/models"
)

// readingWordsPerMinute is the rate used for reading time estimates
const readingWordsPerMinute = 200

// topKeywordCount caps the keyword list in a structure analysis
const topKeywordCount = 10

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	sentenceBreak  = regexp.MustCompile(`[.!?](\s+|$)`)
	wordPattern    = regexp.MustCompile(`[a-zA-Z][a-zA-Z'-]*`)
)

// stopWords are excluded from keyword extraction
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "were": true,
	"has": true, "have": true, "had": true, "but": true, "not": true,
	"you": true, "your": true, "they": true, "their": true, "them": true,
	"its": true, "his": true, "her": true, "she": true, "him": true,
	"can": true, "will": true, "would": true, "should": true, "could": true,
	"been": true, "being": true, "into": true, "onto": true, "over": true,
	"under": true, "about": true, "after": true, "before": true, "when": true,
	"where": true, "which": true, "while": true, "there": true, "these": true,
	"those": true, "then": true, "than": true, "also": true, "more": true,
	"most": true, "some": true, "such": true, "only": true, "other": true,
	"what": true, "who": true, "how": true, "all": true, "any": true,
	"each": true, "may": true, "must": true, "shall": true, "does": true,
	"did": true, "doing": true, "because": true, "between": true, "both": true,
	"during": true, "through": true, "very": true, "just": true, "out": true,
}

// analyzeText computes word, paragraph and sentence counts, the top content
// keywords and an estimated reading time for the text
func analyzeText(text string) *models.DocumentStructure {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return &models.DocumentStructure{}
	}

	words := wordPattern.FindAllString(trimmed, -1)

	paragraphCount := 0
	for _, paragraph := range paragraphBreak.Split(trimmed, -1) {
		if strings.TrimSpace(paragraph) != "" {
			paragraphCount++
		}
	}

	sentenceCount := len(sentenceBreak.FindAllString(trimmed, -1))
	if sentenceCount == 0 {
		sentenceCount = 1
	}

	readingTime := (len(words) + readingWordsPerMinute - 1) / readingWordsPerMinute
	if readingTime == 0 {
		readingTime = 1
	}

	return &models.DocumentStructure{
		WordCount:          len(words),
		ParagraphCount:     paragraphCount,
		SentenceCount:      sentenceCount,
		TopKeywords:        topKeywords(words),
		ReadingTimeMinutes: readingTime,
	}
}

// topKeywords returns the most frequent non-stopword terms, most frequent
// first with alphabetical tie-break
func topKeywords(words []string) []string {
	frequencies := make(map[string]int)
	for _, word := range words {
		lower := strings.ToLower(word)
		if len(lower) < 3 || stopWords[lower] {
			continue
		}
		frequencies[lower]++
	}
	if len(frequencies) == 0 {
		return nil
	}

	keywords := make([]string, 0, len(frequencies))
	for word := range frequencies {
		keywords = append(keywords, word)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if frequencies[keywords[i]] != frequencies[keywords[j]] {
			return frequencies[keywords[i]] > frequencies[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})

	if len(keywords) > topKeywordCount {
		keywords = keywords[:topKeywordCount]
	}
	return keywords
}

// extractiveSummary returns roughly the first three sentences of the text,
// used when no provider can produce a summary
func extractiveSummary(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}

	locations := sentenceBreak.FindAllStringIndex(trimmed, -1)
	if len(locations) == 0 {
		if len(trimmed) > 400 {
			return strings.TrimSpace(trimmed[:400]) + "..."
		}
		return trimmed
	}

	end := locations[len(locations)-1][1]
	if len(locations) >= 3 {
		end = locations[2][1]
	}
	summary := strings.TrimSpace(trimmed[:end])
	if len(summary) > 600 {
		summary = strings.TrimSpace(summary[:600]) + "..."
	}
	return summary
}

// extractiveQAPairs builds simple question-answer pairs from the document's
// own sentences, used when no provider can generate them. Each substantive
// sentence becomes the answer to a question about its opening words.
func extractiveQAPairs(text string, count int) []models.QAPair {
	var pairs []models.QAPair
	for _, part := range strings.Split(text, ".") {
		sentence := strings.TrimSpace(part)
		if len(sentence) <= 20 {
			continue
		}
		words := strings.Fields(sentence)
		if len(words) <= 5 {
			continue
		}
		pairs = append(pairs, models.QAPair{
			Question: "What is mentioned about " + strings.Join(words[:3], " ") + "?",
			Answer:   sentence,
		})
		if len(pairs) == count {
			break
		}
	}
	return pairs
}

// Package chunker splits document text into ordered, bounded fragments that
// feed the embedding pipeline.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
)

// DefaultMaxChars is the chunk character cap used when none is configured
const DefaultMaxChars = 1000

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
)

// Fragment is one chunk of source text with its character offsets into the
// normalized input
type Fragment struct {
	Text  string
	Start int
	End   int
}

// Chunker splits text on paragraph boundaries, re-packing oversized
// paragraphs from sentence boundaries
type Chunker struct {
	maxChars int
	logger   arbor.ILogger
}

// NewChunker creates a chunker with the given character cap per chunk
func NewChunker(maxChars int, logger arbor.ILogger) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Chunker{
		maxChars: maxChars,
		logger:   logger,
	}
}

// MaxChars returns the configured chunk character cap
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// Chunk splits text into ordered fragments. Empty or whitespace-only input
// yields no fragments. Every fragment is non-empty after trimming and at most
// maxChars long; concatenated in order, the fragments cover all substantive
// text of the input.
func (c *Chunker) Chunk(text string) []Fragment {
	normalized := strings.TrimSpace(text)
	if normalized == "" {
		return nil
	}

	var fragments []Fragment
	cursor := 0

	for _, paragraph := range paragraphSplit.Split(normalized, -1) {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}

		if len(trimmed) <= c.maxChars {
			fragments = c.appendFragment(fragments, normalized, &cursor, trimmed)
			continue
		}

		for _, piece := range c.packSentences(trimmed) {
			fragments = c.appendFragment(fragments, normalized, &cursor, piece)
		}
	}

	if c.logger != nil {
		c.logger.Debug().
			Int("input_chars", len(normalized)).
			Int("chunks", len(fragments)).
			Msg("Chunked text")
	}
	return fragments
}

// packSentences splits an oversized paragraph on sentence boundaries and
// accumulates sentences until the cap would be exceeded. A single sentence
// longer than the cap is hard-split so no chunk ever exceeds maxChars.
func (c *Chunker) packSentences(paragraph string) []string {
	sentences := splitSentences(paragraph)

	var pieces []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			pieces = append(pieces, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, sentence := range sentences {
		if len(sentence) > c.maxChars {
			flush()
			pieces = append(pieces, hardSplit(sentence, c.maxChars)...)
			continue
		}

		if current.Len() > 0 && current.Len()+1+len(sentence) > c.maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	flush()

	return pieces
}

// hardSplit breaks an oversized sentence into pieces of at most max bytes.
// Each cut prefers the last space inside the window so words stay whole; when
// a single word exceeds the window the cut backs up to a rune boundary so the
// piece is still valid UTF-8.
func hardSplit(sentence string, max int) []string {
	var pieces []string
	rest := sentence
	for len(rest) > max {
		cut := strings.LastIndexByte(rest[:max+1], ' ')
		if cut <= 0 {
			cut = max
			for cut > 0 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
			if cut == 0 {
				cut = max
			}
		}
		if piece := strings.TrimSpace(rest[:cut]); piece != "" {
			pieces = append(pieces, piece)
		}
		rest = strings.TrimSpace(rest[cut:])
	}
	if rest != "" {
		pieces = append(pieces, rest)
	}
	return pieces
}

// splitSentences splits on ., ! or ? followed by whitespace, keeping the
// terminator with its sentence
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")

	var sentences []string
	for _, part := range strings.Split(marked, "\x00") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

// appendFragment records a fragment, resolving its offsets by scanning
// forward from the previous fragment's end
func (c *Chunker) appendFragment(fragments []Fragment, source string, cursor *int, text string) []Fragment {
	start := strings.Index(source[*cursor:], text)
	if start >= 0 {
		start += *cursor
		*cursor = start + len(text)
	} else {
		// Re-packed sentences may not appear verbatim; fall back to cursor
		start = *cursor
	}

	return append(fragments, Fragment{
		Text:  text,
		Start: start,
		End:   start + len(text),
	})
}

package document

import (
	"regexp"
	"strings"
)

// Chunk budget defaults, in tokens of the reference encoding.
const (
	// MaxChunkTokens is the upper bound for a chunk's token count, except
	// when a single paragraph alone exceeds it.
	MaxChunkTokens = 600

	// OverlapTokens bounds the trailing context carried into the next chunk
	// of the same section.
	OverlapTokens = 100
)

// paragraphRe splits a section body at blank-line boundaries.
var paragraphRe = regexp.MustCompile(`\n\n+`)

// Chunker breaks sections into token-bounded passages with controlled
// overlap. Safe for concurrent use; it holds no mutable state.
type Chunker struct {
	counter       Counter
	maxTokens     int
	overlapTokens int
}

// NewChunker creates a Chunker with the standard 600/100 token budgets.
func NewChunker(counter Counter) *Chunker {
	return &Chunker{
		counter:       counter,
		maxTokens:     MaxChunkTokens,
		overlapTokens: OverlapTokens,
	}
}

// ChunkDocument chunks every section in order, assigning each chunk a
// zero-based index relative to the whole document.
func (c *Chunker) ChunkDocument(sections []Section) []Chunk {
	var chunks []Chunk
	for _, sec := range sections {
		for _, text := range c.splitSection(sec) {
			chunks = append(chunks, Chunk{
				SectionTitle: sec.Title,
				Text:         text,
				TokenCount:   c.counter.Count(text),
				Index:        len(chunks),
			})
		}
	}
	return chunks
}

// splitSection returns the chunk texts for one section.
//
// A section at or under the budget is returned whole. Otherwise paragraphs
// are packed greedily; when adding a paragraph would overflow a non-empty
// buffer, the buffer is closed as a chunk and as many of its trailing
// paragraphs as fit within the overlap budget (walking backward) are carried
// into the next buffer. A paragraph larger than the budget on its own still
// becomes a single chunk; it is never subdivided.
func (c *Chunker) splitSection(sec Section) []string {
	if c.counter.Count(sec.Body) <= c.maxTokens {
		return []string{sec.Body}
	}

	paragraphs := paragraphRe.Split(sec.Body, -1)

	var chunks []string
	var buffer []string
	bufferTokens := 0

	for _, para := range paragraphs {
		paraTokens := c.counter.Count(para)

		if len(buffer) > 0 && bufferTokens+paraTokens > c.maxTokens {
			chunks = append(chunks, strings.Join(buffer, "\n\n"))

			overlap, overlapTokens := c.overlapTail(buffer)
			buffer = append(overlap, para)
			bufferTokens = overlapTokens + paraTokens
			continue
		}

		buffer = append(buffer, para)
		bufferTokens += paraTokens
	}

	if len(buffer) > 0 {
		chunks = append(chunks, strings.Join(buffer, "\n\n"))
	}

	return chunks
}

// overlapTail walks a closed buffer backward, accumulating trailing
// paragraphs while their cumulative token count stays within the overlap
// budget. Returns the overlap paragraphs in source order plus their total.
func (c *Chunker) overlapTail(buffer []string) ([]string, int) {
	var overlap []string
	total := 0

	for i := len(buffer) - 1; i >= 0; i-- {
		paraTokens := c.counter.Count(buffer[i])
		if total+paraTokens > c.overlapTokens {
			break
		}
		overlap = append([]string{buffer[i]}, overlap...)
		total += paraTokens
	}

	return overlap, total
}

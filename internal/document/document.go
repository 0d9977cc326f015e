// Package document turns raw MDX book pages into retrieval-sized chunks.
//
// The pipeline is: ParseMDX (front matter + JSX stripping) → SplitSections
// (heading boundaries) → Chunker (token-budgeted passages with overlap).
// Everything here is pure; token counting is delegated to a Counter so the
// same encoding backs both ingestion and query time.
package document

import (
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Counter counts tokens in a text using the pipeline's fixed encoding.
// Satisfied by token.Counter.
type Counter interface {
	Count(text string) int
}

// Document is a single book page: the normalized body plus identity metadata.
// Immutable once parsed; its lifecycle is a single ingestion pass.
type Document struct {
	Title  string // page title from front matter, or the file stem
	Source string // path relative to the docs root
	Body   string // normalized markdown content
}

// Section is a titled slice of a document, split at heading boundaries.
type Section struct {
	Title string
	Body  string
}

// Chunk is the fundamental retrieval unit: a token-bounded passage tagged
// with its section title and a zero-based index relative to the whole
// document. TokenCount may exceed the chunk budget only when a single
// paragraph alone exceeds it.
type Chunk struct {
	SectionTitle string
	Text         string
	TokenCount   int
	Index        int
}

var (
	frontMatterRe = regexp.MustCompile(`(?s)\A---\n(.*?)\n---\n?`)
	importLineRe  = regexp.MustCompile(`(?m)^import\s+.+$`)
	jsxOpenTagRe  = regexp.MustCompile(`<[A-Z]\w*[^>]*/?>`)
	jsxCloseTagRe = regexp.MustCompile(`</[A-Z]\w*>`)
)

// frontMatter is the subset of page front matter the pipeline cares about.
type frontMatter struct {
	Title string `yaml:"title"`
}

// ParseMDX normalizes a raw MDX page: YAML front matter is stripped (its
// title is returned), MDX import lines and JSX component tags are removed.
// Malformed front matter is treated as absent rather than failing the page.
func ParseMDX(raw string) (title, body string) {
	body = raw

	if m := frontMatterRe.FindStringSubmatch(body); m != nil {
		var fm frontMatter
		if err := yaml.Unmarshal([]byte(m[1]), &fm); err == nil {
			title = fm.Title
		}
		body = body[len(m[0]):]
	}

	body = importLineRe.ReplaceAllString(body, "")
	body = jsxOpenTagRe.ReplaceAllString(body, "")
	body = jsxCloseTagRe.ReplaceAllString(body, "")

	return title, strings.TrimSpace(body)
}

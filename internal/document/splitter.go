package document

import (
	"regexp"
	"strings"
)

// headingRe matches level-2 and level-3 markdown headings.
var headingRe = regexp.MustCompile(`^(#{2,3})\s+(.+)$`)

// IntroductionTitle names the implicit section formed by lines that appear
// before the first heading.
const IntroductionTitle = "Introduction"

// SplitSections breaks a normalized document body into titled sections at
// `##`/`###` heading boundaries. Lines before the first heading form a
// section titled "Introduction". Sections whose body is empty after trimming
// are dropped, so empty input yields an empty slice. Callers must treat an
// empty result as an ingestion failure for the document.
func SplitSections(body string) []Section {
	var sections []Section

	currentTitle := IntroductionTitle
	var currentLines []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(currentLines, "\n"))
		if text != "" {
			sections = append(sections, Section{Title: currentTitle, Body: text})
		}
		currentLines = currentLines[:0]
	}

	for _, line := range strings.Split(body, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			currentTitle = strings.TrimSpace(m[2])
			continue
		}
		currentLines = append(currentLines, line)
	}
	flush()

	return sections
}

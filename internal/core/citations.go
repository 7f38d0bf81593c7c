package core

import (
	"regexp"

	"github.com/physical-ai/textbook-assistant/internal/retrieval"
)

var citationPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// ExtractCitations scans the generated answer for bracketed
// "Chapter - Section" markers and resolves each to its source URL using the
// context the answer was generated from. Matching is exact and
// case-sensitive; bracket spans that name no context chunk are ignored.
// URLs appear once each, in order of first appearance.
func ExtractCitations(answer string, contextChunks []retrieval.ContextChunk) []string {
	var citations []string
	seen := make(map[string]struct{})

	for _, match := range citationPattern.FindAllStringSubmatch(answer, -1) {
		key := match[1]
		for _, chunk := range contextChunks {
			if chunk.Chapter+" - "+chunk.Section != key {
				continue
			}
			if _, ok := seen[chunk.URL]; !ok {
				seen[chunk.URL] = struct{}{}
				citations = append(citations, chunk.URL)
			}
			break
		}
	}
	return citations
}

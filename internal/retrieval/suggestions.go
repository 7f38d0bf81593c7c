package retrieval

import (
	"fmt"
	"regexp"
	"strings"
)

// topicPattern matches capitalized spans such as "Gazebo Simulation" or
// "Inverse Kinematics" that make plausible follow-up topics.
var topicPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

type suggestionTemplates struct {
	topic        []func(string) string
	section      func(string) string
	howAsked     string
	whatAsked    string
	exampleAsked string
}

var englishTemplates = suggestionTemplates{
	topic: []func(string) string{
		func(t string) string { return fmt.Sprintf("How does %s work?", t) },
		func(t string) string { return fmt.Sprintf("What is %s?", t) },
		func(t string) string { return fmt.Sprintf("Why use %s?", t) },
		func(t string) string { return fmt.Sprintf("Can you show an example of %s?", t) },
		func(t string) string { return fmt.Sprintf("Compare different %s approaches", t) },
	},
	section:      func(s string) string { return fmt.Sprintf("Tell me more about %s", s) },
	howAsked:     "What are practical applications of this?",
	whatAsked:    "What are the advantages and disadvantages?",
	exampleAsked: "Show me a code example",
}

var urduTemplates = suggestionTemplates{
	topic: []func(string) string{
		func(t string) string { return fmt.Sprintf("%s کیسے کام کرتا ہے؟", t) },
		func(t string) string { return fmt.Sprintf("%s کیا ہے؟", t) },
		func(t string) string { return fmt.Sprintf("%s کیوں استعمال کیا جاتا ہے؟", t) },
		func(t string) string { return fmt.Sprintf("%s کی مثال دیں", t) },
		func(t string) string { return fmt.Sprintf("%s کا موازنہ کریں", t) },
	},
	section:      func(s string) string { return fmt.Sprintf("%s کے بارے میں مزید بتائیں", s) },
	howAsked:     "اس کے عملی استعمال کیا ہیں؟",
	whatAsked:    "اس کے فوائد اور نقصانات کیا ہیں؟",
	exampleAsked: "",
}

// Suggestions derives up to 4 follow-up questions from the retrieved
// context: topic questions from capitalized spans in the chunks, "tell me
// more" questions from section labels, and one heuristic follow-up keyed
// off the shape of the original query.
func Suggestions(query string, retrieved []ContextChunk, language Language) []string {
	if len(retrieved) == 0 {
		return nil
	}

	templates := englishTemplates
	if language == LangUrdu {
		templates = urduTemplates
	}

	var topics, sections []string
	seenTopic := map[string]struct{}{}
	seenSection := map[string]struct{}{}
	for _, chunk := range retrieved {
		if _, ok := seenSection[chunk.Section]; !ok && chunk.Section != "" {
			seenSection[chunk.Section] = struct{}{}
			sections = append(sections, chunk.Section)
		}
		for _, term := range topicPattern.FindAllString(chunk.Content, 3) {
			if _, ok := seenTopic[term]; !ok {
				seenTopic[term] = struct{}{}
				topics = append(topics, term)
			}
		}
	}

	var suggestions []string

	if len(topics) > 2 {
		topics = topics[:2]
	}
	for i, topic := range topics {
		suggestions = append(suggestions, templates.topic[i%len(templates.topic)](topic))
	}

	if len(sections) > 2 {
		sections = sections[:2]
	}
	for _, section := range sections {
		suggestions = append(suggestions, templates.section(section))
	}

	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "how") || strings.Contains(query, "کیسے"):
		suggestions = append(suggestions, templates.howAsked)
	case strings.Contains(lower, "what") || strings.Contains(query, "کیا"):
		suggestions = append(suggestions, templates.whatAsked)
	case templates.exampleAsked != "" &&
		(strings.Contains(lower, "code") || strings.Contains(lower, "example")):
		suggestions = append(suggestions, templates.exampleAsked)
	}

	return dedupe(suggestions, 4)
}

func dedupe(values []string, limit int) []string {
	seen := make(map[string]struct{}, len(values))
	var out []string
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

package retrieval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestionsFromTopicsAndSections(t *testing.T) {
	retrieved := []ContextChunk{
		{
			Content: "Gazebo Simulation lets you test robots before deploying. Unified Robot Description files describe links.",
			Chapter: "Simulation",
			Section: "Getting Started",
			URL:     "/a",
		},
		{
			Content: "lowercase content with no proper nouns here",
			Chapter: "Simulation",
			Section: "World Files",
			URL:     "/b",
		},
	}

	suggestions := Suggestions("tell me about simulation", retrieved, LangEnglish)

	require.NotEmpty(t, suggestions)
	assert.LessOrEqual(t, len(suggestions), 4)
	assert.Contains(t, suggestions, "How does Gazebo Simulation work?")
	assert.Contains(t, suggestions, "Tell me more about Getting Started")
}

func TestSuggestionsEmptyWithoutContext(t *testing.T) {
	assert.Empty(t, Suggestions("anything", nil, LangEnglish))
}

func TestSuggestionsCappedAtFour(t *testing.T) {
	retrieved := []ContextChunk{
		{Content: "Alpha Beta and Gamma Delta plus Epsilon Zeta topics", Section: "One", URL: "/a"},
		{Content: "Eta Theta with Iota Kappa and Lambda Mu", Section: "Two", URL: "/b"},
		{Content: "Nu Xi besides Omicron Pi", Section: "Three", URL: "/c"},
	}

	suggestions := Suggestions("how does this work", retrieved, LangEnglish)
	assert.LessOrEqual(t, len(suggestions), 4)
}

func TestSuggestionsDeduplicated(t *testing.T) {
	retrieved := []ContextChunk{
		{Content: "Gazebo Simulation basics", Section: "Intro", URL: "/a"},
		{Content: "Gazebo Simulation basics", Section: "Intro", URL: "/a"},
	}

	suggestions := Suggestions("simulation", retrieved, LangEnglish)
	seen := map[string]int{}
	for _, s := range suggestions {
		seen[s]++
		assert.Equal(t, 1, seen[s], "suggestion %q repeated", s)
	}
}

func TestSuggestionsHowHeuristic(t *testing.T) {
	retrieved := []ContextChunk{
		{Content: "plain text", Section: "Intro", URL: "/a"},
	}

	suggestions := Suggestions("how do motors spin", retrieved, LangEnglish)
	assert.Contains(t, suggestions, "What are practical applications of this?")
}

func TestSuggestionsUrdu(t *testing.T) {
	retrieved := []ContextChunk{
		{Content: "Gazebo Simulation basics", Section: "Intro", URL: "/a"},
	}

	suggestions := Suggestions("roboticks kya hai", retrieved, LangUrdu)
	require.NotEmpty(t, suggestions)
	joined := strings.Join(suggestions, " ")
	assert.NotContains(t, joined, "How does", "urdu output must not use english templates")
}

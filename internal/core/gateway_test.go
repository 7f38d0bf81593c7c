package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physical-ai/textbook-assistant/internal/retrieval"
)

// fakeCompleter fails the first failures calls, then succeeds.
type fakeCompleter struct {
	failures int
	calls    int
	answer   string

	lastSystem  string
	lastUser    string
	lastHistory []Message
}

func (f *fakeCompleter) Complete(ctx context.Context, system string, history []Message, userMessage string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = userMessage
	f.lastHistory = history
	if f.calls <= f.failures {
		return "", errors.New("simulated network error")
	}
	return f.answer, nil
}

func testGateway(completer Completer, maxRetries int) *Gateway {
	g := NewGateway(completer, maxRetries)
	g.backoff = func(int) time.Duration { return 0 }
	return g
}

func TestGatewayRetriesThenSucceeds(t *testing.T) {
	fake := &fakeCompleter{failures: 2, answer: "the answer"}
	g := testGateway(fake, 2)

	answer, err := g.Generate(context.Background(), SystemPrompt(retrieval.LangEnglish), nil, nil, "question")
	require.NoError(t, err)
	assert.Equal(t, "the answer", answer)
	assert.Equal(t, 3, fake.calls)
}

func TestGatewayExhaustsRetries(t *testing.T) {
	fake := &fakeCompleter{failures: 10}
	g := testGateway(fake, 2)

	_, err := g.Generate(context.Background(), SystemPrompt(retrieval.LangEnglish), nil, nil, "question")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, 3, fake.calls, "budget of 2 retries means 3 attempts")
	assert.Contains(t, err.Error(), "simulated network error", "underlying cause is preserved")
}

func TestGatewayStopsOnCancelledContext(t *testing.T) {
	fake := &fakeCompleter{failures: 10}
	g := NewGateway(fake, 5)
	g.backoff = func(int) time.Duration { return time.Hour }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx, "system", nil, nil, "question")
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, 1, fake.calls, "no further retries after cancellation")
}

func TestGatewayPromptContainsContextAndQuestion(t *testing.T) {
	fake := &fakeCompleter{answer: "ok"}
	g := testGateway(fake, 0)

	chunks := []retrieval.ContextChunk{
		{Chapter: "ROS 2", Section: "Nodes", Content: "nodes publish topics", URL: "/a"},
		{Chapter: "ROS 2", Section: "Topics", Content: "topics carry messages", URL: "/b"},
	}

	_, err := g.Generate(context.Background(), "system", chunks, nil, "how do nodes talk?")
	require.NoError(t, err)
	assert.Contains(t, fake.lastUser, "[Source 1: ROS 2 - Nodes]\nnodes publish topics")
	assert.Contains(t, fake.lastUser, "[Source 2: ROS 2 - Topics]")
	assert.Contains(t, fake.lastUser, "User question: how do nodes talk?")
	assert.Equal(t, "system", fake.lastSystem)
}

func TestGatewayTitleTrimsDecoration(t *testing.T) {
	fake := &fakeCompleter{answer: "\"Robot Basics.\"\n"}
	g := testGateway(fake, 0)

	title, err := g.Title(context.Background(), "what is a robot?")
	require.NoError(t, err)
	assert.Equal(t, "Robot Basics", title)
}

func TestFormatContextSeparator(t *testing.T) {
	chunks := []retrieval.ContextChunk{
		{Chapter: "A", Section: "1", Content: "first"},
		{Chapter: "B", Section: "2", Content: "second"},
	}
	formatted := FormatContext(chunks)
	assert.Contains(t, formatted, "[Source 1: A - 1]\nfirst\n")
	assert.Contains(t, formatted, "\n---\n\n[Source 2: B - 2]\nsecond\n")
}

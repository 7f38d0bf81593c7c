package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/physical-ai/textbook-assistant/internal/retrieval"
)

// ErrGenerationFailed means the hosted model call exhausted its retry
// budget. The underlying cause is wrapped.
var ErrGenerationFailed = errors.New("generation failed")

// Message is one turn of a conversation as seen by the generation layer.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Completer is the hosted model behind the gateway: an ordered message
// sequence in, raw text out.
type Completer interface {
	Complete(ctx context.Context, system string, history []Message, userMessage string) (string, error)
}

// SamplingConfig carries the fixed sampling parameters for generation.
type SamplingConfig struct {
	Model       string
	Temperature float32
	TopP        float32
	MaxTokens   int32
}

// GeminiCompleter implements Completer on the Gemini API.
type GeminiCompleter struct {
	client   *genai.Client
	sampling SamplingConfig
}

func NewGeminiCompleter(ctx context.Context, apiKey string, sampling SamplingConfig) (*GeminiCompleter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiCompleter{client: client, sampling: sampling}, nil
}

func (c *GeminiCompleter) Close() {
	if c.client != nil {
		if err := c.client.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing GenAI client")
		}
	}
}

func (c *GeminiCompleter) Complete(ctx context.Context, system string, history []Message, userMessage string) (string, error) {
	model := c.client.GenerativeModel(c.sampling.Model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(system)},
	}

	temp := c.sampling.Temperature
	topP := c.sampling.TopP
	maxTokens := c.sampling.MaxTokens
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		TopP:            &topP,
		MaxOutputTokens: &maxTokens,
	}

	session := model.StartChat()
	for _, msg := range history {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		session.History = append(session.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(userMessage))
	if err != nil {
		return "", fmt.Errorf("gemini SendMessage failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned an empty response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	if text.Len() == 0 {
		return "", fmt.Errorf("gemini response contained no text parts")
	}
	return text.String(), nil
}

// Gateway sends prompts to the hosted model with a bounded retry budget and
// exponential backoff. Each call's retry sequence is local to that call.
type Gateway struct {
	completer  Completer
	maxRetries int

	// backoff returns how long to wait before retry number attempt+1.
	// Overridable in tests; defaults to 2^attempt seconds.
	backoff func(attempt int) time.Duration
}

func NewGateway(completer Completer, maxRetries int) *Gateway {
	return &Gateway{
		completer:  completer,
		maxRetries: maxRetries,
		backoff: func(attempt int) time.Duration {
			return time.Duration(math.Pow(2, float64(attempt))) * time.Second
		},
	}
}

// Generate combines the retrieved context with the user's question and asks
// the model for an answer. Transport failures and empty bodies are retried
// up to the retry budget; exhaustion returns ErrGenerationFailed with the
// last cause preserved. A cancelled context stops further retries.
func (g *Gateway) Generate(ctx context.Context, systemPrompt string, contextChunks []retrieval.ContextChunk, history []Message, userMessage string) (string, error) {
	prompt := contextPrompt(contextChunks, userMessage)

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		answer, err := g.completer.Complete(ctx, systemPrompt, history, prompt)
		if err == nil {
			return answer, nil
		}
		lastErr = err

		if attempt == g.maxRetries {
			break
		}
		delay := g.backoff(attempt)
		log.Warn().Err(err).
			Int("attempt", attempt+1).
			Dur("retry_in", delay).
			Msg("Generation attempt failed, retrying")
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", ErrGenerationFailed, ctx.Err())
		case <-time.After(delay):
		}
	}
	return "", fmt.Errorf("%w: %w", ErrGenerationFailed, lastErr)
}

// Title asks the model for a 3-5 word conversation title.
func (g *Gateway) Title(ctx context.Context, basis string) (string, error) {
	prompt := fmt.Sprintf("Generate a very concise title (3-5 words maximum) for a conversation that starts with or is about: %q.", basis)
	title, err := g.completer.Complete(ctx, titleSystemInstruction, nil, prompt)
	if err != nil {
		return "", fmt.Errorf("title generation failed: %w", err)
	}
	return strings.Trim(title, "\"'\n\r\t ."), nil
}

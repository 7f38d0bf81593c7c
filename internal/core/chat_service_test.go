package core

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/physical-ai/textbook-assistant/internal/corpus"
	"github.com/physical-ai/textbook-assistant/internal/retrieval"
	"github.com/physical-ai/textbook-assistant/internal/store"
)

func writeTestCorpus(t *testing.T) string {
	t.Helper()
	ds := corpus.Dataset{
		EmbeddingDim: 4,
		Chunks: []corpus.Chunk{
			{
				Module:    "02-ros2",
				Chapter:   "ROS 2",
				Section:   "Nodes",
				Content:   "ROS 2 nodes publish topics to communicate",
				URL:       "/docs/modules/02-ros2/chapter-01-intro#nodes",
				Embedding: []float32{0.5, 0.5, 0.5, 0.5},
			},
			{
				Module:    "03-simulation",
				Chapter:   "Gazebo",
				Section:   "Worlds",
				Content:   "Gazebo simulates physics worlds",
				URL:       "/docs/modules/03-simulation/chapter-01-gazebo",
				Embedding: []float32{0.1, 0.9, 0.2, 0.1},
			},
		},
	}

	raw, err := json.Marshal(ds)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "embeddings.json")
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	return path
}

func newTestChatService(t *testing.T, completer Completer) (*ChatService, *store.SQLiteStore) {
	t.Helper()

	dbStore, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbStore.Close() })

	corpusStore := corpus.NewStore("", writeTestCorpus(t))
	selector := retrieval.NewSelector(
		corpusStore,
		retrieval.NewKeywordRanker(retrieval.DefaultKeywordConfig()),
		retrieval.SelectorOptions{TopK: 3, UseChapterContext: true},
	)

	return NewChatService(dbStore, selector, testGateway(completer, 2)), dbStore
}

func seedUserAndChat(t *testing.T, db *store.SQLiteStore) (*store.User, *store.Chat) {
	t.Helper()
	user, err := db.CreateUser("student-1", "hash")
	require.NoError(t, err)
	// Title set so turns do not spawn background title generation.
	title := "Seeded chat"
	chat, err := db.CreateChat(user.ID, &title)
	require.NoError(t, err)
	return user, chat
}

func TestPostMessageSuccess(t *testing.T) {
	fake := &fakeCompleter{answer: "Nodes talk over topics [ROS 2 - Nodes]."}
	svc, db := newTestChatService(t, fake)
	user, chat := seedUserAndChat(t, db)

	result, err := svc.PostMessage(context.Background(), chat.ID, user.ID,
		"How do ROS 2 nodes work?", "/docs/modules/02-ros2/chapter-01-intro", retrieval.LangEnglish)
	require.NoError(t, err)

	assert.Equal(t, "assistant", result.Message.Sender)
	assert.Equal(t, []string{"/docs/modules/02-ros2/chapter-01-intro#nodes"}, result.Message.Citations)
	assert.NotEmpty(t, result.Suggestions)

	messages, err := db.GetMessagesByChatID(chat.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Sender)
	assert.Equal(t, "assistant", messages[1].Sender)
}

func TestPostMessageRollsBackOnGenerationFailure(t *testing.T) {
	fake := &fakeCompleter{failures: 10}
	svc, db := newTestChatService(t, fake)
	user, chat := seedUserAndChat(t, db)

	_, err := svc.PostMessage(context.Background(), chat.ID, user.ID,
		"How do ROS 2 nodes work?", "/docs/modules/02-ros2/chapter-01-intro", retrieval.LangEnglish)
	assert.ErrorIs(t, err, ErrGenerationFailed)

	messages, err := db.GetMessagesByChatID(chat.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages, "a failed turn must leave history untouched")
}

func TestPostMessageRollsBackWhenNoContext(t *testing.T) {
	fake := &fakeCompleter{answer: "unused"}
	svc, db := newTestChatService(t, fake)
	user, chat := seedUserAndChat(t, db)

	_, err := svc.PostMessage(context.Background(), chat.ID, user.ID,
		"How do nodes work?", "/docs/modules/99-missing/chapter-01", retrieval.LangEnglish)
	assert.ErrorIs(t, err, retrieval.ErrNoRelevantContext)
	assert.Zero(t, fake.calls, "generation must not run without context")

	messages, err := db.GetMessagesByChatID(chat.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestPostMessageUnknownChat(t *testing.T) {
	fake := &fakeCompleter{answer: "unused"}
	svc, _ := newTestChatService(t, fake)

	_, err := svc.PostMessage(context.Background(), "no-such-chat", 42,
		"question", "", retrieval.LangEnglish)
	assert.EqualError(t, err, "chat not found")
}

func TestPostMessageSendsHistoryBeforeCurrentTurn(t *testing.T) {
	fake := &fakeCompleter{answer: "answer [ROS 2 - Nodes]"}
	svc, db := newTestChatService(t, fake)
	user, chat := seedUserAndChat(t, db)

	_, err := svc.PostMessage(context.Background(), chat.ID, user.ID,
		"How do ROS 2 nodes work?", "/docs/modules/02-ros2/chapter-01-intro", retrieval.LangEnglish)
	require.NoError(t, err)
	assert.Empty(t, fake.lastHistory, "first turn has no history")

	_, err = svc.PostMessage(context.Background(), chat.ID, user.ID,
		"What about ROS 2 topics?", "/docs/modules/02-ros2/chapter-01-intro", retrieval.LangEnglish)
	require.NoError(t, err)

	require.Len(t, fake.lastHistory, 2, "second turn sees the first exchange only")
	assert.Equal(t, "user", fake.lastHistory[0].Role)
	assert.Equal(t, "assistant", fake.lastHistory[1].Role)
}

func TestAnswerStateless(t *testing.T) {
	fake := &fakeCompleter{answer: "Nodes publish [ROS 2 - Nodes]."}
	svc, _ := newTestChatService(t, fake)

	answer, citations, suggestions, err := svc.Answer(context.Background(),
		"How do ROS 2 nodes work?", nil, nil, "/docs/modules/02-ros2/chapter-01-intro", retrieval.LangEnglish)
	require.NoError(t, err)

	assert.Equal(t, "Nodes publish [ROS 2 - Nodes].", answer)
	assert.Equal(t, []string{"/docs/modules/02-ros2/chapter-01-intro#nodes"}, citations)
	assert.NotEmpty(t, suggestions)
}

func TestAnswerUsesProvidedContext(t *testing.T) {
	fake := &fakeCompleter{answer: "see [Custom - Part]"}
	svc, _ := newTestChatService(t, fake)

	provided := []retrieval.ContextChunk{
		{Chapter: "Custom", Section: "Part", Content: "caller-supplied excerpt", URL: "/custom"},
	}
	_, citations, _, err := svc.Answer(context.Background(), "question", provided, nil, "", retrieval.LangEnglish)
	require.NoError(t, err)

	assert.Equal(t, []string{"/custom"}, citations)
	assert.Contains(t, fake.lastUser, "caller-supplied excerpt")
}

package core

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/physical-ai/textbook-assistant/internal/retrieval"
	"github.com/physical-ai/textbook-assistant/internal/store"
)

// historyWindow is how many recent messages are sent to the model as
// conversation history.
const historyWindow = 5

// ChatService orchestrates a conversation turn: retrieval, generation,
// citation extraction, suggestions, and persistence. A failed turn leaves
// the stored history exactly as it was before the turn started.
type ChatService struct {
	dbStore  *store.SQLiteStore
	selector *retrieval.Selector
	gateway  *Gateway
}

func NewChatService(db *store.SQLiteStore, selector *retrieval.Selector, gateway *Gateway) *ChatService {
	return &ChatService{
		dbStore:  db,
		selector: selector,
		gateway:  gateway,
	}
}

func (s *ChatService) CreateUser(externalUserID, passwordHash string) (*store.User, error) {
	return s.dbStore.CreateUser(externalUserID, passwordHash)
}

func (s *ChatService) GetUserByExternalID(externalUserID string) (*store.User, error) {
	return s.dbStore.GetUserByExternalID(externalUserID)
}

func (s *ChatService) GetChats(userID int64) ([]store.Chat, error) {
	return s.dbStore.GetChatsByUserID(userID)
}

func (s *ChatService) GetChatDetails(chatID string, userID int64) (*store.Chat, []store.Message, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get chat: %w", err)
	}
	if chat == nil {
		return nil, nil, nil // Not found
	}

	messages, err := s.dbStore.GetMessagesByChatID(chatID, 100, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get messages for chat: %w", err)
	}
	return chat, messages, nil
}

// TurnResult is the outcome of one successful conversation turn.
type TurnResult struct {
	Message     *store.Message `json:"message"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

// CreateChat opens a new chat, optionally answering a first message.
func (s *ChatService) CreateChat(ctx context.Context, userID int64, firstMessage *string, location string, language retrieval.Language) (*store.Chat, []store.Message, error) {
	chat, err := s.dbStore.CreateChat(userID, nil) // Title is generated after the first exchange
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create chat in DB: %w", err)
	}

	var messages []store.Message
	if firstMessage != nil && *firstMessage != "" {
		result, err := s.PostMessage(ctx, chat.ID, userID, *firstMessage, location, language)
		if err != nil {
			// The chat itself exists; the first turn was rolled back.
			log.Warn().Err(err).Str("chat_id", chat.ID).Msg("First turn of new chat failed")
			return chat, nil, nil
		}
		stored, err := s.dbStore.GetMessagesByChatID(chat.ID, 2, 0)
		if err == nil {
			messages = stored
		} else {
			messages = []store.Message{*result.Message}
		}
	}

	return chat, messages, nil
}

// PostMessage runs one conversation turn. The user message is appended
// strictly before retrieval starts; any later failure deletes it again so
// history never contains a user turn without its answer.
func (s *ChatService) PostMessage(ctx context.Context, chatID string, userID int64, content, location string, language retrieval.Language) (*TurnResult, error) {
	chat, err := s.dbStore.GetChatByID(chatID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to verify chat: %w", err)
	}
	if chat == nil {
		return nil, fmt.Errorf("chat not found")
	}

	// History is captured before this turn's user message is appended.
	historyMsgs, err := s.dbStore.GetLastNMessagesByChatID(chatID, historyWindow)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to load chat history, proceeding without it")
		historyMsgs = nil
	}

	userMsg := store.Message{
		ChatID:  chatID,
		Sender:  "user",
		Content: content,
	}
	if err := s.dbStore.CreateMessage(&userMsg); err != nil {
		return nil, fmt.Errorf("failed to store user message: %w", err)
	}

	rollback := func() {
		if err := s.dbStore.DeleteMessage(userMsg.ID); err != nil {
			log.Error().Err(err).Str("message_id", userMsg.ID).Msg("Failed to roll back user message")
		}
	}

	contextChunks, err := s.selector.GetContext(ctx, content, location)
	if err != nil {
		rollback()
		return nil, err
	}

	answer, err := s.gateway.Generate(ctx, SystemPrompt(language), contextChunks, toGatewayHistory(historyMsgs), content)
	if err != nil {
		rollback()
		return nil, err
	}

	assistantMsg := store.Message{
		ChatID:    chatID,
		Sender:    "assistant",
		Content:   answer,
		Citations: ExtractCitations(answer, contextChunks),
	}
	if err := s.dbStore.CreateMessage(&assistantMsg); err != nil {
		rollback()
		return nil, fmt.Errorf("failed to store assistant message: %w", err)
	}

	if chat.Title == nil || *chat.Title == "" {
		go s.generateAndSaveChatTitle(chatID, userID, content)
	}

	return &TurnResult{
		Message:     &assistantMsg,
		Suggestions: retrieval.Suggestions(content, contextChunks, language),
	}, nil
}

// Answer serves the stateless chat contract: retrieval is run when the
// caller did not supply context, and nothing is persisted.
func (s *ChatService) Answer(ctx context.Context, message string, providedContext []retrieval.ContextChunk, history []Message, location string, language retrieval.Language) (string, []string, []string, error) {
	contextChunks := providedContext
	if len(contextChunks) == 0 {
		var err error
		contextChunks, err = s.selector.GetContext(ctx, message, location)
		if err != nil {
			return "", nil, nil, err
		}
	}

	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	answer, err := s.gateway.Generate(ctx, SystemPrompt(language), contextChunks, history, message)
	if err != nil {
		return "", nil, nil, err
	}

	citations := ExtractCitations(answer, contextChunks)
	suggestions := retrieval.Suggestions(message, contextChunks, language)
	return answer, citations, suggestions, nil
}

func (s *ChatService) SetMessageFeedback(messageID string, userID int64, negative bool) error {
	return s.dbStore.UpdateMessageFeedback(messageID, negative)
}

func (s *ChatService) generateAndSaveChatTitle(chatID string, userID int64, basisContent string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	title, err := s.gateway.Title(ctx, basisContent)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Msg("Failed to generate chat title")
		return
	}

	if err := s.dbStore.UpdateChatTitle(chatID, userID, title); err != nil {
		log.Warn().Err(err).Str("chat_id", chatID).Str("title", title).Msg("Failed to save generated chat title")
		return
	}
	log.Debug().Str("chat_id", chatID).Str("title", title).Msg("Saved generated chat title")
}

func toGatewayHistory(messages []store.Message) []Message {
	history := make([]Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, Message{
			Role:      msg.Sender,
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return history
}

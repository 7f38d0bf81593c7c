package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/physical-ai/textbook-assistant/internal/auth"
	"github.com/physical-ai/textbook-assistant/internal/core"
	"github.com/physical-ai/textbook-assistant/internal/retrieval"
	"github.com/physical-ai/textbook-assistant/internal/store"
)

type APIHandler struct {
	chatService *core.ChatService
}

func NewAPIHandler(cs *core.ChatService) *APIHandler {
	return &APIHandler{chatService: cs}
}

func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		externalUserID, err := auth.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		user, err := h.chatService.GetUserByExternalID(externalUserID)
		if err != nil {
			log.Error().Err(err).Str("user", externalUserID).Msg("Failed to resolve user identity")
			http.Error(w, "Failed to process user identity", http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Error(w, "User not found", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), "userID", user.ID)
		ctx = context.WithValue(ctx, "externalUserID", user.ExternalUserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type SignupRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to hash password")
		http.Error(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	user, err := h.chatService.CreateUser(req.UserID, hashedPassword)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" || req.Password == "" {
		http.Error(w, "User ID and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.chatService.GetUserByExternalID(req.UserID)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to look up user")
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := auth.GenerateJWT(req.UserID)
	if err != nil {
		log.Error().Err(err).Str("user", req.UserID).Msg("Failed to generate JWT")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"token": token})
}

// ChatRequest is the stateless chat contract: the caller supplies the
// message, optionally pre-retrieved context and recent history, and the URL
// of the page being read (used to scope retrieval to its module).
type ChatRequest struct {
	Message             string                   `json:"message"`
	Context             []retrieval.ContextChunk `json:"context,omitempty"`
	Language            retrieval.Language       `json:"language,omitempty"`
	ConversationHistory []core.Message           `json:"conversationHistory,omitempty"`
	CurrentURL          string                   `json:"current_url,omitempty"`
}

type ChatResponse struct {
	Response    string   `json:"response"`
	Citations   []string `json:"citations"`
	Suggestions []string `json:"suggestions,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeChatError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Message == "" {
		writeChatError(w, http.StatusBadRequest, "Missing required field: message")
		return
	}

	answer, citations, suggestions, err := h.chatService.Answer(
		r.Context(), req.Message, req.Context, req.ConversationHistory, req.CurrentURL, req.Language)
	if err != nil {
		status, msg := chatErrorStatus(err)
		log.Error().Err(err).Msg("Chat request failed")
		writeChatError(w, status, msg)
		return
	}

	json.NewEncoder(w).Encode(ChatResponse{
		Response:    answer,
		Citations:   citations,
		Suggestions: suggestions,
	})
}

func writeChatError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ChatResponse{Citations: []string{}, Error: msg})
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, retrieval.ErrNoRelevantContext):
		return http.StatusNotFound, "No relevant context found. Try asking about specific topics from the textbook."
	case errors.Is(err, core.ErrGenerationFailed):
		return http.StatusBadGateway, "Failed to get a response from the model. Please try again."
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

type CreateChatRequest struct {
	FirstMessage *string            `json:"first_message,omitempty"`
	Language     retrieval.Language `json:"language,omitempty"`
	CurrentURL   string             `json:"current_url,omitempty"`
}

type CreateChatResponse struct {
	*store.Chat
	Messages []store.Message `json:"messages,omitempty"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	var req CreateChatRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	chat, messages, err := h.chatService.CreateChat(r.Context(), userID, req.FirstMessage, req.CurrentURL, req.Language)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to create chat")
		http.Error(w, "Failed to create chat", http.StatusInternalServerError)
		return
	}

	resp := CreateChatResponse{
		Chat:     chat,
		Messages: messages,
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(resp)
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)

	chats, err := h.chatService.GetChats(userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to list chats")
		http.Error(w, "Failed to list chats", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(chats)
}

type GetChatDetailsResponse struct {
	*store.Chat
	Messages []store.Message `json:"messages"`
}

func (h *APIHandler) GetChatDetailsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	chatID := chi.URLParam(r, "chatID")

	chat, messages, err := h.chatService.GetChatDetails(chatID, userID)
	if err != nil {
		log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to get chat details")
		http.Error(w, "Failed to get chat details", http.StatusInternalServerError)
		return
	}
	if chat == nil {
		http.Error(w, "Chat not found", http.StatusNotFound)
		return
	}

	resp := GetChatDetailsResponse{
		Chat:     chat,
		Messages: messages,
	}
	json.NewEncoder(w).Encode(resp)
}

type PostMessageRequest struct {
	Content    string             `json:"content"`
	Language   retrieval.Language `json:"language,omitempty"`
	CurrentURL string             `json:"current_url,omitempty"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	chatID := chi.URLParam(r, "chatID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "Message content cannot be empty", http.StatusBadRequest)
		return
	}

	result, err := h.chatService.PostMessage(r.Context(), chatID, userID, req.Content, req.CurrentURL, req.Language)
	if err != nil {
		switch {
		case err.Error() == "chat not found":
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, retrieval.ErrNoRelevantContext):
			http.Error(w, "No relevant context found. Try asking about specific topics from the textbook.", http.StatusNotFound)
		case errors.Is(err, core.ErrGenerationFailed):
			http.Error(w, "Failed to get a response from the model. Please try again.", http.StatusBadGateway)
		default:
			log.Error().Err(err).Str("chat_id", chatID).Msg("Failed to post message")
			http.Error(w, "Failed to post message", http.StatusInternalServerError)
		}
		return
	}
	json.NewEncoder(w).Encode(result)
}

type FeedbackRequest struct {
	Negative bool `json:"negative"`
}

func (h *APIHandler) MessageFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value("userID").(int64)
	messageID := chi.URLParam(r, "messageID")

	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.chatService.SetMessageFeedback(messageID, userID, req.Negative)
	if err != nil {
		if strings.Contains(err.Error(), "message not found") {
			http.Error(w, err.Error(), http.StatusNotFound)
		} else {
			log.Error().Err(err).Str("message_id", messageID).Msg("Failed to set feedback")
			http.Error(w, "Failed to set feedback", http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"cetcompare/internal/agent"
	"cetcompare/internal/api"
)

// historyLimit is how many stored exchanges are loaded for a conversation.
const historyLimit = 10

// ChatStore persists conversations.
type ChatStore interface {
	SaveChatExchange(conversationID, userMessage, botMessage, service string) error
	LoadChatHistory(conversationID string, limit int) ([]agent.Exchange, error)
	ClearChatHistory(conversationID string) (int64, error)
}

// ChatHandler serves the assistant endpoints. Available is false when
// only canned replies are configured.
type ChatHandler struct {
	Provider  agent.Provider
	Available bool
	Store     ChatStore
}

// Status handles GET /api/chat/status
func (h *ChatHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, api.ChatStatus{
		Success:   true,
		Available: h.Available,
		Service:   h.Provider.Name(),
	})
}

// Chat handles POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, api.ChatResponse{Error: "No data provided"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondJSON(w, http.StatusBadRequest, api.ChatResponse{Error: "Message is required"})
		return
	}

	history := make([]agent.Exchange, 0, len(req.History))
	for _, ex := range req.History {
		history = append(history, agent.Exchange{User: ex.User, Bot: ex.Bot})
	}
	if len(history) == 0 && req.ConversationID != "" && h.Store != nil {
		stored, err := h.Store.LoadChatHistory(req.ConversationID, historyLimit)
		if err != nil {
			logRequestError(r, "Failed to load chat history", err)
		} else {
			history = stored
		}
	}

	reply, err := h.Provider.Reply(r.Context(), message, history)
	if err != nil {
		logRequestError(r, "Assistant reply failed", err)
		reply = agent.FriendlyError(err)
	} else if req.ConversationID != "" && h.Store != nil {
		if err := h.Store.SaveChatExchange(req.ConversationID, message, reply, h.Provider.Name()); err != nil {
			logRequestError(r, "Failed to save chat exchange", err)
		}
	}

	if logger != nil {
		logger.Debug("Chat reply",
			zap.String("service", h.Provider.Name()),
			zap.String("conversation_id", req.ConversationID),
			zap.Int("history", len(history)))
	}
	respondJSON(w, http.StatusOK, api.ChatResponse{
		Success:        true,
		Response:       reply,
		Service:        h.Provider.Name(),
		ConversationID: req.ConversationID,
	})
}

// Clear handles POST /api/chat/clear
func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var req api.ClearChatRequest
	// An empty body clears nothing but still succeeds.
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondJSON(w, http.StatusBadRequest, api.ErrorBody{
			Error:   "Invalid request",
			Message: err.Error(),
		})
		return
	}

	var cleared int64
	if req.ConversationID != "" && h.Store != nil {
		n, err := h.Store.ClearChatHistory(req.ConversationID)
		if err != nil {
			logRequestError(r, "Failed to clear chat history", err)
			respondJSON(w, http.StatusInternalServerError, api.ErrorBody{
				Error:   "Failed to clear chat",
				Message: err.Error(),
			})
			return
		}
		cleared = n
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Chat cleared",
		"cleared": cleared,
	})
}

// Package chat holds the assistant widget state shared by the terminal UI
// and the chat command.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cetcompare/internal/api"
)

// Status is the widget's view of the assistant backend.
type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusConnected   Status = "connected"
	StatusUnavailable Status = "capability-unavailable"
	StatusOffline     Status = "disconnected"
)

// Label is the short text shown in the widget header.
func (s Status) Label() string {
	switch s {
	case StatusConnected:
		return "Online"
	case StatusUnavailable:
		return "Limited (offline answers)"
	case StatusOffline:
		return "Disconnected"
	}
	return "Checking..."
}

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one line in the conversation.
type Message struct {
	Role   Role
	Text   string
	At     time.Time
	Failed bool
}

// ErrEmptyMessage is returned by Send for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// ErrBusy is returned by Send while a previous message is in flight.
var ErrBusy = errors.New("a message is already being sent")

const genericFailure = "Sorry, something went wrong. Please try again."

// Backend is the part of the API client the widget needs.
type Backend interface {
	Health(ctx context.Context) (*api.Health, error)
	ChatStatus(ctx context.Context) (*api.ChatStatus, error)
	Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error)
	ClearChat(ctx context.Context, conversationID string) error
}

// State is a copy of the widget for rendering.
type State struct {
	Status         Status
	Service        string
	Messages       []Message
	Sending        bool
	ConversationID string
}

// Widget tracks connection status and conversation for the assistant.
type Widget struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time

	mu             sync.Mutex
	status         Status
	service        string
	messages       []Message
	history        []api.Exchange
	sending        bool
	conversationID string
}

// NewWidget returns a widget with an unknown status and a fresh conversation id.
func NewWidget(backend Backend, logger *zap.Logger) *Widget {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Widget{
		backend:        backend,
		logger:         logger,
		now:            time.Now,
		status:         StatusUnknown,
		conversationID: uuid.NewString(),
	}
}

// Snapshot returns a copy of the widget state.
func (w *Widget) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return State{
		Status:         w.status,
		Service:        w.service,
		Messages:       append([]Message(nil), w.messages...),
		Sending:        w.sending,
		ConversationID: w.conversationID,
	}
}

// CheckStatus probes backend health and then assistant availability.
func (w *Widget) CheckStatus(ctx context.Context) Status {
	status, service := w.probe(ctx)

	w.mu.Lock()
	w.status = status
	if service != "" {
		w.service = service
	}
	w.mu.Unlock()
	return status
}

func (w *Widget) probe(ctx context.Context) (Status, string) {
	if _, err := w.backend.Health(ctx); err != nil {
		w.logger.Warn("backend health check failed", zap.Error(err))
		if api.IsNetworkError(err) {
			return StatusOffline, ""
		}
		return StatusUnknown, ""
	}

	st, err := w.backend.ChatStatus(ctx)
	if err != nil {
		w.logger.Warn("chat status check failed", zap.Error(err))
		if api.IsNetworkError(err) {
			return StatusOffline, ""
		}
		return StatusUnknown, ""
	}
	if !st.Available {
		return StatusUnavailable, st.Service
	}
	return StatusConnected, st.Service
}

// Send posts text with the conversation so far and records the reply.
// Failures are recorded as assistant messages; a network failure also
// marks the widget disconnected and re-checks status.
func (w *Widget) Send(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, ErrEmptyMessage
	}

	w.mu.Lock()
	if w.sending {
		w.mu.Unlock()
		return Message{}, ErrBusy
	}
	w.sending = true
	w.messages = append(w.messages, Message{Role: RoleUser, Text: text, At: w.now()})
	req := api.ChatRequest{
		Message:        text,
		History:        append([]api.Exchange(nil), w.history...),
		ConversationID: w.conversationID,
	}
	w.mu.Unlock()

	resp, err := w.backend.Chat(ctx, req)

	if err != nil {
		reply := w.fail(err)
		if api.IsNetworkError(err) {
			w.CheckStatus(ctx)
		}
		return reply, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sending = false
	reply := Message{Role: RoleAssistant, Text: resp.Response, At: w.now()}
	w.messages = append(w.messages, reply)
	w.history = append(w.history, api.Exchange{User: text, Bot: resp.Response})
	if resp.Service != "" {
		w.service = resp.Service
	}
	if w.status == StatusUnknown || w.status == StatusOffline {
		w.status = StatusConnected
	}
	return reply, nil
}

func (w *Widget) fail(err error) Message {
	w.logger.Warn("chat request failed", zap.Error(err))

	text := genericFailure
	var um interface{ UserMessage() string }
	if errors.As(err, &um) && um.UserMessage() != "" {
		text = um.UserMessage()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sending = false
	if api.IsNetworkError(err) {
		w.status = StatusOffline
	}
	reply := Message{Role: RoleAssistant, Text: text, At: w.now(), Failed: true}
	w.messages = append(w.messages, reply)
	return reply
}

// Clear forgets the conversation locally and on the server, and starts a
// new conversation id.
func (w *Widget) Clear(ctx context.Context) error {
	w.mu.Lock()
	id := w.conversationID
	w.messages = nil
	w.history = nil
	w.conversationID = uuid.NewString()
	w.mu.Unlock()

	if err := w.backend.ClearChat(ctx, id); err != nil {
		w.logger.Warn("failed to clear server chat history", zap.String("conversation_id", id), zap.Error(err))
		return err
	}
	return nil
}

package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"cetcompare/internal/api"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeBackend struct {
	healthErr   error
	status      *api.ChatStatus
	statusErr   error
	reply       *api.ChatResponse
	chatErr     error
	requests    []api.ChatRequest
	healthCalls int
	cleared     []string
}

func (f *fakeBackend) Health(ctx context.Context) (*api.Health, error) {
	f.healthCalls++
	if f.healthErr != nil {
		return nil, f.healthErr
	}
	return &api.Health{Status: "healthy"}, nil
}

func (f *fakeBackend) ChatStatus(ctx context.Context) (*api.ChatStatus, error) {
	return f.status, f.statusErr
}

func (f *fakeBackend) Chat(ctx context.Context, req api.ChatRequest) (*api.ChatResponse, error) {
	f.requests = append(f.requests, req)
	return f.reply, f.chatErr
}

func (f *fakeBackend) ClearChat(ctx context.Context, id string) error {
	f.cleared = append(f.cleared, id)
	return nil
}

var offline = &api.NetworkError{Op: "chat", URL: "http://localhost:5000/api/chat", Err: errors.New("connection refused")}

func TestCheckStatus(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		want    Status
	}{
		{"connected", &fakeBackend{status: &api.ChatStatus{Available: true, Service: "gemini"}}, StatusConnected},
		{"fallback only", &fakeBackend{status: &api.ChatStatus{Available: false, Service: "fallback"}}, StatusUnavailable},
		{"server unreachable", &fakeBackend{healthErr: offline}, StatusOffline},
		{"status endpoint broken", &fakeBackend{statusErr: &api.ServerError{Status: 500}}, StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWidget(tt.backend, nil)
			assert.Equal(t, StatusUnknown, w.Snapshot().Status)
			assert.Equal(t, tt.want, w.CheckStatus(context.Background()))
			assert.Equal(t, tt.want, w.Snapshot().Status)
		})
	}
}

func TestSendCarriesHistory(t *testing.T) {
	backend := &fakeBackend{reply: &api.ChatResponse{Success: true, Response: "Try COEP.", Service: "gemini"}}
	w := NewWidget(backend, nil)

	_, err := w.Send(context.Background(), "  best CS college in Pune?  ")
	require.NoError(t, err)
	_, err = w.Send(context.Background(), "and for IT?")
	require.NoError(t, err)

	require.Len(t, backend.requests, 2)
	assert.Equal(t, "best CS college in Pune?", backend.requests[0].Message)
	assert.Empty(t, backend.requests[0].History)
	assert.Equal(t, []api.Exchange{{User: "best CS college in Pune?", Bot: "Try COEP."}}, backend.requests[1].History)
	assert.Equal(t, backend.requests[0].ConversationID, backend.requests[1].ConversationID)

	st := w.Snapshot()
	assert.Len(t, st.Messages, 4)
	assert.Equal(t, StatusConnected, st.Status)
	assert.False(t, st.Sending)
}

func TestSendRejectsBlank(t *testing.T) {
	backend := &fakeBackend{}
	w := NewWidget(backend, nil)
	_, err := w.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, backend.requests)
}

func TestSendNetworkFailureRechecksStatus(t *testing.T) {
	backend := &fakeBackend{chatErr: offline, healthErr: offline}
	w := NewWidget(backend, nil)

	reply, err := w.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, reply.Failed)
	assert.Contains(t, reply.Text, "Make sure the backend is running")
	assert.Equal(t, 1, backend.healthCalls, "status is re-checked")
	assert.Equal(t, StatusOffline, w.Snapshot().Status)
	assert.False(t, w.Snapshot().Sending)
}

func TestSendServerFailureUsesServerMessage(t *testing.T) {
	backend := &fakeBackend{chatErr: &api.ServerError{Op: "chat", Status: 502, Message: "I'm receiving too many requests right now."}}
	w := NewWidget(backend, nil)

	reply, err := w.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, "I'm receiving too many requests right now.", reply.Text)
	assert.Zero(t, backend.healthCalls)

	backend.chatErr = &api.ServerError{Op: "chat", Status: 500}
	reply, _ = w.Send(context.Background(), "again")
	assert.Equal(t, "Sorry, something went wrong. Please try again.", reply.Text)
}

func TestClearStartsNewConversation(t *testing.T) {
	backend := &fakeBackend{reply: &api.ChatResponse{Success: true, Response: "ok"}}
	w := NewWidget(backend, nil)
	_, err := w.Send(context.Background(), "hi")
	require.NoError(t, err)
	before := w.Snapshot().ConversationID

	require.NoError(t, w.Clear(context.Background()))

	st := w.Snapshot()
	assert.Empty(t, st.Messages)
	assert.NotEqual(t, before, st.ConversationID)
	assert.Equal(t, []string{before}, backend.cleared)
}

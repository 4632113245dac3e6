package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mymechanic/pkg/audit"
	"github.com/dmitrymomot/mymechanic/pkg/chat"
)

type fakeModel struct {
	mu       sync.Mutex
	system   string
	messages []chat.Message
	reply    chat.Completion
	err      error
}

func (m *fakeModel) Complete(_ context.Context, system string, messages []chat.Message) (chat.Completion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.system = system
	m.messages = append([]chat.Message(nil), messages...)
	return m.reply, m.err
}

func TestExtractVehicle(t *testing.T) {
	t.Parallel()

	vehicle, clean := chat.ExtractVehicle("[Vehicle: 2015 Ford Focus 1.0 EcoBoost] Why is my engine light on?")
	assert.Equal(t, "2015 Ford Focus 1.0 EcoBoost", vehicle)
	assert.Equal(t, "Why is my engine light on?", clean)

	vehicle, clean = chat.ExtractVehicle("What oil should I use?")
	assert.Empty(t, vehicle)
	assert.Equal(t, "What oil should I use?", clean)
}

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	withVehicle := chat.SystemPrompt("2019 VW Golf")
	assert.Contains(t, withVehicle, "USER'S VEHICLE: 2019 VW Golf")
	assert.Contains(t, withVehicle, "You are My Mechanic")

	without := chat.SystemPrompt("")
	assert.NotContains(t, without, "USER'S VEHICLE")
	assert.Contains(t, without, "No specific vehicle provided")
}

func TestCostGBP(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, chat.CostGBP(0, 0), 1e-12)
	// 1M input at $3 plus 1M output at $15, converted at 0.79.
	assert.InDelta(t, 14.22, chat.CostGBP(1_000_000, 1_000_000), 1e-9)
	assert.InDelta(t, (1000*3.0+500*15.0)/1e6*0.79, chat.CostGBP(1000, 500), 1e-12)
}

func TestRequest_Validate(t *testing.T) {
	t.Parallel()

	longHistory := make([]chat.Message, chat.MaxHistoryLength+1)
	for i := range longHistory {
		longHistory[i] = chat.Message{Role: chat.RoleUser, Content: "hi"}
	}

	tests := []struct {
		name string
		req  chat.Request
		want error
	}{
		{"valid", chat.Request{Message: "hello"}, nil},
		{"empty", chat.Request{Message: "   "}, chat.ErrMessageRequired},
		{"only vehicle tag", chat.Request{Message: "[Vehicle: Mini Cooper]"}, chat.ErrMessageRequired},
		{"at limit", chat.Request{Message: strings.Repeat("é", chat.MaxMessageLength)}, nil},
		{"too long", chat.Request{Message: strings.Repeat("a", chat.MaxMessageLength+1)}, chat.ErrMessageTooLong},
		{"history too long", chat.Request{Message: "hi", History: longHistory}, chat.ErrHistoryTooLong},
		{"bad role", chat.Request{Message: "hi", History: []chat.Message{{Role: "system", Content: "x"}}}, chat.ErrInvalidHistory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, chat.ErrInvalidRequest)
		})
	}
}

func TestService_Reply(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: chat.Completion{Text: "Check the coil packs.", InputTokens: 1200, OutputTokens: 300}}
	history := chat.NewMemoryHistory()
	storage := audit.NewMemoryStorage()
	svc := chat.NewService(model,
		chat.WithHistory(history),
		chat.WithAuditor(audit.NewLogger(storage)),
	)

	reply, err := svc.Reply(context.Background(), chat.Request{
		UserID:  "user-1",
		PlanID:  "starter",
		Message: "[Vehicle: 2015 Ford Focus] It misfires when cold",
		History: []chat.Message{
			{Role: chat.RoleUser, Content: "Hello"},
			{Role: chat.RoleAssistant, Content: "Hi, how can I help?"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Check the coil packs.", reply.Text)
	assert.Equal(t, "2015 Ford Focus", reply.Vehicle)
	assert.InDelta(t, chat.CostGBP(1200, 300), reply.CostGBP, 1e-12)
	require.Len(t, reply.Conversation, 4)
	assert.Equal(t, chat.Message{Role: chat.RoleUser, Content: "It misfires when cold"}, reply.Conversation[2])
	assert.Equal(t, chat.Message{Role: chat.RoleAssistant, Content: "Check the coil packs."}, reply.Conversation[3])

	assert.Contains(t, model.system, "USER'S VEHICLE: 2015 Ford Focus")
	require.Len(t, model.messages, 3)
	assert.Equal(t, "It misfires when cold", model.messages[2].Content)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Close(ctx))

	entries := history.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "user-1", entries[0].UserID)
	assert.Equal(t, "It misfires when cold", entries[0].MessageText)
	assert.Equal(t, int64(1200), entries[0].InputTokens)
	assert.Equal(t, int64(300), entries[0].OutputTokens)

	events := storage.Events()
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionChat, events[0].Action)
	assert.Equal(t, "user-1", events[0].UserID)
	assert.Equal(t, int64(1500), events[0].Metadata["tokensUsed"])
}

func TestService_VehicleFromEarlierTurn(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: chat.Completion{Text: "ok"}}
	svc := chat.NewService(model)

	_, err := svc.Reply(context.Background(), chat.Request{
		UserID:  "user-1",
		Message: "And the brakes?",
		History: []chat.Message{
			{Role: chat.RoleUser, Content: "[Vehicle: 2012 Honda Jazz] Service interval?"},
			{Role: chat.RoleAssistant, Content: "Every 12 months."},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, model.system, "USER'S VEHICLE: 2012 Honda Jazz")
	assert.Equal(t, "Service interval?", model.messages[0].Content)
}

func TestService_ModelFailure(t *testing.T) {
	t.Parallel()

	history := chat.NewMemoryHistory()
	svc := chat.NewService(&fakeModel{err: errors.New("overloaded")}, chat.WithHistory(history))

	_, err := svc.Reply(context.Background(), chat.Request{UserID: "user-1", Message: "hello"})
	require.ErrorIs(t, err, chat.ErrModel)

	require.NoError(t, svc.Close(context.Background()))
	assert.Empty(t, history.Entries())
}

func TestService_InvalidRequestSkipsModel(t *testing.T) {
	t.Parallel()

	model := &fakeModel{reply: chat.Completion{Text: "ok"}}
	svc := chat.NewService(model)

	_, err := svc.Reply(context.Background(), chat.Request{UserID: "user-1", Message: ""})
	require.ErrorIs(t, err, chat.ErrMessageRequired)
	assert.Nil(t, model.messages)
}

func TestAnthropicModel_Complete(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		body map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		assert.NoError(t, json.Unmarshal(raw, &body))
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5-20250929",
			"content": [{"type": "text", "text": "Top up the coolant."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 42, "output_tokens": 7}
		}`)
	}))
	t.Cleanup(srv.Close)

	model, err := chat.NewAnthropicModel(chat.Config{
		APIKey:    "test-key",
		BaseURL:   srv.URL + "/",
		ModelName: "claude-sonnet-4-5-20250929",
		MaxTokens: 4096,
	})
	require.NoError(t, err)

	got, err := model.Complete(context.Background(), "be helpful", []chat.Message{
		{Role: chat.RoleUser, Content: "Overheating"},
		{Role: chat.RoleAssistant, Content: "When?"},
		{Role: chat.RoleUser, Content: "On motorways"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Top up the coolant.", got.Text)
	assert.Equal(t, int64(42), got.InputTokens)
	assert.Equal(t, int64(7), got.OutputTokens)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "claude-sonnet-4-5-20250929", body["model"])
	assert.EqualValues(t, 4096, body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
}

func TestNewAnthropicModel_RequiresKey(t *testing.T) {
	t.Parallel()

	_, err := chat.NewAnthropicModel(chat.Config{})
	assert.ErrorIs(t, err, chat.ErrMissingAPIKey)
}

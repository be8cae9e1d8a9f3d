package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/publicis/arena/internal/store"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []store.LLMRequestEventData
	err    error
}

func (r *recordingEvents) AppendLLMRequest(_ context.Context, data store.LLMRequestEventData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, data)
	return r.err
}

func TestLogging_RecordsSuccess(t *testing.T) {
	events := &recordingEvents{}
	mock := NewMockProvider(MockResponse{
		Content: json.RawMessage(validQuestionJSON),
		Usage:   Usage{InputTokens: 12, OutputTokens: 34},
	})
	p := WithLogging(mock, ProviderOpenAI, events, nil)

	ctx := WithPurpose(context.Background(), PurposeQuestionGen)
	if _, err := p.Generate(ctx, User("sys", "prompt", testSchema)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(events.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events.events))
	}
	ev := events.events[0]
	if ev.Provider != ProviderOpenAI || ev.Model != "mock" || ev.Purpose != PurposeQuestionGen {
		t.Fatalf("unexpected event identity: %+v", ev)
	}
	if !ev.Success || ev.InputTokens != 12 || ev.OutputTokens != 34 {
		t.Fatalf("unexpected event outcome: %+v", ev)
	}
	if ev.ResponseBody != validQuestionJSON {
		t.Fatalf("unexpected response body %q", ev.ResponseBody)
	}
	if ev.RequestBody == "" {
		t.Fatal("expected request body to be recorded")
	}
}

func TestLogging_RecordsFailureAndKeepsError(t *testing.T) {
	events := &recordingEvents{err: errors.New("disk full")}
	mock := NewMockProvider(MockResponse{Err: &ErrProviderUnavailable{Err: errors.New("down")}})
	p := WithLogging(mock, ProviderGemini, events, nil)

	_, err := p.Generate(context.Background(), User("", "prompt", nil))
	var pu *ErrProviderUnavailable
	if !errors.As(err, &pu) {
		t.Fatalf("expected provider error to pass through, got %v", err)
	}
	if len(events.events) != 1 || events.events[0].Success || events.events[0].ErrorMessage == "" {
		t.Fatalf("expected failed event, got %+v", events.events)
	}
	if events.events[0].Purpose != "unknown" {
		t.Fatalf("expected default purpose, got %q", events.events[0].Purpose)
	}
}

func TestLogging_NilEvents(t *testing.T) {
	mock := NewMockProvider(MockResponse{Content: json.RawMessage(`{}`)})
	if _, err := WithLogging(mock, ProviderMock, nil, nil).Generate(context.Background(), User("", "x", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

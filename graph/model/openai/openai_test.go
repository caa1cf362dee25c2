package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/tradingagents-go/graph/model"
)

type fakeClient struct {
	out       model.ChatOut
	errs      []error
	callCount int
}

func (f *fakeClient) createChatCompletion(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	idx := f.callCount
	f.callCount++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return model.ChatOut{}, f.errs[idx]
	}
	return f.out, nil
}

func TestChatReturnsText(t *testing.T) {
	fake := &fakeClient{out: model.ChatOut{Text: "AAPL looks stable."}}
	m := &ChatModel{modelName: "gpt-4o-mini", client: fake, maxRetries: 1, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), []model.Message{
		{Role: model.RoleUser, Content: "Analyze AAPL"},
	}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "AAPL looks stable." {
		t.Errorf("Text = %q", out.Text)
	}
	if fake.callCount != 1 {
		t.Errorf("callCount = %d, want 1", fake.callCount)
	}
}

func TestChatRetriesTransientErrors(t *testing.T) {
	fake := &fakeClient{
		out:  model.ChatOut{Text: "ok"},
		errs: []error{errors.New("connection reset"), errors.New("503 service unavailable")},
	}
	m := &ChatModel{modelName: "gpt-4o-mini", client: fake, maxRetries: 3, retryDelay: time.Millisecond}

	out, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if out.Text != "ok" || fake.callCount != 3 {
		t.Errorf("Text = %q, callCount = %d", out.Text, fake.callCount)
	}
}

func TestChatDoesNotRetryPermanentErrors(t *testing.T) {
	fake := &fakeClient{errs: []error{errors.New("invalid api key")}}
	m := &ChatModel{modelName: "gpt-4o-mini", client: fake, maxRetries: 3, retryDelay: time.Millisecond}

	if _, err := m.Chat(context.Background(), []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("want error")
	}
	if fake.callCount != 1 {
		t.Errorf("callCount = %d, want 1", fake.callCount)
	}
}

func TestChatRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewChatModel("test-key", "")
	if _, err := m.Chat(ctx, []model.Message{{Role: model.RoleUser, Content: "hi"}}, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestConvertMessagesRoles(t *testing.T) {
	msgs := convertMessages([]model.Message{
		{Role: model.RoleSystem, Content: "be brief"},
		{Role: model.RoleUser, Content: "go"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{
			{ID: "c1", Name: "get_quote", Input: map[string]interface{}{"symbol": "AAPL"}},
		}},
		{Role: model.RoleTool, Content: "190.22", ToolCallID: "c1"},
		{Role: model.RoleAssistant, Content: "done"},
	})
	if len(msgs) != 5 {
		t.Fatalf("len = %d, want 5", len(msgs))
	}
	if msgs[2].OfAssistant == nil || len(msgs[2].OfAssistant.ToolCalls) != 1 {
		t.Error("assistant tool-call message not converted")
	}
	if msgs[3].OfTool == nil {
		t.Error("tool result message not converted")
	}
}

func TestConvertToolsDefaultsEmptySchema(t *testing.T) {
	params := convertTools([]model.ToolSpec{{Name: "get_news", Description: "fetch news"}})
	if len(params) != 1 {
		t.Fatalf("len = %d", len(params))
	}
	if params[0].Function.Name != "get_news" {
		t.Errorf("Name = %q", params[0].Function.Name)
	}
	if params[0].Function.Parameters == nil {
		t.Error("nil schema not defaulted")
	}
}

func TestDefaultModelName(t *testing.T) {
	if got := NewChatModel("key", "").Name(); got != DefaultModel {
		t.Errorf("Name = %q, want %q", got, DefaultModel)
	}
}

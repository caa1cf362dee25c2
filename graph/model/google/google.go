// Package google adapts Google's Gemini API to model.ChatModel.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dshills/tradingagents-go/graph/model"
)

// DefaultModel is used when no model name is given.
const DefaultModel = "gemini-1.5-flash"

// ChatModel implements model.ChatModel against the Gemini API. Safety
// filter blocks surface as *SafetyFilterError.
type ChatModel struct {
	modelName string
	client    googleClient
}

// googleClient isolates the SDK call so tests can substitute a fake.
type googleClient interface {
	generateContent(ctx context.Context, system string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel creates a Gemini-backed ChatModel. An empty modelName
// selects DefaultModel.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = DefaultModel
	}
	return &ChatModel{
		modelName: modelName,
		client:    &sdkClient{apiKey: apiKey, modelName: modelName},
	}
}

// Name implements model.ChatModel.
func (m *ChatModel) Name() string { return m.modelName }

// Chat implements model.ChatModel. System messages become the model's
// system instruction.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return model.ChatOut{}, err
	}
	var system string
	conversation := make([]model.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += msg.Content
			continue
		}
		conversation = append(conversation, msg)
	}
	return m.client.generateContent(ctx, system, conversation, tools)
}

// sdkClient wraps the official generative-ai-go client. The client is
// created per call; connection reuse happens inside the transport.
type sdkClient struct {
	apiKey    string
	modelName string
}

func (c *sdkClient) generateContent(ctx context.Context, system string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("google: API key is required")
	}
	if len(messages) == 0 {
		return model.ChatOut{}, errors.New("google: no messages")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: create client: %w", err)
	}
	defer client.Close()

	gm := client.GenerativeModel(c.modelName)
	if system != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if len(tools) > 0 {
		gm.Tools = convertTools(tools)
	}

	history, last := convertMessages(messages)
	session := gm.StartChat()
	session.History = history

	resp, err := session.SendMessage(ctx, last...)
	if err != nil {
		return model.ChatOut{}, fmt.Errorf("google: %w", err)
	}
	return convertResponse(resp)
}

// convertMessages splits the conversation into chat history plus the
// final message's parts, which the session sends.
func convertMessages(messages []model.Message) ([]*genai.Content, []genai.Part) {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		contents = append(contents, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: messageParts(msg),
		})
	}
	last := contents[len(contents)-1]
	return contents[:len(contents)-1], last.Parts
}

func geminiRole(role string) string {
	if role == model.RoleAssistant {
		return "model"
	}
	return "user"
}

func messageParts(msg model.Message) []genai.Part {
	var parts []genai.Part
	if msg.Role == model.RoleTool {
		// Gemini has no call IDs; the executor stores the function name
		// as the call ID, so it links the response here.
		return []genai.Part{genai.FunctionResponse{
			Name:     msg.ToolCallID,
			Response: map[string]interface{}{"content": msg.Content},
		}}
	}
	if msg.Content != "" {
		parts = append(parts, genai.Text(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, genai.FunctionCall{Name: call.Name, Args: call.Input})
	}
	if len(parts) == 0 {
		parts = []genai.Part{genai.Text("")}
	}
	return parts
}

func convertTools(tools []model.ToolSpec) []*genai.Tool {
	declarations := make([]*genai.FunctionDeclaration, len(tools))
	for i, tool := range tools {
		declarations[i] = &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  convertSchema(tool.Schema),
		}
	}
	return []*genai.Tool{{FunctionDeclarations: declarations}}
}

// convertSchema maps a JSON Schema object one level deep, which covers
// every tool schema the registry defines.
func convertSchema(schema map[string]interface{}) *genai.Schema {
	if schema == nil {
		return nil
	}
	result := &genai.Schema{Type: genai.TypeObject}

	if props, ok := schema["properties"].(map[string]interface{}); ok {
		properties := make(map[string]*genai.Schema, len(props))
		for key, val := range props {
			propMap, ok := val.(map[string]interface{})
			if !ok {
				continue
			}
			prop := &genai.Schema{}
			if typeStr, ok := propMap["type"].(string); ok {
				prop.Type = convertType(typeStr)
			}
			if desc, ok := propMap["description"].(string); ok {
				prop.Description = desc
			}
			properties[key] = prop
		}
		result.Properties = properties
	}

	switch required := schema["required"].(type) {
	case []string:
		result.Required = required
	case []interface{}:
		for _, v := range required {
			if s, ok := v.(string); ok {
				result.Required = append(result.Required, s)
			}
		}
	}
	return result
}

func convertType(typeStr string) genai.Type {
	switch typeStr {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

func convertResponse(resp *genai.GenerateContentResponse) (model.ChatOut, error) {
	out := model.ChatOut{}
	if resp.UsageMetadata != nil {
		out.Usage = model.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	if len(resp.Candidates) == 0 {
		return out, errors.New("google: empty response")
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return out, &SafetyFilterError{category: safetyCategory(candidate)}
	}
	if candidate.Content == nil {
		return out, errors.New("google: empty response")
	}

	for _, part := range candidate.Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			if out.Text != "" {
				out.Text += "\n"
			}
			out.Text += string(p)
		case genai.FunctionCall:
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				// Name doubles as the ID so tool results route back.
				ID:    p.Name,
				Name:  p.Name,
				Input: p.Args,
			})
		}
	}
	return out, nil
}

func safetyCategory(candidate *genai.Candidate) string {
	for _, rating := range candidate.SafetyRatings {
		if rating.Blocked {
			return rating.Category.String()
		}
	}
	return "unspecified"
}

// SafetyFilterError reports a Gemini safety filter block. Check with
// errors.As to distinguish blocks from transport failures.
type SafetyFilterError struct {
	category string
}

func (e *SafetyFilterError) Error() string {
	return "google: content blocked by safety filter: " + e.category
}

// Category returns the safety category that triggered the block.
func (e *SafetyFilterError) Category() string { return e.category }

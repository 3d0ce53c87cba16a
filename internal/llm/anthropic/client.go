// Package anthropic adapts the platform's llm.Provider contract onto the
// Anthropic messages wire format via the official SDK.
package anthropic

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/observability"
)

// Client implements llm.Provider against the Anthropic messages API.
type Client struct {
	name  string
	sdk   anthropic.Client
	model string
}

func New(name, apiKey, baseURL, defaultModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{name: name, sdk: anthropic.NewClient(opts...), model: defaultModel}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	log := observability.LoggerWithTrace(ctx)
	params := c.toParams(req)

	resp, err := c.sdk.Messages.New(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("provider", c.name).Msg("anthropic: messages.new failed")
		return llm.ChatResponse{}, llm.UpstreamError(c.name, 0, "", err)
	}
	return fromMessage(resp), nil
}

func (c *Client) ChatStream(ctx context.Context, req llm.ChatRequest, h llm.StreamHandler) error {
	log := observability.LoggerWithTrace(ctx)
	params := c.toParams(req)

	stream := c.sdk.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	acc := llm.NewToolCallAccumulator()
	blockNames := map[int]string{}
	var msgID, msgModel string

	for stream.Next() {
		event := stream.Current()
		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			msgID = ev.Message.ID
			msgModel = string(ev.Message.Model)
		case anthropic.ContentBlockStartEvent:
			if tu, ok := ev.ContentBlock.AsAny().(anthropic.ToolUseBlock); ok {
				blockNames[int(ev.Index)] = tu.Name
				acc.Merge(itoa(int(ev.Index)), tu.ID, tu.Name, "")
			}
		case anthropic.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				// translation rule: content_block_delta text becomes delta.content
				h.OnChunk(llm.ChatStreamChunk{
					ID: msgID, Model: msgModel,
					Delta: llm.Message{Role: llm.RoleAssistant, Content: d.Text},
				})
			case anthropic.InputJSONDelta:
				acc.Merge(itoa(int(ev.Index)), "", "", d.PartialJSON)
			}
		case anthropic.MessageDeltaEvent:
			if string(ev.Delta.StopReason) != "" {
				h.OnChunk(llm.ChatStreamChunk{
					ID: msgID, Model: msgModel,
					FinishReason: mapStopReason(string(ev.Delta.StopReason)),
				})
			}
		}
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("provider", c.name).Msg("anthropic: stream failed")
		return llm.UpstreamError(c.name, 0, "", err)
	}
	if !acc.Empty() {
		h.OnChunk(llm.ChatStreamChunk{
			ID: msgID, Model: msgModel,
			Delta: llm.Message{Role: llm.RoleAssistant, ToolCalls: acc.Calls()},
		})
	}
	return nil
}

// toParams lifts the system message out of the messages array into
// Anthropic's top-level System field, per the wire format's requirement.
func (c *Client) toParams(req llm.ChatRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.model
	}
	var system []anthropic.TextBlockParam
	var messages []anthropic.MessageParam

	for _, m := range req.Messages {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case llm.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case llm.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if m.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(m.Content))
			}
			for _, tc := range m.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, tc.Arguments, tc.Name))
			}
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		case llm.RoleTool:
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false),
			))
		}
	}

	maxTokens := int64(4096)
	if req.MaxTokens != nil {
		maxTokens = int64(*req.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messages,
		System:    system,
	}
	if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}
	if len(req.Tools) > 0 {
		for _, s := range req.Tools {
			params.Tools = append(params.Tools, anthropic.ToolUnionParam{
				OfTool: &anthropic.ToolParam{
					Name:        s.Name,
					Description: anthropic.String(s.Description),
					InputSchema: anthropic.ToolInputSchemaParam{Properties: s.Parameters},
				},
			})
		}
	}
	return params
}

func fromMessage(resp *anthropic.Message) llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			msg.Content += b.Text
		case anthropic.ToolUseBlock:
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID: b.ID, Name: b.Name, Arguments: string(b.Input),
			})
		}
	}
	finish := mapStopReason(string(resp.StopReason))
	return llm.ChatResponse{
		ID:    resp.ID,
		Model: string(resp.Model),
		Choices: []llm.Choice{{
			Index: 0, Message: msg, FinishReason: finish,
		}},
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}
}

func mapStopReason(reason string) llm.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return llm.FinishStop
	case "max_tokens":
		return llm.FinishLength
	case "tool_use":
		return llm.FinishToolCalls
	default:
		return llm.FinishReason(reason)
	}
}

func itoa(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = digits[i%10]
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

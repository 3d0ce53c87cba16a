// Package openai adapts the platform's llm.Provider contract onto the
// OpenAI chat-completions wire format via the official SDK.
package openai

import (
	"context"
	"strconv"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/intelligencedev/agentruntime/internal/llm"
	"github.com/intelligencedev/agentruntime/internal/observability"
)

// Client implements llm.Provider against an OpenAI-compatible endpoint.
type Client struct {
	name    string
	sdk     openai.Client
	model   string
}

// New constructs a Client. baseURL may point at any OpenAI-compatible
// self-hosted gateway; an empty baseURL uses the SDK's default.
func New(name, apiKey, baseURL, defaultModel string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{
		name:  name,
		sdk:   openai.NewClient(opts...),
		model: defaultModel,
	}
}

func (c *Client) Name() string { return c.name }

func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	log := observability.LoggerWithTrace(ctx)
	params := toParams(req, c.model)

	resp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Error().Err(err).Str("provider", c.name).Msg("openai: chat completion failed")
		return llm.ChatResponse{}, llm.UpstreamError(c.name, 0, "", err)
	}
	return fromCompletion(resp), nil
}

func (c *Client) ChatStream(ctx context.Context, req llm.ChatRequest, h llm.StreamHandler) error {
	log := observability.LoggerWithTrace(ctx)
	params := toParams(req, c.model)

	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := llm.NewToolCallAccumulator()
	var respID, respModel string

	for stream.Next() {
		chunk := stream.Current()
		respID, respModel = chunk.ID, chunk.Model
		if len(chunk.Choices) == 0 {
			continue
		}
		ch := chunk.Choices[0]
		delta := llm.Message{Role: llm.RoleAssistant}
		if ch.Delta.Content != "" {
			delta.Content = ch.Delta.Content
		}
		for _, tc := range ch.Delta.ToolCalls {
			key := tc.ID
			if key == "" {
				key = itoa(int(tc.Index))
			}
			acc.Merge(key, tc.ID, tc.Function.Name, tc.Function.Arguments)
		}
		out := llm.ChatStreamChunk{ID: chunk.ID, Model: chunk.Model, Delta: delta}
		if ch.FinishReason != "" {
			out.FinishReason = mapFinish(ch.FinishReason)
		}
		h.OnChunk(out)
	}
	if err := stream.Err(); err != nil {
		log.Error().Err(err).Str("provider", c.name).Msg("openai: stream failed")
		return llm.UpstreamError(c.name, 0, "", err)
	}
	if !acc.Empty() {
		h.OnChunk(llm.ChatStreamChunk{
			ID:    respID,
			Model: respModel,
			Delta: llm.Message{Role: llm.RoleAssistant, ToolCalls: acc.Calls()},
		})
	}
	return nil
}

func toParams(req llm.ChatRequest, defaultModel string) openai.ChatCompletionNewParams {
	model := req.Model
	if model == "" {
		model = defaultModel
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toMessages(req.Messages),
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*req.MaxTokens))
	}
	if req.TopP != nil {
		params.TopP = openai.Float(*req.TopP)
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}
	if len(req.Tools) > 0 {
		params.Tools = toTools(req.Tools)
	}
	return params
}

func toMessages(msgs []llm.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case llm.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case llm.RoleUser:
			out = append(out, openai.UserMessage(m.Content))
		case llm.RoleTool:
			out = append(out, openai.ToolMessage(m.Content, m.ToolCallID))
		case llm.RoleAssistant:
			asst := openai.ChatCompletionAssistantMessageParam{}
			if m.Content != "" {
				asst.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
					OfString: openai.String(m.Content),
				}
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, openai.ChatCompletionMessageToolCallParam{
					ID: tc.ID,
					Function: openai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})
		}
	}
	return out
}

func toTools(schemas []llm.ToolSchema) []openai.ChatCompletionToolUnionParam {
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, openai.ChatCompletionFunctionTool(openai.FunctionDefinitionParam{
			Name:        s.Name,
			Description: openai.String(s.Description),
			Parameters:  openai.FunctionParameters(s.Parameters),
		}))
	}
	return out
}

func fromCompletion(resp *openai.ChatCompletion) llm.ChatResponse {
	out := llm.ChatResponse{
		ID:      resp.ID,
		Created: resp.Created,
		Model:   resp.Model,
		Usage: llm.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, c := range resp.Choices {
		msg := llm.Message{Role: llm.RoleAssistant, Content: c.Message.Content}
		for _, tc := range c.Message.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, llm.ToolCall{
				ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
			})
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index: int(c.Index), Message: msg, FinishReason: mapFinish(c.FinishReason),
		})
	}
	return out
}

func mapFinish(reason string) llm.FinishReason {
	switch reason {
	case "stop":
		return llm.FinishStop
	case "length":
		return llm.FinishLength
	case "tool_calls":
		return llm.FinishToolCalls
	case "content_filter":
		return llm.FinishContentFilter
	default:
		return llm.FinishReason(reason)
	}
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

// Package openai implements model.Client on top of the OpenAI Chat
// Completions API via github.com/openai/openai-go.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mastra-run/mastra-go/model"
)

// CompletionsClient captures the subset of the OpenAI SDK used by the
// adapter, so tests can substitute a fake in place of the real client.
type CompletionsClient interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Client adapts model.Client to the OpenAI Chat Completions API.
type Client struct {
	completions  CompletionsClient
	defaultModel string
	maxTokens    int
	temperature  float64
}

// Options configures Client defaults applied when a model.Request leaves
// the corresponding field unset.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// New builds a Client from an OpenAI chat completions client and Options.
func New(completions CompletionsClient, opts Options) (*Client, error) {
	if completions == nil {
		return nil, errors.New("openai: completions client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("openai: default model is required")
	}
	return &Client{completions: completions, defaultModel: opts.DefaultModel, maxTokens: opts.MaxTokens, temperature: opts.Temperature}, nil
}

// NewFromAPIKey constructs a Client against the real OpenAI API using an
// API key read from the LLM resource's configured environment variable.
func NewFromAPIKey(apiKey, defaultModel string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	sdkClient := openai.NewClient(option.WithAPIKey(apiKey))
	return New(&sdkClient.Chat.Completions, Options{DefaultModel: defaultModel})
}

// Complete issues a non-streaming chat completion and translates the
// response into model.Response.
func (c *Client) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: messages are required")
	}

	modelID := req.Model
	if modelID == "" {
		modelID = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(modelID),
		Messages: encodeMessages(req.Messages),
	}
	if maxTokens := req.MaxTokens; maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	} else if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	if temp := req.Temperature; temp > 0 {
		params.Temperature = openai.Float(temp)
	} else if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}

	completion, err := c.completions.New(ctx, params)
	if err != nil {
		if isRateLimited(err) {
			return nil, &model.RateLimitedError{Err: err}
		}
		return nil, fmt.Errorf("openai: chat completions.new: %w", err)
	}
	return translateResponse(completion), nil
}

func isRateLimited(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "rate limit") ||
		strings.Contains(err.Error(), "429")
}

func encodeMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, openai.SystemMessage(m.Text))
		case model.RoleUser:
			out = append(out, openai.UserMessage(m.Text))
		case model.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		case model.RoleTool:
			out = append(out, openai.ToolMessage(m.Text, m.ToolCallID))
		}
	}
	return out
}

func encodeTools(defs []model.ToolDefinition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		out = append(out, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        d.Name,
				Description: openai.String(d.Description),
				Parameters:  openai.FunctionParameters(d.InputSchema),
			},
		})
	}
	return out
}

func translateResponse(completion *openai.ChatCompletion) *model.Response {
	resp := &model.Response{
		Usage: model.TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}
	if len(completion.Choices) == 0 {
		return resp
	}
	choice := completion.Choices[0]
	resp.StopReason = string(choice.FinishReason)
	resp.Text = choice.Message.Content
	for _, call := range choice.Message.ToolCalls {
		var input map[string]any
		if err := json.Unmarshal([]byte(call.Function.Arguments), &input); err != nil {
			input = map[string]any{}
		}
		resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
			ID:    call.ID,
			Name:  call.Function.Name,
			Input: input,
		})
	}
	return resp
}

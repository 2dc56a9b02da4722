package anthropic

import (
	"encoding/json"

	sdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/mastra-run/mastra-go/model"
)

// encodeMessages splits msgs into the Anthropic system prompt and the
// user/assistant conversation, since Anthropic carries system text as a
// separate top-level field rather than a conversation turn.
func encodeMessages(msgs []model.Message) (string, []sdk.MessageParam) {
	var system string
	conversation := make([]sdk.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			system = m.Text
		case model.RoleUser:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewTextBlock(m.Text)))
		case model.RoleAssistant:
			conversation = append(conversation, sdk.NewAssistantMessage(sdk.NewTextBlock(m.Text)))
		case model.RoleTool:
			conversation = append(conversation, sdk.NewUserMessage(sdk.NewToolResultBlock(m.ToolCallID, m.Text, false)))
		}
	}
	return system, conversation
}

func encodeTools(defs []model.ToolDefinition) []sdk.ToolUnionParam {
	tools := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		schema := sdk.ToolInputSchemaParam{ExtraFields: d.InputSchema}
		tools = append(tools, sdk.ToolUnionParamOfTool(schema, d.Name))
	}
	return tools
}

// translateResponse maps an Anthropic Message into the provider-agnostic
// model.Response: text content blocks are concatenated, tool_use blocks
// become model.ToolCall entries.
func translateResponse(msg *sdk.Message) *model.Response {
	resp := &model.Response{
		Usage: model.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		StopReason: string(msg.StopReason),
	}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Text += block.Text
		case "tool_use":
			input, _ := block.Input.(map[string]any)
			if input == nil {
				if data, err := json.Marshal(block.Input); err == nil {
					_ = json.Unmarshal(data, &input)
				}
			}
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:    block.ID,
				Name:  block.Name,
				Input: input,
			})
		}
	}
	return resp
}

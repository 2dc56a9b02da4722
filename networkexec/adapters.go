package networkexec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/controllers/agentctl"
	"github.com/mastra-run/mastra-go/model"
)

// RosterAgentCaller is the default AgentCaller: it resolves a rostered
// agent name through agentctl's registry and calls its model.Client,
// carrying the network's state forward as a note appended to the prompt
// since agent model.Client calls have no first-class state channel.
type RosterAgentCaller struct {
	Agents *agentctl.Registry
}

func (c *RosterAgentCaller) Call(ctx context.Context, agentName, message string, state map[string]any) (string, map[string]any, error) {
	binding, ok := c.Agents.Get(agentName)
	if !ok {
		return "", nil, &controller.AgentNotFoundError{Name: agentName}
	}
	prompt := message
	if len(state) > 0 {
		if data, err := json.Marshal(state); err == nil {
			prompt = fmt.Sprintf("%s\n\nNetwork state: %s", message, data)
		}
	}
	resp, err := binding.Client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: binding.Instructions},
			{Role: model.RoleUser, Text: prompt},
		},
	})
	if err != nil {
		return "", nil, err
	}
	return resp.Text, nil, nil
}

package agentctl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/controllers/llmctl"
	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/store/memstore"
)

type fakeClient struct{}

func (fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{Text: "ok"}, nil
}

func agentResource(name string, spec resource.AgentSpec) *resource.Resource {
	return &resource.Resource{
		Kind:     resource.KindAgent,
		Metadata: resource.Metadata{Name: name, Namespace: "default"},
		Spec:     spec,
	}
}

func TestValidateSpecRequiresInstructionsAndModel(t *testing.T) {
	c := &Controller{}
	assert.Error(t, c.ValidateSpec(agentResource("a", resource.AgentSpec{})))
	assert.Error(t, c.ValidateSpec(agentResource("a", resource.AgentSpec{Instructions: "do math"})))
	assert.NoError(t, c.ValidateSpec(agentResource("a", resource.AgentSpec{
		Instructions: "do math",
		Model:        resource.ModelRef{Provider: "openai", Name: "gpt-4"},
	})))
}

func TestResolveDependenciesFailsOnMissingTool(t *testing.T) {
	st := memstore.New()
	c := &Controller{Store: st}
	r := agentResource("a", resource.AgentSpec{
		Instructions: "do math",
		Model:        resource.ModelRef{Provider: "openai", Name: "gpt-4"},
		Tools:        map[string]resource.ToolBinding{"search": {Ref: "search"}},
	})
	err := c.ResolveDependencies(context.Background(), r)
	var notFound *controller.ToolNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "search", notFound.Name)
}

func TestResolveDependenciesSucceedsWhenToolExists(t *testing.T) {
	st := memstore.New()
	require.NoError(t, st.Save(context.Background(), &resource.Resource{
		Kind:     resource.KindTool,
		Metadata: resource.Metadata{Name: "search", Namespace: "default"},
		Spec:     resource.ToolSpec{ID: "search", Execute: "search.run"},
	}))
	c := &Controller{Store: st}
	r := agentResource("a", resource.AgentSpec{
		Instructions: "do math",
		Model:        resource.ModelRef{Provider: "openai", Name: "gpt-4"},
		Tools:        map[string]resource.ToolBinding{"search": {Ref: "search"}},
	})
	assert.NoError(t, c.ResolveDependencies(context.Background(), r))
}

func TestUpdateStateResolvesInlineModel(t *testing.T) {
	reg := NewRegistry()
	c := &Controller{
		Store:    memstore.New(),
		Registry: reg,
		InlineModel: func(provider, name string) (model.Client, error) {
			return fakeClient{}, nil
		},
	}
	r := agentResource("a", resource.AgentSpec{
		Instructions: "do math",
		Model:        resource.ModelRef{Provider: "openai", Name: "gpt-4"},
	})
	require.NoError(t, c.UpdateState(context.Background(), r, nil, nil))

	binding, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "do math", binding.Instructions)
	assert.NotNil(t, binding.Client)
}

func TestUpdateStateFailsOnUnregisteredLLMRef(t *testing.T) {
	llms := llmctl.NewRegistry()
	reg := NewRegistry()
	c := &Controller{Store: memstore.New(), Registry: reg, LLMs: llms}

	r := agentResource("a", resource.AgentSpec{
		Instructions: "do math",
		Model:        resource.ModelRef{Ref: "claude"},
	})
	err := c.UpdateState(context.Background(), r, nil, nil)
	assert.Error(t, err, "unresolved ref must fail until the LLM registers a client")
}

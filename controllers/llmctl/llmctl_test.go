package llmctl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/resource"
)

type fakeClient struct{}

func (fakeClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{Text: "ok"}, nil
}

func llmResource(name, provider, m string) *resource.Resource {
	return &resource.Resource{
		Kind:     resource.KindLLM,
		Metadata: resource.Metadata{Name: name, Namespace: "default"},
		Spec:     resource.LLMSpec{Provider: provider, Model: m, APIKeyEnv: "TEST_API_KEY"},
	}
}

func TestValidateSpecRequiresProviderAndModel(t *testing.T) {
	c := &Controller{}
	assert.Error(t, c.ValidateSpec(llmResource("claude", "", "")))
	assert.Error(t, c.ValidateSpec(llmResource("claude", "anthropic", "")))
	assert.NoError(t, c.ValidateSpec(llmResource("claude", "anthropic", "claude-3")))
}

func TestUpdateStateRegistersClientAndReadsEnv(t *testing.T) {
	reg := NewRegistry()
	var seenKey string
	c := &Controller{
		Registry: reg,
		Env:      func(name string) string { return "secret-value" },
		Factory: func(spec resource.LLMSpec, apiKey string) (model.Client, error) {
			seenKey = apiKey
			return fakeClient{}, nil
		},
	}
	r := llmResource("claude", "anthropic", "claude-3")
	require.NoError(t, c.UpdateState(context.Background(), r, nil, nil))

	assert.Equal(t, "secret-value", seenKey)
	assert.True(t, reg.Has("claude"))
	client, ok := reg.Get("claude")
	require.True(t, ok)
	assert.NotNil(t, client)
}

func TestUpdateStatePropagatesFactoryError(t *testing.T) {
	reg := NewRegistry()
	c := &Controller{
		Registry: reg,
		Factory: func(spec resource.LLMSpec, apiKey string) (model.Client, error) {
			return nil, errors.New("boom")
		},
	}
	r := llmResource("claude", "anthropic", "claude-3")
	err := c.UpdateState(context.Background(), r, nil, nil)
	assert.Error(t, err)
	assert.False(t, reg.Has("claude"))
}

func TestCleanupRemovesRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.set("claude", resource.LLMSpec{}, fakeClient{})
	c := &Controller{Registry: reg}
	require.NoError(t, c.Cleanup(context.Background(), llmResource("claude", "anthropic", "claude-3")))
	assert.False(t, reg.Has("claude"))
}

func TestCurrentStateReflectsDesiredAfterUpdate(t *testing.T) {
	reg := NewRegistry()
	c := &Controller{
		Registry: reg,
		Factory: func(spec resource.LLMSpec, apiKey string) (model.Client, error) {
			return fakeClient{}, nil
		},
	}
	r := llmResource("claude", "anthropic", "claude-3")
	before, err := c.CurrentState(context.Background(), r)
	require.NoError(t, err)
	assert.Nil(t, before)

	require.NoError(t, c.UpdateState(context.Background(), r, nil, nil))
	after, err := c.CurrentState(context.Background(), r)
	require.NoError(t, err)
	desired, err := c.DesiredState(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, desired, after)
}

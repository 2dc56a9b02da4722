package plugin

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/events"
)

func TestInstallRunsInitAndRegistersHook(t *testing.T) {
	host := NewHost(events.New(nil), nil)
	p := &Plugin{
		ID: "uppercase",
		Init: func(ctx context.Context, pctx *Context) error {
			pctx.RegisterHook("text.out", func(ctx context.Context, data any) (any, error) {
				return fmt.Sprintf("%v!", data), nil
			})
			return nil
		},
	}
	require.NoError(t, host.Install(context.Background(), p))

	result := host.ExecuteHook(context.Background(), "text.out", "hi")
	assert.Equal(t, "hi!", result)
}

func TestExecuteHookPipesThroughMultiplePluginsInOrder(t *testing.T) {
	host := NewHost(nil, nil)
	for _, suffix := range []string{"-a", "-b"} {
		suffix := suffix
		require.NoError(t, host.Install(context.Background(), &Plugin{
			ID: "plugin" + suffix,
			Init: func(ctx context.Context, pctx *Context) error {
				pctx.RegisterHook("chain", func(ctx context.Context, data any) (any, error) {
					return data.(string) + suffix, nil
				})
				return nil
			},
		}))
	}

	result := host.ExecuteHook(context.Background(), "chain", "start")
	assert.Equal(t, "start-a-b", result)
}

func TestExecuteHookSkipsFailingHookButContinuesPipeline(t *testing.T) {
	host := NewHost(nil, nil)
	require.NoError(t, host.Install(context.Background(), &Plugin{
		ID: "broken",
		Init: func(ctx context.Context, pctx *Context) error {
			pctx.RegisterHook("chain", func(ctx context.Context, data any) (any, error) {
				return nil, fmt.Errorf("boom")
			})
			return nil
		},
	}))
	require.NoError(t, host.Install(context.Background(), &Plugin{
		ID: "ok",
		Init: func(ctx context.Context, pctx *Context) error {
			pctx.RegisterHook("chain", func(ctx context.Context, data any) (any, error) {
				return data.(string) + "-ok", nil
			})
			return nil
		},
	}))

	result := host.ExecuteHook(context.Background(), "chain", "start")
	assert.Equal(t, "start-ok", result)
}

func TestExecuteCommandDispatchesToRegisteredHandler(t *testing.T) {
	host := NewHost(nil, nil)
	require.NoError(t, host.Install(context.Background(), &Plugin{
		ID: "greeter",
		Init: func(ctx context.Context, pctx *Context) error {
			return pctx.RegisterCommand("greet", func(ctx context.Context, args any) (any, error) {
				return "hello " + args.(string), nil
			})
		},
	}))

	result, err := host.ExecuteCommand(context.Background(), "greet", "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestExecuteCommandMissingReturnsUnknownCommandError(t *testing.T) {
	host := NewHost(nil, nil)
	_, err := host.ExecuteCommand(context.Background(), "missing", nil)
	var unknown *controller.UnknownCommandError
	assert.ErrorAs(t, err, &unknown)
}

func TestConfigIsScopedPerPlugin(t *testing.T) {
	host := NewHost(nil, nil)
	var seen any
	require.NoError(t, host.Install(context.Background(), &Plugin{
		ID: "configured",
		Init: func(ctx context.Context, pctx *Context) error {
			pctx.SetConfig("level", 3)
			v, _ := pctx.GetConfig("level")
			seen = v
			return nil
		},
	}))
	assert.Equal(t, 3, seen)

	_, ok := host.getConfig("other-plugin", "level")
	assert.False(t, ok)
}

func TestUninstallRemovesHooksCommandsAndConfig(t *testing.T) {
	host := NewHost(nil, nil)
	require.NoError(t, host.Install(context.Background(), &Plugin{
		ID: "temp",
		Init: func(ctx context.Context, pctx *Context) error {
			pctx.RegisterHook("chain", func(ctx context.Context, data any) (any, error) { return "temp", nil })
			pctx.SetConfig("k", "v")
			return pctx.RegisterCommand("temp.run", func(ctx context.Context, args any) (any, error) { return nil, nil })
		},
	}))

	require.NoError(t, host.Uninstall(context.Background(), "temp"))

	result := host.ExecuteHook(context.Background(), "chain", "start")
	assert.Equal(t, "start", result, "uninstalled plugin's hook must no longer run")

	_, err := host.ExecuteCommand(context.Background(), "temp.run", nil)
	assert.Error(t, err)

	_, ok := host.getConfig("temp", "k")
	assert.False(t, ok)
}

func TestInstallFailsWhenInitErrors(t *testing.T) {
	host := NewHost(nil, nil)
	err := host.Install(context.Background(), &Plugin{
		ID: "bad",
		Init: func(ctx context.Context, pctx *Context) error {
			return fmt.Errorf("setup failed")
		},
	})
	assert.Error(t, err)

	_, ok := host.getConfig("bad", "anything")
	assert.False(t, ok)
}

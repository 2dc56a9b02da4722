// Package manager wires the event bus, per-kind controllers, state store,
// and executors into a single runtime: it owns resource lifecycle
// (addResource persists and reconciles) and the thin dispatchers embedding
// applications call to run Agents, Workflows, Networks, and Tools.
package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/controllers/agentctl"
	"github.com/mastra-run/mastra-go/controllers/crdctl"
	"github.com/mastra-run/mastra-go/controllers/llmctl"
	"github.com/mastra-run/mastra-go/controllers/networkctl"
	"github.com/mastra-run/mastra-go/controllers/toolctl"
	"github.com/mastra-run/mastra-go/controllers/workflowctl"
	"github.com/mastra-run/mastra-go/crd"
	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/model"
	"github.com/mastra-run/mastra-go/networkexec"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/schema"
	"github.com/mastra-run/mastra-go/store"
	"github.com/mastra-run/mastra-go/telemetry"
	"github.com/mastra-run/mastra-go/workflowexec"
)

// ProviderConfig is the embedding application's model provider setup. The
// Manager stores it and returns it from Providers; inline Agent models are
// built by Config.InlineModel, which does not read it.
type ProviderConfig struct {
	APIKeyEnv map[string]string
}

// MemoryConfig configures how much conversation history Agent generate
// calls carry forward. The Manager stores it and returns it from Memory; it
// is not passed to agentctl bindings.
type MemoryConfig struct {
	Enabled    bool
	MaxHistory int
}

// Config controls the Manager's wiring.
type Config struct {
	Store               store.Store
	Bus                 *events.Bus
	Logger              telemetry.Logger
	Metrics             telemetry.Metrics
	Callables           toolctl.CallableRegistry
	WorkflowCallables   workflowexec.CallableRegistry
	Functions           workflowexec.FunctionRegistry
	LLMFactory          llmctl.Factory
	InlineModel         agentctl.InlineClientFactory
	EnvLookup           llmctl.EnvLookup
	SchemaValidator     *schema.Validator
	Providers           ProviderConfig
	Memory              MemoryConfig
	WorkflowCacheTTLSec int64
	NetworkTracing      bool
	NetworkStrategy     networkexec.Strategy
	Router              networkexec.Router
	// Redis, when set, backs durable Network state persistence and the
	// workflow step cache instead of the in-memory-only defaults. Nil means
	// neither executor uses Redis.
	Redis *redis.Client
}

// Manager owns the control plane: the event bus, one controller.Controller
// per resource kind, the state store, and the live workflow/network
// executors and Agent capability registries every executor calls through.
type Manager struct {
	store  store.Store
	bus    *events.Bus
	logger telemetry.Logger

	controllers map[resource.Kind]*controller.Controller
	unsubs      []events.Unsubscribe

	toolRegistry    toolctl.CallableRegistry
	llmRegistry     *llmctl.Registry
	agentRegistry   *agentctl.Registry
	networkRegistry *networkctl.Registry
	crdRegistry     *crd.Registry

	workflows   *workflowexec.Executor
	networks    *networkexec.Executor
	toolInvoker *workflowexec.ToolInvoker

	providers ProviderConfig
	memory    MemoryConfig
}

// New wires a Manager from cfg. Every per-kind controller is constructed
// and its bus subscription started; call Shutdown to stop them.
func New(cfg Config) *Manager {
	llmRegistry := llmctl.NewRegistry()
	agentRegistry := agentctl.NewRegistry()
	networkRegistry := networkctl.NewRegistry()

	validator := cfg.SchemaValidator
	if validator == nil {
		validator = schema.New()
	}
	crdRegistry := crd.New(validator, cfg.Bus)

	m := &Manager{
		store:           cfg.Store,
		bus:             cfg.Bus,
		logger:          cfg.Logger,
		controllers:     make(map[resource.Kind]*controller.Controller),
		toolRegistry:    cfg.Callables,
		llmRegistry:     llmRegistry,
		agentRegistry:   agentRegistry,
		networkRegistry: networkRegistry,
		crdRegistry:     crdRegistry,
		providers:       cfg.Providers,
		memory:          cfg.Memory,
	}

	ctlCfg := controller.Config{Logger: cfg.Logger, Metrics: cfg.Metrics}

	m.register(resource.KindTool, &toolctl.Controller{Callables: cfg.Callables}, ctlCfg)
	m.register(resource.KindLLM, &llmctl.Controller{
		Registry: llmRegistry,
		Factory:  cfg.LLMFactory,
		Env:      cfg.EnvLookup,
	}, ctlCfg)
	m.register(resource.KindAgent, &agentctl.Controller{
		Store:       cfg.Store,
		Registry:    agentRegistry,
		LLMs:        llmRegistry,
		InlineModel: cfg.InlineModel,
	}, ctlCfg)
	m.register(resource.KindWorkflow, &workflowctl.Controller{Store: cfg.Store}, ctlCfg)
	m.register(resource.KindNetwork, &networkctl.Controller{Store: cfg.Store, Registry: networkRegistry}, ctlCfg)
	m.register(resource.KindCustomResourceDefinition, &crdctl.Controller{Registry: crdRegistry}, ctlCfg)

	workflowCfg := workflowexec.Config{
		Agents:       &workflowexec.AgentGenerator{Agents: agentRegistry},
		Bus:          cfg.Bus,
		Logger:       cfg.Logger,
		CacheEnabled: cfg.WorkflowCacheTTLSec > 0,
		CacheTTL:     time.Duration(cfg.WorkflowCacheTTLSec) * time.Second,
		Redis:        cfg.Redis,
	}
	if cfg.WorkflowCallables != nil {
		m.toolInvoker = &workflowexec.ToolInvoker{Store: cfg.Store, Callables: cfg.WorkflowCallables}
		workflowCfg.Tools = m.toolInvoker
	}
	if cfg.Functions != nil {
		workflowCfg.Functions = cfg.Functions
	}
	m.workflows = workflowexec.New(workflowCfg)

	m.networks = networkexec.New(networkexec.Config{
		Router:   cfg.Router,
		Agents:   &networkexec.RosterAgentCaller{Agents: agentRegistry},
		Bus:      cfg.Bus,
		Logger:   cfg.Logger,
		Tracing:  cfg.NetworkTracing,
		Strategy: cfg.NetworkStrategy,
		Redis:    cfg.Redis,
	})

	return m
}

func (m *Manager) register(kind resource.Kind, impl controller.Kind, cfg controller.Config) {
	c := controller.New(kind, impl, m.store, m.bus, cfg)
	m.controllers[kind] = c
	m.unsubs = append(m.unsubs, c.Start())
}

// AddResource persists r, reconciles it through its kind's controller, and
// starts the periodic watch loop that keeps it converged.
func (m *Manager) AddResource(ctx context.Context, r *resource.Resource) error {
	if err := m.store.Save(ctx, r); err != nil {
		return fmt.Errorf("manager: save %s: %w", r.Key(), err)
	}
	c, ok := m.controllers[r.Kind]
	if !ok {
		return fmt.Errorf("manager: no controller registered for kind %q", r.Kind)
	}
	if err := c.Reconcile(ctx, r); err != nil {
		return fmt.Errorf("manager: reconcile %s: %w", r.Key(), err)
	}
	c.Watch(ctx, r)
	return nil
}

// RemoveResource marks r deleted, reconciles (which runs its controller's
// Cleanup), and stops its watch loop.
func (m *Manager) RemoveResource(ctx context.Context, kind resource.Kind, namespace, name string) error {
	r, err := m.store.Get(ctx, kind, namespace, name)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}
	c, ok := m.controllers[kind]
	if !ok {
		return fmt.Errorf("manager: no controller registered for kind %q", kind)
	}
	now := time.Now()
	r.Metadata.DeletionTimestamp = &now
	return c.Reconcile(ctx, r)
}

// CRDRegistry exposes the shared custom-resource-definition registry so a
// dsl.Loader can be constructed against the same validator and schema set
// this Manager's crdctl controller registers into.
func (m *Manager) CRDRegistry() *crd.Registry {
	return m.crdRegistry
}

// Providers returns the provider configuration this Manager was built
// with.
func (m *Manager) Providers() ProviderConfig { return m.providers }

// Memory returns the memory configuration this Manager was built with.
func (m *Manager) Memory() MemoryConfig { return m.memory }

// GetAgent returns the live model binding for a reconciled Agent.
func (m *Manager) GetAgent(name string) (agentctl.Binding, bool) {
	return m.agentRegistry.Get(name)
}

// GetWorkflow fetches a Workflow resource by "namespace/name" key.
func (m *Manager) GetWorkflow(ctx context.Context, namespace, name string) (*resource.Resource, error) {
	return m.store.Get(ctx, resource.KindWorkflow, namespace, name)
}

// GetNetwork fetches a Network resource by "namespace/name" key.
func (m *Manager) GetNetwork(ctx context.Context, namespace, name string) (*resource.Resource, error) {
	return m.store.Get(ctx, resource.KindNetwork, namespace, name)
}

// RunWorkflow looks up the named Workflow and runs its step DAG to
// completion.
func (m *Manager) RunWorkflow(ctx context.Context, namespace, name string, input map[string]any) (*workflowexec.Result, error) {
	r, err := m.GetWorkflow(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("manager: workflow %s/%s not found", namespace, name)
	}
	return m.workflows.Run(ctx, r, input), nil
}

// RunNetwork looks up the named Network and runs one router-mediated turn.
func (m *Manager) RunNetwork(ctx context.Context, namespace, name, input string) (*networkexec.Result, error) {
	r, err := m.GetNetwork(ctx, namespace, name)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("manager: network %s/%s not found", namespace, name)
	}
	return m.networks.Generate(ctx, r, input)
}

// RunAgent runs a single Agent completion directly, bypassing workflow or
// network orchestration.
func (m *Manager) RunAgent(ctx context.Context, name, prompt string) (string, error) {
	binding, ok := m.agentRegistry.Get(name)
	if !ok {
		return "", &controller.AgentNotFoundError{Name: name}
	}
	resp, err := binding.Client.Complete(ctx, &model.Request{
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: binding.Instructions},
			{Role: model.RoleUser, Text: prompt},
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// CallTool invokes a Tool resource's callable directly, bypassing a
// workflow tool step.
func (m *Manager) CallTool(ctx context.Context, namespace, name string, params map[string]any) (any, error) {
	if m.toolInvoker == nil {
		return nil, fmt.Errorf("manager: no tool invoker configured")
	}
	return m.toolInvoker.Invoke(ctx, namespace, name, params)
}

// Shutdown stops every controller's watch loops and closes the state store.
func (m *Manager) Shutdown() error {
	for _, u := range m.unsubs {
		u()
	}
	for _, c := range m.controllers {
		c.Close()
	}
	return m.store.Close()
}

// Package plugin implements hook/command registration for embedding
// applications: each plugin registers under a unique id by calling Init
// with a Context scoped to that id, and the Host pipes data through
// registered hooks or dispatches commands on the host's behalf.
package plugin

import (
	"context"
	"fmt"
	"sync"

	"github.com/mastra-run/mastra-go/controller"
	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/telemetry"
)

// HookFunc transforms data through one plugin's hook. An error from a hook
// is isolated: the pipeline continues with the value the hook was given.
type HookFunc func(ctx context.Context, data any) (any, error)

// CommandFunc handles one invocation of a registered command.
type CommandFunc func(ctx context.Context, args any) (any, error)

// Plugin is registered with a Host under a unique ID. Init is called once
// at registration time with a Context scoped to this plugin; Uninstall, if
// non-nil, is called once when the plugin is removed.
type Plugin struct {
	ID        string
	Init      func(ctx context.Context, pctx *Context) error
	Uninstall func(ctx context.Context) error
}

// Context is what a plugin's Init receives: scoped hook/command
// registration plus a per-plugin config namespace and direct bus access.
type Context struct {
	pluginID string
	host     *Host
}

func (c *Context) RegisterHook(name string, fn HookFunc) {
	c.host.registerHook(c.pluginID, name, fn)
}

func (c *Context) RegisterCommand(name string, fn CommandFunc) error {
	return c.host.registerCommand(c.pluginID, name, fn)
}

func (c *Context) GetConfig(key string) (any, bool) {
	return c.host.getConfig(c.pluginID, key)
}

func (c *Context) SetConfig(key string, value any) {
	c.host.setConfig(c.pluginID, key, value)
}

func (c *Context) Bus() *events.Bus {
	return c.host.bus
}

type hookEntry struct {
	pluginID string
	fn       HookFunc
}

type commandEntry struct {
	pluginID string
	fn       CommandFunc
}

// Host tracks installed plugins and drives their hooks and commands.
type Host struct {
	bus    *events.Bus
	logger telemetry.Logger

	mu       sync.Mutex
	plugins  map[string]*Plugin
	hooks    map[string][]hookEntry
	commands map[string]commandEntry
	config   map[string]map[string]any
}

// NewHost constructs a Host. A nil bus or logger disables event publication
// and logging respectively.
func NewHost(bus *events.Bus, logger telemetry.Logger) *Host {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	return &Host{
		bus:      bus,
		logger:   logger,
		plugins:  make(map[string]*Plugin),
		hooks:    make(map[string][]hookEntry),
		commands: make(map[string]commandEntry),
		config:   make(map[string]map[string]any),
	}
}

// Install registers p and calls its Init with a Context scoped to p.ID.
// Init failure is published on plugin.initFailed and returned to the
// caller; the plugin is not considered installed.
func (h *Host) Install(ctx context.Context, p *Plugin) error {
	h.mu.Lock()
	if _, exists := h.plugins[p.ID]; exists {
		h.mu.Unlock()
		return fmt.Errorf("plugin: %q already installed", p.ID)
	}
	h.plugins[p.ID] = p
	h.config[p.ID] = make(map[string]any)
	h.mu.Unlock()

	if p.Init == nil {
		h.emit(ctx, events.TopicPluginRegistered, p.ID)
		return nil
	}

	pctx := &Context{pluginID: p.ID, host: h}
	if err := p.Init(ctx, pctx); err != nil {
		h.mu.Lock()
		delete(h.plugins, p.ID)
		delete(h.config, p.ID)
		h.mu.Unlock()
		h.emit(ctx, events.TopicPluginInitFailed, map[string]any{"plugin": p.ID, "error": err.Error()})
		return err
	}

	h.emit(ctx, events.TopicPluginRegistered, p.ID)
	return nil
}

func (h *Host) registerHook(pluginID, name string, fn HookFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks[name] = append(h.hooks[name], hookEntry{pluginID: pluginID, fn: fn})
}

func (h *Host) registerCommand(pluginID, name string, fn CommandFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.commands[name]; exists {
		return fmt.Errorf("plugin: command %q already registered", name)
	}
	h.commands[name] = commandEntry{pluginID: pluginID, fn: fn}
	return nil
}

func (h *Host) getConfig(pluginID, key string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ns, ok := h.config[pluginID]
	if !ok {
		return nil, false
	}
	v, ok := ns[key]
	return v, ok
}

func (h *Host) setConfig(pluginID, key string, value any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ns, ok := h.config[pluginID]
	if !ok {
		ns = make(map[string]any)
		h.config[pluginID] = ns
	}
	ns[key] = value
}

// ExecuteHook pipes data through every hook registered for name, in
// registration order; each hook receives the previous hook's output. A hook
// that errors is logged and skipped, and the pipeline continues with the
// value that hook was given.
func (h *Host) ExecuteHook(ctx context.Context, name string, data any) any {
	h.mu.Lock()
	entries := append([]hookEntry(nil), h.hooks[name]...)
	h.mu.Unlock()

	value := data
	for _, e := range entries {
		out, err := e.fn(ctx, value)
		if err != nil {
			h.logger.Warn(ctx, "plugin: hook failed", "plugin", e.pluginID, "hook", name, "error",
				(&controller.HookFailedError{Plugin: e.pluginID, Hook: name, Err: err}).Error())
			continue
		}
		value = out
	}
	return value
}

// ExecuteCommand dispatches to the single handler registered for name.
// Returns an UnknownCommandError if no plugin registered it.
func (h *Host) ExecuteCommand(ctx context.Context, name string, args any) (any, error) {
	h.mu.Lock()
	entry, ok := h.commands[name]
	h.mu.Unlock()
	if !ok {
		return nil, &controller.UnknownCommandError{Command: name}
	}
	return entry.fn(ctx, args)
}

// Uninstall calls p's optional Uninstall, removes its hooks, commands, and
// config namespace, and emits plugin.uninstalled.
func (h *Host) Uninstall(ctx context.Context, id string) error {
	h.mu.Lock()
	p, ok := h.plugins[id]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("plugin: %q is not installed", id)
	}

	if p.Uninstall != nil {
		if err := p.Uninstall(ctx); err != nil {
			h.logger.Warn(ctx, "plugin: uninstall hook failed", "plugin", id, "error", err)
		}
	}

	h.mu.Lock()
	delete(h.plugins, id)
	delete(h.config, id)
	for name, entries := range h.hooks {
		kept := entries[:0]
		for _, e := range entries {
			if e.pluginID != id {
				kept = append(kept, e)
			}
		}
		h.hooks[name] = kept
	}
	for name, e := range h.commands {
		if e.pluginID == id {
			delete(h.commands, name)
		}
	}
	h.mu.Unlock()

	h.emit(ctx, events.TopicPluginUninstalled, id)
	return nil
}

func (h *Host) emit(ctx context.Context, topic string, payload any) {
	if h.bus == nil {
		return
	}
	h.bus.Publish(ctx, topic, payload)
}

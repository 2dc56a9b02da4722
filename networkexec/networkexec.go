// Package networkexec orchestrates a Router Agent over a Network resource's
// agent roster: it augments a turn's input with the roster and network
// instructions, exposes each agent as a callable tool plus network state
// helpers, and loops the router until it answers without a further call or
// the step budget is exhausted.
package networkexec

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mastra-run/mastra-go/controllers/networkctl"
	"github.com/mastra-run/mastra-go/events"
	"github.com/mastra-run/mastra-go/resource"
	"github.com/mastra-run/mastra-go/telemetry"
)

// AgentCaller invokes a rostered agent by name with a message and optional
// carried-over state, returning its response text and any state it wants
// persisted back into NetworkState.
type AgentCaller interface {
	Call(ctx context.Context, agentName, message string, state map[string]any) (response string, stateDelta map[string]any, err error)
}

// RouterDecision is one router turn: either a final answer, or a further
// call to a rostered agent.
type RouterDecision struct {
	Answer      string
	RouteTo     string
	RouteInput  string
	IsFinal     bool
}

// Router decides the next step of a network turn given the accumulated
// conversation and roster. It plays the role the spec's "toolset exposing
// each agent as a callable" fills: this interface is the seam between the
// generic loop in this package and an LLM-backed router implementation.
type Router interface {
	Decide(ctx context.Context, conversation []string, roster []RosterEntry, state map[string]any) (RouterDecision, error)
}

// RosterEntry is the short per-agent summary given to the router and to
// scoring-based routing strategies.
type RosterEntry struct {
	Alias       string
	Role        string
	Description string
	Specialties []string
}

// NetworkState is the key-value map carried across turns of a network
// conversation, subject to soft TTL expiry when persistence is enabled.
type NetworkState struct {
	mu        sync.Mutex
	values    map[string]any
	updatedAt time.Time
}

func newNetworkState() *NetworkState {
	return &NetworkState{values: make(map[string]any), updatedAt: time.Now()}
}

func (s *NetworkState) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *NetworkState) merge(delta map[string]any) {
	if len(delta) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range delta {
		s.values[k] = v
	}
	s.updatedAt = time.Now()
}

// stateStore tracks one NetworkState per network, evicting entries whose
// soft TTL has elapsed on next access rather than on a timer, so a
// concurrent straggler read never observes a mid-flight hard deletion. When
// persist is configured, a state rebuilt after eviction (or after a process
// restart) is rehydrated from Redis before being handed back, and a network
// that opts into persistence writes its snapshot back after every merge.
type stateStore struct {
	mu      sync.Mutex
	byKey   map[string]*NetworkState
	persist *redisPersistence
}

func newStateStore(persist *redisPersistence) *stateStore {
	return &stateStore{byKey: make(map[string]*NetworkState), persist: persist}
}

func (s *stateStore) get(ctx context.Context, key string, ttl time.Duration, persistent bool) *NetworkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.byKey[key]
	if ok && ttl > 0 && time.Since(state.updatedAt) > ttl {
		ok = false
	}
	if !ok {
		state = newNetworkState()
		if persistent && s.persist != nil {
			if values, found := s.persist.load(ctx, key); found {
				state.values = values
			}
		}
		s.byKey[key] = state
	}
	return state
}

func (s *stateStore) persistState(ctx context.Context, key string, state *NetworkState, ttl time.Duration) {
	if s.persist == nil {
		return
	}
	s.persist.save(ctx, key, state.snapshot(), ttl)
}

// TraceRecord is one router or agent call recorded when tracing is enabled.
type TraceRecord struct {
	ID           string
	Step         int
	AgentID      string
	Input        string
	Output       string
	StartTime    time.Time
	EndTime      time.Time
	LatencyMs    int64
	IsRouterCall bool
	StateChanges map[string]any
}

// TraceSummary aggregates a run's TraceRecords.
type TraceSummary struct {
	Total        int
	PerAgent     map[string]int
	AvgLatencyMs float64
	MaxLatencyMs int64
	MinLatencyMs int64
}

// Result is a network turn's outcome.
type Result struct {
	Answer    string
	StepCount int
	Trace     []TraceRecord
	State     map[string]any
}

// Config configures an Executor.
type Config struct {
	Router   Router
	Agents   AgentCaller
	Bus      *events.Bus
	Logger   telemetry.Logger
	Tracing  bool
	Strategy Strategy
	// Redis, when set, backs NetworkState for networks whose state.persistence
	// is enabled, so state survives across Executor restarts. Networks that
	// don't opt in are unaffected even when Redis is configured.
	Redis *redis.Client
}

// Executor runs Network resources.
type Executor struct {
	router   Router
	agents   AgentCaller
	bus      *events.Bus
	logger   telemetry.Logger
	tracing  bool
	strategy Strategy
	states   *stateStore
}

// New constructs an Executor. A nil Strategy defaults to DefaultStrategy
// (the router decides unaided).
func New(cfg Config) *Executor {
	strategy := cfg.Strategy
	if strategy == nil {
		strategy = DefaultStrategy{}
	}
	return &Executor{
		router:   cfg.Router,
		agents:   cfg.Agents,
		bus:      cfg.Bus,
		logger:   cfg.Logger,
		tracing:  cfg.Tracing,
		strategy: strategy,
		states:   newStateStore(newRedisPersistence(cfg.Redis)),
	}
}

func specOf(r *resource.Resource) (resource.NetworkSpec, error) {
	spec, ok := r.Spec.(resource.NetworkSpec)
	if !ok {
		return resource.NetworkSpec{}, fmt.Errorf("networkexec: spec is %T, want resource.NetworkSpec", r.Spec)
	}
	return spec, nil
}

func roster(agents []resource.NetworkAgent) []RosterEntry {
	entries := make([]RosterEntry, len(agents))
	for i, a := range agents {
		entries[i] = RosterEntry{Alias: a.Name, Role: a.Role, Description: a.Description, Specialties: a.Specialties}
	}
	return entries
}

// Generate runs one network turn: it augments input with the roster and
// instructions, loops the router (consulting the configured routing
// strategy for the next agent when the router doesn't pick one outright),
// and terminates on a final answer or when maxSteps is reached.
func (e *Executor) Generate(ctx context.Context, r *resource.Resource, input string) (*Result, error) {
	spec, err := specOf(r)
	if err != nil {
		return nil, err
	}
	maxSteps := spec.Router.MaxSteps
	if maxSteps <= 0 {
		maxSteps = 10
	}

	var ttl time.Duration
	var persistent bool
	if spec.State != nil {
		persistent = spec.State.Persistence
		if spec.State.TTLSeconds > 0 {
			ttl = time.Duration(spec.State.TTLSeconds) * time.Second
		}
	}
	state := e.states.get(ctx, r.Metadata.Name, ttl, persistent)

	conversation := []string{fmt.Sprintf("instructions: %s", spec.Instructions), fmt.Sprintf("input: %s", input)}
	entries := roster(spec.Agents)

	var trace []TraceRecord
	stepCount := 0
	answer := ""

	for stepCount < maxSteps {
		decision, err := e.callRouter(ctx, conversation, entries, state, stepCount, &trace)
		if err != nil {
			return nil, err
		}
		stepCount++

		if decision.IsFinal {
			answer = decision.Answer
			break
		}

		agentName := decision.RouteTo
		if agentName == "" {
			agentName, err = e.strategy.SelectAgent(entries, state.snapshot(), conversation)
			if err != nil {
				return nil, err
			}
		}
		message := decision.RouteInput
		if message == "" {
			message = input
		}

		response, delta, err := e.callAgent(ctx, agentName, message, state, stepCount, &trace)
		if err != nil {
			return nil, err
		}
		state.merge(delta)
		if persistent {
			e.states.persistState(ctx, r.Metadata.Name, state, ttl)
		}
		conversation = append(conversation, fmt.Sprintf("%s: %s", agentName, response))
	}

	result := &Result{Answer: answer, StepCount: stepCount, Trace: trace, State: state.snapshot()}
	return result, nil
}

func (e *Executor) callRouter(ctx context.Context, conversation []string, entries []RosterEntry, state *NetworkState, step int, trace *[]TraceRecord) (RouterDecision, error) {
	start := time.Now()
	decision, err := e.router.Decide(ctx, conversation, entries, state.snapshot())
	end := time.Now()
	if e.tracing {
		*trace = append(*trace, TraceRecord{
			ID: uuid.NewString(), Step: step, AgentID: "router",
			Input: strings.Join(conversation, "\n"), Output: decision.Answer,
			StartTime: start, EndTime: end, LatencyMs: latencyMs(start, end),
			IsRouterCall: true,
		})
	}
	return decision, err
}

func (e *Executor) callAgent(ctx context.Context, agentName, message string, state *NetworkState, step int, trace *[]TraceRecord) (string, map[string]any, error) {
	start := time.Now()
	response, delta, err := e.agents.Call(ctx, agentName, message, state.snapshot())
	end := time.Now()
	if e.tracing {
		*trace = append(*trace, TraceRecord{
			ID: uuid.NewString(), Step: step, AgentID: agentName,
			Input: message, Output: response,
			StartTime: start, EndTime: end, LatencyMs: latencyMs(start, end),
			StateChanges: delta,
		})
	}
	return response, delta, err
}

func latencyMs(start, end time.Time) int64 {
	ms := end.Sub(start).Milliseconds()
	if ms < 0 {
		return 0
	}
	return ms
}

// Summarize aggregates trace into a TraceSummary.
func Summarize(trace []TraceRecord) TraceSummary {
	summary := TraceSummary{PerAgent: make(map[string]int)}
	if len(trace) == 0 {
		return summary
	}
	var total int64
	summary.MinLatencyMs = trace[0].LatencyMs
	for _, rec := range trace {
		summary.Total++
		summary.PerAgent[rec.AgentID]++
		total += rec.LatencyMs
		if rec.LatencyMs > summary.MaxLatencyMs {
			summary.MaxLatencyMs = rec.LatencyMs
		}
		if rec.LatencyMs < summary.MinLatencyMs {
			summary.MinLatencyMs = rec.LatencyMs
		}
	}
	summary.AvgLatencyMs = float64(total) / float64(summary.Total)
	return summary
}

// bindRoster returns the agent names of a reconciled Network's
// networkctl.Roster in sorted order.
func bindRoster(r networkctl.Roster) []string {
	names := append([]string(nil), r.AgentNames...)
	sort.Strings(names)
	return names
}

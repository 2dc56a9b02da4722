package networkexec

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastra-run/mastra-go/resource"
)

type scriptedRouter struct {
	decisions []RouterDecision
	idx       int
}

func (r *scriptedRouter) Decide(ctx context.Context, conversation []string, roster []RosterEntry, state map[string]any) (RouterDecision, error) {
	if r.idx >= len(r.decisions) {
		return RouterDecision{}, fmt.Errorf("scriptedRouter: ran out of decisions")
	}
	d := r.decisions[r.idx]
	r.idx++
	return d, nil
}

type recordingAgents struct {
	calls []string
	resp  string
	delta map[string]any
	err   error
}

func (a *recordingAgents) Call(ctx context.Context, agentName, message string, state map[string]any) (string, map[string]any, error) {
	a.calls = append(a.calls, agentName)
	if a.err != nil {
		return "", nil, a.err
	}
	return a.resp, a.delta, nil
}

func networkResource(spec resource.NetworkSpec) *resource.Resource {
	return &resource.Resource{
		Kind:     resource.KindNetwork,
		Metadata: resource.Metadata{Name: "net", Namespace: "default"},
		Spec:     spec,
	}
}

func sampleNetworkSpec() resource.NetworkSpec {
	return resource.NetworkSpec{
		Instructions: "route to the right specialist",
		Agents: []resource.NetworkAgent{
			{Name: "researcher", Role: "research", Specialties: []string{"search", "facts"}},
			{Name: "writer", Role: "writing", Specialties: []string{"prose", "editing"}},
		},
		Router: resource.RouterSpec{MaxSteps: 5},
	}
}

func TestGenerateTerminatesOnFinalAnswer(t *testing.T) {
	router := &scriptedRouter{decisions: []RouterDecision{{IsFinal: true, Answer: "done"}}}
	agents := &recordingAgents{}
	exec := New(Config{Router: router, Agents: agents})

	result, err := exec.Generate(context.Background(), networkResource(sampleNetworkSpec()), "hello")
	require.NoError(t, err)
	assert.Equal(t, "done", result.Answer)
	assert.Equal(t, 1, result.StepCount)
	assert.Empty(t, agents.calls)
}

func TestGenerateRoutesThenAnswers(t *testing.T) {
	router := &scriptedRouter{decisions: []RouterDecision{
		{RouteTo: "researcher", RouteInput: "find facts"},
		{IsFinal: true, Answer: "final answer"},
	}}
	agents := &recordingAgents{resp: "facts found"}
	exec := New(Config{Router: router, Agents: agents})

	result, err := exec.Generate(context.Background(), networkResource(sampleNetworkSpec()), "hello")
	require.NoError(t, err)
	assert.Equal(t, "final answer", result.Answer)
	assert.Equal(t, []string{"researcher"}, agents.calls)
	assert.Equal(t, 2, result.StepCount)
}

func TestGenerateStopsAtMaxSteps(t *testing.T) {
	spec := sampleNetworkSpec()
	spec.Router.MaxSteps = 2
	router := &scriptedRouter{decisions: []RouterDecision{
		{RouteTo: "researcher"},
		{RouteTo: "researcher"},
	}}
	agents := &recordingAgents{resp: "ok"}
	exec := New(Config{Router: router, Agents: agents})

	result, err := exec.Generate(context.Background(), networkResource(spec), "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, result.StepCount)
	assert.Equal(t, "", result.Answer)
}

func TestGenerateUsesStrategyWhenRouterDoesNotPick(t *testing.T) {
	router := &scriptedRouter{decisions: []RouterDecision{
		{},
		{IsFinal: true, Answer: "done"},
	}}
	agents := &recordingAgents{resp: "ok"}
	strategy := &RoundRobinStrategy{}
	exec := New(Config{Router: router, Agents: agents, Strategy: strategy})

	_, err := exec.Generate(context.Background(), networkResource(sampleNetworkSpec()), "hello")
	require.NoError(t, err)
	assert.Equal(t, []string{"researcher"}, agents.calls)
}

func TestGenerateMergesStateAcrossCalls(t *testing.T) {
	router := &scriptedRouter{decisions: []RouterDecision{
		{RouteTo: "researcher"},
		{IsFinal: true, Answer: "done"},
	}}
	agents := &recordingAgents{resp: "ok", delta: map[string]any{"found": true}}
	exec := New(Config{Router: router, Agents: agents})

	result, err := exec.Generate(context.Background(), networkResource(sampleNetworkSpec()), "hello")
	require.NoError(t, err)
	assert.Equal(t, true, result.State["found"])
}

func TestGenerateRecordsTraceWhenEnabled(t *testing.T) {
	router := &scriptedRouter{decisions: []RouterDecision{
		{RouteTo: "researcher"},
		{IsFinal: true, Answer: "done"},
	}}
	agents := &recordingAgents{resp: "ok"}
	exec := New(Config{Router: router, Agents: agents, Tracing: true})

	result, err := exec.Generate(context.Background(), networkResource(sampleNetworkSpec()), "hello")
	require.NoError(t, err)
	require.Len(t, result.Trace, 3) // router, agent, router
	assert.True(t, result.Trace[0].IsRouterCall)
	assert.False(t, result.Trace[1].IsRouterCall)
	assert.Equal(t, "researcher", result.Trace[1].AgentID)

	summary := Summarize(result.Trace)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.PerAgent["router"])
	assert.Equal(t, 1, summary.PerAgent["researcher"])
}

func TestRoundRobinStrategyCycles(t *testing.T) {
	roster := []RosterEntry{{Alias: "a"}, {Alias: "b"}, {Alias: "c"}}
	s := &RoundRobinStrategy{}
	first, _ := s.SelectAgent(roster, nil, nil)
	second, _ := s.SelectAgent(roster, nil, nil)
	third, _ := s.SelectAgent(roster, nil, nil)
	fourth, _ := s.SelectAgent(roster, nil, nil)
	assert.Equal(t, []string{"a", "b", "c", "a"}, []string{first, second, third, fourth})
}

func TestSemanticMatchingStrategyPicksBestOverlap(t *testing.T) {
	roster := []RosterEntry{
		{Alias: "researcher", Specialties: []string{"search", "facts"}},
		{Alias: "writer", Specialties: []string{"prose", "editing"}},
	}
	s := &SemanticMatchingStrategy{}
	picked, err := s.SelectAgent(roster, nil, []string{"please search for facts about go"})
	require.NoError(t, err)
	assert.Equal(t, "researcher", picked)
}

func TestHistoryBasedStrategyPrefersHigherSuccessRate(t *testing.T) {
	roster := []RosterEntry{{Alias: "a"}, {Alias: "b"}}
	s := NewHistoryBasedStrategy()
	s.Record("a", false, 100)
	s.Record("b", true, 100)

	picked, err := s.SelectAgent(roster, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "b", picked)
}

func TestCustomStrategyDelegates(t *testing.T) {
	s := &CustomStrategy{Select: func(roster []RosterEntry, state map[string]any, conversation []string) (string, error) {
		return "forced", nil
	}}
	picked, err := s.SelectAgent(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "forced", picked)
}

func TestNetworkStateWithoutTTLPersistsAcrossGets(t *testing.T) {
	store := newStateStore(nil)
	state := store.get(context.Background(), "net", 0, false)
	state.merge(map[string]any{"k": "v"})

	again := store.get(context.Background(), "net", 0, false)
	assert.Equal(t, "v", again.snapshot()["k"])
}

func TestStateStoreWithoutRedisIgnoresPersistentFlag(t *testing.T) {
	store := newStateStore(nil)
	state := store.get(context.Background(), "net", time.Hour, true)
	state.merge(map[string]any{"k": "v"})
	store.persistState(context.Background(), "net", state, time.Hour)

	again := store.get(context.Background(), "net", time.Hour, true)
	assert.Equal(t, "v", again.snapshot()["k"], "persistState/load with a nil Redis client must be a no-op, not a panic")
}

package networkexec

import (
	"fmt"
	"strings"
	"sync"
)

// Strategy picks the next agent for a network turn when the router doesn't
// route explicitly itself.
type Strategy interface {
	SelectAgent(roster []RosterEntry, state map[string]any, conversation []string) (string, error)
}

// DefaultStrategy defers entirely to the router's own reasoning: it never
// overrides, so SelectAgent is only reached when the router gave no
// RouteTo, which is treated as a configuration error.
type DefaultStrategy struct{}

func (DefaultStrategy) SelectAgent(roster []RosterEntry, state map[string]any, conversation []string) (string, error) {
	if len(roster) == 0 {
		return "", fmt.Errorf("networkexec: no agents in roster to route to")
	}
	return "", fmt.Errorf("networkexec: default strategy requires the router to choose an agent")
}

// RoundRobinStrategy cycles through the roster in declared order,
// independent of router opinion.
type RoundRobinStrategy struct {
	mu   sync.Mutex
	next int
}

func (s *RoundRobinStrategy) SelectAgent(roster []RosterEntry, state map[string]any, conversation []string) (string, error) {
	if len(roster) == 0 {
		return "", fmt.Errorf("networkexec: no agents in roster to route to")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := roster[s.next%len(roster)]
	s.next++
	return entry.Alias, nil
}

// AgentScore is one agent's recent success/latency track record, consulted
// by HistoryBasedStrategy.
type AgentScore struct {
	Successes  int
	Failures   int
	AvgLatency float64
}

func (a AgentScore) score() float64 {
	total := a.Successes + a.Failures
	if total == 0 {
		return 0
	}
	successRate := float64(a.Successes) / float64(total)
	if a.AvgLatency <= 0 {
		return successRate
	}
	return successRate / (1 + a.AvgLatency/1000)
}

// HistoryBasedStrategy picks the rostered agent with the best recent
// success/latency score, defaulting unseen agents to a neutral score of
// zero so a fresh roster still makes a deterministic (first-listed) choice.
type HistoryBasedStrategy struct {
	mu     sync.Mutex
	scores map[string]AgentScore
}

func NewHistoryBasedStrategy() *HistoryBasedStrategy {
	return &HistoryBasedStrategy{scores: make(map[string]AgentScore)}
}

func (s *HistoryBasedStrategy) Record(agent string, success bool, latencyMs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.scores[agent]
	if success {
		cur.Successes++
	} else {
		cur.Failures++
	}
	if cur.AvgLatency == 0 {
		cur.AvgLatency = latencyMs
	} else {
		cur.AvgLatency = (cur.AvgLatency + latencyMs) / 2
	}
	s.scores[agent] = cur
}

func (s *HistoryBasedStrategy) SelectAgent(roster []RosterEntry, state map[string]any, conversation []string) (string, error) {
	if len(roster) == 0 {
		return "", fmt.Errorf("networkexec: no agents in roster to route to")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	best := roster[0]
	bestScore := s.scores[best.Alias].score()
	for _, entry := range roster[1:] {
		if sc := s.scores[entry.Alias].score(); sc > bestScore {
			best, bestScore = entry, sc
		}
	}
	return best.Alias, nil
}

// SemanticMatchingStrategy scores each agent by the overlap between the
// conversation's tokens and the agent's declared specialties, weighted by
// an optional external agent score, and picks the maximum.
type SemanticMatchingStrategy struct {
	// AgentScore optionally weights candidates beyond raw token overlap;
	// a nil func treats every agent as a weight of 1.
	AgentScore func(alias string) float64
}

func (s *SemanticMatchingStrategy) SelectAgent(roster []RosterEntry, state map[string]any, conversation []string) (string, error) {
	if len(roster) == 0 {
		return "", fmt.Errorf("networkexec: no agents in roster to route to")
	}
	inputTokens := tokenSet(strings.Join(conversation, " "))

	best := roster[0]
	bestScore := -1.0
	for _, entry := range roster {
		specialtyTokens := tokenSet(strings.Join(entry.Specialties, " "))
		overlap := len(intersect(inputTokens, specialtyTokens))
		weight := 1.0
		if s.AgentScore != nil {
			weight = s.AgentScore(entry.Alias)
		}
		score := float64(overlap) * weight
		if score > bestScore {
			best, bestScore = entry, score
		}
	}
	return best.Alias, nil
}

func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[strings.Trim(f, ".,!?;:\"'()")] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for k := range a {
		if _, ok := b[k]; ok {
			out[k] = struct{}{}
		}
	}
	return out
}

// CustomStrategy delegates entirely to a caller-supplied selector function,
// for embedding applications that want bespoke routing logic.
type CustomStrategy struct {
	Select func(roster []RosterEntry, state map[string]any, conversation []string) (string, error)
}

func (s *CustomStrategy) SelectAgent(roster []RosterEntry, state map[string]any, conversation []string) (string, error) {
	if s.Select == nil {
		return "", fmt.Errorf("networkexec: custom strategy has no selector configured")
	}
	return s.Select(roster, state, conversation)
}

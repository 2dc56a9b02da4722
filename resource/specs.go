package resource

// Well-known kinds the DSL loader and runtime manager dispatch on. Unknown
// kinds fall back to the CRD registry.
const (
	KindTool                     Kind = "Tool"
	KindAgent                    Kind = "Agent"
	KindWorkflow                 Kind = "Workflow"
	KindNetwork                  Kind = "Network"
	KindLLM                      Kind = "LLM"
	KindCustomResourceDefinition Kind = "CustomResourceDefinition"
	KindMastraPod                Kind = "MastraPod"
)

type (
	// ToolSpec describes a callable capability with a JSON-schema-like
	// parameter shape. Execute is stored unevaluated: the DSL loader never
	// compiles or sandboxes it, per the "opaque callables at boundaries"
	// design note. The embedding application registers the matching callable
	// with the Tool controller before execution.
	ToolSpec struct {
		ID          string         `json:"id" yaml:"id"`
		Description string         `json:"description,omitempty" yaml:"description,omitempty"`
		Execute     string         `json:"execute" yaml:"execute"`
		Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	}

	// ModelRef selects the language model an Agent uses, either inline
	// (Provider/Name) or by reference to an LLM resource (Ref).
	ModelRef struct {
		Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
		Name     string `json:"name,omitempty" yaml:"name,omitempty"`
		Ref      string `json:"ref,omitempty" yaml:"ref,omitempty"`
	}

	// ToolBinding aliases a Tool resource for use within an Agent or Network.
	ToolBinding struct {
		Ref string `json:"ref" yaml:"ref"`
	}

	// AgentSpec describes an LLM-backed capability with bound tools.
	AgentSpec struct {
		Instructions string                 `json:"instructions" yaml:"instructions"`
		Model        ModelRef               `json:"model" yaml:"model"`
		Tools        map[string]ToolBinding `json:"tools,omitempty" yaml:"tools,omitempty"`
		Memory       map[string]any         `json:"memory,omitempty" yaml:"memory,omitempty"`
		Voice        map[string]any         `json:"voice,omitempty" yaml:"voice,omitempty"`
	}

	// StepType discriminates a Workflow step's execution behavior.
	StepType string

	// WorkflowStep is one node of a Workflow's step DAG.
	WorkflowStep struct {
		ID           string         `json:"id" yaml:"id"`
		Name         string         `json:"name,omitempty" yaml:"name,omitempty"`
		Type         StepType       `json:"type" yaml:"type"`
		Agent        string         `json:"agent,omitempty" yaml:"agent,omitempty"`
		Tool         string         `json:"tool,omitempty" yaml:"tool,omitempty"`
		Function     string         `json:"function,omitempty" yaml:"function,omitempty"`
		Condition    string         `json:"condition,omitempty" yaml:"condition,omitempty"`
		Steps        []WorkflowStep `json:"steps,omitempty" yaml:"steps,omitempty"`
		Input        map[string]any `json:"input,omitempty" yaml:"input,omitempty"`
		Output       map[string]any `json:"output,omitempty" yaml:"output,omitempty"`
		Next         any            `json:"next,omitempty" yaml:"next,omitempty"`
		TimeoutMs    int64          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
		Retries      int            `json:"retries,omitempty" yaml:"retries,omitempty"`
		RetryDelayMs int64          `json:"retryDelayMs,omitempty" yaml:"retryDelayMs,omitempty"`
		Cacheable    *bool          `json:"cacheable,omitempty" yaml:"cacheable,omitempty"`
	}

	// WorkflowSpec describes a step DAG starting at InitialStep.
	WorkflowSpec struct {
		InitialStep string         `json:"initialStep" yaml:"initialStep"`
		Steps       []WorkflowStep `json:"steps" yaml:"steps"`
	}

	// NetworkAgent aliases an Agent resource within a Network's roster.
	NetworkAgent struct {
		Name        string   `json:"name" yaml:"name"`
		Ref         string   `json:"ref" yaml:"ref"`
		Role        string   `json:"role,omitempty" yaml:"role,omitempty"`
		Description string   `json:"description,omitempty" yaml:"description,omitempty"`
		Specialties []string `json:"specialties,omitempty" yaml:"specialties,omitempty"`
	}

	// RouterSpec configures the special agent that coordinates a Network.
	RouterSpec struct {
		Model    string `json:"model,omitempty" yaml:"model,omitempty"`
		MaxSteps int    `json:"maxSteps,omitempty" yaml:"maxSteps,omitempty"`
	}

	// NetworkStateSpec configures whether a Network's NetworkState survives
	// across calls and for how long.
	NetworkStateSpec struct {
		Persistence bool  `json:"persistence,omitempty" yaml:"persistence,omitempty"`
		TTLSeconds  int64 `json:"ttl,omitempty" yaml:"ttl,omitempty"`
	}

	// NetworkSpec describes a Router-coordinated multi-agent roster.
	NetworkSpec struct {
		Instructions string            `json:"instructions,omitempty" yaml:"instructions,omitempty"`
		Agents       []NetworkAgent    `json:"agents" yaml:"agents"`
		Router       RouterSpec        `json:"router" yaml:"router"`
		State        *NetworkStateSpec `json:"state,omitempty" yaml:"state,omitempty"`
	}

	// LLMSpec configures a reusable, named model client. Agents may reference
	// one via ModelRef.Ref instead of inlining provider/model.
	LLMSpec struct {
		Provider    string  `json:"provider" yaml:"provider"`
		Model       string  `json:"model" yaml:"model"`
		APIKeyEnv   string  `json:"apiKeyEnv,omitempty" yaml:"apiKeyEnv,omitempty"`
		BaseURL     string  `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
		MaxTokens   int     `json:"maxTokens,omitempty" yaml:"maxTokens,omitempty"`
		Temperature float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	}

	// CRDScope controls whether a CustomResourceDefinition's instances are
	// namespaced or cluster-wide.
	CRDScope string

	// CRDNames names the kind registered by a CustomResourceDefinition.
	CRDNames struct {
		Kind     string `json:"kind" yaml:"kind"`
		Plural   string `json:"plural" yaml:"plural"`
		Singular string `json:"singular,omitempty" yaml:"singular,omitempty"`
	}

	// CRDValidation wraps the embedded OpenAPI-v3-subset schema.
	CRDValidation struct {
		OpenAPIV3Schema map[string]any `json:"openAPIV3Schema" yaml:"openAPIV3Schema"`
	}

	// CRDSpec describes a CustomResourceDefinition: the (group, kind) pair it
	// registers and the schema new instances of that kind must satisfy.
	CRDSpec struct {
		Group      string        `json:"group" yaml:"group"`
		Names      CRDNames      `json:"names" yaml:"names"`
		Scope      CRDScope      `json:"scope" yaml:"scope"`
		Validation CRDValidation `json:"validation" yaml:"validation"`
	}
)

const (
	StepTypeAgent     StepType = "agent"
	StepTypeTool      StepType = "tool"
	StepTypeFunction  StepType = "function"
	StepTypeCondition StepType = "condition"
	StepTypeParallel  StepType = "parallel"

	CRDScopeNamespaced CRDScope = "Namespaced"
	CRDScopeCluster    CRDScope = "Cluster"

	// EndStep is the reserved terminal token for WorkflowStep.Next.
	EndStep = "END"
)

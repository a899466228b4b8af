package agent

import "sync"

// Config describes how to construct an Agent for a given agent id, as
// referenced by workflow.Workflow's agentId → AgentConfig mapping.
type Config struct {
	Provider     string // "anthropic" | "openai" | "google" | "mock"
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// Factory constructs an Agent from a Config. Callers wire one Factory per
// provider name with Registry.RegisterFactory.
type Factory func(Config) (Agent, error)

// Registry resolves agent ids to live Agent instances, constructed from
// registered Configs when they are registered. Safe for concurrent use —
// Generic-node-style dynamic registration and concurrent lookups from
// Parallel branches both occur during normal execution.
type Registry struct {
	mu        sync.RWMutex
	configs   map[string]Config
	instances map[string]Agent
	factories map[string]Factory
}

// NewRegistry creates an empty Registry. Providers are wired in with
// RegisterFactory before agents using them can be resolved, e.g.:
//
//	reg := agent.NewRegistry()
//	reg.RegisterFactory("anthropic", func(cfg agent.Config) (agent.Agent, error) {
//	    return anthropic.New(cfg, os.Getenv("ANTHROPIC_API_KEY"))
//	})
func NewRegistry() *Registry {
	return &Registry{
		configs:   make(map[string]Config),
		instances: make(map[string]Agent),
		factories: make(map[string]Factory),
	}
}

// RegisterFactory associates a provider name with the Factory that builds
// Agents for it.
func (r *Registry) RegisterFactory(provider string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[provider] = f
}

// RegisterAgent declares an agent id's configuration and eagerly
// constructs it, returning the constructed Agent.
func (r *Registry) RegisterAgent(id string, cfg Config) (Agent, error) {
	r.mu.Lock()
	factory, ok := r.factories[cfg.Provider]
	r.mu.Unlock()
	if !ok {
		return nil, &UnknownProviderError{Provider: cfg.Provider}
	}

	a, err := factory(cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.configs[id] = cfg
	r.instances[id] = a
	r.mu.Unlock()
	return a, nil
}

// GetAgent resolves an agent id to its Agent, or ok=false if unregistered.
func (r *Registry) GetAgent(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.instances[id]
	return a, ok
}

// HasAgent reports whether id has been registered.
func (r *Registry) HasAgent(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instances[id]
	return ok
}

// UnknownProviderError is returned when RegisterAgent names a provider
// with no registered Factory.
type UnknownProviderError struct {
	Provider string
}

func (e *UnknownProviderError) Error() string {
	return "agent: unknown provider " + e.Provider
}

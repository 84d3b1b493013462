// Package tools implements the Tool Registry: a name-keyed map of
// ToolDefinitions, populated once at driver startup and read thereafter.
// A subset view hides names without mutating the parent registry, which is
// how the Subagent Manager (internal/subagents) strips spawn_subagent from a
// child's effective tool set.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Definition describes one callable a model may request. Invoke is resolved
// at call time; the registry only needs Name/Description/Schema to build the
// tool listing handed to the model provider.
type Definition struct {
	Name        string
	Description string

	// ArgumentSchema is a JSON Schema document describing valid arguments.
	// May be nil for tools that take no arguments.
	ArgumentSchema json.RawMessage

	Invoke func(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry is a name-keyed map of Definitions. The root registry is built
// once at startup by Register calls; after that it is read-only in practice,
// so lookups take a read lock only to be safe under concurrent subagent
// spawns.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Definition

	// hidden holds names excluded from this view. A view created by Subset
	// shares the parent's tools map and only adds to hidden — it never
	// mutates the parent.
	parent *Registry
	hidden map[string]struct{}
}

// New creates an empty root registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds or replaces a tool definition. Registering over an existing
// name replaces it; this is only expected to happen during startup wiring.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tools: definition must have a name")
	}
	if def.Invoke == nil {
		return fmt.Errorf("tools: %q must have an Invoke function", def.Name)
	}
	if len(def.ArgumentSchema) > 0 {
		if _, err := compileSchema(def.ArgumentSchema); err != nil {
			return fmt.Errorf("tools: %q has invalid argument schema: %w", def.Name, err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = def
	return nil
}

// Lookup resolves a tool by name, honoring this view's hidden set.
func (r *Registry) Lookup(name string) (Definition, bool) {
	if r.isHidden(name) {
		return Definition{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

func (r *Registry) isHidden(name string) bool {
	if r.hidden == nil {
		return false
	}
	_, hidden := r.hidden[name]
	return hidden
}

// ListDefinitions returns every visible tool definition. Order is not
// significant to callers; model providers re-serialize these into their own
// wire format.
func (r *Registry) ListDefinitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.tools))
	for name, def := range r.tools {
		if r.isHidden(name) {
			continue
		}
		out = append(out, def)
	}
	return out
}

// Subset returns a view over this registry that hides the named tools. It
// never mutates the receiver: the view shares the same underlying tools map
// and layers its own hidden set on top (union of the parent's hidden set and
// the newly excluded names), so nesting Subset calls composes correctly.
func (r *Registry) Subset(exclude ...string) *Registry {
	hidden := make(map[string]struct{}, len(r.hidden)+len(exclude))
	for name := range r.hidden {
		hidden[name] = struct{}{}
	}
	for _, name := range exclude {
		hidden[name] = struct{}{}
	}
	return &Registry{
		tools:  r.tools,
		mu:     sync.RWMutex{},
		parent: r,
		hidden: hidden,
	}
}

// Validate checks args against name's argument schema, if one is set. It
// returns nil when the tool has no schema or is not found (name resolution
// failures surface at Execute time instead).
func (r *Registry) Validate(name string, args json.RawMessage) error {
	def, ok := r.Lookup(name)
	if !ok || len(def.ArgumentSchema) == 0 {
		return nil
	}
	schema, err := compileSchema(def.ArgumentSchema)
	if err != nil {
		return fmt.Errorf("tools: %q: %w", name, err)
	}
	var decoded any
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return fmt.Errorf("tools: %q: invalid argument JSON: %w", name, err)
	}
	if err := schema.Validate(decoded); err != nil {
		return fmt.Errorf("tools: %q: arguments do not match schema: %w", name, err)
	}
	return nil
}

// Execute validates args against the schema, then resolves and invokes the
// named tool. The caller is responsible for feeding the returned string (or
// error) back into the conversation as a tool-role message.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if err := r.Validate(name, args); err != nil {
		return "", err
	}
	def, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("tools: tool not found: %s", name)
	}
	return def.Invoke(ctx, args)
}

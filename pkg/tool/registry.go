package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Registry maps tool names to their definitions.
// It is populated at startup and read-only afterwards.
type Registry struct {
	tools map[Name]Definition
	order []Name
}

// NewRegistry creates a registry holding defs.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{tools: make(map[Name]Definition)}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a definition. Names must be unique and handlers non-nil.
func (r *Registry) Register(d Definition) error {
	if d.Name == "" {
		return fmt.Errorf("tool: name required")
	}
	if d.Handler == nil {
		return fmt.Errorf("tool: %s has no handler", d.Name)
	}
	if _, ok := r.tools[d.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, d.Name)
	}
	r.tools[d.Name] = d
	r.order = append(r.order, d.Name)
	return nil
}

// Definitions returns the registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, n := range r.order {
		defs = append(defs, r.tools[n])
	}
	return defs
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	return len(r.order)
}

// Lookup returns the definition for name or an *UnknownToolError.
func (r *Registry) Lookup(name string) (Definition, error) {
	d, ok := r.tools[Name(name)]
	if !ok {
		return Definition{}, &UnknownToolError{Name: name}
	}
	return d, nil
}

// Resolve looks up name and validates the JSON-encoded arguments against
// the tool's parameter contract.
func (r *Registry) Resolve(name, rawArgs string) (Definition, Args, error) {
	d, err := r.Lookup(name)
	if err != nil {
		return Definition{}, nil, err
	}

	args := Args{}
	if s := strings.TrimSpace(rawArgs); s != "" && s != "null" {
		if err := json.Unmarshal([]byte(s), &args); err != nil {
			return Definition{}, nil, &ArgumentError{Tool: d.Name, Err: fmt.Errorf("decode: %w", err)}
		}
	}

	for _, p := range d.Params {
		v, present := args[p.Name]
		if !present || v == nil {
			if p.Required {
				return Definition{}, nil, &ArgumentError{Tool: d.Name, Err: fmt.Errorf("missing %q", p.Name)}
			}
			continue
		}
		if !matchesType(v, p.Type) {
			return Definition{}, nil, &ArgumentError{Tool: d.Name, Err: fmt.Errorf("%q must be a %s", p.Name, p.Type)}
		}
	}
	return d, args, nil
}

// Execute resolves and runs a tool. The Result is always well formed;
// the error, when non-nil, is the *UnknownToolError or *ArgumentError that
// produced a failed Result and is meant for logging only.
func (r *Registry) Execute(ctx context.Context, name, rawArgs string) (res Result, err error) {
	d, args, err := r.Resolve(name, rawArgs)
	if err != nil {
		return FromError(err), err
	}

	defer func() {
		if p := recover(); p != nil {
			res = Failure("%s panicked: %v", d.Name, p)
		}
	}()
	return d.Handler(ctx, args), nil
}

func matchesType(v any, t ParamType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		_, ok := v.(float64)
		return ok
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	}
	return true
}

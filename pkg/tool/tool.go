// Package tool provides the typed tool registry used by the dialogue.
//
// A tool is declared once with its name, description and parameter contract.
// The registry advertises the declarations to the AI backend and dispatches
// invocation requests to typed handlers. Dispatch never fails: unknown names
// and malformed arguments are converted into a failed Result so the
// conversation can continue and the model can explain the problem.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Name identifies a tool on the wire.
type Name string

// Declared tool names.
const (
	// GetWeather looks up current conditions for a place name.
	GetWeather Name = "get_weather"
)

// ParamType is the JSON Schema type of a parameter.
type ParamType string

// Supported parameter types.
const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
)

// Param describes one argument of a tool.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Handler executes a tool with validated arguments.
// Handlers report failure through the returned Result, never by panicking.
type Handler func(ctx context.Context, args Args) Result

// Definition declares a tool and binds it to its handler.
type Definition struct {
	Name        Name
	Description string
	Params      []Param
	Handler     Handler
}

// Schema returns the JSON Schema object describing the parameters.
func (d Definition) Schema() map[string]any {
	props := make(map[string]any, len(d.Params))
	required := []string{}
	for _, p := range d.Params {
		prop := map[string]any{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

// Args holds decoded tool arguments.
type Args map[string]any

// String returns a string argument.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Number returns a numeric argument.
func (a Args) Number(name string) float64 {
	f, _ := a[name].(float64)
	return f
}

// Bool returns a boolean argument.
func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

// Result is the tagged outcome of a tool invocation.
type Result struct {
	OK      bool
	Payload map[string]any
	Error   string
}

// Success builds a successful result.
func Success(payload map[string]any) Result {
	return Result{OK: true, Payload: payload}
}

// Failure builds a failed result with a formatted message.
func Failure(format string, args ...any) Result {
	return Result{OK: false, Error: fmt.Sprintf(format, args...)}
}

// FromError builds a failed result from err.
func FromError(err error) Result {
	return Result{OK: false, Error: err.Error()}
}

// Map flattens the result into {"ok": true, ...payload} or
// {"ok": false, "error": "..."}.
func (r Result) Map() map[string]any {
	if !r.OK {
		return map[string]any{"ok": false, "error": r.Error}
	}
	m := make(map[string]any, len(r.Payload)+1)
	for k, v := range r.Payload {
		m[k] = v
	}
	m["ok"] = true
	return m
}

// MarshalJSON encodes the flattened form.
func (r Result) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Map())
}

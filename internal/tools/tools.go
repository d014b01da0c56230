package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrUnknownTool = errors.New("unknown tool")

// Tool é uma ação que o agente pode chamar com um texto de entrada
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type funcTool struct {
	name string
	desc string
	fn   func(ctx context.Context, input string) (string, error)
}

// NewFunc adapta uma função Go em Tool
func NewFunc(name, description string, fn func(ctx context.Context, input string) (string, error)) Tool {
	return &funcTool{name: name, desc: description, fn: fn}
}

func (t *funcTool) Name() string        { return t.name }
func (t *funcTool) Description() string { return t.desc }

func (t *funcTool) Call(ctx context.Context, input string) (string, error) {
	return t.fn(ctx, input)
}

// Registry mantém as tools na ordem de cadastro
type Registry struct {
	tools  []Tool
	byName map[string]Tool
}

func NewRegistry(ts ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		if t.Name() == "" {
			return nil, errors.New("tool without name")
		}
		if _, dup := r.byName[t.Name()]; dup {
			return nil, fmt.Errorf("duplicate tool %q", t.Name())
		}
		r.byName[t.Name()] = t
		r.tools = append(r.tools, t)
	}
	return r, nil
}

func (r *Registry) Get(name string) (Tool, error) {
	if r != nil {
		if t, ok := r.byName[name]; ok {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

func (r *Registry) Tools() []Tool {
	if r == nil {
		return nil
	}
	return append([]Tool(nil), r.tools...)
}

func (r *Registry) Names() []string {
	if r == nil {
		return []string{}
	}
	names := make([]string, 0, len(r.tools))
	for _, t := range r.tools {
		names = append(names, t.Name())
	}
	return names
}

func (r *Registry) Infos() []Info {
	if r == nil {
		return []Info{}
	}
	out := make([]Info, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Info{Name: t.Name(), Description: t.Description()})
	}
	return out
}

// Close libera recursos das tools que implementam io.Closer
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, t := range r.tools {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close tool %s: %w", t.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

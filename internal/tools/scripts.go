package tools

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ScriptFunc func(args ...string) (string, error)

var (
	scriptsMu      sync.RWMutex
	scriptRegistry = map[string]ScriptFunc{}
)

func RegisterScript(name string, fn ScriptFunc) {
	scriptsMu.Lock()
	defer scriptsMu.Unlock()
	scriptRegistry[name] = fn
}

// ExecScript chama a função registrada em cfg.Function; aceita tanto "nome"
// quanto a forma declarativa "nome($1, $2)".
func ExecScript(cfg ToolConfig, args ...string) (string, error) {
	fnName := strings.TrimSpace(strings.SplitN(cfg.Function, "(", 2)[0])

	scriptsMu.RLock()
	fn, ok := scriptRegistry[fnName]
	scriptsMu.RUnlock()
	if !ok {
		return "", fmt.Errorf("script function %q is not registered", fnName)
	}
	return fn(args...)
}

type scriptTool struct {
	cfg ToolConfig
}

func (t *scriptTool) Name() string        { return t.cfg.Name }
func (t *scriptTool) Description() string { return t.cfg.Description }

func (t *scriptTool) Call(_ context.Context, input string) (string, error) {
	return ExecScript(t.cfg, strings.Fields(input)...)
}

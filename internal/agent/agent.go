package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/RafaelZelak/agentchat/internal/openai"
	"github.com/RafaelZelak/agentchat/internal/tools"
)

type LLM interface {
	Complete(ctx context.Context, msgs []openai.Message, onToken func(string)) (string, error)
}

type Memory interface {
	Messages() []openai.Message
	SaveContext(ctx context.Context, input, output string) error
}

// Executor roda o laço ReAct conversacional: o modelo escolhe uma tool ou a
// resposta final, as tools rodam e o resultado volta como nova mensagem.
type Executor struct {
	llm    LLM
	tools  *tools.Registry
	memory Memory
	opts   options
}

func NewExecutor(llm LLM, reg *tools.Registry, mem Memory, opts ...Option) *Executor {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg, _ = tools.NewRegistry()
	}
	return &Executor{llm: llm, tools: reg, memory: mem, opts: o}
}

func (e *Executor) Tools() *tools.Registry {
	return e.tools
}

func (e *Executor) Memory() Memory {
	return e.memory
}

/*
Run:
- Monta o prompt com histórico da memória, tools e formato de resposta.
- Chama o modelo; se vier uma tool, executa e devolve o resultado ao modelo.
- Para na resposta final ou no limite de iterações (early stopping).
- Salva entrada e saída na memória.
*/
func (e *Executor) Run(ctx context.Context, input string, extra ...Handler) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.timeout)
		defer cancel()
	}

	hs := make(handlers, 0, len(e.opts.handlers)+len(extra))
	hs = append(hs, e.opts.handlers...)
	hs = append(hs, extra...)

	out, err := e.run(ctx, input, hs)
	if err != nil {
		hs.chainError(ctx, err)
		return "", err
	}
	if err := e.memory.SaveContext(ctx, input, out); err != nil {
		hs.chainError(ctx, err)
		return "", fmt.Errorf("save memory: %w", err)
	}
	hs.agentFinish(ctx, out)
	return out, nil
}

func (e *Executor) run(ctx context.Context, input string, hs handlers) (string, error) {
	hs.chainStart(ctx, input)

	history := e.memory.Messages()
	userTurn := renderUserTurn(e.tools, input)

	var steps []Step
	for i := 0; i < e.opts.maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		msgs := newBuilder(e.opts.prefix).withHistory(history).withUser(userTurn).withSteps(steps).messages()
		text, err := e.complete(ctx, msgs, hs)
		if err != nil {
			return "", err
		}

		action, err := parseOutput(text)
		if err != nil {
			if !e.opts.handleParsingErrors {
				return "", err
			}
			steps = append(steps, Step{
				Action:      Action{Tool: "_Exception", Input: err.Error(), Log: text},
				Observation: invalidFormatObservation,
			})
			continue
		}
		if action.Finish {
			return action.Input, nil
		}

		hs.agentAction(ctx, action)
		obs := e.callTool(ctx, action)
		hs.toolEnd(ctx, action.Tool, obs)
		steps = append(steps, Step{Action: action, Observation: obs})
	}

	return e.stopped(ctx, history, userTurn, steps, hs)
}

func (e *Executor) stopped(ctx context.Context, history []openai.Message, userTurn string, steps []Step, hs handlers) (string, error) {
	if e.opts.earlyStopping != EarlyStopGenerate {
		return stoppedMessage, nil
	}
	msgs := newBuilder(e.opts.prefix).withHistory(history).withUser(userTurn).withSteps(steps).
		messages(openai.Message{Role: openai.RoleUser, Content: finalAnswerRequest})
	text, err := e.complete(ctx, msgs, hs)
	if err != nil {
		return "", err
	}
	if action, err := parseOutput(text); err == nil && action.Finish {
		return action.Input, nil
	}
	return strings.TrimSpace(text), nil
}

func (e *Executor) complete(ctx context.Context, msgs []openai.Message, hs handlers) (string, error) {
	hs.llmStart(ctx, msgs)
	var onToken func(string)
	if hs.streaming() {
		onToken = func(tok string) { hs.llmToken(ctx, tok) }
	}
	text, err := e.llm.Complete(ctx, msgs, onToken)
	if err != nil {
		return "", err
	}
	hs.llmEnd(ctx, text)
	return text, nil
}

// callTool sempre devolve uma observação; erros viram texto para o modelo
func (e *Executor) callTool(ctx context.Context, a Action) string {
	names := e.tools.Names()
	name, ok := matchTool(a.Tool, names)
	if !ok {
		return fmt.Sprintf("%s is not a valid tool, try one of [%s].", a.Tool, strings.Join(names, ", "))
	}
	t, err := e.tools.Get(name)
	if err != nil {
		return "Error: " + err.Error()
	}
	out, err := t.Call(ctx, a.Input)
	if err != nil {
		return fmt.Sprintf("Error running tool %s: %v", name, err)
	}
	return out
}

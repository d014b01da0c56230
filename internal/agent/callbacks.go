package agent

import (
	"context"

	charmlog "github.com/charmbracelet/log"

	"github.com/RafaelZelak/agentchat/internal/logger"
	"github.com/RafaelZelak/agentchat/internal/openai"
)

// Handler recebe os eventos de uma execução do agente
type Handler interface {
	OnChainStart(ctx context.Context, input string)
	OnLLMStart(ctx context.Context, msgs []openai.Message)
	OnLLMNewToken(ctx context.Context, token string)
	OnLLMEnd(ctx context.Context, output string)
	OnAgentAction(ctx context.Context, action Action)
	OnToolEnd(ctx context.Context, tool, output string)
	OnAgentFinish(ctx context.Context, output string)
	OnChainError(ctx context.Context, err error)
}

// TokenStreamer é implementado por handlers que querem os tokens em stream
type TokenStreamer interface {
	StreamTokens() bool
}

// BaseHandler ignora todos os eventos; embuta para implementar só alguns
type BaseHandler struct{}

func (BaseHandler) OnChainStart(context.Context, string)         {}
func (BaseHandler) OnLLMStart(context.Context, []openai.Message) {}
func (BaseHandler) OnLLMNewToken(context.Context, string)        {}
func (BaseHandler) OnLLMEnd(context.Context, string)             {}
func (BaseHandler) OnAgentAction(context.Context, Action)        {}
func (BaseHandler) OnToolEnd(context.Context, string, string)    {}
func (BaseHandler) OnAgentFinish(context.Context, string)        {}
func (BaseHandler) OnChainError(context.Context, error)          {}

type handlers []Handler

func (hs handlers) streaming() bool {
	for _, h := range hs {
		if ts, ok := h.(TokenStreamer); ok && ts.StreamTokens() {
			return true
		}
	}
	return false
}

func (hs handlers) chainStart(ctx context.Context, input string) {
	for _, h := range hs {
		h.OnChainStart(ctx, input)
	}
}

func (hs handlers) llmStart(ctx context.Context, msgs []openai.Message) {
	for _, h := range hs {
		h.OnLLMStart(ctx, msgs)
	}
}

func (hs handlers) llmToken(ctx context.Context, tok string) {
	for _, h := range hs {
		h.OnLLMNewToken(ctx, tok)
	}
}

func (hs handlers) llmEnd(ctx context.Context, out string) {
	for _, h := range hs {
		h.OnLLMEnd(ctx, out)
	}
}

func (hs handlers) agentAction(ctx context.Context, a Action) {
	for _, h := range hs {
		h.OnAgentAction(ctx, a)
	}
}

func (hs handlers) toolEnd(ctx context.Context, tool, out string) {
	for _, h := range hs {
		h.OnToolEnd(ctx, tool, out)
	}
}

func (hs handlers) agentFinish(ctx context.Context, out string) {
	for _, h := range hs {
		h.OnAgentFinish(ctx, out)
	}
}

func (hs handlers) chainError(ctx context.Context, err error) {
	for _, h := range hs {
		h.OnChainError(ctx, err)
	}
}

// LogHandler registra a execução de uma sessão no logger
type LogHandler struct {
	BaseHandler
	log *charmlog.Logger
}

func NewLogHandler(sessionID string) *LogHandler {
	return &LogHandler{log: logger.With("session_id", sessionID)}
}

func (h *LogHandler) OnChainStart(_ context.Context, input string) {
	h.log.Info("agent run started", "input", truncate(input, 200))
}

func (h *LogHandler) OnLLMStart(_ context.Context, msgs []openai.Message) {
	h.log.Debug("llm call", "messages", len(msgs))
}

func (h *LogHandler) OnLLMEnd(_ context.Context, output string) {
	h.log.Debug("llm output", "text", output)
}

func (h *LogHandler) OnAgentAction(_ context.Context, a Action) {
	h.log.Info("tool requested", "tool", a.Tool, "input", a.Input)
}

func (h *LogHandler) OnToolEnd(_ context.Context, tool, output string) {
	h.log.Info("tool finished", "tool", tool, "output", truncate(output, 200))
}

func (h *LogHandler) OnAgentFinish(_ context.Context, output string) {
	h.log.Info("agent run finished", "output", truncate(output, 200))
}

func (h *LogHandler) OnChainError(_ context.Context, err error) {
	h.log.Error("agent run failed", "err", err)
}

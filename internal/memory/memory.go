package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RafaelZelak/agentchat/internal/openai"
)

const (
	DefaultMaxTokenLimit = 2500

	// Key é a variável onde o histórico aparece no prompt do agente
	Key = "chat_history"

	summaryHeader = "\nThe summary as below:\n"
	seedReply     = "I will follow the instructions."
	compactReply  = "OK, I will follow the instructions now."
)

const summaryPrompt = `Progressively summarize the lines of conversation provided, adding onto the previous summary and returning a new summary.

Current summary:
%s

New lines of conversation:
%s

New summary:`

type Completer interface {
	Complete(ctx context.Context, msgs []openai.Message, onToken func(string)) (string, error)
}

type TokenCounter interface {
	CountMessages(msgs []openai.Message) int
}

type Config struct {
	MaxTokenLimit int
}

// SummaryBuffer guarda as mensagens recentes e um resumo das que saíram do
// buffer por excederem o limite de tokens.
type SummaryBuffer struct {
	llm       Completer
	counter   TokenCounter
	maxTokens int

	mu      sync.Mutex
	buffer  []openai.Message
	summary string
}

func New(llm Completer, counter TokenCounter, cfg Config) *SummaryBuffer {
	if cfg.MaxTokenLimit <= 0 {
		cfg.MaxTokenLimit = DefaultMaxTokenLimit
	}
	return &SummaryBuffer{
		llm:       llm,
		counter:   counter,
		maxTokens: cfg.MaxTokenLimit,
	}
}

// Seed grava o prompt de sistema como primeiro turno da conversa
func (m *SummaryBuffer) Seed(ctx context.Context, systemPrompt string) error {
	return m.SaveContext(ctx, systemPrompt, seedReply)
}

func (m *SummaryBuffer) SaveContext(ctx context.Context, input, output string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// em caso de erro o turno não fica no buffer, para não duplicar num retry
	before := append([]openai.Message(nil), m.buffer...)
	m.buffer = append(m.buffer,
		openai.Message{Role: openai.RoleUser, Content: input},
		openai.Message{Role: openai.RoleAssistant, Content: output},
	)
	if err := m.prune(ctx); err != nil {
		m.buffer = before
		return err
	}
	return nil
}

func (m *SummaryBuffer) prune(ctx context.Context) error {
	if m.counter.CountMessages(m.buffer) <= m.maxTokens {
		return nil
	}
	orig := m.buffer
	var pruned []openai.Message
	for len(m.buffer) > 0 && m.counter.CountMessages(m.buffer) > m.maxTokens {
		pruned = append(pruned, m.buffer[0])
		m.buffer = m.buffer[1:]
	}
	summary, err := m.PredictNewSummary(ctx, pruned, m.summary)
	if err != nil {
		m.buffer = orig
		return fmt.Errorf("summarize pruned messages: %w", err)
	}
	m.buffer = append([]openai.Message(nil), m.buffer...)
	m.summary = summary
	return nil
}

// PredictNewSummary estende o resumo existente com as novas mensagens
func (m *SummaryBuffer) PredictNewSummary(ctx context.Context, msgs []openai.Message, existing string) (string, error) {
	prompt := fmt.Sprintf(summaryPrompt, existing, formatLines(msgs))
	out, err := m.llm.Complete(ctx, []openai.Message{{Role: openai.RoleUser, Content: prompt}}, nil)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Messages devolve o resumo (como system) seguido do buffer
func (m *SummaryBuffer) Messages() []openai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]openai.Message, 0, len(m.buffer)+1)
	if m.summary != "" {
		out = append(out, openai.Message{Role: openai.RoleSystem, Content: m.summary})
	}
	return append(out, m.buffer...)
}

func (m *SummaryBuffer) Buffer() []openai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]openai.Message(nil), m.buffer...)
}

func (m *SummaryBuffer) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.summary
}

func (m *SummaryBuffer) BufferTokens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counter.CountMessages(m.buffer)
}

// Compact resume toda a conversa e reinicia o buffer com o prompt de sistema
// mais o resumo como primeiro turno.
func (m *SummaryBuffer) Compact(ctx context.Context, systemPrompt string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary, err := m.PredictNewSummary(ctx, m.buffer, m.summary)
	if err != nil {
		return fmt.Errorf("compact memory: %w", err)
	}
	m.buffer = []openai.Message{
		{Role: openai.RoleUser, Content: systemPrompt + summaryHeader + summary},
		{Role: openai.RoleAssistant, Content: compactReply},
	}
	m.summary = ""
	return m.prune(ctx)
}

func (m *SummaryBuffer) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffer = nil
	m.summary = ""
}

func formatLines(msgs []openai.Message) string {
	var sb strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(rolePrefix(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

func rolePrefix(role string) string {
	switch role {
	case openai.RoleAssistant:
		return "AI"
	case openai.RoleSystem:
		return "System"
	default:
		return "Human"
	}
}

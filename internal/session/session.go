package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"

	"github.com/RafaelZelak/agentchat/internal/agent"
	"github.com/RafaelZelak/agentchat/internal/history"
	"github.com/RafaelZelak/agentchat/internal/logger"
	"github.com/RafaelZelak/agentchat/internal/memory"
	"github.com/RafaelZelak/agentchat/internal/openai"
	"github.com/RafaelZelak/agentchat/internal/tools"
)

const (
	DefaultCacheSize        = 1024
	DefaultCompactThreshold = 2000
	DefaultMaxRetries       = 2
)

var ErrEmptyID = errors.New("session id is required")

type Config struct {
	SystemPrompt     string
	MemoryMaxTokens  int
	CompactThreshold int
	MaxIterations    int
	MaxRetries       int
	RetryBase        time.Duration
	CacheSize        int
}

// Session agrupa memória, histórico persistido e agente de um id
type Session struct {
	ID string

	mu       sync.Mutex
	memory   *memory.SummaryBuffer
	history  history.ChatHistory
	executor *agent.Executor
	log      *charmlog.Logger
}

// Manager mapeia ids de sessão para Sessions criadas sob demanda
type Manager struct {
	cfg     Config
	llm     agent.LLM
	counter memory.TokenCounter
	tools   *tools.Registry
	store   history.Store

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

func NewManager(llm agent.LLM, counter memory.TokenCounter, reg *tools.Registry, store history.Store, cfg Config) (*Manager, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CompactThreshold <= 0 {
		cfg.CompactThreshold = DefaultCompactThreshold
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if reg == nil {
		reg, _ = tools.NewRegistry()
	}

	cache, err := lru.NewWithEvict[string, *Session](cfg.CacheSize, func(id string, _ *Session) {
		logger.Info("session evicted", "session_id", id)
	})
	if err != nil {
		return nil, fmt.Errorf("session cache: %w", err)
	}
	return &Manager{
		cfg:      cfg,
		llm:      llm,
		counter:  counter,
		tools:    reg,
		store:    store,
		sessions: cache,
	}, nil
}

// Open garante que a sessão existe; created indica se foi criada agora
func (m *Manager) Open(ctx context.Context, id string) (created bool, err error) {
	_, created, err = m.session(ctx, id)
	return created, err
}

func (m *Manager) session(ctx context.Context, id string) (*Session, bool, error) {
	if id == "" {
		return nil, false, ErrEmptyID
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions.Get(id); ok {
		return s, false, nil
	}
	s, err := m.newSession(ctx, id)
	if err != nil {
		return nil, false, err
	}
	m.sessions.Add(id, s)
	return s, true, nil
}

func (m *Manager) newSession(ctx context.Context, id string) (*Session, error) {
	mem := memory.New(m.llm, m.counter, memory.Config{MaxTokenLimit: m.cfg.MemoryMaxTokens})
	if m.cfg.SystemPrompt != "" {
		if err := mem.Seed(ctx, m.cfg.SystemPrompt); err != nil {
			return nil, fmt.Errorf("seed memory: %w", err)
		}
	}
	s := &Session{
		ID:      id,
		memory:  mem,
		history: m.store.ForSession(id),
		executor: agent.NewExecutor(m.llm, m.tools, mem,
			agent.WithMaxIterations(m.cfg.MaxIterations),
			agent.WithEarlyStopping(agent.EarlyStopGenerate),
			agent.WithHandleParsingErrors(true),
			agent.WithCallbacks(agent.NewLogHandler(id)),
		),
		log: logger.With("session_id", id),
	}
	s.log.Info("session created", "tools", m.tools.Names())
	return s, nil
}

/*
Ask:
- Cria a sessão se ainda não existe.
- Roda o agente com retry limitado.
- Grava pergunta e resposta no histórico persistido.
- Se o buffer da memória passou do limite, resume e reinicia a memória.
*/
func (m *Manager) Ask(ctx context.Context, id, text string, hs ...agent.Handler) (string, error) {
	s, _, err := m.session(ctx, id)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := m.run(ctx, s, text, hs)
	if err != nil {
		return "", err
	}

	if err := s.history.AddUserMessage(ctx, text); err != nil {
		s.log.Warn("history write failed", "err", err)
	} else if err := s.history.AddAIMessage(ctx, reply); err != nil {
		s.log.Warn("history write failed", "err", err)
	}

	n := s.memory.BufferTokens()
	s.log.Debug("memory buffer", "messages", len(s.memory.Buffer()), "tokens", n)
	if n > m.cfg.CompactThreshold {
		if err := s.memory.Compact(ctx, m.cfg.SystemPrompt); err != nil {
			s.log.Warn("memory compaction failed", "err", err)
		} else {
			s.log.Info("memory compacted", "tokens_before", n, "tokens_after", s.memory.BufferTokens())
		}
	}
	return reply, nil
}

func (m *Manager) run(ctx context.Context, s *Session, text string, hs []agent.Handler) (string, error) {
	backoff := retry.WithMaxRetries(uint64(m.cfg.MaxRetries), retry.NewExponential(m.cfg.RetryBase))

	var (
		reply   string
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		out, err := s.executor.Run(ctx, text, hs...)
		if err == nil {
			reply = out
			return nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		// o cliente do modelo já aplicou seu próprio retry
		if errors.Is(err, openai.ErrCompletion) {
			s.log.Warn("agent run failed", "attempt", attempt, "err", err)
			return err
		}
		s.log.Warn("agent run failed", "attempt", attempt, "err", err)
		return retry.RetryableError(err)
	})
	if err != nil {
		return "", fmt.Errorf("agent run: %w", err)
	}
	return reply, nil
}

func (m *Manager) History(ctx context.Context, id string) ([]history.Message, error) {
	if id == "" {
		return nil, ErrEmptyID
	}
	return m.store.ForSession(id).Messages(ctx)
}

func (m *Manager) ToolInfos() []tools.Info {
	return m.tools.Infos()
}

func (m *Manager) ToolNames() []string {
	return m.tools.Names()
}

func (m *Manager) Len() int {
	return m.sessions.Len()
}

// Memory expõe a memória de uma sessão já aberta
func (m *Manager) Memory(id string) (*memory.SummaryBuffer, bool) {
	s, ok := m.sessions.Peek(id)
	if !ok {
		return nil, false
	}
	return s.memory, true
}

// Close descarta as sessões e fecha histórico e tools
func (m *Manager) Close() error {
	m.sessions.Purge()
	return errors.Join(m.store.Close(), m.tools.Close())
}

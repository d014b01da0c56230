package agentchat

import (
	"context"
	"fmt"

	"github.com/RafaelZelak/agentchat/internal/history"
	"github.com/RafaelZelak/agentchat/internal/logger"
	"github.com/RafaelZelak/agentchat/internal/openai"
	"github.com/RafaelZelak/agentchat/internal/server"
	"github.com/RafaelZelak/agentchat/internal/session"
	"github.com/RafaelZelak/agentchat/internal/tokens"
	"github.com/RafaelZelak/agentchat/internal/tools"
)

type Agent struct {
	cfg      *Config
	sessions *session.Manager
}

// NewAgent inicializa tools, histórico, cliente do modelo e o roteador de sessões
func NewAgent(ctx context.Context, cfg *Config) (*Agent, error) {
	reg, err := tools.Load(cfg.ToolsPath)
	if err != nil {
		return nil, fmt.Errorf("load tools: %w", err)
	}
	logger.Info("tools loaded", "tools", reg.Names())

	cli, err := openai.NewClient(openai.Config{
		APIType:    cfg.APIType,
		BaseURL:    cfg.APIBase,
		APIKey:     cfg.APIKey,
		APIVersion: cfg.APIVersion,
		Model:      cfg.Deployment,
	})
	if err != nil {
		return nil, err
	}

	counter, err := tokens.NewCounter(cfg.Deployment)
	if err != nil {
		return nil, err
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mgr, err := session.NewManager(cli, counter, reg, store, session.Config{
		SystemPrompt:     cfg.SystemPrompt,
		MemoryMaxTokens:  cfg.MemoryMaxTokens,
		CompactThreshold: cfg.CompactTokens,
		MaxIterations:    cfg.MaxIterations,
		MaxRetries:       cfg.MaxRetries,
		CacheSize:        cfg.SessionCacheSize,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Agent{cfg: cfg, sessions: mgr}, nil
}

func openHistory(ctx context.Context, cfg *Config) (history.Store, error) {
	dsn := cfg.PostgresDSN()
	if dsn == "" {
		logger.Warn("POSTGRES_HOST not set, chat history kept in memory")
		return history.NewMemoryStore(), nil
	}
	store, err := history.OpenPostgres(ctx, history.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("open chat history: %w", err)
	}
	return store, nil
}

// Run envia uma mensagem para a sessão, criando-a se necessário
func (a *Agent) Run(ctx context.Context, sessionID, userMessage string) (string, error) {
	return a.sessions.Ask(ctx, sessionID, userMessage)
}

// Serve expõe o agente via HTTP/WebSocket até o contexto ser cancelado
func (a *Agent) Serve(ctx context.Context, addr string) error {
	cfg := server.DefaultConfig()
	cfg.Addr = a.cfg.ListenAddr
	if addr != "" {
		cfg.Addr = addr
	}
	return server.New(a.sessions, cfg).Run(ctx)
}

func (a *Agent) Close() error {
	return a.sessions.Close()
}

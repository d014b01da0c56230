package agentchat

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/RafaelZelak/agentchat/internal/openai"
)

var ErrMissingConfig = errors.New("missing configuration")

type PostgresConfig struct {
	User     string
	Password string
	Host     string
	Port     string
	DB       string
	SSLMode  string
}

type Config struct {
	APIType      string
	APIBase      string
	APIKey       string
	APIVersion   string
	Deployment   string
	SystemPrompt string

	Postgres  PostgresConfig
	ToolsPath string

	MemoryMaxTokens  int
	CompactTokens    int
	MaxIterations    int
	MaxRetries       int
	SessionCacheSize int
	ListenAddr       string
}

// NewConfigFromEnv carrega o .env (se existir) e monta a Config a partir das
// variáveis de ambiente. Variáveis já definidas no ambiente têm prioridade.
func NewConfigFromEnv(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		APIType:      envStr("OPENAI_API_TYPE", openai.APITypeAzure),
		APIBase:      os.Getenv("OPENAI_API_BASE"),
		APIKey:       os.Getenv("OPENAI_API_KEY"),
		APIVersion:   envStr("OPENAI_API_VERSION", openai.DefaultAPIVersion),
		Deployment:   os.Getenv("CHAT_DEPLOYMENT_NAME"),
		SystemPrompt: os.Getenv("CHAT_SYSTEM_PROMPT"),
		Postgres: PostgresConfig{
			User:     os.Getenv("POSTGRES_USER"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Host:     os.Getenv("POSTGRES_HOST"),
			Port:     envStr("POSTGRES_PORT", "5432"),
			DB:       envStr("POSTGRES_DB", "chat_history"),
			SSLMode:  envStr("POSTGRES_SSLMODE", "disable"),
		},
		ToolsPath:        envStr("TOOLS_PATH", "tools.yml"),
		MemoryMaxTokens:  envInt("MEMORY_MAX_TOKENS", 2500),
		CompactTokens:    envInt("MEMORY_COMPACT_TOKENS", 2000),
		MaxIterations:    envInt("AGENT_MAX_ITERATIONS", 10),
		MaxRetries:       envIntZero("AGENT_MAX_RETRIES", 2),
		SessionCacheSize: envInt("SESSION_CACHE_SIZE", 1024),
		ListenAddr:       envStr("LISTEN_ADDR", ":8000"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingConfig)
	}
	if c.Deployment == "" {
		return fmt.Errorf("%w: CHAT_DEPLOYMENT_NAME", ErrMissingConfig)
	}
	if c.APIType == openai.APITypeAzure && c.APIBase == "" {
		return fmt.Errorf("%w: OPENAI_API_BASE", ErrMissingConfig)
	}
	return nil
}

// PostgresDSN devolve "" quando não há host configurado (histórico em memória)
func (c *Config) PostgresDSN() string {
	p := c.Postgres
	if p.Host == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(p.User, p.Password),
		Host:   net.JoinHostPort(p.Host, p.Port),
		Path:   "/" + p.DB,
	}
	if p.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {p.SSLMode}}.Encode()
	}
	return u.String()
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

// envIntZero aceita 0 como valor válido
func envIntZero(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

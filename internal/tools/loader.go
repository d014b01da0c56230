package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	TypePostgres = "postgres"
	TypeScript   = "script"
)

type ToolConfig struct {
	Name          string `yaml:"name"`
	Description   string `yaml:"description"`
	Type          string `yaml:"type"`
	Conn          string `yaml:"conn,omitempty"`
	QueryTemplate string `yaml:"query_template,omitempty"`

	// Para scripts registrados via sdk.RegisterScript
	Function string `yaml:"function,omitempty"`
}

type Config struct {
	Tools []ToolConfig `yaml:"tools"`
}

// LoadConfig lê o arquivo YAML e substitui conexões do tipo ENV:MY_ENV_KEY pelo valor da env var
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	for i := range cfg.Tools {
		if strings.HasPrefix(cfg.Tools[i].Conn, "ENV:") {
			envKey := strings.TrimPrefix(cfg.Tools[i].Conn, "ENV:")
			cfg.Tools[i].Conn = os.Getenv(envKey)
		}
	}
	return cfg, nil
}

// Load monta o Registry a partir do arquivo. Arquivo ausente significa
// nenhuma tool habilitada.
func Load(path string) (*Registry, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry()
	}
	if err != nil {
		return nil, err
	}
	return Build(cfg)
}

func Build(cfg Config) (*Registry, error) {
	ts := make([]Tool, 0, len(cfg.Tools))
	for _, tc := range cfg.Tools {
		switch tc.Type {
		case TypePostgres:
			if tc.Conn == "" || tc.QueryTemplate == "" {
				return nil, fmt.Errorf("tool %s: conn and query_template are required", tc.Name)
			}
			ts = append(ts, newPostgresTool(tc))
		case TypeScript:
			if tc.Function == "" {
				return nil, fmt.Errorf("tool %s: function is required", tc.Name)
			}
			ts = append(ts, &scriptTool{cfg: tc})
		default:
			return nil, fmt.Errorf("tool %s: unsupported type %q", tc.Name, tc.Type)
		}
	}
	return NewRegistry(ts...)
}

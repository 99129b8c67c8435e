package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Providers   map[string]ProviderConfig `json:"providers"`
	Search      SearchConfig              `json:"search"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type SearchConfig struct {
	LinkupAPIKey         string `json:"linkup_api_key"`
	LinkupBaseURL        string `json:"linkup_base_url"`
	GoogleAPIKey         string `json:"google_api_key"`
	GoogleSearchEngineID string `json:"google_search_engine_id"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	Provider          string `json:"provider"`
	Model             string `json:"model"`
	FileBaseDir       string `json:"file_base_dir"`
	UploadTTL         int    `json:"upload_ttl_minutes"`
	UploadCleanEvery  int    `json:"upload_clean_interval_minutes"`
	MinWorkers        int    `json:"min_workers"`
	MaxWorkers        int    `json:"max_workers"`
	QueueSize         int    `json:"queue_size"`
	WorkerIdleTimeout int    `json:"worker_idle_timeout_minutes"`
	ReportCacheTTL    int    `json:"report_cache_ttl_minutes"`
}

// Environment fallbacks for credentials, checked when the config file
// leaves the corresponding key empty.
var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"gemini": "GEMINI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
}

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.applyEnv()

	if cfg.BasicConfig.Provider == "" {
		cfg.BasicConfig.Provider = "gemini"
	}
	if _, ok := cfg.Providers[cfg.BasicConfig.Provider]; !ok {
		return nil, fmt.Errorf("provider %s not configured", cfg.BasicConfig.Provider)
	}

	// sqlite paths are resolved relative to the config file
	for name, db := range cfg.Databases {
		if (name == "sqlite" || name == "sqlite3") && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
			db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
			cfg.Databases[name] = db
		}
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	for name, prov := range c.Providers {
		if prov.APIKey != "" {
			continue
		}
		if env, ok := providerKeyEnv[name]; ok {
			if v := os.Getenv(env); v != "" {
				prov.APIKey = v
				c.Providers[name] = prov
			}
		}
	}
	if c.Search.LinkupAPIKey == "" {
		c.Search.LinkupAPIKey = os.Getenv("LINKUP_API_KEY")
	}
	if c.Search.GoogleAPIKey == "" {
		c.Search.GoogleAPIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.Search.GoogleSearchEngineID == "" {
		c.Search.GoogleSearchEngineID = os.Getenv("GOOGLE_SEARCH_ENGINE_ID")
	}
}

// ProviderKey returns the API key for the named provider, or an error
// suitable for surfacing to the operator when the credential is missing.
func (c *Config) ProviderKey(provider string) (string, error) {
	prov, ok := c.Providers[provider]
	if !ok {
		return "", fmt.Errorf("provider %s not configured", provider)
	}
	if prov.APIKey == "" {
		return "", fmt.Errorf("api key for provider %s missing (set %s or providers.%s.api_key)", provider, providerKeyEnv[provider], provider)
	}
	return prov.APIKey, nil
}

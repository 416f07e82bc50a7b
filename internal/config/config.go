// Package config loads the orchestrator's settings from a YAML file,
// applies environment variable overrides, and exposes a process-wide
// singleton.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Redis        RedisConfig        `yaml:"redis"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Hub          HubConfig          `yaml:"hub"`
	Workflow     WorkflowConfig     `yaml:"workflow"`
	Integrations IntegrationsConfig `yaml:"integrations"`
}

type ServerConfig struct {
	Port            string `yaml:"port"`
	Env             string `yaml:"env"`
	ReadTimeoutSec  int    `yaml:"read_timeout_sec"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec"`
	IdleTimeoutSec  int    `yaml:"idle_timeout_sec"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// HubConfig governs the Context Store namespace, registry client, cache
// refresh interval, event bus topic suffixes, and replay stream.
type HubConfig struct {
	Namespace          string `yaml:"namespace"`
	RegistryURL        string `yaml:"registry_url"`
	RegistryAPIKey     string `yaml:"registry_api_key"`
	RegistryCacheTTL   int    `yaml:"registry_cache_ttl_sec"`
	CacheRefreshSec    int    `yaml:"cache_refresh_sec"`
	KafkaAgentTopic    string `yaml:"kafka_agent_topic"`
	KafkaHubSuffix     string `yaml:"kafka_hub_suffix"`
	ReplayStream       string `yaml:"replay_stream"`
	DefaultContextTTL  int    `yaml:"default_context_ttl_sec"`
	DefaultSessionTTL  int    `yaml:"default_session_ttl_sec"`
	AgentDispatchSec   int    `yaml:"agent_dispatch_timeout_sec"`
}

type WorkflowConfig struct {
	Namespace              string `yaml:"namespace"`
	NonDiagnosticDisclaimer string `yaml:"non_diagnostic_disclaimer"`
}

type IntegrationsConfig struct {
	BackendBaseURL string `yaml:"backend_base_url"`
	AmadeusBaseURL string `yaml:"amadeus_base_url"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3Bucket       string `yaml:"s3_bucket"`
	ToolTimeoutSec int    `yaml:"tool_timeout_sec"`
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the process-wide singleton, loading it on first use.
func Get() *Config {
	once.Do(func() {
		_ = godotenv.Load(".env.local", ".env")
		cfg, err := LoadConfig(getEnv("CONFIG_PATH", "config.yaml"))
		if err != nil {
			slog.Warn("config: failed to load config file, using defaults", "error", err)
		}
		if cfg == nil {
			cfg = &Config{}
		}
		cfg.applyEnvOverrides()
		cfg.applyDefaults()
		instance = cfg
	})
	return instance
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.Env = getEnv("AIHUB_ENV", c.Server.Env)
	if v := getEnvInt("SERVER_READ_TIMEOUT_SEC", 0); v > 0 {
		c.Server.ReadTimeoutSec = v
	}
	if v := getEnvInt("SERVER_WRITE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.WriteTimeoutSec = v
	}
	if v := getEnvInt("SERVER_IDLE_TIMEOUT_SEC", 0); v > 0 {
		c.Server.IdleTimeoutSec = v
	}

	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if v := getEnvInt("REDIS_DB", -1); v >= 0 {
		c.Redis.DB = v
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = splitCSV(brokers)
	}

	c.Hub.Namespace = getEnv("HUB_NAMESPACE", c.Hub.Namespace)
	c.Hub.RegistryURL = getEnv("HUB_REGISTRY_URL", c.Hub.RegistryURL)
	c.Hub.RegistryAPIKey = getEnv("HUB_REGISTRY_API_KEY", c.Hub.RegistryAPIKey)
	if v := getEnvInt("HUB_REGISTRY_CACHE_TTL_SEC", 0); v > 0 {
		c.Hub.RegistryCacheTTL = v
	}
	if v := getEnvInt("HUB_CACHE_REFRESH_SEC", 0); v > 0 {
		c.Hub.CacheRefreshSec = v
	}
	c.Hub.KafkaAgentTopic = getEnv("HUB_KAFKA_AGENT_TOPIC", c.Hub.KafkaAgentTopic)
	c.Hub.KafkaHubSuffix = getEnv("HUB_KAFKA_SUFFIX", c.Hub.KafkaHubSuffix)
	c.Hub.ReplayStream = getEnv("HUB_REPLAY_STREAM", c.Hub.ReplayStream)
	if v := getEnvInt("HUB_DEFAULT_CONTEXT_TTL_SEC", 0); v > 0 {
		c.Hub.DefaultContextTTL = v
	}
	if v := getEnvInt("HUB_DEFAULT_SESSION_TTL_SEC", 0); v > 0 {
		c.Hub.DefaultSessionTTL = v
	}
	if v := getEnvInt("HUB_AGENT_DISPATCH_TIMEOUT_SEC", 0); v > 0 {
		c.Hub.AgentDispatchSec = v
	}

	c.Workflow.Namespace = getEnv("WORKFLOW_NAMESPACE", c.Workflow.Namespace)
	c.Workflow.NonDiagnosticDisclaimer = getEnv("NON_DIAGNOSTIC_DISCLAIMER", c.Workflow.NonDiagnosticDisclaimer)

	c.Integrations.BackendBaseURL = getEnv("BACKEND_BASE_URL", c.Integrations.BackendBaseURL)
	c.Integrations.AmadeusBaseURL = getEnv("AMADEUS_BASE_URL", c.Integrations.AmadeusBaseURL)
	c.Integrations.S3Endpoint = getEnv("S3_ENDPOINT", c.Integrations.S3Endpoint)
	c.Integrations.S3Bucket = getEnv("S3_BUCKET", c.Integrations.S3Bucket)
	if v := getEnvInt("TOOL_TIMEOUT_SEC", 0); v > 0 {
		c.Integrations.ToolTimeoutSec = v
	}
}

// applyDefaults fills in zero-value fields left unset by file and env.
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Server.ReadTimeoutSec == 0 {
		c.Server.ReadTimeoutSec = 15
	}
	if c.Server.WriteTimeoutSec == 0 {
		c.Server.WriteTimeoutSec = 15
	}
	if c.Server.IdleTimeoutSec == 0 {
		c.Server.IdleTimeoutSec = 60
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{"localhost:9092"}
	}
	if c.Hub.Namespace == "" {
		c.Hub.Namespace = "hub"
	}
	if c.Hub.RegistryURL == "" {
		c.Hub.RegistryURL = "http://localhost:8200"
	}
	if c.Hub.RegistryCacheTTL == 0 {
		c.Hub.RegistryCacheTTL = 600
	}
	if c.Hub.CacheRefreshSec == 0 {
		c.Hub.CacheRefreshSec = 60
	}
	if c.Hub.KafkaAgentTopic == "" {
		c.Hub.KafkaAgentTopic = "ai.agent.events"
	}
	if c.Hub.KafkaHubSuffix == "" {
		c.Hub.KafkaHubSuffix = "hub.events"
	}
	if c.Hub.ReplayStream == "" {
		c.Hub.ReplayStream = "hub:events"
	}
	if c.Hub.DefaultContextTTL == 0 {
		c.Hub.DefaultContextTTL = 86400
	}
	if c.Hub.DefaultSessionTTL == 0 {
		c.Hub.DefaultSessionTTL = 3600
	}
	if c.Hub.AgentDispatchSec == 0 {
		c.Hub.AgentDispatchSec = 60
	}
	if c.Workflow.Namespace == "" {
		c.Workflow.Namespace = "orchestrator"
	}
	if c.Workflow.NonDiagnosticDisclaimer == "" {
		c.Workflow.NonDiagnosticDisclaimer = "This platform provides educational, non-diagnostic support only. All medical decisions must be validated by licensed clinicians."
	}
	if c.Integrations.BackendBaseURL == "" {
		c.Integrations.BackendBaseURL = "http://localhost:4000/api"
	}
	if c.Integrations.AmadeusBaseURL == "" {
		c.Integrations.AmadeusBaseURL = "https://api.test.amadeus.com"
	}
	if c.Integrations.S3Endpoint == "" {
		c.Integrations.S3Endpoint = "http://localhost:9000"
	}
	if c.Integrations.S3Bucket == "" {
		c.Integrations.S3Bucket = "health-tourism-docs-local"
	}
	if c.Integrations.ToolTimeoutSec == 0 {
		c.Integrations.ToolTimeoutSec = 8
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" validate:"min=0"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" validate:"min=0"`
	ShutdownSecs     int      `yaml:"shutdown_secs" validate:"min=0"`
	CORSOrigins      []string `yaml:"cors_origins,omitempty"`
}

// ArtifactsConfig points at the precomputed metadata and embedding files.
type ArtifactsConfig struct {
	MetaPath       string `yaml:"meta_path" validate:"required"`
	EmbeddingsPath string `yaml:"embeddings_path" validate:"required"`
}

// IndexConfig selects and configures the similarity index implementation.
type IndexConfig struct {
	Type        string `yaml:"type" validate:"oneof=flat balltree"`
	ExcludeSelf bool   `yaml:"exclude_self"`
	Workers     int    `yaml:"workers" validate:"min=0"`
	LeafSize    int    `yaml:"leaf_size" validate:"min=0"`
}

// RecommendConfig configures the recommendation service.
type RecommendConfig struct {
	TopK int `yaml:"top_k" validate:"min=1,max=1000"`
}

// MongoConfig contains connection details for the MongoDB feedback store.
type MongoConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// RedisConfig contains connection details for the Redis feedback store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// BadgerConfig configures the embedded BadgerDB feedback store.
type BadgerConfig struct {
	Path string `yaml:"path"`
}

// FeedbackConfig selects and configures the feedback store.
type FeedbackConfig struct {
	Backend            string        `yaml:"backend" validate:"oneof=auto mongo redis badger none"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute" validate:"min=0"`
	Mongo              *MongoConfig  `yaml:"mongo,omitempty"`
	Redis              *RedisConfig  `yaml:"redis,omitempty"`
	Badger             *BadgerConfig `yaml:"badger,omitempty"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json console"`
}

// ClientConfig configures the terminal client.
type ClientConfig struct {
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	User        string `yaml:"user"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"min=0"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Index     IndexConfig     `yaml:"index"`
	Recommend RecommendConfig `yaml:"recommend"`
	Feedback  FeedbackConfig  `yaml:"feedback"`
	Logging   LoggingConfig   `yaml:"logging"`
	Client    ClientConfig    `yaml:"client"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/newsrec/config.yaml.
// If neither exists, it writes defaults to ~/.config/newsrec/config.yaml and returns
// them with environment overrides applied. A home directory that cannot be written
// is not an error; the returned path is then empty.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	savedPath := userPath
	if err := Save(userPath, cfg); err != nil {
		savedPath = ""
	}
	applyEnvOverrides(cfg)
	return cfg, savedPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *AppConfig) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "newsrec", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             5000,
			ReadTimeoutSecs:  15,
			WriteTimeoutSecs: 30,
			ShutdownSecs:     10,
		},
		Artifacts: ArtifactsConfig{
			MetaPath:       filepath.Join("artifacts", "articles_meta.jsonl"),
			EmbeddingsPath: filepath.Join("artifacts", "article_embeddings.npy"),
		},
		Index:     IndexConfig{Type: "flat"},
		Recommend: RecommendConfig{TopK: 10},
		Feedback:  FeedbackConfig{Backend: "auto"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Client:    ClientConfig{BaseURL: "http://localhost:5000", User: "demo_user", TimeoutSecs: 10},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "flat"
	}
	if cfg.Recommend.TopK == 0 {
		cfg.Recommend.TopK = 10
	}
	if cfg.Feedback.Backend == "" {
		cfg.Feedback.Backend = "auto"
	}
	if cfg.Feedback.Mongo != nil {
		if cfg.Feedback.Mongo.Collection == "" {
			cfg.Feedback.Mongo.Collection = "feedback"
		}
		if cfg.Feedback.Mongo.TimeoutSecs == 0 {
			cfg.Feedback.Mongo.TimeoutSecs = 5
		}
	}
	if cfg.Feedback.Redis != nil && cfg.Feedback.Redis.Key == "" {
		cfg.Feedback.Redis.Key = "feedback"
	}
	if cfg.Client.TimeoutSecs == 0 {
		cfg.Client.TimeoutSecs = 10
	}
}

// applyEnvOverrides maps the environment variables the service has always honored
// (PORT, MONGO_URI) plus a few newer ones onto the config.
func applyEnvOverrides(cfg *AppConfig) {
	if v, ok := os.LookupEnv("PORT"); ok {
		if port, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		cfg.Artifacts.MetaPath = filepath.Join(v, filepath.Base(cfg.Artifacts.MetaPath))
		cfg.Artifacts.EmbeddingsPath = filepath.Join(v, filepath.Base(cfg.Artifacts.EmbeddingsPath))
	}
	if v := os.Getenv("MONGO_URI"); v != "" {
		if cfg.Feedback.Mongo == nil {
			cfg.Feedback.Mongo = &MongoConfig{}
		}
		cfg.Feedback.Mongo.URI = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		if cfg.Feedback.Redis == nil {
			cfg.Feedback.Redis = &RedisConfig{}
		}
		cfg.Feedback.Redis.Addr = v
	}
	if v := os.Getenv("FEEDBACK_BACKEND"); v != "" {
		cfg.Feedback.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("NEWSREC_API_URL"); v != "" {
		cfg.Client.BaseURL = v
	}
	// sub-configs created by env vars still need their defaults
	applyConfigDefaults(cfg)
}

// FeedbackBackend resolves "auto" to a concrete backend: mongo when a URI is set,
// then redis, then badger, otherwise none.
func (c *AppConfig) FeedbackBackend() string {
	if c.Feedback.Backend != "auto" {
		return c.Feedback.Backend
	}
	switch {
	case c.Feedback.Mongo != nil && c.Feedback.Mongo.URI != "":
		return "mongo"
	case c.Feedback.Redis != nil && c.Feedback.Redis.Addr != "":
		return "redis"
	case c.Feedback.Badger != nil && c.Feedback.Badger.Path != "":
		return "badger"
	default:
		return "none"
	}
}

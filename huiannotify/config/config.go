// --- File: huiannotify/config/config.go ---
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

const (
	DefaultHuianBaseURL = "https://api.jpush.cn"
	DefaultHuianTimeout = 10 * time.Second
	DefaultSqlitePath   = "huian_notify.db"
	DefaultCollection   = "huian_devices"
)

// Store backends.
const (
	StoreFirestore = "firestore"
	StoreSqlite    = "sqlite"
	StoreMemory    = "memory"
)

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

// HuianConfig holds the push gateway credentials. The app key and master
// secret are issued per application by the gateway.
type HuianConfig struct {
	AppKey       string
	MasterSecret string
	BaseURL      string
	Timeout      time.Duration
}

type StoreConfig struct {
	Backend    string
	Collection string
	SqlitePath string
}

type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Config defines the *single*, authoritative configuration.
type Config struct {
	ProjectID              string
	ListenAddr             string
	SubscriptionID         string
	SubscriptionDLQTopicID string
	NumPipelineWorkers     int

	CorsConfig middleware.CorsConfig
	Redis      RedisConfig
	Huian      HuianConfig
	Store      StoreConfig
	Metrics    MetricsConfig

	TopicID              string
	PubsubConsumerConfig *messagepipeline.GooglePubsubConsumerConfig
}

// IngestionEnabled reports whether send requests are also consumed from
// Pub/Sub.
func (c *Config) IngestionEnabled() bool {
	return c.SubscriptionID != ""
}

// UpdateConfigWithEnvOverrides applies environment variables and final validation.
func UpdateConfigWithEnvOverrides(cfg *Config, logger *slog.Logger) (*Config, error) {
	logger.Debug("Applying environment variable overrides...")

	// 1. Apply Environment Overrides
	if val := os.Getenv("PROJECT_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "PROJECT_ID", "source", "env")
		cfg.ProjectID = val
	}
	if val := os.Getenv("PORT"); val != "" {
		logger.Debug("Overriding config value", "key", "PORT", "source", "env")
		cfg.ListenAddr = ":" + val
	}
	if val := os.Getenv("SUBSCRIPTION_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_ID", "source", "env")
		cfg.SubscriptionID = val
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(val)
	}
	if val := os.Getenv("SUBSCRIPTION_DLQ_TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "SUBSCRIPTION_DLQ_TOPIC_ID", "source", "env")
		cfg.SubscriptionDLQTopicID = val
	}
	if val := os.Getenv("TOPIC_ID"); val != "" {
		logger.Debug("Overriding config value", "key", "TOPIC_ID", "source", "env")
		cfg.TopicID = val
	}
	if val := os.Getenv("NUM_PIPELINE_WORKERS"); val != "" {
		if workers, err := strconv.Atoi(val); err == nil && workers > 0 {
			logger.Debug("Overriding config value", "key", "NUM_PIPELINE_WORKERS", "source", "env")
			cfg.NumPipelineWorkers = workers
		}
	}

	// Gateway Overrides
	if val := os.Getenv("HUIAN_APP_KEY"); val != "" {
		logger.Debug("Overriding config value", "key", "HUIAN_APP_KEY", "source", "env")
		cfg.Huian.AppKey = val
	}
	if val := os.Getenv("HUIAN_MASTER_SECRET"); val != "" {
		logger.Debug("Overriding config value", "key", "HUIAN_MASTER_SECRET", "source", "env")
		cfg.Huian.MasterSecret = val
	}
	if val := os.Getenv("HUIAN_BASE_URL"); val != "" {
		logger.Debug("Overriding config value", "key", "HUIAN_BASE_URL", "source", "env")
		cfg.Huian.BaseURL = val
	}
	if val := os.Getenv("HUIAN_TIMEOUT_SECONDS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil && secs > 0 {
			logger.Debug("Overriding config value", "key", "HUIAN_TIMEOUT_SECONDS", "source", "env")
			cfg.Huian.Timeout = time.Duration(secs) * time.Second
		}
	}

	// Store Overrides
	if val := os.Getenv("STORE_BACKEND"); val != "" {
		logger.Debug("Overriding config value", "key", "STORE_BACKEND", "source", "env")
		cfg.Store.Backend = strings.ToLower(val)
	}
	if val := os.Getenv("SQLITE_PATH"); val != "" {
		logger.Debug("Overriding config value", "key", "SQLITE_PATH", "source", "env")
		cfg.Store.SqlitePath = val
	}

	// Redis Overrides
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.Redis.Addr = val
		cfg.Redis.Enabled = true
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if db, err := strconv.Atoi(val); err == nil {
			cfg.Redis.DB = db
		}
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Redis.Enabled = enabled
	}

	if val := os.Getenv("METRICS_ENABLED"); val != "" {
		enabled, _ := strconv.ParseBool(val)
		cfg.Metrics.Enabled = enabled
	}

	// CORS Overrides
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		logger.Debug("Overriding config value", "key", "CORS_ALLOWED_ORIGINS", "source", "env")
		rawOrigins := strings.Split(corsOrigins, ",")
		var cleanOrigins []string
		for _, o := range rawOrigins {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				cleanOrigins = append(cleanOrigins, trimmed)
			}
		}
		cfg.CorsConfig.AllowedOrigins = cleanOrigins
	}

	// 2. Defaults
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.NumPipelineWorkers <= 0 {
		cfg.NumPipelineWorkers = 1
	}
	if cfg.Huian.BaseURL == "" {
		cfg.Huian.BaseURL = DefaultHuianBaseURL
	}
	if cfg.Huian.Timeout <= 0 {
		cfg.Huian.Timeout = DefaultHuianTimeout
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = StoreFirestore
	}
	if cfg.Store.Collection == "" {
		cfg.Store.Collection = DefaultCollection
	}
	if cfg.Store.SqlitePath == "" {
		cfg.Store.SqlitePath = DefaultSqlitePath
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	// 3. Final Validation
	if cfg.Huian.AppKey == "" || cfg.Huian.MasterSecret == "" {
		return nil, fmt.Errorf("huian app_key and master_secret are required (set via YAML or HUIAN_APP_KEY / HUIAN_MASTER_SECRET env vars)")
	}
	switch cfg.Store.Backend {
	case StoreFirestore, StoreSqlite, StoreMemory:
	default:
		return nil, fmt.Errorf("unknown store backend %q (want firestore, sqlite or memory)", cfg.Store.Backend)
	}
	if cfg.ProjectID == "" && (cfg.Store.Backend == StoreFirestore || cfg.IngestionEnabled()) {
		return nil, fmt.Errorf("project_id is required (set via YAML or PROJECT_ID env var)")
	}

	if cfg.PubsubConsumerConfig == nil && cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("Configuration finalized and validated successfully")
	return cfg, nil
}

// --- File: huiannotify/config/yaml_config.go ---
package config

import (
	"log/slog"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
)

type YamlCorsConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	Role           string   `yaml:"role"`
}

type YamlRedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

type YamlHuianConfig struct {
	AppKey         string `yaml:"app_key"`
	MasterSecret   string `yaml:"master_secret"`
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type YamlStoreConfig struct {
	Backend    string `yaml:"backend"`
	Collection string `yaml:"collection"`
	SqlitePath string `yaml:"sqlite_path"`
}

type YamlMetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// YamlConfig is the structure that mirrors the raw config.yaml file.
type YamlConfig struct {
	ProjectID              string            `yaml:"project_id"`
	ListenAddr             string            `yaml:"listen_addr"`
	TopicID                string            `yaml:"topic_id"`
	SubscriptionID         string            `yaml:"subscription_id"`
	SubscriptionDLQTopicID string            `yaml:"subscription_dlq_topic_id"`
	CorsConfig             YamlCorsConfig    `yaml:"cors"`
	RedisConfig            YamlRedisConfig   `yaml:"redis"`
	HuianConfig            YamlHuianConfig   `yaml:"huian"`
	StoreConfig            YamlStoreConfig   `yaml:"store"`
	MetricsConfig          YamlMetricsConfig `yaml:"metrics"`
	NumPipelineWorkers     int               `yaml:"num_pipeline_workers"`
}

// NewConfigFromYaml converts the YamlConfig into a clean, base Config struct.
func NewConfigFromYaml(baseCfg *YamlConfig, logger *slog.Logger) (*Config, error) {
	logger.Debug("Mapping YAML config to base config struct")

	cfg := &Config{
		ProjectID:      baseCfg.ProjectID,
		ListenAddr:     baseCfg.ListenAddr,
		TopicID:        baseCfg.TopicID,
		SubscriptionID: baseCfg.SubscriptionID,
		CorsConfig: middleware.CorsConfig{
			AllowedOrigins: baseCfg.CorsConfig.AllowedOrigins,
			Role:           middleware.CorsRole(baseCfg.CorsConfig.Role),
		},
		Redis: RedisConfig{
			Addr:     baseCfg.RedisConfig.Addr,
			Password: baseCfg.RedisConfig.Password,
			DB:       baseCfg.RedisConfig.DB,
			Enabled:  baseCfg.RedisConfig.Enabled,
		},
		Huian: HuianConfig{
			AppKey:       baseCfg.HuianConfig.AppKey,
			MasterSecret: baseCfg.HuianConfig.MasterSecret,
			BaseURL:      baseCfg.HuianConfig.BaseURL,
			Timeout:      time.Duration(baseCfg.HuianConfig.TimeoutSeconds) * time.Second,
		},
		Store: StoreConfig{
			Backend:    baseCfg.StoreConfig.Backend,
			Collection: baseCfg.StoreConfig.Collection,
			SqlitePath: baseCfg.StoreConfig.SqlitePath,
		},
		Metrics: MetricsConfig{
			Enabled: baseCfg.MetricsConfig.Enabled,
			Path:    baseCfg.MetricsConfig.Path,
		},
		SubscriptionDLQTopicID: baseCfg.SubscriptionDLQTopicID,
		NumPipelineWorkers:     baseCfg.NumPipelineWorkers,
	}

	if cfg.SubscriptionID != "" {
		cfg.PubsubConsumerConfig = messagepipeline.NewGooglePubsubConsumerDefaults(cfg.SubscriptionID)
	}

	logger.Debug("YAML config mapping complete",
		"project_id", cfg.ProjectID,
		"listen_addr", cfg.ListenAddr,
		"subscription_id", cfg.SubscriptionID,
		"store_backend", cfg.Store.Backend,
	)

	return cfg, nil
}

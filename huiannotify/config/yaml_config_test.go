// --- File: huiannotify/config/yaml_config_test.go ---
package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"
	"gopkg.in/yaml.v3"

	"github.com/tinywideclouds/go-huian-notify-service/huiannotify/config"
)

func TestNewConfigFromYaml(t *testing.T) {
	logger := newTestLogger()

	t.Run("Success - maps all fields correctly", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:              "yaml-project",
			ListenAddr:             ":9000",
			TopicID:                "yaml-topic",
			SubscriptionID:         "yaml-subscription",
			SubscriptionDLQTopicID: "yaml-dlq",
			NumPipelineWorkers:     5,
			CorsConfig: config.YamlCorsConfig{
				AllowedOrigins: []string{"http://yaml.com"},
				Role:           "editor",
			},
			HuianConfig: config.YamlHuianConfig{
				AppKey:         "yaml-key",
				MasterSecret:   "yaml-secret",
				BaseURL:        "http://yaml-gateway",
				TimeoutSeconds: 7,
			},
			StoreConfig: config.YamlStoreConfig{
				Backend:    "sqlite",
				SqlitePath: "yaml.db",
			},
			MetricsConfig: config.YamlMetricsConfig{Enabled: true},
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		require.NotNil(t, cfg)

		// 1. Direct Field Mapping
		assert.Equal(t, "yaml-project", cfg.ProjectID)
		assert.Equal(t, ":9000", cfg.ListenAddr)
		assert.Equal(t, "yaml-topic", cfg.TopicID)
		assert.Equal(t, "yaml-subscription", cfg.SubscriptionID)
		assert.Equal(t, "yaml-dlq", cfg.SubscriptionDLQTopicID)
		assert.Equal(t, 5, cfg.NumPipelineWorkers)

		// 2. CORS
		assert.Equal(t, []string{"http://yaml.com"}, cfg.CorsConfig.AllowedOrigins)
		assert.Equal(t, middleware.CorsRoleEditor, cfg.CorsConfig.Role)

		// 3. Gateway, store, metrics
		assert.Equal(t, "yaml-key", cfg.Huian.AppKey)
		assert.Equal(t, "yaml-secret", cfg.Huian.MasterSecret)
		assert.Equal(t, "http://yaml-gateway", cfg.Huian.BaseURL)
		assert.Equal(t, 7*time.Second, cfg.Huian.Timeout)
		assert.Equal(t, "sqlite", cfg.Store.Backend)
		assert.Equal(t, "yaml.db", cfg.Store.SqlitePath)
		assert.True(t, cfg.Metrics.Enabled)

		assert.NotNil(t, cfg.PubsubConsumerConfig)
	})

	t.Run("Success - Handles missing optional fields gracefully", func(t *testing.T) {
		yamlCfg := &config.YamlConfig{
			ProjectID:      "minimal-project",
			SubscriptionID: "minimal-sub",
		}

		cfg, err := config.NewConfigFromYaml(yamlCfg, logger)

		require.NoError(t, err)
		assert.Equal(t, "minimal-project", cfg.ProjectID)
		assert.Equal(t, 0, cfg.NumPipelineWorkers)
		assert.Empty(t, cfg.ListenAddr)
		assert.Empty(t, cfg.Huian.AppKey)
		assert.Zero(t, cfg.Huian.Timeout)
	})

	t.Run("Success - Parses raw yaml", func(t *testing.T) {
		raw := []byte(`
project_id: raw-project
huian:
  app_key: k
  master_secret: s
store:
  backend: memory
`)
		var yamlCfg config.YamlConfig
		require.NoError(t, yaml.Unmarshal(raw, &yamlCfg))

		cfg, err := config.NewConfigFromYaml(&yamlCfg, logger)
		require.NoError(t, err)
		assert.Equal(t, "raw-project", cfg.ProjectID)
		assert.Equal(t, "k", cfg.Huian.AppKey)
		assert.Equal(t, config.StoreMemory, cfg.Store.Backend)
		assert.Nil(t, cfg.PubsubConsumerConfig)
	})
}

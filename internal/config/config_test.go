package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
alma:
  sru:
    domain: obv-at-ubtug.alma.exlibrisgroup.com
    institution_code: 43ACC_TUG
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "local_control_field_009", cfg.Alma.SRU.SearchKey)
	assert.Equal(t, []string{"marc21"}, cfg.Workflows.Import)
	assert.Equal(t, 100*time.Second, cfg.Batch.ImportCooldown)
	assert.Equal(t, "alma@tugraz.at", cfg.Repository.UserEmail)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, "json", cfg.Broker.Kafka.Encoding)
	assert.False(t, cfg.Broker.Enabled())
	assert.False(t, cfg.Database.StoreEnabled())
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
alma:
  api:
    key: secret
    host: api-eu.hosted.exlibrisgroup.com
workflows:
  create: [marc21]
aggregators:
  create:
    - name: from-csv
      type: csv
      path: /tmp/pairs.csv
batch:
  import_cooldown: 5s
schedule:
  - name: nightly-create
    task: create_alma_records
    interval: 24h
database:
  sqlite:
    path: /tmp/runs.db
server:
  read_timeout: 30s
  write_timeout: 1m
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Alma.API.Key)
	assert.Equal(t, "api-eu.hosted.exlibrisgroup.com", cfg.Alma.API.Host)
	require.Len(t, cfg.Aggregators.Create, 1)
	assert.Equal(t, "csv", cfg.Aggregators.Create[0].Type)
	assert.Equal(t, 5*time.Second, cfg.Batch.ImportCooldown)
	require.Len(t, cfg.Schedule, 1)
	assert.Equal(t, 24*time.Hour, cfg.Schedule[0].Interval)
	assert.True(t, cfg.Database.StoreEnabled())
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.Server.WriteTimeout)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ALMA_API_KEY", "from-env")
	t.Setenv("ALMA_API_HOST", "api-na.hosted.exlibrisgroup.com")
	t.Setenv("ALMA_ERROR_MAIL_RECIPIENTS", "a@example.org, b@example.org")

	cfg, err := LoadConfig(writeConfig(t, "logging:\n  level: debug\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Alma.API.Key)
	assert.Equal(t, "api-na.hosted.exlibrisgroup.com", cfg.Alma.API.Host)
	assert.Equal(t, []string{"a@example.org", "b@example.org"}, cfg.ErrorMail.Recipients)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second},
		Repository: RepositoryConfig{
			URL:   "https://repo.example.org",
			Retry: RetryConfig{MaxAttempts: 3, Multiplier: 2},
		},
	}
}

func TestValidateStatic(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:      "api key without host",
			mutate:    func(c *Config) { c.Alma.API.Key = "k" },
			wantField: "alma.api",
		},
		{
			name:      "sru domain without institution",
			mutate:    func(c *Config) { c.Alma.SRU.Domain = "alma.example.org" },
			wantField: "alma.sru.institution_code",
		},
		{
			name:      "repository url without scheme",
			mutate:    func(c *Config) { c.Repository.URL = "repo.example.org" },
			wantField: "repository.url",
		},
		{
			name: "unknown aggregator type",
			mutate: func(c *Config) {
				c.Aggregators.Update = []AggregatorConfig{{Name: "x", Type: "oai"}}
			},
			wantField: "aggregators.update[0].type",
		},
		{
			name: "unknown scheduled task",
			mutate: func(c *Config) {
				c.Schedule = []ScheduleEntry{{Name: "n", Task: "reindex", Interval: time.Hour}}
			},
			wantField: "schedule[0].task",
		},
		{
			name:      "unknown broker",
			mutate:    func(c *Config) { c.Broker.Type = "rabbitmq" },
			wantField: "broker.type",
		},
		{
			name: "kafka without group",
			mutate: func(c *Config) {
				c.Broker.Type = "kafka"
				c.Broker.Kafka.Brokers = []string{"localhost:9092"}
			},
			wantField: "broker.kafka.group_id",
		},
		{
			name:      "zero read timeout",
			mutate:    func(c *Config) { c.Server.ReadTimeout = 0 },
			wantField: "server.read_timeout",
		},
		{
			name:      "negative cooldown",
			mutate:    func(c *Config) { c.Batch.ImportCooldown = -time.Second },
			wantField: "batch.import_cooldown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := ValidateStatic(cfg)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantField)
		})
	}
}

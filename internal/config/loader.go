package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"almaconnector/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()
	bindEnvVariables()

	if configFile != "" {
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("alma.sru.search_key", constants.DefaultSRUSearchKey)
	viper.SetDefault("alma.timeout", constants.DefaultHTTPTimeout)

	viper.SetDefault("repository.user_email", constants.DefaultUserEmail)
	viper.SetDefault("repository.timeout", constants.DefaultHTTPTimeout)
	viper.SetDefault("repository.retry.max_attempts", constants.MaxRetryCount)
	viper.SetDefault("repository.retry.initial_interval", 500*time.Millisecond)
	viper.SetDefault("repository.retry.max_interval", 5*time.Second)
	viper.SetDefault("repository.retry.multiplier", 2.0)

	viper.SetDefault("workflows.import", []string{constants.DefaultWorkflow})
	viper.SetDefault("workflows.create", []string{constants.DefaultWorkflow})
	viper.SetDefault("workflows.update", []string{constants.DefaultWorkflow})

	viper.SetDefault("batch.import_cooldown", constants.DefaultImportCooldown)

	viper.SetDefault("error_mail.smtp.port", 25)

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 15*time.Second)
	viper.SetDefault("server.write_timeout", 15*time.Second)

	viper.SetDefault("broker.kafka.task_topic", constants.DefaultTaskTopic)
	viper.SetDefault("broker.kafka.event_topic", constants.DefaultEventTopic)
	viper.SetDefault("broker.kafka.encoding", constants.EncodingJSON)
	viper.SetDefault("broker.kafka.retry.max_attempts", constants.MaxRetryCount)
	viper.SetDefault("broker.kafka.retry.initial_interval", time.Second)
	viper.SetDefault("broker.kafka.retry.max_interval", 30*time.Second)
	viper.SetDefault("broker.kafka.retry.multiplier", 2.0)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("tracing.service_name", "alma")
}

func bindEnvVariables() {
	viper.BindEnv("alma.api.key", "ALMA_API_KEY")
	viper.BindEnv("alma.api.host", "ALMA_API_HOST")
	viper.BindEnv("alma.sru.domain", "ALMA_SRU_DOMAIN")
	viper.BindEnv("alma.sru.institution_code", "ALMA_SRU_INSTITUTION_CODE")
	viper.BindEnv("alma.sru.search_key", "ALMA_SRU_SEARCH_KEY")

	viper.BindEnv("repository.url", "ALMA_REPOSITORY_URL")
	viper.BindEnv("repository.token", "ALMA_REPOSITORY_TOKEN")
	viper.BindEnv("repository.user_email", "ALMA_USER_EMAIL")

	viper.BindEnv("error_mail.sender", "ALMA_ERROR_MAIL_SENDER")
	viper.BindEnv("error_mail.smtp.host", "ALMA_SMTP_HOST")
	viper.BindEnv("error_mail.smtp.port", "ALMA_SMTP_PORT")
	viper.BindEnv("error_mail.smtp.username", "ALMA_SMTP_USERNAME")
	viper.BindEnv("error_mail.smtp.password", "ALMA_SMTP_PASSWORD")

	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.task_topic", "BROKER_KAFKA_TASK_TOPIC")
	viper.BindEnv("broker.kafka.event_topic", "BROKER_KAFKA_EVENT_TOPIC")
	viper.BindEnv("broker.kafka.dlq_topic", "BROKER_KAFKA_DLQ_TOPIC")

	viper.BindEnv("database.postgres.host", "DATABASE_POSTGRES_HOST")
	viper.BindEnv("database.postgres.port", "DATABASE_POSTGRES_PORT")
	viper.BindEnv("database.postgres.user", "DATABASE_POSTGRES_USER")
	viper.BindEnv("database.postgres.password", "DATABASE_POSTGRES_PASSWORD")
	viper.BindEnv("database.postgres.dbname", "DATABASE_POSTGRES_DBNAME")
	viper.BindEnv("database.postgres.sslmode", "DATABASE_POSTGRES_SSLMODE")
	viper.BindEnv("database.sqlite.path", "DATABASE_SQLITE_PATH")

	viper.BindEnv("database.redis.host", "DATABASE_REDIS_HOST")
	viper.BindEnv("database.redis.port", "DATABASE_REDIS_PORT")
	viper.BindEnv("database.redis.password", "DATABASE_REDIS_PASSWORD")
	viper.BindEnv("database.redis.db", "DATABASE_REDIS_DB")

	viper.BindEnv("server.port", "SERVER_PORT")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("tracing.otlp.endpoint", "TRACING_OTLP_ENDPOINT")
	viper.BindEnv("tracing.otlp.insecure", "TRACING_OTLP_INSECURE")
	viper.BindEnv("tracing.enabled", "TRACING_ENABLED")
	viper.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		cfg.Broker.Kafka.Brokers = splitList(brokersEnv)
	}

	if recipients := viper.GetString("ALMA_ERROR_MAIL_RECIPIENTS"); recipients != "" {
		cfg.ErrorMail.Recipients = splitList(recipients)
	}

	if otlpEndpoint := viper.GetString("TRACING_OTLP_ENDPOINT"); otlpEndpoint != "" {
		cfg.Tracing.OTLP.Endpoint = otlpEndpoint
	}

	return nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

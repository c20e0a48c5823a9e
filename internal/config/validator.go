package config

import (
	"fmt"
	"strings"

	"almaconnector/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateAlma(cfg.Alma); err != nil {
		errors = append(errors, err)
	}

	if err := validateRepository(cfg.Repository); err != nil {
		errors = append(errors, err)
	}

	if err := validateAggregators(cfg.Aggregators); err != nil {
		errors = append(errors, err)
	}

	if err := validateSchedule(cfg.Schedule); err != nil {
		errors = append(errors, err)
	}

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateBroker(cfg.Broker); err != nil {
		errors = append(errors, err)
	}

	if err := validateDatabase(cfg.Database); err != nil {
		errors = append(errors, err)
	}

	if cfg.Batch.ImportCooldown < 0 {
		errors = append(errors, &ValidationError{
			Field:   "batch.import_cooldown",
			Message: "import cooldown must be non-negative",
		})
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

// validateAlma only rejects half-filled credentials. Whether REST or SRU is
// used is decided per invocation, so an empty section is valid here.
func validateAlma(cfg AlmaConfig) error {
	if (cfg.API.Key == "") != (cfg.API.Host == "") {
		return &ValidationError{
			Field:   "alma.api",
			Message: "key and host must be set together",
		}
	}

	if cfg.SRU.Domain != "" && cfg.SRU.InstitutionCode == "" {
		return &ValidationError{
			Field:   "alma.sru.institution_code",
			Message: "institution code is required when an SRU domain is set",
		}
	}

	if cfg.RateLimit.RPS < 0 {
		return &ValidationError{
			Field:   "alma.rate_limit.rps",
			Message: "rps must be non-negative",
		}
	}

	return nil
}

func validateRepository(cfg RepositoryConfig) error {
	if cfg.URL != "" && !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return &ValidationError{
			Field:   "repository.url",
			Message: "repository URL must start with http:// or https://",
		}
	}

	return validateRetry("repository.retry", cfg.Retry)
}

func validateAggregators(cfg AggregatorsConfig) error {
	kinds := []struct {
		name string
		list []AggregatorConfig
	}{{"create", cfg.Create}, {"update", cfg.Update}}

	for _, kind := range kinds {
		for i, agg := range kind.list {
			field := fmt.Sprintf("aggregators.%s[%d]", kind.name, i)
			switch agg.Type {
			case constants.AggregatorTypeCSV:
				if agg.Path == "" {
					return &ValidationError{Field: field + ".path", Message: "csv aggregator needs a path"}
				}
			case constants.AggregatorTypeSearch:
				if agg.SourceField == "" || agg.TargetField == "" {
					return &ValidationError{Field: field, Message: "search aggregator needs source_field and target_field"}
				}
			default:
				return &ValidationError{
					Field:   field + ".type",
					Message: fmt.Sprintf("unknown aggregator type: %s (supported: csv, search)", agg.Type),
				}
			}
		}
	}
	return nil
}

func validateSchedule(entries []ScheduleEntry) error {
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("schedule[%d].name", i), Message: "name is required"}
		}
		if seen[e.Name] {
			return &ValidationError{Field: fmt.Sprintf("schedule[%d].name", i), Message: fmt.Sprintf("duplicate schedule name: %s", e.Name)}
		}
		seen[e.Name] = true

		if e.Task != constants.TaskCreateAlmaRecords && e.Task != constants.TaskUpdateRepositoryRecords {
			return &ValidationError{
				Field:   fmt.Sprintf("schedule[%d].task", i),
				Message: fmt.Sprintf("unknown task: %s", e.Task),
			}
		}
		if e.Interval <= 0 {
			return &ValidationError{Field: fmt.Sprintf("schedule[%d].interval", i), Message: "interval must be positive"}
		}
	}
	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeout <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeout <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateBroker accepts an empty type: without a broker tasks run inline.
func validateBroker(cfg BrokerConfig) error {
	switch cfg.Type {
	case "":
		return nil
	case "kafka":
		return validateKafka(cfg.Kafka)
	default:
		return &ValidationError{
			Field:   "broker.type",
			Message: fmt.Sprintf("unknown broker type: %s (supported: kafka)", cfg.Type),
		}
	}
}

func validateKafka(cfg KafkaConfig) error {
	if len(cfg.Brokers) == 0 {
		return &ValidationError{
			Field:   "broker.kafka.brokers",
			Message: "at least one Kafka broker is required",
		}
	}

	for i, broker := range cfg.Brokers {
		if broker == "" {
			return &ValidationError{
				Field:   fmt.Sprintf("broker.kafka.brokers[%d]", i),
				Message: "broker address cannot be empty",
			}
		}
	}

	if cfg.GroupID == "" {
		return &ValidationError{
			Field:   "broker.kafka.group_id",
			Message: "Kafka consumer group ID is required",
		}
	}

	if cfg.TaskTopic == "" {
		return &ValidationError{
			Field:   "broker.kafka.task_topic",
			Message: "task topic is required",
		}
	}

	if cfg.Encoding != constants.EncodingJSON && cfg.Encoding != constants.EncodingMsgpack {
		return &ValidationError{
			Field:   "broker.kafka.encoding",
			Message: fmt.Sprintf("unknown encoding: %s (supported: json, msgpack)", cfg.Encoding),
		}
	}

	return validateRetry("broker.kafka.retry", cfg.Retry)
}

func validateRetry(prefix string, cfg RetryConfig) error {
	if cfg.MaxAttempts < 0 {
		return &ValidationError{
			Field:   prefix + ".max_attempts",
			Message: "max_attempts must be non-negative",
		}
	}

	if cfg.InitialInterval < 0 {
		return &ValidationError{
			Field:   prefix + ".initial_interval",
			Message: "initial_interval must be non-negative",
		}
	}

	if cfg.MaxInterval < 0 {
		return &ValidationError{
			Field:   prefix + ".max_interval",
			Message: "max_interval must be non-negative",
		}
	}

	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		return &ValidationError{
			Field:   prefix + ".max_interval",
			Message: "max_interval must be greater than or equal to initial_interval",
		}
	}

	if cfg.Multiplier <= 0 {
		return &ValidationError{
			Field:   prefix + ".multiplier",
			Message: "multiplier must be positive",
		}
	}

	return nil
}

func validateDatabase(cfg DatabaseConfig) error {
	if cfg.Postgres.Host != "" || cfg.Postgres.Port > 0 {
		if err := validatePostgres(cfg.Postgres); err != nil {
			return err
		}
	}

	if cfg.Redis.Host != "" || cfg.Redis.Port > 0 {
		if err := validateRedis(cfg.Redis); err != nil {
			return err
		}
	}

	return nil
}

func validatePostgres(cfg PostgresConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.postgres.host",
			Message: "PostgreSQL host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.postgres.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.User == "" {
		return &ValidationError{
			Field:   "database.postgres.user",
			Message: "PostgreSQL user is required",
		}
	}

	if cfg.DBName == "" {
		return &ValidationError{
			Field:   "database.postgres.dbname",
			Message: "PostgreSQL database name is required",
		}
	}

	validSSLModes := map[string]bool{
		"disable": true, "allow": true, "prefer": true,
		"require": true, "verify-ca": true, "verify-full": true,
	}
	if cfg.SSLMode != "" && !validSSLModes[strings.ToLower(cfg.SSLMode)] {
		return &ValidationError{
			Field:   "database.postgres.sslmode",
			Message: fmt.Sprintf("invalid SSL mode: %s (valid: disable, allow, prefer, require, verify-ca, verify-full)", cfg.SSLMode),
		}
	}

	return nil
}

func validateRedis(cfg RedisConfig) error {
	if cfg.Host == "" {
		return &ValidationError{
			Field:   "database.redis.host",
			Message: "Redis host is required",
		}
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "database.redis.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	return nil
}

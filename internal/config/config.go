package config

import (
	"time"
)

type Config struct {
	Alma           AlmaConfig           `mapstructure:"alma"`
	Repository     RepositoryConfig     `mapstructure:"repository"`
	Workflows      WorkflowsConfig      `mapstructure:"workflows"`
	Aggregators    AggregatorsConfig    `mapstructure:"aggregators"`
	Batch          BatchConfig          `mapstructure:"batch"`
	ErrorMail      ErrorMailConfig      `mapstructure:"error_mail"`
	Schedule       []ScheduleEntry      `mapstructure:"schedule"`
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type AlmaConfig struct {
	API       AlmaAPIConfig       `mapstructure:"api"`
	SRU       AlmaSRUConfig       `mapstructure:"sru"`
	RateLimit AlmaRateLimitConfig `mapstructure:"rate_limit"`
	Timeout   time.Duration       `mapstructure:"timeout"`
}

// AlmaAPIConfig holds the REST credentials. The key is expected to be an
// Institution Zone key: it may create records but only change 98X fields of
// existing ones.
type AlmaAPIConfig struct {
	Key  string `mapstructure:"key"`
	Host string `mapstructure:"host"`
}

type AlmaSRUConfig struct {
	Domain          string `mapstructure:"domain"`
	InstitutionCode string `mapstructure:"institution_code"`
	SearchKey       string `mapstructure:"search_key"`
}

type AlmaRateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type RepositoryConfig struct {
	URL       string        `mapstructure:"url"`
	Token     string        `mapstructure:"token"`
	UserEmail string        `mapstructure:"user_email"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Retry     RetryConfig   `mapstructure:"retry"`
}

// WorkflowsConfig lists the enabled built-in workflows per kind. The first
// name of each list is the default.
type WorkflowsConfig struct {
	Import []string `mapstructure:"import"`
	Create []string `mapstructure:"create"`
	Update []string `mapstructure:"update"`
}

type AggregatorsConfig struct {
	Create []AggregatorConfig `mapstructure:"create"`
	Update []AggregatorConfig `mapstructure:"update"`
}

type AggregatorConfig struct {
	Name string `mapstructure:"name"`
	Type string `mapstructure:"type"` // csv, search

	Path         string `mapstructure:"path"`
	SourceColumn string `mapstructure:"source_column"`
	TargetColumn string `mapstructure:"target_column"`

	Query       string `mapstructure:"query"`
	Filter      string `mapstructure:"filter"`
	SourceField string `mapstructure:"source_field"`
	TargetField string `mapstructure:"target_field"`
	PageSize    int    `mapstructure:"page_size"`
}

type BatchConfig struct {
	ImportCooldown time.Duration `mapstructure:"import_cooldown"`
}

type ErrorMailConfig struct {
	Sender     string     `mapstructure:"sender"`
	Recipients []string   `mapstructure:"recipients"`
	SMTP       SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type ScheduleEntry struct {
	Name     string        `mapstructure:"name"`
	Task     string        `mapstructure:"task"`
	Interval time.Duration `mapstructure:"interval"`
}

type ServerConfig struct {
	Port         int             `mapstructure:"port"`
	ReadTimeout  time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout time.Duration   `mapstructure:"write_timeout"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	Redis         RedisConfig    `mapstructure:"redis"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers    []string    `mapstructure:"brokers"`
	GroupID    string      `mapstructure:"group_id"`
	TaskTopic  string      `mapstructure:"task_topic"`
	EventTopic string      `mapstructure:"event_topic"`
	DLQTopic   string      `mapstructure:"dlq_topic"`
	Encoding   string      `mapstructure:"encoding"`
	Retry      RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param"`
}

func (c BrokerConfig) Enabled() bool {
	return c.Type == "kafka" && len(c.Kafka.Brokers) > 0
}

func (c DatabaseConfig) StoreEnabled() bool {
	return c.Postgres.Host != "" || c.SQLite.Path != ""
}

func (c ErrorMailConfig) Enabled() bool {
	return c.Sender != "" && len(c.Recipients) > 0 && c.SMTP.Host != ""
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}

package constants

import "time"

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	DefaultHTTPTimeout = 30 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	DefaultUserEmail      = "alma@tugraz.at"
	DefaultSRUSearchKey   = "local_control_field_009"
	DefaultImportCooldown = 100 * time.Second
	DefaultWorkflow       = "marc21"
	URLFieldPath          = "856.4._.u"
)

// Repository retries only cover search index hiccups right after writes.
const (
	MaxRetryCount = 3
)

const (
	TaskCreateAlmaRecords       = "create_alma_records"
	TaskUpdateRepositoryRecords = "update_repository_records"
)

const (
	DefaultTaskTopic  = "alma_tasks"
	DefaultEventTopic = "alma_events"
)

const (
	AggregatorTypeCSV    = "csv"
	AggregatorTypeSearch = "search"
)

const (
	EncodingJSON    = "json"
	EncodingMsgpack = "msgpack"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite3"
)

const (
	ScheduleLockPrefix = "alma:schedule:"
	IdentityCacheTTL   = 10 * time.Minute
	DefaultListLimit   = 20
)

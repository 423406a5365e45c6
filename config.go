package pgtuner

// Config is the base configuration used by library mode via New().
type Config struct {
	Pool         PoolConfig        `json:"pool"`
	Query        QueryConfig       `json:"query"`
	Redaction    []RedactionRule   `json:"redaction"`
	ErrorPrompts []ErrorPromptRule `json:"error_prompts"`
	Timezone     string            `json:"timezone"`
}

// ServerConfig embeds Config and adds server-only fields for CLI mode.
type ServerConfig struct {
	Config
	Connection ConnectionConfig `json:"connection"`
	Server     ServerSettings   `json:"server"`
	Logging    LoggingConfig    `json:"logging"`
}

// ConnectionConfig holds database connection parameters. In CLI mode it
// seeds an optional auto-connect at startup; at runtime the connect tool
// replaces it wholesale.
type ConnectionConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	User     string `json:"user"`
	SSL      bool   `json:"ssl"`
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	MaxConns          int    `json:"max_conns"`
	MinConns          int    `json:"min_conns"`
	MaxConnLifetime   string `json:"max_conn_lifetime"`
	MaxConnIdleTime   string `json:"max_conn_idle_time"`
	HealthCheckPeriod string `json:"health_check_period"`
}

// QueryConfig holds query execution settings.
type QueryConfig struct {
	// DefaultRowLimit is appended to unbounded SELECTs when the caller
	// does not supply a limit. Zero means the built-in default of 100.
	DefaultRowLimit       int           `json:"default_row_limit"`
	DefaultTimeoutSeconds int           `json:"default_timeout_seconds"`
	MaxSQLLength          int           `json:"max_sql_length"`
	MaxResultLength       int           `json:"max_result_length"`
	TimeoutRules          []TimeoutRule `json:"timeout_rules"`
}

// TimeoutRule maps a SQL pattern to a specific timeout duration.
type TimeoutRule struct {
	Pattern        string `json:"pattern"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// RedactionRule defines a regex-based field redaction rule applied to
// query result values before they leave the engine.
type RedactionRule struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
	Description string `json:"description"`
}

// ErrorPromptRule maps an error message pattern to remediation guidance
// appended to the error payload.
type ErrorPromptRule struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

// ServerSettings holds HTTP server settings for CLI mode.
type ServerSettings struct {
	Port               int    `json:"port"`
	HealthCheckEnabled bool   `json:"health_check_enabled"`
	HealthCheckPath    string `json:"health_check_path"`
}

// LoggingConfig holds logging settings for CLI mode.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, stderr, or file path
}

// Built-in defaults for the tool surface. Fixed for wire compatibility.
const (
	DefaultPort       = 5432
	DefaultSchema     = "public"
	DefaultRowLimit   = 100
	DefaultSlowLimit  = 10
	defaultMaxConns   = 5
	defaultTimeoutSec = 30
)

// applyDefaults fills zero values with built-in defaults. Called by New.
func (c *Config) applyDefaults() {
	if c.Pool.MaxConns == 0 {
		c.Pool.MaxConns = defaultMaxConns
	}
	if c.Query.DefaultRowLimit == 0 {
		c.Query.DefaultRowLimit = DefaultRowLimit
	}
	if c.Query.DefaultTimeoutSeconds == 0 {
		c.Query.DefaultTimeoutSeconds = defaultTimeoutSec
	}
	if c.Query.MaxSQLLength == 0 {
		c.Query.MaxSQLLength = 100000
	}
	if c.Query.MaxResultLength == 0 {
		c.Query.MaxResultLength = 100000
	}
}

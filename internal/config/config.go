package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Log       LogConfig       `mapstructure:"log" validate:"required"`
	Worker    WorkerConfig    `mapstructure:"worker" validate:"required"`
	Closure   ClosureConfig   `mapstructure:"closure" validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// WorkerConfig contains the worker connection and engine settings.
type WorkerConfig struct {
	// Codec is the wire encoding between controller and worker.
	Codec     string `mapstructure:"codec" validate:"required,oneof=json cbor"`
	InboxSize int    `mapstructure:"inbox_size" validate:"required,gt=0"`
	// ChunkSize is the number of bytes the engine reads at a time.
	ChunkSize   int  `mapstructure:"chunk_size" validate:"required,gt=0"`
	Diagnostics bool `mapstructure:"diagnostics"`
}

// ClosureConfig bounds iterator scopes.
type ClosureConfig struct {
	MaxScopeDepth int `mapstructure:"max_scope_depth" validate:"required,gt=0,lte=1024"`
}

// SchedulerConfig contains task scheduler settings.
type SchedulerConfig struct {
	// HistoryLimit caps the task history; 0 keeps every record.
	HistoryLimit int `mapstructure:"history_limit" validate:"gte=0"`
}

// ServerConfig contains the HTTP surface settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port"`
}

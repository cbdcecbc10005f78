package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TXTREADER"

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"log-level":       "log.level",
	"log-format":      "log.format",
	"codec":           "worker.codec",
	"inbox-size":      "worker.inbox_size",
	"chunk-size":      "worker.chunk_size",
	"diagnostics":     "worker.diagnostics",
	"max-scope-depth": "closure.max_scope_depth",
	"history-limit":   "scheduler.history_limit",
	"addr":            "server.addr",
}

var defaults = map[string]any{
	"log.level":               "info",
	"log.format":              "json",
	"worker.codec":            "json",
	"worker.inbox_size":       16,
	"worker.chunk_size":       1 << 20,
	"worker.diagnostics":      false,
	"closure.max_scope_depth": 32,
	"scheduler.history_limit": 1000,
	"server.addr":             "localhost:8080",
}

// RegisterFlags adds the configuration flags to flags. Flags that are set
// take precedence over environment variables and the config file.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to a config file (default ./txtreader.yaml)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "json", "log format: json or text")
	flags.String("codec", "json", "worker wire codec: json or cbor")
	flags.Int("inbox-size", 16, "number of requests that may wait for the worker")
	flags.Int("chunk-size", 1<<20, "bytes read from the file per chunk")
	flags.Bool("diagnostics", false, "log per-action timing on the worker")
	flags.Int("max-scope-depth", 32, "maximum nesting of iterator scopes")
	flags.Int("history-limit", 1000, "task records kept in history, 0 keeps all")
	flags.String("addr", "localhost:8080", "listen address of the HTTP server")
}

// Load configuration from defaults, an optional config file, environment
// variables and flags, in increasing order of precedence. flags may be nil.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(flags *pflag.FlagSet) (*Config, error) {
	return load(afero.NewOsFs(), flags)
}

func load(fs afero.Fs, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	configFile := ""
	if flags != nil {
		if f := flags.Lookup("config"); f != nil {
			configFile = f.Value.String()
		}
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("txtreader")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("error binding flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

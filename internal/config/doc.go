// Package config loads the application configuration from defaults, an
// optional txtreader.yaml, TXTREADER_ environment variables and command line
// flags, and validates the result before anything else starts.
package config

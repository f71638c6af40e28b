// Package config provides a typed view over the roast settings store.
//
// Settings are plain dotted keys (see package settings). The view groups
// the keys the command line and the pipeline read into sections:
//
//   - Logging: level, encoding and development mode of the global logger
//   - Storage: Parquet codec of trees and level of compressed outputs
//   - Selector: progress logging of selectors and tabulation
//   - Treemap: name and level of TreeMapper outputs
//   - Tabulate: Avro container codec
//   - Metrics, Tracing: Prometheus textfile export and span export
//
// # Usage
//
//	s := settings.New()
//	if err := config.LoadFile(s, "roast.yaml", settings.LevelUser); err != nil {
//		return err
//	}
//	config.ApplyEnv(s)
//	cfg := config.FromSettings(s)
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// FromSettings uses the typed getters of the store, so every default it
// falls back on is recorded and ends up in the settings snapshot written
// next to each output.
//
// # Environment
//
// LoadDotEnv reads .env files into the process environment. ApplyEnv then
// maps ROAST_<KEY> variables, dots replaced by underscores, onto the keys
// of the view and onto every key already defined. Text, JSON and YAML
// settings files may reference variables as ${VAR_NAME}:
//
//	# roast.yaml
//	metrics:
//	  textfile: ${ROAST_METRICS_DIR}/roast.prom
package config

package config

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/ajitpratap0/roast/pkg/compression"
	"github.com/ajitpratap0/roast/pkg/errors"
	"github.com/ajitpratap0/roast/pkg/logger"
	"github.com/ajitpratap0/roast/pkg/observability"
	"github.com/ajitpratap0/roast/pkg/settings"
	"github.com/ajitpratap0/roast/pkg/tree"
)

// Settings keys of the typed view. Selector, treemap and tabulate keys are
// also read directly by the packages that own them.
const (
	KeyLoggingLevel       = "logging.level"
	KeyLoggingEncoding    = "logging.encoding"
	KeyLoggingDevelopment = "logging.development"

	KeyFileCompression      = "roast.file.compression.codec"
	KeyFileCompressionLevel = "roast.file.compression.level"
	KeyOutputCompression    = "roast.output.compression.level"

	KeySelectorLogEvery       = "selector.log.every"
	KeySelectorNormalLevel    = "selector.logging.normal.level"
	KeySelectorIncreasedLevel = "selector.logging.increased.level"
	KeySelectorIncreasedEvery = "selector.logging.increased.every"

	KeyTreemapOutputName  = "treemap.output.name"
	KeyTreemapOutputLevel = "treemap.output.level"

	KeyAvroCompression = "tabulate.avro.compression"

	KeyMetricsTextfile = "metrics.textfile"
	KeyTracingEnabled  = "tracing.enabled"
	KeyTracingPretty   = "tracing.pretty"
	KeyTracingSampling = "tracing.sampling.rate"
)

// Config is a typed view over a settings store. It is organized into the
// sections the command line and the pipeline care about.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
	Storage  StorageConfig  `yaml:"storage" json:"storage"`
	Selector SelectorConfig `yaml:"selector" json:"selector"`
	Treemap  TreemapConfig  `yaml:"treemap" json:"treemap"`
	Tabulate TabulateConfig `yaml:"tabulate" json:"tabulate"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Tracing  TracingConfig  `yaml:"tracing" json:"tracing"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// StorageConfig controls how containers and compressed outputs are written.
type StorageConfig struct {
	// Compression is the Parquet codec for trees.
	Compression      string `yaml:"compression" json:"compression"`
	CompressionLevel int    `yaml:"compression_level" json:"compression_level"`
	// OutputLevel is the level of compressed tabulation and entry list
	// outputs, one of fastest, default, better or best.
	OutputLevel      string `yaml:"output_level" json:"output_level"`
}

// SelectorConfig controls progress logging of selectors and tabulation.
type SelectorConfig struct {
	LogEvery       int64  `yaml:"log_every" json:"log_every"`
	NormalLevel    string `yaml:"normal_level" json:"normal_level"`
	IncreasedLevel string `yaml:"increased_level" json:"increased_level"`
	IncreasedEvery int64  `yaml:"increased_every" json:"increased_every"`
}

// TreemapConfig controls the output of TreeMapper selectors.
type TreemapConfig struct {
	OutputName  string `yaml:"output_name" json:"output_name"`
	OutputLevel int    `yaml:"output_level" json:"output_level"`
}

// TabulateConfig controls tabulation outputs.
type TabulateConfig struct {
	AvroCompression string `yaml:"avro_compression" json:"avro_compression"`
}

// MetricsConfig controls the Prometheus textfile export.
type MetricsConfig struct {
	// Textfile receives the metrics of a run when not empty.
	Textfile string `yaml:"textfile" json:"textfile"`
}

// TracingConfig controls span export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	PrettyPrint  bool    `yaml:"pretty" json:"pretty"`
	SamplingRate float64 `yaml:"sampling_rate" json:"sampling_rate"`
}

// Default returns the configuration used when no key is set.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "console",
		},
		Storage: StorageConfig{
			Compression:      tree.CodecSnappy,
			CompressionLevel: 1,
			OutputLevel:      "default",
		},
		Selector: SelectorConfig{
			LogEvery:       10000,
			NormalLevel:    "debug",
			IncreasedLevel: "info",
			IncreasedEvery: 10000,
		},
		Treemap: TreemapConfig{
			OutputName: "events",
		},
		Tabulate: TabulateConfig{
			AvroCompression: "deflate",
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
		},
	}
}

// FromSettings reads every key of the view from s. Missing keys take the
// default and, like every typed getter, are saved in s.
func FromSettings(s *settings.Settings) *Config {
	d := Default()
	return &Config{
		Logging: LoggingConfig{
			Level:       s.String(KeyLoggingLevel, d.Logging.Level),
			Encoding:    s.String(KeyLoggingEncoding, d.Logging.Encoding),
			Development: s.Bool(KeyLoggingDevelopment, d.Logging.Development),
		},
		Storage: StorageConfig{
			Compression:      s.String(KeyFileCompression, d.Storage.Compression),
			CompressionLevel: s.Int(KeyFileCompressionLevel, d.Storage.CompressionLevel),
			OutputLevel:      s.String(KeyOutputCompression, d.Storage.OutputLevel),
		},
		Selector: SelectorConfig{
			LogEvery:       s.Int64(KeySelectorLogEvery, d.Selector.LogEvery),
			NormalLevel:    s.String(KeySelectorNormalLevel, d.Selector.NormalLevel),
			IncreasedLevel: s.String(KeySelectorIncreasedLevel, d.Selector.IncreasedLevel),
			IncreasedEvery: s.Int64(KeySelectorIncreasedEvery, d.Selector.IncreasedEvery),
		},
		Treemap: TreemapConfig{
			OutputName:  s.String(KeyTreemapOutputName, d.Treemap.OutputName),
			OutputLevel: s.Int(KeyTreemapOutputLevel, d.Treemap.OutputLevel),
		},
		Tabulate: TabulateConfig{
			AvroCompression: s.String(KeyAvroCompression, d.Tabulate.AvroCompression),
		},
		Metrics: MetricsConfig{
			Textfile: s.String(KeyMetricsTextfile, d.Metrics.Textfile),
		},
		Tracing: TracingConfig{
			Enabled:      s.Bool(KeyTracingEnabled, d.Tracing.Enabled),
			PrettyPrint:  s.Bool(KeyTracingPretty, d.Tracing.PrettyPrint),
			SamplingRate: s.Float(KeyTracingSampling, d.Tracing.SamplingRate),
		},
	}
}

// Validate checks values a run cannot start with.
func (c *Config) Validate() error {
	var problems []string
	for key, level := range map[string]string{
		KeyLoggingLevel:           c.Logging.Level,
		KeySelectorNormalLevel:    c.Selector.NormalLevel,
		KeySelectorIncreasedLevel: c.Selector.IncreasedLevel,
	} {
		if _, err := zapcore.ParseLevel(level); err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid log level %q", key, level))
		}
	}
	switch c.Logging.Encoding {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown encoding %q", KeyLoggingEncoding, c.Logging.Encoding))
	}
	if err := tree.ValidateCodec(c.Storage.Compression); err != nil {
		problems = append(problems, fmt.Sprintf("%s: unknown codec %q", KeyFileCompression, c.Storage.Compression))
	}
	if _, err := compression.ParseLevel(c.Storage.OutputLevel); err != nil {
		problems = append(problems, fmt.Sprintf("%s: %v", KeyOutputCompression, err))
	}
	if c.Selector.LogEvery <= 0 {
		problems = append(problems, fmt.Sprintf("%s must be positive", KeySelectorLogEvery))
	}
	if c.Selector.IncreasedEvery <= 0 {
		problems = append(problems, fmt.Sprintf("%s must be positive", KeySelectorIncreasedEvery))
	}
	if c.Treemap.OutputName == "" {
		problems = append(problems, fmt.Sprintf("%s must not be empty", KeyTreemapOutputName))
	}
	switch c.Tabulate.AvroCompression {
	case "null", "deflate", "snappy":
	default:
		problems = append(problems, fmt.Sprintf("%s: unknown codec %q", KeyAvroCompression, c.Tabulate.AvroCompression))
	}
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		problems = append(problems, fmt.Sprintf("%s must be within [0,1]", KeyTracingSampling))
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return errors.Newf(errors.ErrorTypeConfig, "invalid configuration: %s", strings.Join(problems, "; ")).
		WithDetail("problems", problems)
}

// FileOptions returns the container options for output files.
func (c *Config) FileOptions() []tree.FileOption {
	return []tree.FileOption{
		tree.WithCompression(c.Storage.Compression),
		tree.WithCompressionLevel(c.Storage.CompressionLevel),
	}
}

// Logger returns the configuration of the global logger.
func (c *Config) Logger() logger.Config {
	return logger.Config{
		Level:       c.Logging.Level,
		Development: c.Logging.Development,
		Encoding:    c.Logging.Encoding,
	}
}

// TracingFor returns the tracing configuration for service version.
func (c *Config) TracingFor(version string) observability.TracingConfig {
	tc := observability.DefaultConfig()
	tc.Enabled = c.Tracing.Enabled
	tc.PrettyPrint = c.Tracing.PrettyPrint
	tc.SamplingRate = c.Tracing.SamplingRate
	tc.ServiceVersion = version
	return tc
}

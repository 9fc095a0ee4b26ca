package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"usbspeed/internal/errors"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "USBSPEED_"

// ============================================================================
// CONFIGURATION LOADER
// ============================================================================

// Loader builds a Config from defaults, an optional file and the
// environment, in that order of priority.
type Loader struct {
	// path is the configuration file; empty means defaults and environment only.
	path string

	// lookupEnv reads one environment variable.
	lookupEnv func(string) (string, bool)

	// sources tracks where configuration was loaded from.
	sources []string

	// fileLoaders maps file extensions to their loaders.
	fileLoaders map[string]FileLoader

	// overrides run after the environment on every Load.
	overrides []func(*Config)
}

// FileLoader decodes one configuration file format.
type FileLoader interface {
	Load(reader io.Reader, target interface{}) error
	Extensions() []string
}

// NewLoader creates a loader for the file at path. YAML and JSON are
// registered by default.
func NewLoader(path string) *Loader {
	loader := &Loader{
		path:        path,
		lookupEnv:   os.LookupEnv,
		fileLoaders: make(map[string]FileLoader),
	}

	loader.RegisterLoader(&YAMLLoader{})
	loader.RegisterLoader(&JSONLoader{})

	return loader
}

// RegisterLoader registers a file loader for each of its extensions.
func (l *Loader) RegisterLoader(loader FileLoader) {
	for _, ext := range loader.Extensions() {
		l.fileLoaders[ext] = loader
	}
}

// WithLookupEnv replaces the environment lookup, mostly for tests.
func (l *Loader) WithLookupEnv(lookup func(string) (string, bool)) *Loader {
	if lookup != nil {
		l.lookupEnv = lookup
	}
	return l
}

// WithOverrides registers functions applied on top of the environment on
// every Load, including reloads. Command-line flags use this.
func (l *Loader) WithOverrides(overrides ...func(*Config)) *Loader {
	for _, fn := range overrides {
		if fn != nil {
			l.overrides = append(l.overrides, fn)
		}
	}
	return l
}

// Load resolves the configuration. The loading order (from lowest to
// highest priority):
//  1. Default values (in code)
//  2. The configuration file, when a path was given
//  3. USBSPEED_* environment variables
//  4. Overrides registered with WithOverrides
//
// The result is validated after every layer is applied.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()
	l.sources = []string{"defaults"}

	if l.path != "" {
		if err := l.loadFile(cfg); err != nil {
			return nil, err
		}
		l.sources = append(l.sources, l.path)
	}

	applied, err := l.loadEnvironmentVariables(cfg)
	if err != nil {
		return nil, err
	}
	if applied > 0 {
		l.sources = append(l.sources, "environment")
	}

	if len(l.overrides) > 0 {
		for _, fn := range l.overrides {
			fn(cfg)
		}
		l.sources = append(l.sources, "overrides")
	}

	cfg.LoadedFrom = l.sources

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the configuration file path, if any.
func (l *Loader) Path() string { return l.path }

func (l *Loader) loadFile(cfg *Config) error {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(l.path)), ".")
	loader, ok := l.fileLoaders[ext]
	if !ok {
		return errors.NewValidation(fmt.Sprintf("unsupported config file type %q", filepath.Ext(l.path)), nil)
	}

	file, err := os.Open(l.path)
	if err != nil {
		return errors.NewValidation("failed to open config file", err)
	}
	defer file.Close()

	if err := loader.Load(file, cfg); err != nil && err != io.EOF {
		return errors.NewValidation(fmt.Sprintf("failed to parse %s", l.path), err)
	}
	return nil
}

// loadEnvironmentVariables overlays USBSPEED_* variables on cfg and
// returns how many were applied. Values that fail to parse are reported
// together.
func (l *Loader) loadEnvironmentVariables(cfg *Config) (int, error) {
	env := envReader{lookup: l.lookupEnv}

	env.str("ENVIRONMENT", (*string)(&cfg.Environment))
	env.str("LOG_LEVEL", &cfg.Logging.Level)
	env.str("LOG_FORMAT", &cfg.Logging.Format)

	env.duration("DEBOUNCE", &cfg.Monitor.Debounce)
	env.duration("QUERY_TIMEOUT", &cfg.Monitor.QueryTimeout)
	env.integer("MAX_DEPTH", &cfg.Monitor.MaxDepth)
	env.integer("FEED_SIZE", &cfg.Monitor.FeedSize)
	env.boolean("NOTIFY_UNCHANGED", &cfg.Monitor.NotifyUnchanged)

	env.str("PROFILER_COMMAND", &cfg.Profiler.Command)
	env.fields("PROFILER_ARGS", &cfg.Profiler.Args)
	env.str("PROFILER_FIXTURE", &cfg.Profiler.Fixture)

	env.list("HOTPLUG_PATHS", &cfg.Hotplug.Paths)
	env.duration("POLL_INTERVAL", &cfg.Hotplug.PollInterval)

	env.str("NOTIFY_TITLE", &cfg.Notify.Title)
	env.str("LANGUAGE", &cfg.Notify.Language)
	env.boolean("NOTIFY_LOG", &cfg.Notify.Log)
	env.boolean("DESKTOP", &cfg.Notify.Desktop)
	env.str("WEBHOOK_URL", &cfg.Notify.Webhook.URL)
	env.duration("WEBHOOK_TIMEOUT", &cfg.Notify.Webhook.Timeout)
	env.str("EVENTBRIDGE_BUS", &cfg.Notify.EventBridge.Bus)
	env.str("EVENTBRIDGE_SOURCE", &cfg.Notify.EventBridge.Source)
	if !env.str("EVENTBRIDGE_REGION", &cfg.Notify.EventBridge.Region) && cfg.Notify.EventBridge.Region == "" {
		if val, ok := l.lookupEnv("AWS_REGION"); ok && val != "" {
			cfg.Notify.EventBridge.Region = val
		}
	}

	env.str("HTTP_ADDR", &cfg.HTTP.Addr)
	env.duration("HTTP_SHUTDOWN_TIMEOUT", &cfg.HTTP.ShutdownTimeout)
	env.boolean("METRICS_ENABLED", &cfg.Metrics.Enabled)
	env.str("METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	env.boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	if !env.str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint) && cfg.Tracing.Endpoint == "" {
		if val, ok := l.lookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); ok && val != "" {
			cfg.Tracing.Endpoint = val
		}
	}
	env.float("TRACING_SAMPLE_RATE", &cfg.Tracing.SampleRate)

	if len(env.problems) > 0 {
		return env.applied, errors.NewValidation(
			"invalid environment: "+strings.Join(env.problems, "; "), nil)
	}
	return env.applied, nil
}

// ============================================================================
// FILE LOADERS
// ============================================================================

// YAMLLoader loads configuration from YAML files. Durations are written
// as strings such as "1s" or "250ms".
type YAMLLoader struct{}

func (y *YAMLLoader) Load(reader io.Reader, target interface{}) error {
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)
	return decoder.Decode(target)
}

func (y *YAMLLoader) Extensions() []string {
	return []string{"yaml", "yml"}
}

// JSONLoader loads configuration from JSON files. Durations are
// nanosecond integers.
type JSONLoader struct{}

func (j *JSONLoader) Load(reader io.Reader, target interface{}) error {
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func (j *JSONLoader) Extensions() []string {
	return []string{"json"}
}

// ============================================================================
// HELPER FUNCTIONS
// ============================================================================

type envReader struct {
	lookup   func(string) (string, bool)
	applied  int
	problems []string
}

func (r *envReader) get(name string) (string, bool) {
	val, ok := r.lookup(EnvPrefix + name)
	if !ok || strings.TrimSpace(val) == "" {
		return "", false
	}
	r.applied++
	return strings.TrimSpace(val), true
}

func (r *envReader) fail(name, val string, err error) {
	r.problems = append(r.problems, fmt.Sprintf("%s%s=%q: %v", EnvPrefix, name, val, err))
}

func (r *envReader) str(name string, dst *string) bool {
	val, ok := r.get(name)
	if ok {
		*dst = val
	}
	return ok
}

func (r *envReader) integer(name string, dst *int) {
	if val, ok := r.get(name); ok {
		n, err := parseInt(val)
		if err != nil {
			r.fail(name, val, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) boolean(name string, dst *bool) {
	if val, ok := r.get(name); ok {
		b, err := parseBool(val)
		if err != nil {
			r.fail(name, val, err)
			return
		}
		*dst = b
	}
}

func (r *envReader) float(name string, dst *float64) {
	if val, ok := r.get(name); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			r.fail(name, val, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) duration(name string, dst *time.Duration) {
	if val, ok := r.get(name); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			r.fail(name, val, err)
			return
		}
		*dst = d
	}
}

// list splits on commas and the OS path separator.
func (r *envReader) list(name string, dst *[]string) {
	if val, ok := r.get(name); ok {
		parts := strings.FieldsFunc(val, func(c rune) bool {
			return c == ',' || c == filepath.ListSeparator
		})
		*dst = parts
	}
}

func (r *envReader) fields(name string, dst *[]string) {
	if val, ok := r.get(name); ok {
		*dst = strings.Fields(val)
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func parseBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

// Load resolves the configuration for the file at path using the process
// environment.
func Load(path string) (*Config, error) {
	return NewLoader(path).Load()
}

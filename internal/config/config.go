// Package config defines the monitor's configuration and loads it from
// defaults, an optional YAML or JSON file, and USBSPEED_* environment
// variables, in increasing priority.
package config

import (
	"fmt"
	"net"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"usbspeed/internal/errors"
)

// Environment represents the deployment environment
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the complete configuration.
type Config struct {
	Environment Environment `yaml:"environment" json:"environment" validate:"required,oneof=development production"`
	Logging     Logging     `yaml:"logging" json:"logging"`
	Monitor     Monitor     `yaml:"monitor" json:"monitor"`
	Profiler    Profiler    `yaml:"profiler" json:"profiler"`
	Hotplug     Hotplug     `yaml:"hotplug" json:"hotplug"`
	Notify      Notify      `yaml:"notify" json:"notify"`
	HTTP        HTTP        `yaml:"http" json:"http"`
	Metrics     Metrics     `yaml:"metrics" json:"metrics"`
	Tracing     Tracing     `yaml:"tracing" json:"tracing"`

	// LoadedFrom lists the sources applied, in order.
	LoadedFrom []string `yaml:"-" json:"-"`
}

type Logging struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=json console"`
}

// Monitor configures the rescan pipeline.
type Monitor struct {
	// Debounce is the quiescence window applied to hotplug signals.
	Debounce time.Duration `yaml:"debounce" json:"debounce" validate:"gt=0"`
	// QueryTimeout bounds one topology query.
	QueryTimeout    time.Duration `yaml:"query_timeout" json:"query_timeout" validate:"gt=0"`
	MaxDepth        int           `yaml:"max_depth" json:"max_depth" validate:"min=1,max=1024"`
	FeedSize        int           `yaml:"feed_size" json:"feed_size" validate:"min=1,max=10000"`
	NotifyUnchanged bool          `yaml:"notify_unchanged" json:"notify_unchanged"`
}

// Profiler selects the topology source. A Fixture replaces the command.
type Profiler struct {
	Command string   `yaml:"command" json:"command" validate:"required_without=Fixture"`
	Args    []string `yaml:"args" json:"args"`
	Fixture string   `yaml:"fixture" json:"fixture" validate:"omitempty,file"`
}

type Hotplug struct {
	Paths []string `yaml:"paths" json:"paths"`
	// PollInterval adds a periodic signal; zero disables it.
	PollInterval time.Duration `yaml:"poll_interval" json:"poll_interval" validate:"gte=0"`
}

type Notify struct {
	Title       string      `yaml:"title" json:"title"`
	Language    string      `yaml:"language" json:"language" validate:"oneof=zh en"`
	Log         bool        `yaml:"log" json:"log"`
	Desktop     bool        `yaml:"desktop" json:"desktop"`
	Webhook     Webhook     `yaml:"webhook" json:"webhook"`
	EventBridge EventBridge `yaml:"eventbridge" json:"eventbridge"`
}

type Webhook struct {
	URL     string        `yaml:"url" json:"url" validate:"omitempty,url"`
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`
}

// EventBridge publishing is enabled by setting Bus.
type EventBridge struct {
	Bus    string `yaml:"bus" json:"bus"`
	Source string `yaml:"source" json:"source"`
	Region string `yaml:"region" json:"region"`
}

// HTTP configures the read-only API. An empty Addr disables it.
type HTTP struct {
	Addr            string        `yaml:"addr" json:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout" validate:"gt=0"`
}

type Metrics struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace" json:"namespace" validate:"required"`
}

type Tracing struct {
	Enabled    bool    `yaml:"enabled" json:"enabled"`
	Endpoint   string  `yaml:"endpoint" json:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" json:"sample_rate" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Environment: Development,
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
		Monitor: Monitor{
			Debounce:     time.Second,
			QueryTimeout: 30 * time.Second,
			MaxDepth:     32,
			FeedSize:     50,
		},
		Profiler: Profiler{
			Command: "/usr/sbin/system_profiler",
			Args:    []string{"SPUSBHostDataType", "SPThunderboltDataType", "-json"},
		},
		Hotplug: Hotplug{
			Paths:        []string{"/dev/bus/usb", "/sys/bus/usb/devices", "/sys/bus/thunderbolt/devices"},
			PollInterval: defaultPollInterval(),
		},
		Notify: Notify{
			Language: "zh",
			Log:      true,
			Desktop:  true,
			Webhook: Webhook{
				Timeout: 10 * time.Second,
			},
			EventBridge: EventBridge{
				Source: "usbspeed",
			},
		},
		HTTP: HTTP{
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: Metrics{
			Enabled:   true,
			Namespace: "usbspeed",
		},
		Tracing: Tracing{
			SampleRate: 1.0,
		},
	}
}

// macOS exposes no watchable device directory, so it polls by default.
func defaultPollInterval() time.Duration {
	if runtime.GOOS == "darwin" {
		return 5 * time.Second
	}
	return 0
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

var validate = validator.New()

// Validate checks the configuration and returns a validation error that
// names every offending field.
func (c *Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
		} else {
			problems = append(problems, err.Error())
		}
	}

	if c.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
			problems = append(problems, fmt.Sprintf("Config.HTTP.Addr: %v", err))
		}
	}

	if len(problems) > 0 {
		return errors.NewValidation("invalid configuration: "+strings.Join(problems, "; "), nil)
	}
	return nil
}

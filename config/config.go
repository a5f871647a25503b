// Package config reads the settings of the modchart tools from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvChart         = "MODCHART_CHART"
	EnvTrace         = "MODCHART_TRACE"
	EnvMonitorPort   = "MODCHART_MONITOR_PORT"
	EnvOpenBrowser   = "MODCHART_OPEN_BROWSER"
	EnvScriptTimeout = "MODCHART_SCRIPT_TIMEOUT"
	EnvQueueCapacity = "MODCHART_QUEUE_CAPACITY"
	EnvFrameStep     = "MODCHART_FRAME_STEP"
	EnvFrameInterval = "MODCHART_FRAME_INTERVAL"
)

// DefaultEnvFile is the file Load reads when no file is given.
const DefaultEnvFile = ".env"

// Config holds the settings shared by the commands.
type Config struct {
	// ChartPath is the chart file to load.
	ChartPath string

	// TracePath is the trace database name without extension. Empty
	// disables tracing.
	TracePath string

	// MonitorPort is the port of the monitoring server. Zero picks one.
	MonitorPort int

	OpenBrowser   bool
	ScriptTimeout time.Duration

	// QueueCapacity limits the deferred queue. Zero means unbounded.
	QueueCapacity int

	// FrameStep is the playhead distance between frames in milliseconds.
	FrameStep int64

	// FrameInterval is the wall-clock time between frames. Zero plays as
	// fast as possible.
	FrameInterval time.Duration
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		ScriptTimeout: 5 * time.Second,
		FrameStep:     16,
	}
}

// Load reads envFile, if it exists, into the environment without overriding
// variables that are already set, and then builds a Config from the
// environment. An empty envFile means DefaultEnvFile.
func Load(envFile string) (Config, error) {
	explicit := envFile != ""
	if !explicit {
		envFile = DefaultEnvFile
	}

	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (Config, error) {
	c := Default()

	c.ChartPath = os.Getenv(EnvChart)
	c.TracePath = os.Getenv(EnvTrace)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(lookupInt(EnvMonitorPort, &c.MonitorPort))
	collect(lookupBool(EnvOpenBrowser, &c.OpenBrowser))
	collect(lookupDuration(EnvScriptTimeout, &c.ScriptTimeout))
	collect(lookupInt(EnvQueueCapacity, &c.QueueCapacity))
	collect(lookupInt64(EnvFrameStep, &c.FrameStep))
	collect(lookupDuration(EnvFrameInterval, &c.FrameInterval))

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// Validate checks the ranges of the settings.
func (c Config) Validate() error {
	var errs []error

	if c.MonitorPort < 0 || c.MonitorPort > 65535 {
		errs = append(errs, fmt.Errorf("monitor port %d out of range",
			c.MonitorPort))
	}

	if c.ScriptTimeout < 0 {
		errs = append(errs, errors.New("script timeout must not be negative"))
	}

	if c.QueueCapacity < 0 {
		errs = append(errs, errors.New("queue capacity must not be negative"))
	}

	if c.FrameStep <= 0 {
		errs = append(errs, errors.New("frame step must be positive"))
	}

	if c.FrameInterval < 0 {
		errs = append(errs, errors.New("frame interval must not be negative"))
	}

	return errors.Join(errs...)
}

func lookupInt(name string, dst *int) error {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return nil
	}

	v, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	*dst = v

	return nil
}

func lookupInt64(name string, dst *int64) error {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return nil
	}

	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	*dst = v

	return nil
}

func lookupBool(name string, dst *bool) error {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return nil
	}

	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	*dst = v

	return nil
}

func lookupDuration(name string, dst *time.Duration) error {
	s, ok := os.LookupEnv(name)
	if !ok || s == "" {
		return nil
	}

	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	*dst = v

	return nil
}

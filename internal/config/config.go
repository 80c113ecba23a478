// Package config loads codepad settings from an HCL file overlaid by
// environment variables. Command-line flags are applied last by cmd.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/agentic-research/codepad/internal/logging"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "codepad.hcl"

// Config holds resolved settings.
type Config struct {
	// Execute service
	ExecuteURL     string
	ExecuteTimeout time.Duration

	// Downloads land here (export command, shell "export")
	DownloadDir string

	// Diagnostics logging
	Log logging.Config

	// Workspace behaviour
	LogContentUpdates bool
	FormatOnExport    bool
	AutoOpenCreated   bool

	// Metrics listener for long-running servers; empty disables it
	MetricsAddr string
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ExecuteURL:      "http://localhost:8000",
		ExecuteTimeout:  15 * time.Second,
		DownloadDir:     ".",
		Log:             logging.Config{Level: "info", Format: "console"},
		AutoOpenCreated: true,
	}
}

// fileConfig mirrors codepad.hcl:
//
//	execute_url     = "http://localhost:8000"
//	execute_timeout = "15s"
//	download_dir    = "./out"
//	metrics_addr    = ":9090"
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//
//	workspace {
//	  log_content_updates = false
//	  format_on_export    = true
//	  auto_open_created   = true
//	}
type fileConfig struct {
	ExecuteURL     *string   `hcl:"execute_url,optional"`
	ExecuteTimeout *string   `hcl:"execute_timeout,optional"`
	DownloadDir    *string   `hcl:"download_dir,optional"`
	MetricsAddr    *string   `hcl:"metrics_addr,optional"`
	Log            *logBlock `hcl:"log,block"`
	Workspace      *wsBlock  `hcl:"workspace,block"`
}

type logBlock struct {
	Level  *string `hcl:"level,optional"`
	Format *string `hcl:"format,optional"`
	Output *string `hcl:"output,optional"`
}

type wsBlock struct {
	LogContentUpdates *bool `hcl:"log_content_updates,optional"`
	FormatOnExport    *bool `hcl:"format_on_export,optional"`
	AutoOpenCreated   *bool `hcl:"auto_open_created,optional"`
}

// Load resolves defaults, then the HCL file at path, then the environment.
// An empty path reads DefaultFile if it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	src, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.decode(path, src); err != nil {
			return cfg, err
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// no config file is fine
	default:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

// Parse decodes HCL source over the defaults without consulting the
// environment.
func Parse(filename string, src []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(filename, src); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(filename string, src []byte) error {
	var fc fileConfig
	if err := hclsimple.Decode(filename, src, nil, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&c.ExecuteURL, fc.ExecuteURL)
	setString(&c.DownloadDir, fc.DownloadDir)
	setString(&c.MetricsAddr, fc.MetricsAddr)
	if fc.ExecuteTimeout != nil {
		d, err := time.ParseDuration(*fc.ExecuteTimeout)
		if err != nil {
			return fmt.Errorf("parse config: execute_timeout: %w", err)
		}
		c.ExecuteTimeout = d
	}
	if fc.Log != nil {
		setString(&c.Log.Level, fc.Log.Level)
		setString(&c.Log.Format, fc.Log.Format)
		setString(&c.Log.OutputPath, fc.Log.Output)
	}
	if fc.Workspace != nil {
		setBool(&c.LogContentUpdates, fc.Workspace.LogContentUpdates)
		setBool(&c.FormatOnExport, fc.Workspace.FormatOnExport)
		setBool(&c.AutoOpenCreated, fc.Workspace.AutoOpenCreated)
	}
	return nil
}

// ApplyEnv overlays CODEPAD_* variables. lookup is os.LookupEnv outside
// tests. Malformed values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	c.ExecuteURL = envOr(lookup, "CODEPAD_EXECUTE_URL", c.ExecuteURL)
	c.ExecuteTimeout = envDuration(lookup, "CODEPAD_EXECUTE_TIMEOUT", c.ExecuteTimeout)
	c.DownloadDir = envOr(lookup, "CODEPAD_DOWNLOAD_DIR", c.DownloadDir)
	c.MetricsAddr = envOr(lookup, "CODEPAD_METRICS_ADDR", c.MetricsAddr)
	c.Log.Level = envOr(lookup, "CODEPAD_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr(lookup, "CODEPAD_LOG_FORMAT", c.Log.Format)
	c.Log.OutputPath = envOr(lookup, "CODEPAD_LOG_OUTPUT", c.Log.OutputPath)
	c.LogContentUpdates = envBool(lookup, "CODEPAD_LOG_CONTENT_UPDATES", c.LogContentUpdates)
	c.FormatOnExport = envBool(lookup, "CODEPAD_FORMAT_ON_EXPORT", c.FormatOnExport)
	c.AutoOpenCreated = envBool(lookup, "CODEPAD_AUTO_OPEN", c.AutoOpenCreated)
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	u, err := url.Parse(c.ExecuteURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid execute_url %q", c.ExecuteURL)
	}
	if c.ExecuteTimeout <= 0 {
		return fmt.Errorf("execute_timeout must be positive, got %s", c.ExecuteTimeout)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("invalid log format %q (want console or json)", c.Log.Format)
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func envOr(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envBool(lookup func(string) (string, bool), key string, fallback bool) bool {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	v, ok := lookup(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

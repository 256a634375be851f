// Copyright 2026 The rpcready Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpcready/rpcready/lib/audit"
	"github.com/rpcready/rpcready/lib/handshake"
	"github.com/rpcready/rpcready/lib/transport"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "RPCREADY_CONFIG"

// Config is the complete rpcready configuration.
type Config struct {
	Endpoint EndpointConfig `yaml:"endpoint"`
	Server   ServerConfig   `yaml:"server"`

	// Identity is the inline READY identity. Ignored when IdentityFile
	// is set.
	Identity handshake.Identity `yaml:"identity"`

	// IdentityFile holds the identity in its own file (.yaml, .yml,
	// .json, or .jsonc), watched for changes while serving.
	IdentityFile string `yaml:"identity_file"`

	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`
}

// EndpointConfig locates the local endpoint.
type EndpointConfig struct {
	// Name is resolved to a platform path when Path is empty.
	// Default: discord-ipc-0
	Name string `yaml:"name"`

	// Path overrides the resolved location.
	Path string `yaml:"path"`

	// Permissions is applied to the socket file. Octal, e.g. "0600".
	// Zero keeps the umask default.
	Permissions FileMode `yaml:"permissions"`
}

// ServerConfig tunes the accept loop and sessions.
type ServerConfig struct {
	// Concurrent serves clients in parallel instead of one at a time.
	Concurrent bool `yaml:"concurrent"`

	// MaxSessions bounds concurrent sessions. Zero is unbounded.
	MaxSessions int `yaml:"max_sessions"`

	// ReadTimeout ends a session whose next frame does not arrive in
	// time. Zero waits forever.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// RetryDelay is the pause after a failed accept cycle.
	// Default: 500ms
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// AuditConfig configures the message audit file.
type AuditConfig struct {
	// Path of the active audit file. Empty disables auditing.
	// Default: ipc-audit.jsonl
	Path string `yaml:"path"`

	// Format is "jsonl" or "cbor".
	Format string `yaml:"format"`

	// MaxBytes rotates the file once it reaches this size. Zero never
	// rotates.
	MaxBytes int64 `yaml:"max_bytes"`

	// Compression applied to rotated files: "none", "lz4", or "zstd".
	Compression string `yaml:"compression"`
}

// MetricsConfig configures the metrics and health HTTP server.
type MetricsConfig struct {
	// Listen is the TCP address to serve on. Empty disables it.
	Listen string `yaml:"listen"`
}

// LogConfig configures process logging.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is auto, text, or json. Auto picks text on a terminal.
	Format string `yaml:"format"`
}

// FileMode is a permission mode written in octal.
type FileMode os.FileMode

// UnmarshalYAML parses the scalar as octal regardless of quoting, so
// 0600 and "0600" mean the same thing.
func (m *FileMode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: permissions must be an octal scalar", node.Line)
	}
	value, err := strconv.ParseUint(node.Value, 8, 32)
	if err != nil {
		return fmt.Errorf("line %d: permissions %q is not octal: %w", node.Line, node.Value, err)
	}
	*m = FileMode(value)
	return nil
}

// Default returns the configuration used when no file is given, and
// the base that a file is merged onto.
func Default() *Config {
	return &Config{
		Endpoint: EndpointConfig{
			Name: transport.DefaultName,
		},
		Server: ServerConfig{
			RetryDelay: 500 * time.Millisecond,
		},
		Identity: handshake.DefaultIdentity(),
		Audit: AuditConfig{
			Path:        "ipc-audit.jsonl",
			Format:      string(audit.FormatJSONL),
			Compression: string(audit.CompressionNone),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads the file named by RPCREADY_CONFIG. Fails if it is unset;
// the caller decides whether running on Default is acceptable.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your rpcready.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile merges the YAML file at path onto Default, expands path
// variables, and loads the identity file if one is named. The result
// is not validated; call Validate.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.expandVariables()

	if cfg.IdentityFile != "" {
		identity, err := LoadIdentityFile(cfg.IdentityFile)
		if err != nil {
			return nil, err
		}
		cfg.Identity = identity
	}
	return cfg, nil
}

// EndpointPath is the configured path, or the platform location for
// the configured name.
func (c *Config) EndpointPath() string {
	if c.Endpoint.Path != "" {
		return c.Endpoint.Path
	}
	return transport.Resolve(c.Endpoint.Name)
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Endpoint.Path = expandVars(c.Endpoint.Path, vars)
	c.IdentityFile = expandVars(c.IdentityFile, vars)
	c.Audit.Path = expandVars(c.Audit.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars replaces ${VAR} and ${VAR:-default}. Provided vars win
// over the environment; an unset variable without a default expands to
// the empty string.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Endpoint.Name == "" && c.Endpoint.Path == "" {
		errs = append(errs, errors.New("endpoint.name or endpoint.path is required"))
	}
	if c.Endpoint.Permissions > 0o777 {
		errs = append(errs, fmt.Errorf("endpoint.permissions %o has bits outside 0777", c.Endpoint.Permissions))
	}

	if c.Server.MaxSessions < 0 {
		errs = append(errs, fmt.Errorf("server.max_sessions must not be negative, got %d", c.Server.MaxSessions))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.read_timeout must not be negative, got %s", c.Server.ReadTimeout))
	}
	if c.Server.RetryDelay < 0 {
		errs = append(errs, fmt.Errorf("server.retry_delay must not be negative, got %s", c.Server.RetryDelay))
	}

	if err := c.Identity.Validate(); err != nil {
		errs = append(errs, err)
	}

	if _, err := audit.ParseFormat(c.Audit.Format); err != nil {
		errs = append(errs, fmt.Errorf("audit.format: %w", err))
	}
	if _, err := audit.ParseCompression(c.Audit.Compression); err != nil {
		errs = append(errs, fmt.Errorf("audit.compression: %w", err))
	}
	if c.Audit.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("audit.max_bytes must not be negative, got %d", c.Audit.MaxBytes))
	}

	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("log.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		errs = append(errs, fmt.Errorf("log.format must be one of: %v", logFormats))
	}

	return errors.Join(errs...)
}

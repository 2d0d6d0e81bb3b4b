package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio = "stdio"
	ModeCLI   = "cli"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultOutput      = "F"
)

// Config holds all configuration for the form filler
type Config struct {
	// Invocation mode: "cli" fills one document and exits, "stdio" runs
	// the MCP tool server.
	Mode string

	// CLI fill parameters
	Input      string
	Data       string
	Output     string // output mode letter: S, F, I or D
	OutputPath string
	Flatten    bool

	// Repair behavior for the cross-reference table
	Safe  bool
	Check bool
	Halt  bool

	// Fallback engine
	ToolkitCommand string
	ForceFallback  bool

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Mode:        ModeCLI,
		Output:      DefaultOutput,
		Safe:        true,
		Check:       true,
		Halt:        false,
		Version:     "1.0.0",
		ServerName:  "formfill",
		LogLevel:    DefaultLogLevel,
		MaxFileSize: DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	// Expand paths if needed
	if cfg.Input != "" {
		if expandedPath, err := filepath.Abs(cfg.Input); err == nil {
			cfg.Input = expandedPath
		}
	}
	if cfg.Data != "" {
		if expandedPath, err := filepath.Abs(cfg.Data); err == nil {
			cfg.Data = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix
	viper.SetEnvPrefix("FORMFILL")
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("input", cfg.Input)
	viper.SetDefault("data", cfg.Data)
	viper.SetDefault("output", cfg.Output)
	viper.SetDefault("out", cfg.OutputPath)
	viper.SetDefault("flatten", cfg.Flatten)
	viper.SetDefault("safe", cfg.Safe)
	viper.SetDefault("check", cfg.Check)
	viper.SetDefault("halt", cfg.Halt)
	viper.SetDefault("toolkit", cfg.ToolkitCommand)
	viper.SetDefault("fallback", cfg.ForceFallback)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Invocation mode: 'cli' for one-shot fill, 'stdio' for MCP standard I/O")
	pflag.String("input", cfg.Input, "PDF document to fill")
	pflag.String("data", cfg.Data, "FDF form data file")
	pflag.String("output", cfg.Output, "Output mode: S (string), F (file), I (inline), D (download)")
	pflag.String("out", cfg.OutputPath, "Output file path (output mode F)")
	pflag.Bool("flatten", cfg.Flatten, "Flatten form fields into page content (requires external toolkit)")
	pflag.Bool("safe", cfg.Safe, "Correct cross-reference offsets that disagree with object positions")
	pflag.Bool("check", cfg.Check, "Verify cross-reference offsets against object positions")
	pflag.Bool("halt", cfg.Halt, "Treat cross-reference inconsistencies as fatal")
	pflag.String("toolkit", cfg.ToolkitCommand, "External toolkit command for documents outside native bounds")
	pflag.Bool("fallback", cfg.ForceFallback, "Route every fill through the fallback engine")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "input", "data", "output", "out", "flatten",
		"safe", "check", "halt", "toolkit", "fallback",
		"loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nformfill - fill PDF form fields in place\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --input=form.pdf --data=values.fdf --out=filled.pdf\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input=form.pdf --data=values.fdf --output=S   # print to stdout\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio                                    # MCP tool server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_MODE        Invocation mode\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_TOOLKIT     External toolkit command\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_LOGLEVEL    Log level\n")
		fmt.Fprintf(os.Stderr, "  FORMFILL_MAXFILESIZE Maximum file size\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Input = viper.GetString("input")
	cfg.Data = viper.GetString("data")
	cfg.Output = viper.GetString("output")
	cfg.OutputPath = viper.GetString("out")
	cfg.Flatten = viper.GetBool("flatten")
	cfg.Safe = viper.GetBool("safe")
	cfg.Check = viper.GetBool("check")
	cfg.Halt = viper.GetBool("halt")
	cfg.ToolkitCommand = viper.GetString("toolkit")
	cfg.ForceFallback = viper.GetBool("fallback")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeStdio && c.Mode != ModeCLI {
		return errors.New("mode must be either 'stdio' or 'cli'")
	}

	switch c.Output {
	case "S", "F", "I", "D":
	default:
		return fmt.Errorf("invalid output mode: %s (must be one of: S, F, I, D)", c.Output)
	}

	if c.Mode == ModeCLI {
		if c.Input == "" {
			return errors.New("input document cannot be empty in cli mode")
		}
		if c.Output == "F" && c.OutputPath == "" {
			return errors.New("output path cannot be empty for output mode F")
		}
	}

	if c.Halt && c.Safe {
		return errors.New("halt and safe are mutually exclusive")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Input: %s, Output: %s, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.Input, c.Output, c.LogLevel, c.MaxFileSize)
}

// IsStdioMode returns true if the process should run the MCP server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Helper function to reset pflag.CommandLine for testing
func resetFlags() {
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
	viper.Reset()
}

// Helper function to set os.Args for testing
func setArgs(args []string) {
	os.Args = args
}

// Helper function to clear environment variables
func clearEnvVars() {
	os.Unsetenv("FORMFILL_MODE")
	os.Unsetenv("FORMFILL_INPUT")
	os.Unsetenv("FORMFILL_OUTPUT")
	os.Unsetenv("FORMFILL_TOOLKIT")
	os.Unsetenv("FORMFILL_LOGLEVEL")
	os.Unsetenv("FORMFILL_MAXFILESIZE")
}

func TestLoadFromFlags_StdioDefaults(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	setArgs([]string{"formfill", "--mode=stdio"})
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want stdio", cfg.Mode)
	}
	if cfg.Output != "F" {
		t.Errorf("LoadFromFlags() Output = %v, want F", cfg.Output)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LoadFromFlags() LogLevel = %v, want info", cfg.LogLevel)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("LoadFromFlags() MaxFileSize = %v, want %v", cfg.MaxFileSize, 100*1024*1024)
	}
}

func TestLoadFromFlags_CLIFill(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{
		"formfill",
		"--input=" + filepath.Join(tempDir, "form.pdf"),
		"--data=" + filepath.Join(tempDir, "values.fdf"),
		"--out=" + filepath.Join(tempDir, "filled.pdf"),
		"--toolkit=/usr/bin/pdftk",
		"--loglevel=debug",
	})
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}

	if cfg.Mode != "cli" {
		t.Errorf("LoadFromFlags() Mode = %v, want cli", cfg.Mode)
	}
	if !filepath.IsAbs(cfg.Input) {
		t.Errorf("LoadFromFlags() Input should be absolute, got %v", cfg.Input)
	}
	if cfg.ToolkitCommand != "/usr/bin/pdftk" {
		t.Errorf("LoadFromFlags() ToolkitCommand = %v", cfg.ToolkitCommand)
	}
	if !cfg.IsDebug() {
		t.Error("LoadFromFlags() should enable debug logging")
	}
}

func TestLoadFromFlags_RepairFlags(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	tempDir := t.TempDir()
	setArgs([]string{
		"formfill",
		"--input=" + filepath.Join(tempDir, "form.pdf"),
		"--out=" + filepath.Join(tempDir, "filled.pdf"),
		"--halt=true",
		"--safe=false",
	})
	resetFlags()
	clearEnvVars()

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if !cfg.Halt || cfg.Safe {
		t.Errorf("LoadFromFlags() halt=%v safe=%v, want halt without safe", cfg.Halt, cfg.Safe)
	}
}

func TestLoadFromFlags_InvalidConfig(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	// cli mode without an input document fails validation.
	setArgs([]string{"formfill", "--output=S"})
	resetFlags()
	clearEnvVars()

	if _, err := LoadFromFlags(); err == nil {
		t.Fatal("expected validation failure for missing input")
	}
}

func TestLoadFromFlags_EnvironmentVariables(t *testing.T) {
	originalArgs := os.Args
	defer func() {
		os.Args = originalArgs
		resetFlags()
		clearEnvVars()
	}()

	setArgs([]string{"formfill"})
	resetFlags()
	clearEnvVars()

	os.Setenv("FORMFILL_MODE", "stdio")
	os.Setenv("FORMFILL_TOOLKIT", "/opt/pdftk")

	cfg, err := LoadFromFlags()
	if err != nil {
		t.Fatalf("LoadFromFlags() unexpected error: %v", err)
	}
	if cfg.Mode != "stdio" {
		t.Errorf("LoadFromFlags() Mode = %v, want stdio from environment", cfg.Mode)
	}
	if cfg.ToolkitCommand != "/opt/pdftk" {
		t.Errorf("LoadFromFlags() ToolkitCommand = %v, want /opt/pdftk from environment", cfg.ToolkitCommand)
	}
}

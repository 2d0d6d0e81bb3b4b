package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"

	"github.com/docuflow/formfill/internal/config"
	"github.com/docuflow/formfill/internal/mcp"
	"github.com/docuflow/formfill/internal/pdf"
	"github.com/docuflow/formfill/internal/pdf/toolkit"
	"github.com/docuflow/formfill/internal/pdf/xref"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

// setupLogging configures logging based on the invocation mode
func setupLogging(cfg *config.Config) {
	if cfg.IsStdioMode() {
		// In stdio mode, redirect log output to stderr to avoid interfering with MCP protocol
		log.SetOutput(os.Stderr)
		// Reduce log verbosity in stdio mode unless debug is enabled
		if !cfg.IsDebug() {
			log.SetOutput(os.NewFile(0, os.DevNull))
		}
	} else {
		log.SetOutput(os.Stderr)
		if cfg.IsDebug() {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		}
	}
}

// serviceOptions maps the flat configuration onto the service options.
func serviceOptions(cfg *config.Config) pdf.Options {
	return pdf.Options{
		MaxFileSize: cfg.MaxFileSize,
		XRef: xref.Config{
			Safe:  cfg.Safe,
			Check: cfg.Check,
			Halt:  cfg.Halt,
		},
		Toolkit: toolkit.Options{
			Command: cfg.ToolkitCommand,
			Modes:   toolkit.OutputModes{Flatten: cfg.Flatten},
		},
		ForceFallback: cfg.ForceFallback,
	}
}

// runStdioMode handles stdio mode execution
func runStdioMode(ctx context.Context, server *mcp.Server) {
	// In stdio mode, the parent process controls our lifecycle
	if err := server.Run(ctx); err != nil {
		if os.Getenv("DEBUG") != "" {
			log.Printf("Server error: %v", err)
		}
		os.Exit(1)
	}
}

// runCLIMode fills one document and exits.
func runCLIMode(cfg *config.Config, service *pdf.Service) {
	req := pdf.FormFillFileRequest{
		Path:       cfg.Input,
		DataPath:   cfg.Data,
		Output:     pdf.OutputMode(cfg.Output),
		OutputPath: cfg.OutputPath,
		Flatten:    cfg.Flatten,
	}
	// The stream modes write the document to stdout.
	if req.Output == pdf.OutputInline || req.Output == pdf.OutputDownload {
		req.Sink = os.Stdout
	}

	result, err := service.FormFillFile(req)
	if err != nil {
		log.Fatalf("Fill failed: %v", err)
	}

	switch req.Output {
	case pdf.OutputString:
		if _, err := os.Stdout.Write(result.Output); err != nil {
			log.Fatalf("Write failed: %v", err)
		}
	case pdf.OutputFile:
		log.Printf("Wrote %s (%d fields set, engine %s)", result.OutputPath, len(result.FieldsSet), result.Engine)
	}
	if len(result.FieldsSkipped) > 0 {
		log.Printf("Skipped unknown fields: %v", result.FieldsSkipped)
	}
}

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			printVersion()
			return
		}
	}

	cfg, err := config.LoadFromFlags()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)

	// Set version if it was provided during build
	if version != "dev" {
		cfg.Version = version
	}

	service := pdf.NewService(serviceOptions(cfg))

	if cfg.IsStdioMode() {
		server, err := mcp.NewServer(cfg, service)
		if err != nil {
			log.Fatalf("Failed to create MCP server: %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runStdioMode(ctx, server)
		return
	}

	runCLIMode(cfg, service)
}

// printVersion prints version information
func printVersion() {
	fmt.Printf("formfill\n")
	fmt.Printf("Version: %s\n", version)
	fmt.Printf("Build Time: %s\n", buildTime)
	fmt.Printf("Git Commit: %s\n", gitCommit)
	fmt.Printf("Built with: %s\n", runtime.Version())
}

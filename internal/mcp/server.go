// Package mcp exposes the form filler as Model Context Protocol tools
// over standard I/O.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/docuflow/formfill/internal/config"
	"github.com/docuflow/formfill/internal/pdf"
)

// Server represents the MCP server instance
type Server struct {
	config     *config.Config
	pdfService *pdf.Service
	mcpServer  *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(cfg *config.Config, pdfService *pdf.Service) (*Server, error) {
	if pdfService == nil {
		return nil, fmt.Errorf("pdfService cannot be nil")
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false), // We don't support dynamic tool capabilities
	)

	s := &Server{
		config:     cfg,
		pdfService: pdfService,
		mcpServer:  mcpServer,
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	formFillFileTool := mcp.NewTool(
		"form_fill_file",
		mcp.WithDescription("Write values into the form fields of a PDF document"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
		mcp.WithString("values",
			mcp.Description("JSON object mapping field names to text values"),
		),
		mcp.WithString("buttons",
			mcp.Description("JSON object mapping button field names to states"),
		),
		mcp.WithString("data_path",
			mcp.Description("Path to an FDF form data file"),
		),
		mcp.WithString("output_path",
			mcp.Description("Where to write the filled document (defaults next to the input)"),
		),
	)
	s.mcpServer.AddTool(formFillFileTool, s.handleFormFillFile)

	formInspectFileTool := mcp.NewTool(
		"form_inspect_file",
		mcp.WithDescription("List the form fields of a PDF document with their current values"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(formInspectFileTool, s.handleFormInspectFile)

	formExportDataTool := mcp.NewTool(
		"form_export_data",
		mcp.WithDescription("Export the current form field values of a PDF document as FDF"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
		mcp.WithString("output_path",
			mcp.Description("Where to write the FDF (returned inline if empty)"),
		),
	)
	s.mcpServer.AddTool(formExportDataTool, s.handleFormExportData)

	formValidateFileTool := mcp.NewTool(
		"form_validate_file",
		mcp.WithDescription("Validate if a file is a readable PDF"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Full path to the PDF file"),
		),
	)
	s.mcpServer.AddTool(formValidateFileTool, s.handleFormValidateFile)

	formServerInfoTool := mcp.NewTool(
		"form_server_info",
		mcp.WithDescription("Get server information, available tools and usage guidance"),
	)
	s.mcpServer.AddTool(formServerInfoTool, s.handleFormServerInfo)
}

// Handler functions

func (s *Server) handleFormFillFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	values, err := parseStringMap(request.GetString("values", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid values: %v", err)), nil
	}
	buttons, err := parseStringMap(request.GetString("buttons", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid buttons: %v", err)), nil
	}

	req := pdf.FormFillFileRequest{
		Path:       path,
		DataPath:   request.GetString("data_path", ""),
		Values:     values,
		Buttons:    buttons,
		Output:     pdf.OutputFile,
		OutputPath: request.GetString("output_path", ""),
	}
	if req.OutputPath == "" {
		req.OutputPath = derivedFillPath(path)
	}

	result, err := s.pdfService.FormFillFile(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatFormFillFileResult(result)), nil
}

func (s *Server) handleFormInspectFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.FormInspectFile(pdf.FormInspectFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatFormInspectFileResult(result)), nil
}

func (s *Server) handleFormExportData(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	req := pdf.FormExportDataRequest{
		Path:       path,
		OutputPath: request.GetString("output_path", ""),
	}
	result, err := s.pdfService.FormExportData(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	text := fmt.Sprintf("Exported %d field values from: %s\n", result.Fields, result.Path)
	if result.OutputPath != "" {
		text += fmt.Sprintf("Written to: %s\n", result.OutputPath)
	} else {
		text += "\n" + string(result.Data)
	}
	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleFormValidateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pdfService.FormValidateFile(pdf.FormValidateFileRequest{Path: path})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if result.Valid {
		return mcp.NewToolResultText(fmt.Sprintf("Valid PDF: %s", result.Path)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Invalid PDF: %s\nReason: %s", result.Path, result.Message)), nil
}

func (s *Server) handleFormServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := fmt.Sprintf("%s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("Fallback Engine: %s\n\n", s.pdfService.Engine())

	text += "Available Tools:\n"
	tools := []struct{ name, description string }{
		{"form_fill_file", "Write values into the form fields of a PDF document"},
		{"form_inspect_file", "List the form fields of a PDF document with their current values"},
		{"form_export_data", "Export the current form field values of a PDF document as FDF"},
		{"form_validate_file", "Validate if a file is a readable PDF"},
		{"form_server_info", "Get server information, available tools and usage guidance"},
	}
	for _, t := range tools {
		text += fmt.Sprintf("\n• %s\n  Description: %s\n", t.name, t.description)
	}

	text += "\nPass field values as a JSON object in the 'values' parameter, " +
		"for example {\"Name\": \"Alexandra\", \"City\": \"Berlin\"}. " +
		"Checkbox and radio selections go in 'buttons' keyed by field name."

	return mcp.NewToolResultText(text), nil
}

// Result formatters

func (s *Server) formatFormFillFileResult(result *pdf.FormFillFileResult) string {
	text := fmt.Sprintf("Filled form: %s\n", result.Path)
	text += fmt.Sprintf("Engine: %s\n", result.Engine)
	text += fmt.Sprintf("Fields set: %d\n", len(result.FieldsSet))
	for _, name := range result.FieldsSet {
		text += fmt.Sprintf("  • %s\n", name)
	}
	if len(result.FieldsSkipped) > 0 {
		text += fmt.Sprintf("Fields skipped: %s\n", strings.Join(result.FieldsSkipped, ", "))
	}
	if result.Corrected > 0 {
		text += fmt.Sprintf("Cross-reference offsets corrected: %d\n", result.Corrected)
	}
	if result.OutputPath != "" {
		text += fmt.Sprintf("Output: %s\n", result.OutputPath)
	}
	return text
}

func (s *Server) formatFormInspectFileResult(result *pdf.FormInspectFileResult) string {
	text := fmt.Sprintf("Form fields for: %s\n", result.Path)
	text += fmt.Sprintf("Objects: %d, Fields: %d\n", result.ObjectCount, len(result.Fields))

	if len(result.Metadata) > 0 {
		text += "\nDocument Info:\n"
		for key, value := range result.Metadata {
			text += fmt.Sprintf("  %s: %s\n", key, value)
		}
	}

	if len(result.Fields) > 0 {
		text += "\nFields:\n"
		for i, f := range result.Fields {
			text += fmt.Sprintf("%d. %s (%s)", i+1, f.Name, f.Kind)
			if f.Value != "" {
				text += fmt.Sprintf(" = %q", f.Value)
			}
			if len(f.Options) > 0 {
				text += fmt.Sprintf(", options: %s", strings.Join(f.Options, ", "))
			}
			if len(f.States) > 0 {
				text += fmt.Sprintf(", states: %s", strings.Join(f.States, ", "))
			}
			text += "\n"
		}
	}

	return text
}

// parseStringMap decodes a JSON object parameter into a string map.
func parseStringMap(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	m := make(map[string]string)
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// derivedFillPath places the filled document next to the input.
func derivedFillPath(path string) string {
	if strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return path[:len(path)-4] + ".filled.pdf"
	}
	return path + ".filled.pdf"
}

// Run starts the MCP server over standard I/O.
func (s *Server) Run(_ context.Context) error {
	if s.config.IsDebug() {
		log.Printf("Starting form MCP server in stdio mode")
	}

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}

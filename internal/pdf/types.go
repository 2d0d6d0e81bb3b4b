package pdf

import "io"

// OutputMode selects where a filled document goes.
type OutputMode string

const (
	// OutputString returns the filled bytes to the caller.
	OutputString OutputMode = "S"
	// OutputFile writes the filled bytes to OutputPath.
	OutputFile OutputMode = "F"
	// OutputInline streams the filled bytes to the sink for inline display.
	OutputInline OutputMode = "I"
	// OutputDownload streams the filled bytes to the sink as an attachment.
	OutputDownload OutputMode = "D"
)

// Valid reports whether m is one of the four defined modes.
func (m OutputMode) Valid() bool {
	switch m {
	case OutputString, OutputFile, OutputInline, OutputDownload:
		return true
	}
	return false
}

// FieldInfo describes one form field for inspection results.
type FieldInfo struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Value   string   `json:"value,omitempty"`
	Options []string `json:"options,omitempty"`
	States  []string `json:"states,omitempty"`
}

// Request Types

// FormFillFileRequest represents a request to write values into a PDF form
type FormFillFileRequest struct {
	Path string `json:"path"`
	// DataPath points at an FDF file; Values and Buttons are merged over it.
	DataPath string            `json:"data_path,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
	Buttons  map[string]string `json:"buttons,omitempty"`
	Output   OutputMode        `json:"output"`
	// OutputPath is required for OutputFile and ignored otherwise.
	OutputPath string `json:"output_path,omitempty"`
	// Sink receives the document for the inline and download modes.
	Sink    io.Writer `json:"-"`
	Flatten bool      `json:"flatten,omitempty"`
}

// FormInspectFileRequest represents a request to list the fields of a PDF form
type FormInspectFileRequest struct {
	Path string `json:"path"`
}

// FormExportDataRequest represents a request to export current field values as FDF
type FormExportDataRequest struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path,omitempty"`
}

// FormValidateFileRequest represents a request to validate a PDF file
type FormValidateFileRequest struct {
	Path string `json:"path"`
}

// Response Types

// FormFillFileResult represents the outcome of a fill operation
type FormFillFileResult struct {
	Path          string   `json:"path"`
	Output        []byte   `json:"-"`
	OutputPath    string   `json:"output_path,omitempty"`
	Disposition   string   `json:"disposition,omitempty"`
	FieldsSet     []string `json:"fields_set"`
	FieldsSkipped []string `json:"fields_skipped,omitempty"`
	Engine        string   `json:"engine"`
	// Corrected counts cross-reference offsets repaired along the way.
	Corrected int `json:"corrected,omitempty"`
}

// FormInspectFileResult represents the field inventory of one document
type FormInspectFileResult struct {
	Path        string            `json:"path"`
	Fields      []FieldInfo       `json:"fields"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ObjectCount int               `json:"object_count"`
}

// FormExportDataResult carries the exported FDF bytes
type FormExportDataResult struct {
	Path       string `json:"path"`
	Data       []byte `json:"-"`
	OutputPath string `json:"output_path,omitempty"`
	Fields     int    `json:"fields"`
}

// FormValidateFileResult represents the result of a validation check
type FormValidateFileResult struct {
	Path    string `json:"path"`
	Valid   bool   `json:"valid"`
	Message string `json:"message,omitempty"`
}

package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/fdf"
	"github.com/docuflow/formfill/internal/pdf/pdftest"
	"github.com/docuflow/formfill/internal/pdf/toolkit"
	"github.com/docuflow/formfill/internal/pdf/xref"
)

func newTestService() *Service {
	return NewService(Options{
		MaxFileSize: 10 * 1024 * 1024,
		XRef:        xref.FixConfig(),
	})
}

func writeFixture(t *testing.T, f pdftest.File) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.pdf")
	if err := os.WriteFile(path, pdftest.Build(f), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestFormFillFileStringOutput(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.SimpleForm())

	result, err := service.FormFillFile(FormFillFileRequest{
		Path:   path,
		Values: map[string]string{"Name": "Alexandra"},
		Output: OutputString,
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}

	if result.Engine != "native" {
		t.Errorf("engine = %s, want native", result.Engine)
	}
	if len(result.FieldsSet) != 1 || result.FieldsSet[0] != "Name" {
		t.Errorf("fields set = %v, want [Name]", result.FieldsSet)
	}
	if !strings.Contains(string(result.Output), "(Alexandra)") {
		t.Error("output bytes must carry the new value")
	}
	if result.OutputPath != "" {
		t.Error("string mode must not write a file")
	}

	// The source file is untouched.
	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read source: %v", err)
	}
	if strings.Contains(string(original), "Alexandra") {
		t.Error("string mode must not modify the source document")
	}
}

func TestFormFillFileFileOutput(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.SimpleForm())
	outPath := filepath.Join(filepath.Dir(path), "filled.pdf")

	result, err := service.FormFillFile(FormFillFileRequest{
		Path:       path,
		Values:     map[string]string{"Name": "Alexandra"},
		Output:     OutputFile,
		OutputPath: outPath,
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if result.OutputPath != outPath {
		t.Errorf("output path = %s, want %s", result.OutputPath, outPath)
	}

	written, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(written), "(Alexandra)") {
		t.Error("written file must carry the new value")
	}
}

func TestFormFillFileUnwritableOutput(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.SimpleForm())

	_, err := service.FormFillFile(FormFillFileRequest{
		Path:       path,
		Values:     map[string]string{"Name": "Alexandra"},
		Output:     OutputFile,
		OutputPath: filepath.Join(filepath.Dir(path), "missing", "out.pdf"),
	})
	if err == nil {
		t.Fatal("expected delivery failure")
	}
	if !pdferrors.IsKind(err, pdferrors.KindResourceUnavailable) {
		t.Errorf("expected resource error, got %v", err)
	}
}

func TestFormFillFileStreamModes(t *testing.T) {
	tests := []struct {
		name            string
		mode            OutputMode
		wantDisposition string
	}{
		{"inline", OutputInline, "inline"},
		{"download", OutputDownload, `attachment; filename="form.pdf"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService()
			path := writeFixture(t, pdftest.SimpleForm())

			var sink bytes.Buffer
			result, err := service.FormFillFile(FormFillFileRequest{
				Path:   path,
				Values: map[string]string{"Name": "Alexandra"},
				Output: tt.mode,
				Sink:   &sink,
			})
			if err != nil {
				t.Fatalf("fill: %v", err)
			}
			if result.Disposition != tt.wantDisposition {
				t.Errorf("disposition = %q, want %q", result.Disposition, tt.wantDisposition)
			}
			if !strings.Contains(sink.String(), "(Alexandra)") {
				t.Error("sink must receive the filled document")
			}
		})
	}
}

func TestFormFillFileInvalidOutputMode(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.SimpleForm())

	if _, err := service.FormFillFile(FormFillFileRequest{
		Path:   path,
		Output: OutputMode("X"),
	}); err == nil {
		t.Fatal("expected invalid mode rejection")
	}
}

func TestFormFillFileSkipsUnknownFields(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.SimpleForm())

	result, err := service.FormFillFile(FormFillFileRequest{
		Path:   path,
		Values: map[string]string{"Name": "Alexandra", "Ghost": "x"},
		Output: OutputString,
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if len(result.FieldsSkipped) != 1 || result.FieldsSkipped[0] != "Ghost" {
		t.Errorf("fields skipped = %v, want [Ghost]", result.FieldsSkipped)
	}
}

func TestFormFillFileMergesDataFile(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.WithCheckbox(pdftest.SimpleForm()))

	dataPath := filepath.Join(filepath.Dir(path), "values.fdf")
	data := fdf.Generate(
		map[string]string{"Name": "FromFile"},
		map[string]string{"Agree": "Yes"},
		"",
	)
	if err := os.WriteFile(dataPath, data, 0o600); err != nil {
		t.Fatalf("write data: %v", err)
	}

	// Direct values take precedence over the data file.
	result, err := service.FormFillFile(FormFillFileRequest{
		Path:     path,
		DataPath: dataPath,
		Values:   map[string]string{"Name": "Direct"},
		Output:   OutputString,
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if len(result.FieldsSet) != 2 {
		t.Errorf("fields set = %v, want Name and Agree", result.FieldsSet)
	}
	out := string(result.Output)
	if !strings.Contains(out, "(Direct)") {
		t.Error("direct value must win over the data file")
	}
	if strings.Contains(out, "(FromFile)") {
		t.Error("overridden data file value must not be written")
	}
	if !strings.Contains(out, "/V /Yes") {
		t.Error("button state from the data file must be applied")
	}
}

func TestFormFillFileRepairsCorruptedTable(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.WithBadOffset(pdftest.SimpleForm(), 3, 9))

	result, err := service.FormFillFile(FormFillFileRequest{
		Path:   path,
		Values: map[string]string{"Name": "Alexandra"},
		Output: OutputString,
	})
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if result.Corrected != 1 {
		t.Errorf("corrected = %d, want 1", result.Corrected)
	}
}

func TestFormInspectFile(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.WithInfo(pdftest.WithCheckbox(pdftest.SimpleForm())))

	result, err := service.FormInspectFile(FormInspectFileRequest{Path: path})
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}

	if len(result.Fields) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(result.Fields))
	}
	byName := make(map[string]FieldInfo)
	for _, f := range result.Fields {
		byName[f.Name] = f
	}
	if byName["Name"].Kind != "text" || byName["Name"].Value != "A" {
		t.Errorf("unexpected text field info: %+v", byName["Name"])
	}
	if byName["Agree"].Kind != "button" {
		t.Errorf("unexpected button field info: %+v", byName["Agree"])
	}
	if len(byName["Agree"].States) != 2 {
		t.Errorf("expected two button states, got %v", byName["Agree"].States)
	}
	if result.Metadata["Title"] != "Order Form" {
		t.Errorf("metadata title = %q", result.Metadata["Title"])
	}
	if result.ObjectCount == 0 {
		t.Error("object count must be populated")
	}
}

func TestFormExportData(t *testing.T) {
	service := newTestService()
	path := writeFixture(t, pdftest.WithCheckbox(pdftest.SimpleForm()))

	result, err := service.FormExportData(FormExportDataRequest{Path: path})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Fields != 2 {
		t.Errorf("fields = %d, want 2", result.Fields)
	}

	parsed, err := fdf.Parse(result.Data)
	if err != nil {
		t.Fatalf("generated FDF must parse: %v", err)
	}
	if parsed.Values["Name"] != "A" {
		t.Errorf("exported Name = %q, want A", parsed.Values["Name"])
	}
	if parsed.Buttons["Agree"] != "Off" {
		t.Errorf("exported Agree = %q, want Off", parsed.Buttons["Agree"])
	}
}

func TestFormValidateFile(t *testing.T) {
	service := newTestService()

	tests := []struct {
		name        string
		path        func(t *testing.T) string
		expectValid bool
	}{
		{
			name:        "empty path",
			path:        func(t *testing.T) string { return "" },
			expectValid: false,
		},
		{
			name:        "non-existent file",
			path:        func(t *testing.T) string { return "/non/existent/file.pdf" },
			expectValid: false,
		},
		{
			name: "wrong extension",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "form.txt")
				if err := os.WriteFile(p, []byte("text"), 0o600); err != nil {
					t.Fatal(err)
				}
				return p
			},
			expectValid: false,
		},
		{
			name: "empty file",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "empty.pdf")
				if err := os.WriteFile(p, nil, 0o600); err != nil {
					t.Fatal(err)
				}
				return p
			},
			expectValid: false,
		},
		{
			name: "valid form",
			path: func(t *testing.T) string {
				return writeFixture(t, pdftest.SimpleForm())
			},
			expectValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := service.FormValidateFile(FormValidateFileRequest{Path: tt.path(t)})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Valid != tt.expectValid {
				t.Errorf("valid = %v, want %v (message: %s)", result.Valid, tt.expectValid, result.Message)
			}
			if !tt.expectValid && result.Message == "" {
				t.Error("expected validation message for invalid file")
			}
		})
	}
}

func TestServiceEngineSelection(t *testing.T) {
	if got := newTestService().Engine(); got != "pdfcpu" {
		t.Errorf("default fallback engine = %s, want pdfcpu", got)
	}
	withCommand := NewService(Options{
		MaxFileSize: 1024,
		Toolkit:     toolkit.Options{Command: "pdftk"},
	})
	if got := withCommand.Engine(); got != "command" {
		t.Errorf("configured command engine = %s, want command", got)
	}
}

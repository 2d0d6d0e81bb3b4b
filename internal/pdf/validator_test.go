package pdf

import (
	"os"
	"path/filepath"
	"testing"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/pdftest"
)

func TestValidator_ValidateFile(t *testing.T) {
	validator := NewValidator(1024 * 1024) // 1MB limit

	tests := []struct {
		name        string
		req         FormValidateFileRequest
		expectValid bool
	}{
		{
			name:        "empty path",
			req:         FormValidateFileRequest{Path: ""},
			expectValid: false,
		},
		{
			name:        "non-existent file",
			req:         FormValidateFileRequest{Path: "/non/existent/file.pdf"},
			expectValid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validator.ValidateFile(tt.req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result == nil {
				t.Fatal("result should not be nil")
			}
			if result.Valid != tt.expectValid {
				t.Errorf("expected Valid=%v but got %v", tt.expectValid, result.Valid)
			}
			if result.Path != tt.req.Path {
				t.Errorf("expected Path=%s but got %s", tt.req.Path, result.Path)
			}
			if !tt.expectValid && result.Message == "" {
				t.Error("expected validation message for invalid file")
			}
		})
	}
}

func TestValidator_FileSizeLimit(t *testing.T) {
	validator := NewValidator(16) // deliberately tiny limit

	path := filepath.Join(t.TempDir(), "form.pdf")
	if err := os.WriteFile(path, pdftest.Build(pdftest.SimpleForm()), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	result, err := validator.ValidateFile(FormValidateFileRequest{Path: path})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Valid {
		t.Error("file over the size limit must not validate")
	}
}

func TestValidator_CheckAccess(t *testing.T) {
	validator := NewValidator(1024 * 1024)

	err := validator.checkAccess("/non/existent/file.pdf")
	if err == nil {
		t.Fatal("expected access failure")
	}
	if !pdferrors.IsKind(err, pdferrors.KindResourceUnavailable) {
		t.Errorf("expected resource error kind, got %v", err)
	}
}

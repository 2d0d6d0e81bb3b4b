// Package toolkit holds the fallback fill engines for documents the
// native line editor refuses: an out-of-process command bridge (pdftk
// compatible) and an in-process pdfcpu rewrite engine. The engine is
// selected once at construction; operations never branch on engine names.
package toolkit

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/fdf"
)

// Capabilities describes what a fallback engine can take on that the
// native path cannot.
type Capabilities struct {
	Encryption         bool
	Linearized         bool
	ObjectStreams      bool
	IncrementalUpdates bool
	Flatten            bool
}

// Security carries password and encryption flags for engines that
// support them.
type Security struct {
	UserPassword  string
	OwnerPassword string
	Encrypt128    bool
	Permissions   []string
}

// OutputModes carries the post-processing switches of the bridge
// boundary.
type OutputModes struct {
	Flatten    bool
	Compress   bool
	Uncompress bool
}

// Options configures engine selection and the command bridge.
type Options struct {
	// Command is the path to the external executable. Empty selects the
	// in-process engine.
	Command  string
	Security Security
	Modes    OutputModes
}

// FillRequest is one delegated fill: the source document, the form data
// (either an existing data file or an in-memory set), and where the
// result goes.
type FillRequest struct {
	PDFPath    string
	DataPath   string
	Data       *fdf.Data
	OutputPath string
}

// Result reports what an engine produced: the output path on success,
// the engine's own diagnostic text otherwise.
type Result struct {
	Success bool
	Output  string
}

// Engine is the strategy interface every fallback implements.
type Engine interface {
	Name() string
	Capabilities() Capabilities
	Fill(req FillRequest) (*Result, error)
}

// Select picks the fallback engine once, at construction time: the
// command bridge when an executable is configured, the in-process pdfcpu
// engine otherwise.
func Select(opts Options) Engine {
	if opts.Command != "" {
		return &CommandBridge{opts: opts}
	}
	return &PdfcpuEngine{}
}

// CommandBridge shells out to a pdftk-style executable. The form data is
// handed over through an exclusively created temporary file that is
// removed on every exit path.
type CommandBridge struct {
	opts Options
}

// Name identifies the engine in results and logs.
func (b *CommandBridge) Name() string { return "command" }

// Capabilities of the external toolkit: everything the native path
// refuses.
func (b *CommandBridge) Capabilities() Capabilities {
	return Capabilities{
		Encryption:         true,
		Linearized:         true,
		ObjectStreams:      true,
		IncrementalUpdates: true,
		Flatten:            true,
	}
}

// Fill runs `command input fill_form data output result [modes]` as one
// synchronous out-of-process call.
func (b *CommandBridge) Fill(req FillRequest) (*Result, error) {
	dataPath := req.DataPath
	if dataPath == "" && req.Data != nil {
		tmp, err := os.CreateTemp("", "formfill-*.fdf")
		if err != nil {
			return nil, pdferrors.Resource("create temporary form data", err)
		}
		defer func() {
			_ = os.Remove(tmp.Name())
		}()
		if _, err := tmp.Write(fdf.Generate(req.Data.Values, req.Data.Buttons, req.PDFPath)); err != nil {
			_ = tmp.Close()
			return nil, pdferrors.Resource("write temporary form data", err)
		}
		if err := tmp.Close(); err != nil {
			return nil, pdferrors.Resource("write temporary form data", err)
		}
		dataPath = tmp.Name()
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = derivedOutputPath(req.PDFPath)
	}

	args := []string{req.PDFPath}
	if b.opts.Security.UserPassword != "" {
		args = append(args, "input_pw", b.opts.Security.UserPassword)
	}
	if dataPath != "" {
		args = append(args, "fill_form", dataPath)
	}
	args = append(args, "output", outputPath)
	if b.opts.Security.OwnerPassword != "" {
		args = append(args, "owner_pw", b.opts.Security.OwnerPassword)
	}
	if b.opts.Security.Encrypt128 {
		args = append(args, "encrypt_128bit")
	}
	if len(b.opts.Security.Permissions) > 0 {
		args = append(args, "allow")
		args = append(args, b.opts.Security.Permissions...)
	}
	if b.opts.Modes.Flatten {
		args = append(args, "flatten")
	}
	if b.opts.Modes.Compress {
		args = append(args, "compress")
	}
	if b.opts.Modes.Uncompress {
		args = append(args, "uncompress")
	}

	out, err := exec.Command(b.opts.Command, args...).CombinedOutput()
	if err != nil {
		diagnostic := strings.TrimSpace(string(out))
		if diagnostic == "" {
			diagnostic = err.Error()
		}
		return &Result{Success: false, Output: diagnostic},
			pdferrors.Toolkit("external fill", diagnostic, err)
	}
	return &Result{Success: true, Output: outputPath}, nil
}

// derivedOutputPath places the result next to the input.
func derivedOutputPath(pdfPath string) string {
	ext := filepath.Ext(pdfPath)
	return fmt.Sprintf("%s.filled%s", strings.TrimSuffix(pdfPath, ext), ext)
}

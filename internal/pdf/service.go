// Package pdf is the service surface of the form filler. It orchestrates
// the line-oriented native pipeline (document, parser, writer, xref) and
// hands documents outside the native structural bounds to the configured
// fallback engine.
package pdf

import (
	"fmt"
	"log"
	"os"

	"github.com/docuflow/formfill/internal/pdf/document"
	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/fdf"
	"github.com/docuflow/formfill/internal/pdf/parser"
	"github.com/docuflow/formfill/internal/pdf/toolkit"
	"github.com/docuflow/formfill/internal/pdf/writer"
	"github.com/docuflow/formfill/internal/pdf/xref"
)

// Options configures a Service once, at construction.
type Options struct {
	MaxFileSize int64
	// XRef decides how cross-reference inconsistencies are handled.
	XRef xref.Config
	// Toolkit selects and configures the fallback engine.
	Toolkit toolkit.Options
	// ForceFallback routes every fill through the fallback engine,
	// bypassing the native editor entirely.
	ForceFallback bool
}

// Service handles form operations by orchestrating the pipeline components
type Service struct {
	opts      Options
	validator *Validator
	engine    toolkit.Engine
}

// NewService creates a new form service. The fallback engine is chosen
// here and never changes for the life of the service.
func NewService(opts Options) *Service {
	return &Service{
		opts:      opts,
		validator: NewValidator(opts.MaxFileSize),
		engine:    toolkit.Select(opts.Toolkit),
	}
}

// FormFillFile writes values into the form fields of a PDF document and
// delivers the result per the requested output mode.
func (s *Service) FormFillFile(req FormFillFileRequest) (*FormFillFileResult, error) {
	if !req.Output.Valid() {
		return nil, pdferrors.Resource("fill form", fmt.Errorf("invalid output mode %q", req.Output))
	}
	if err := s.validator.checkAccess(req.Path); err != nil {
		return nil, err
	}

	data, err := s.loadData(req)
	if err != nil {
		return nil, err
	}

	if s.opts.ForceFallback || req.Flatten {
		return s.fallbackFill(req, data)
	}

	raw, err := os.ReadFile(req.Path)
	if err != nil {
		return nil, pdferrors.Resource("read document", err)
	}

	doc := document.New()
	if err := doc.Load(raw); err != nil {
		if pdferrors.IsKind(err, pdferrors.KindStructuralUnsupported) {
			log.Printf("document %s outside native bounds, delegating to %s: %v", req.Path, s.engine.Name(), err)
			return s.fallbackFill(req, data)
		}
		return nil, err
	}

	res, err := parser.Parse(doc, s.opts.XRef)
	if err != nil {
		if pdferrors.IsKind(err, pdferrors.KindStructuralUnsupported) {
			log.Printf("document %s outside native bounds, delegating to %s: %v", req.Path, s.engine.Name(), err)
			return s.fallbackFill(req, data)
		}
		return nil, err
	}

	w := writer.New(doc, res.Fields, res.AcroFormID)
	set, skipped := w.Apply(data.Values, data.Buttons)

	if len(set) > 0 {
		if err := res.Table.Rebuild(doc); err != nil {
			return nil, err
		}
		if err := res.Table.UpdateStartXRef(doc); err != nil {
			return nil, err
		}
	}

	result := &FormFillFileResult{
		Path:          req.Path,
		FieldsSet:     set,
		FieldsSkipped: skipped,
		Engine:        "native",
		Corrected:     res.Corrected,
	}
	if err := deliver(req, doc.Buffer(), result); err != nil {
		return nil, err
	}
	return result, nil
}

// FormInspectFile lists the form fields of a document with their current
// values, options and appearance states.
func (s *Service) FormInspectFile(req FormInspectFileRequest) (*FormInspectFileResult, error) {
	if err := s.validator.checkAccess(req.Path); err != nil {
		return nil, err
	}
	doc, res, err := s.loadAndParse(req.Path)
	if err != nil {
		return nil, err
	}

	fields := make([]FieldInfo, 0, len(res.Fields))
	for _, f := range res.Fields {
		info := FieldInfo{
			Name:  f.Name(),
			Kind:  f.Kind().String(),
			Value: f.Value(),
		}
		switch f := f.(type) {
		case parser.ChoiceField:
			info.Options = f.Options
		case parser.ButtonField:
			info.States = f.States
		}
		fields = append(fields, info)
	}

	return &FormInspectFileResult{
		Path:        req.Path,
		Fields:      fields,
		Metadata:    doc.Metadata(),
		ObjectCount: len(doc.ObjectIDs()),
	}, nil
}

// FormExportData exports the current field values of a document as FDF.
func (s *Service) FormExportData(req FormExportDataRequest) (*FormExportDataResult, error) {
	if err := s.validator.checkAccess(req.Path); err != nil {
		return nil, err
	}
	_, res, err := s.loadAndParse(req.Path)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	buttons := make(map[string]string)
	for _, f := range res.Fields {
		if f.Value() == "" {
			continue
		}
		if f.Kind() == parser.KindButton {
			buttons[f.Name()] = f.Value()
		} else {
			values[f.Name()] = f.Value()
		}
	}

	out := fdf.Generate(values, buttons, req.Path)
	result := &FormExportDataResult{
		Path:   req.Path,
		Fields: len(values) + len(buttons),
	}
	if req.OutputPath != "" {
		if err := writeFileAtomic(req.OutputPath, out); err != nil {
			return nil, pdferrors.Resource("write form data", err)
		}
		result.OutputPath = req.OutputPath
	} else {
		result.Data = out
	}
	return result, nil
}

// FormValidateFile performs validation on a PDF file
func (s *Service) FormValidateFile(req FormValidateFileRequest) (*FormValidateFileResult, error) {
	return s.validator.ValidateFile(req)
}

// Engine reports the fallback engine chosen at construction.
func (s *Service) Engine() string {
	return s.engine.Name()
}

// loadData assembles the effective value set: the FDF file first, then
// the request's direct values layered over it.
func (s *Service) loadData(req FormFillFileRequest) (*fdf.Data, error) {
	data := &fdf.Data{
		Values:  make(map[string]string),
		Buttons: make(map[string]string),
	}
	if req.DataPath != "" {
		raw, err := os.ReadFile(req.DataPath)
		if err != nil {
			return nil, pdferrors.Resource("read form data", err)
		}
		parsed, err := fdf.Parse(raw)
		if err != nil {
			return nil, err
		}
		data = parsed
	}
	for name, value := range req.Values {
		data.Values[name] = value
	}
	for name, state := range req.Buttons {
		data.Buttons[name] = state
	}
	return data, nil
}

// loadAndParse runs the native read path for the inspection operations.
func (s *Service) loadAndParse(path string) (*document.Document, *parser.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, pdferrors.Resource("read document", err)
	}
	doc := document.New()
	if err := doc.Load(raw); err != nil {
		return nil, nil, err
	}
	res, err := parser.Parse(doc, s.opts.XRef)
	if err != nil {
		return nil, nil, err
	}
	return doc, res, nil
}

// fallbackFill delegates one fill to the selected engine. The engine
// writes a complete file; stream and string modes read it back for
// delivery.
func (s *Service) fallbackFill(req FormFillFileRequest, data *fdf.Data) (*FormFillFileResult, error) {
	if req.Flatten && !s.engine.Capabilities().Flatten {
		return nil, pdferrors.Unsupported("fill form", "flattening requires an external toolkit")
	}

	outputPath := req.OutputPath
	cleanup := func() {}
	if req.Output != OutputFile {
		tmp, err := os.CreateTemp("", "formfill-*.pdf")
		if err != nil {
			return nil, pdferrors.Resource("fill form", err)
		}
		if err := tmp.Close(); err != nil {
			return nil, pdferrors.Resource("fill form", err)
		}
		outputPath = tmp.Name()
		cleanup = func() {
			_ = os.Remove(outputPath)
		}
	}
	defer cleanup()

	_, err := s.engine.Fill(toolkit.FillRequest{
		PDFPath:    req.Path,
		Data:       data,
		OutputPath: outputPath,
	})
	if err != nil {
		return nil, err
	}

	set := make([]string, 0, len(data.Values)+len(data.Buttons))
	for name := range data.Values {
		set = append(set, name)
	}
	for name := range data.Buttons {
		set = append(set, name)
	}

	result := &FormFillFileResult{
		Path:      req.Path,
		FieldsSet: set,
		Engine:    s.engine.Name(),
	}
	if req.Output == OutputFile {
		result.OutputPath = outputPath
		return result, nil
	}

	filled, err := os.ReadFile(outputPath)
	if err != nil {
		return nil, pdferrors.Resource("fill form", err)
	}
	if err := deliver(req, filled, result); err != nil {
		return nil, err
	}
	return result, nil
}

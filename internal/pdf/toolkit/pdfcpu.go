package toolkit

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/fdf"
)

// PdfcpuEngine rewrites the document through pdfcpu's full object model.
// It handles the structural layouts the line editor refuses (object
// streams, linearization, incremental updates) at the cost of a complete
// rewrite of the file.
type PdfcpuEngine struct{}

// Name identifies the engine in results and logs.
func (e *PdfcpuEngine) Name() string { return "pdfcpu" }

// Capabilities of the in-process rewrite path. Flattening is not
// offered; values are written with NeedAppearances set instead.
func (e *PdfcpuEngine) Capabilities() Capabilities {
	return Capabilities{
		Encryption:         true,
		Linearized:         true,
		ObjectStreams:      true,
		IncrementalUpdates: true,
	}
}

// Fill loads the document, walks the AcroForm field tree, assigns the
// requested values and writes the result out.
func (e *PdfcpuEngine) Fill(req FillRequest) (*Result, error) {
	data := req.Data
	if data == nil && req.DataPath != "" {
		raw, err := os.ReadFile(req.DataPath)
		if err != nil {
			return nil, pdferrors.Resource("read form data", err)
		}
		data, err = fdf.Parse(raw)
		if err != nil {
			return nil, err
		}
	}
	if data == nil {
		data = &fdf.Data{Values: map[string]string{}, Buttons: map[string]string{}}
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	file, err := os.Open(req.PDFPath)
	if err != nil {
		return nil, pdferrors.Resource("open document", err)
	}
	defer file.Close()

	ctx, err := api.ReadContext(file, conf)
	if err != nil {
		return nil, pdferrors.Toolkit("pdfcpu read", err.Error(), err)
	}
	if err := ctx.EnsurePageCount(); err != nil {
		return nil, pdferrors.Toolkit("pdfcpu read", err.Error(), err)
	}

	rootDict, err := ctx.Catalog()
	if err != nil {
		return nil, pdferrors.Toolkit("pdfcpu fill", err.Error(), err)
	}
	acroFormObj, found := rootDict.Find("AcroForm")
	if !found {
		return nil, pdferrors.Unsupported("pdfcpu fill", "document has no form")
	}
	acroFormDict, err := ctx.DereferenceDict(acroFormObj)
	if err != nil || acroFormDict == nil {
		return nil, pdferrors.Toolkit("pdfcpu fill", "cannot resolve AcroForm dictionary", err)
	}
	fieldsObj, found := acroFormDict.Find("Fields")
	if !found {
		return nil, pdferrors.Unsupported("pdfcpu fill", "form has no fields")
	}
	fieldsArray, err := ctx.DereferenceArray(fieldsObj)
	if err != nil {
		return nil, pdferrors.Toolkit("pdfcpu fill", "cannot resolve field array", err)
	}

	set := 0
	for _, fieldRef := range fieldsArray {
		n, err := e.fillField(ctx, fieldRef, "", data)
		if err != nil {
			continue
		}
		set += n
	}
	if set > 0 {
		acroFormDict["NeedAppearances"] = types.Boolean(true)
	}

	outputPath := req.OutputPath
	if outputPath == "" {
		outputPath = derivedOutputPath(req.PDFPath)
	}
	if err := api.WriteContextFile(ctx, outputPath); err != nil {
		return nil, pdferrors.Toolkit("pdfcpu write", err.Error(), err)
	}
	return &Result{Success: true, Output: outputPath}, nil
}

// fillField assigns a value to one field dictionary and recurses into
// its kids, carrying the dotted name prefix down the tree.
func (e *PdfcpuEngine) fillField(ctx *model.Context, fieldObj types.Object, prefix string, data *fdf.Data) (int, error) {
	fieldDict, err := ctx.DereferenceDict(fieldObj)
	if err != nil || fieldDict == nil {
		return 0, err
	}

	name := prefix
	if nameObj, found := fieldDict.Find("T"); found {
		if partial, err := ctx.DereferenceStringOrHexLiteral(nameObj, model.V10, nil); err == nil {
			if name != "" {
				name = fmt.Sprintf("%s.%s", name, partial)
			} else {
				name = partial
			}
		}
	}

	set := 0
	if value, ok := data.Values[name]; ok {
		fieldDict["V"] = types.StringLiteral(value)
		delete(fieldDict, "AP")
		set++
	}
	if state, ok := data.Buttons[name]; ok {
		fieldDict["V"] = types.Name(state)
		fieldDict["AS"] = types.Name(state)
		set++
	}

	if kidsObj, found := fieldDict.Find("Kids"); found {
		if kids, err := ctx.DereferenceArray(kidsObj); err == nil {
			for _, kid := range kids {
				n, err := e.fillField(ctx, kid, name, data)
				if err != nil {
					continue
				}
				set += n
			}
		}
	}
	return set, nil
}

package pdf

import (
	"fmt"
	"os"
	"path/filepath"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
)

// deliver routes the filled document to its destination and fills the
// delivery half of the result. The document bytes are complete before
// this point; delivery never mutates them.
func deliver(req FormFillFileRequest, data []byte, result *FormFillFileResult) error {
	switch req.Output {
	case OutputString:
		result.Output = data
		return nil

	case OutputFile:
		if req.OutputPath == "" {
			return pdferrors.Resource("deliver document", fmt.Errorf("output path required for file mode"))
		}
		if err := writeFileAtomic(req.OutputPath, data); err != nil {
			return pdferrors.Resource("deliver document", err)
		}
		result.OutputPath = req.OutputPath
		return nil

	case OutputInline, OutputDownload:
		if req.Sink == nil {
			return pdferrors.Resource("deliver document", fmt.Errorf("sink required for stream modes"))
		}
		disposition := "inline"
		if req.Output == OutputDownload {
			disposition = fmt.Sprintf("attachment; filename=%q", filepath.Base(req.Path))
		}
		if _, err := req.Sink.Write(data); err != nil {
			return pdferrors.Resource("deliver document", err)
		}
		result.Disposition = disposition
		return nil

	default:
		return pdferrors.Resource("deliver document", fmt.Errorf("unknown output mode %q", req.Output))
	}
}

// writeFileAtomic writes through a sibling temp file and renames, so a
// failed write never leaves a truncated document at the target path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".formfill-*")
	if err != nil {
		return err
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

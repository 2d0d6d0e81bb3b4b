package writer

import (
	"fmt"
	"regexp"
	"strings"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
)

// Appearance regeneration contract: plain single-line left-aligned text,
// painted with the field's /DA operators (or a Helvetica 10pt default) at
// a fixed 2,2 inset. Multi-line wrapping, quadding and font metrics are
// known limitations; readers honoring /NeedAppearances will do better.

const defaultDA = "/Helv 10 Tf 0 g"

var lengthPattern = regexp.MustCompile(`/Length\s+\d+`)

// regenerateAppearance rewrites the /AP /N stream of a text field so the
// new value is visible without a full appearance rebuild. The stream
// object's byte delta is recorded like any other edit.
func (w *Writer) regenerateAppearance(objectID int, value, da string) error {
	start, ok := w.doc.Position(objectID)
	if !ok {
		return pdferrors.Inconsistency("regenerate appearance", objectID, "appearance object position unknown")
	}
	if da == "" {
		da = defaultDA
	}
	content := fmt.Sprintf("/Tx BMC q BT %s 2 2 Td (%s) Tj ET Q EMC", da, EscapeString(value))

	streamLine, endLine := -1, -1
	for i := start; i < w.doc.LineCount(); i++ {
		trimmed := strings.TrimSpace(w.doc.Entry(i))
		if trimmed == "stream" || strings.HasSuffix(trimmed, " stream") {
			streamLine = i
			continue
		}
		if trimmed == "endstream" {
			endLine = i
			break
		}
		if trimmed == "endobj" {
			break
		}
	}
	if streamLine < 0 || endLine <= streamLine {
		return pdferrors.Inconsistency("regenerate appearance", objectID, "stream delimiters not found")
	}

	// Replace the stream body, blank-padding so the line count stays
	// stable: the document model tracks objects by line index.
	newLength := len(content)
	for i := streamLine + 1; i < endLine; i++ {
		replacement := ""
		if i == streamLine+1 {
			replacement = content
		} else {
			newLength++ // each padding line keeps its newline byte
		}
		old := w.doc.Entry(i)
		w.doc.SetEntry(i, replacement)
		w.doc.RecordShift(i, int64(len(replacement)-len(old)))
	}

	// Fix /Length in the stream dictionary to match the new body.
	for i := start; i < streamLine; i++ {
		line := w.doc.Entry(i)
		if loc := lengthPattern.FindStringIndex(line); loc != nil {
			updated := line[:loc[0]] + fmt.Sprintf("/Length %d", newLength) + line[loc[1]:]
			w.doc.SetEntry(i, updated)
			w.doc.RecordShift(i, int64(len(updated)-len(line)))
			return nil
		}
	}
	return pdferrors.Inconsistency("regenerate appearance", objectID, "stream /Length entry not found")
}

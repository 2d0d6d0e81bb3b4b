// Package writer patches field values into the document model and keeps
// the shift bookkeeping consistent: every edit records its byte-length
// delta against all objects positioned after it, so the cross-reference
// rebuild can recompute correct offsets in one pass afterwards.
package writer

import (
	"encoding/hex"
	"fmt"
	"log"
	"regexp"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/docuflow/formfill/internal/pdf/document"
	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/parser"
)

var (
	valuePattern = regexp.MustCompile(`/V\s*(\((?:\\.|[^\\()])*\)|<[0-9A-Fa-f\s]*>|/[^\s/<>\[\]()]+)`)
	statePattern = regexp.MustCompile(`/AS\s*/[^\s/<>\[\]()]+`)
)

// Writer applies field edits to one document. All writes for one output
// must complete before the cross-reference table is rebuilt; the writer
// itself never touches the table.
type Writer struct {
	doc        *document.Document
	fields     map[string]parser.Field
	acroFormID int

	appearancesFlagged bool
}

// New builds a writer over the parsed fields of doc. acroFormID may be
// zero when the document has no AcroForm dictionary object.
func New(doc *document.Document, fields []parser.Field, acroFormID int) *Writer {
	byName := make(map[string]parser.Field, len(fields))
	for _, f := range fields {
		byName[f.Name()] = f
	}
	return &Writer{doc: doc, fields: byName, acroFormID: acroFormID}
}

// SetFieldValue resolves the field by normalized name and replaces its
// value bytes. An unknown name returns a FieldNotFound error the caller
// is expected to tolerate.
func (w *Writer) SetFieldValue(name, value string) error {
	f, ok := w.fields[parser.NormalizeName(name)]
	if !ok {
		return pdferrors.FieldNotFound(name)
	}
	switch f := f.(type) {
	case parser.ButtonField:
		return w.setButtonValue(f, value)
	case parser.ChoiceField:
		if err := w.replaceValue(f.ObjectID(), "/V "+EncodeTextString(value)); err != nil {
			return err
		}
		return w.flagNeedAppearances()
	case parser.TextField:
		if err := w.replaceValue(f.ObjectID(), "/V "+EncodeTextString(value)); err != nil {
			return err
		}
		if f.AppearanceID > 0 {
			return w.regenerateAppearance(f.AppearanceID, value, f.DefaultAppearance)
		}
		return w.flagNeedAppearances()
	default:
		return pdferrors.FieldNotFound(name)
	}
}

// Apply writes a whole mapping plus button selections, skipping unknown
// names: partial form data against a different document is an expected
// condition, not a failure.
func (w *Writer) Apply(values, buttons map[string]string) (set, skipped []string) {
	for name, value := range values {
		if err := w.SetFieldValue(name, value); err != nil {
			if pdferrors.IsKind(err, pdferrors.KindFieldNotFound) {
				log.Printf("skipping unknown field %q", name)
				skipped = append(skipped, name)
				continue
			}
			log.Printf("field %q: %v", name, err)
			skipped = append(skipped, name)
			continue
		}
		set = append(set, name)
	}
	for name, value := range buttons {
		if err := w.SetFieldValue(name, value); err != nil {
			skipped = append(skipped, name)
			continue
		}
		set = append(set, name)
	}
	return set, skipped
}

// setButtonValue maps the supplied value onto one of the field's known
// appearance-state names and updates /V and the widget's /AS together.
// An unmapped value falls back to the off state.
func (w *Writer) setButtonValue(f parser.ButtonField, value string) error {
	state := resolveState(value, f.States)
	if err := w.replaceValue(f.ObjectID(), "/V /"+state); err != nil {
		return err
	}
	return w.patchObject(f.ObjectID(), statePattern, "/AS /"+state, false)
}

// resolveState picks the appearance state for a raw button value.
func resolveState(value string, states []string) string {
	normalized := parser.NormalizeName(value)
	for _, s := range states {
		if s == normalized && s != "Off" {
			return s
		}
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		for _, s := range states {
			if s != "Off" {
				return s
			}
		}
	}
	return "Off"
}

// replaceValue swaps the /V entry of an object, inserting one before the
// dictionary close when the object has no value yet.
func (w *Writer) replaceValue(objectID int, newValue string) error {
	return w.patchObject(objectID, valuePattern, newValue, true)
}

// patchObject rewrites the first match of pattern inside the object's
// line span. With insert set, a missing match is added before the final
// dictionary close instead. The byte delta is recorded against every
// object positioned at or after the edited line.
func (w *Writer) patchObject(objectID int, pattern *regexp.Regexp, replacement string, insert bool) error {
	start, ok := w.doc.Position(objectID)
	if !ok {
		return pdferrors.Inconsistency("patch object", objectID, "object position unknown")
	}
	lastDictClose := -1
	for i := start; i < w.doc.LineCount(); i++ {
		line := w.doc.Entry(i)
		if loc := pattern.FindStringIndex(line); loc != nil {
			updated := line[:loc[0]] + replacement + line[loc[1]:]
			w.doc.SetEntry(i, updated)
			w.doc.RecordShift(i, int64(len(updated)-len(line)))
			return nil
		}
		if strings.Contains(line, ">>") {
			lastDictClose = i
		}
		if strings.TrimSpace(line) == "endobj" {
			break
		}
	}
	if !insert {
		return nil
	}
	if lastDictClose < 0 {
		return pdferrors.Inconsistency("patch object", objectID, "dictionary close not found")
	}
	line := w.doc.Entry(lastDictClose)
	idx := strings.LastIndex(line, ">>")
	updated := line[:idx] + replacement + " " + line[idx:]
	w.doc.SetEntry(lastDictClose, updated)
	w.doc.RecordShift(lastDictClose, int64(len(updated)-len(line)))
	return nil
}

// flagNeedAppearances asks conforming readers to regenerate appearances
// for values written without one. Patched at most once per session.
func (w *Writer) flagNeedAppearances() error {
	if w.appearancesFlagged || w.acroFormID == 0 {
		return nil
	}
	start, ok := w.doc.Position(w.acroFormID)
	if !ok {
		return nil
	}
	for i := start; i < w.doc.LineCount(); i++ {
		line := w.doc.Entry(i)
		if strings.Contains(line, "/NeedAppearances") {
			w.appearancesFlagged = true
			return nil
		}
		if strings.TrimSpace(line) == "endobj" {
			break
		}
	}
	w.appearancesFlagged = true
	return w.patchObject(w.acroFormID, regexp.MustCompile(`/NeedAppearances\s+(?:true|false)`), "/NeedAppearances true", true)
}

// EncodeTextString serializes a field value as PDF string bytes: a
// literal string for ASCII content, a BOM-prefixed UTF-16BE hex string
// otherwise.
func EncodeTextString(value string) string {
	ascii := true
	for i := 0; i < len(value); i++ {
		if value[i] > 0x7e {
			ascii = false
			break
		}
	}
	if ascii {
		return "(" + EscapeString(value) + ")"
	}
	enc := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder()
	out, _, err := transform.Bytes(enc, []byte(value))
	if err != nil {
		return "(" + EscapeString(value) + ")"
	}
	return "<" + strings.ToUpper(hex.EncodeToString(out)) + ">"
}

// EscapeString escapes the characters a PDF literal string reserves.
func EscapeString(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '(':
			b.WriteString(`\(`)
		case ')':
			b.WriteString(`\)`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c > 0x7e {
				fmt.Fprintf(&b, `\%03o`, c)
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}

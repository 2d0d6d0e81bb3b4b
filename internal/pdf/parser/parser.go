// Package parser locates the structural landmarks of a loaded document in
// a single forward pass: object start lines, the cross-reference section
// and trailer, the AcroForm field dictionaries, and the document-info
// metadata. It builds no object graph; everything downstream works on line
// indices and byte offsets.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/docuflow/formfill/internal/pdf/document"
	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
	"github.com/docuflow/formfill/internal/pdf/xref"
)

var (
	objStart    = regexp.MustCompile(`^(\d+)\s+(\d+)\s+obj\b`)
	acroFormRef = regexp.MustCompile(`/AcroForm\s+(\d+)\s+\d+\s+R`)
	sizeEntry   = regexp.MustCompile(`/Size\s+(\d+)`)
	rootRef     = regexp.MustCompile(`/Root\s+(\d+)\s+\d+\s+R`)
	infoRef     = regexp.MustCompile(`/Info\s+(\d+)\s+\d+\s+R`)
	infoEntry   = regexp.MustCompile(`/(Title|Author|Subject|Keywords|Creator|Producer)\s*\(((?:\\.|[^\\()])*)\)`)
)

// Trailer carries the handful of trailer keys the pipeline needs.
type Trailer struct {
	Size   int
	RootID int
	InfoID int
}

// Result is everything one parse pass produces.
type Result struct {
	Table      *xref.Table
	Fields     []Field
	Trailer    Trailer
	AcroFormID int
	// Corrected counts table entries repaired during verification.
	Corrected int
}

// object tracks the line span of one indirect object.
type object struct {
	id    int
	start int
	end   int
}

// Parse walks the document once and populates its position and offset
// maps, the cross-reference table, the typed field list and the info
// metadata. cfg decides how offset inconsistencies are handled.
func Parse(doc *document.Document, cfg xref.Config) (*Result, error) {
	if !doc.Loaded() {
		return nil, pdferrors.Unsupported("parse", "document not loaded")
	}

	objects := make(map[int]object)
	var order []int
	xrefLine := -1
	current := -1

	for i := 0; i < doc.LineCount(); i++ {
		line := doc.Entry(i)
		if m := objStart.FindStringSubmatch(line); m != nil {
			id, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, pdferrors.Inconsistency("parse", 0, fmt.Sprintf("bad object number in %q", line))
			}
			doc.SetPosition(id, i)
			objects[id] = object{id: id, start: i, end: -1}
			order = append(order, id)
			current = id
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "endobj" && current >= 0 {
			o := objects[current]
			o.end = i
			objects[current] = o
			current = -1
			continue
		}
		if trimmed == "xref" {
			xrefLine = i
			break
		}
	}
	if xrefLine < 0 {
		return nil, pdferrors.Unsupported("parse", "no cross-reference table found")
	}

	table, trailer, err := parseXRefSection(doc, xrefLine)
	if err != nil {
		return nil, err
	}

	// Declared entry count includes the free-list head at id 0.
	if trailer.Size > 0 && len(objects) != trailer.Size-1 {
		if cfg.Halt {
			return nil, pdferrors.Inconsistency("parse", 0,
				fmt.Sprintf("trailer declares %d objects, found %d", trailer.Size-1, len(objects)))
		}
	}

	corrected, err := table.Verify(doc, cfg)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Table:     table,
		Trailer:   trailer,
		Corrected: corrected,
	}

	bodies := make(map[int]string, len(objects))
	for id, o := range objects {
		bodies[id] = objectBody(doc, o)
	}

	if trailer.RootID > 0 {
		if m := acroFormRef.FindStringSubmatch(bodies[trailer.RootID]); m != nil {
			res.AcroFormID, _ = strconv.Atoi(m[1])
		}
	}
	if trailer.InfoID > 0 {
		for _, m := range infoEntry.FindAllStringSubmatch(bodies[trailer.InfoID], -1) {
			doc.SetMetadata(m[1], decodeLiteral(m[2]))
		}
	}

	res.Fields = extractFields(order, bodies)
	return res, nil
}

// objectBody joins the lines of one object definition, delimiter lines
// included. Bounded scanning only; no dictionary graph is built.
func objectBody(doc *document.Document, o object) string {
	end := o.end
	if end < 0 {
		end = o.start
	}
	var b strings.Builder
	for i := o.start; i <= end && i < doc.LineCount(); i++ {
		if i > o.start {
			b.WriteByte('\n')
		}
		b.WriteString(doc.Entry(i))
	}
	return b.String()
}

// parseXRefSection reads the table entries and trailer that follow the
// xref keyword. Only a single subsection starting at object 0 is within
// the supported structural bounds; anything else implies a layout the
// offset-shift model cannot repair.
func parseXRefSection(doc *document.Document, xrefLine int) (*xref.Table, Trailer, error) {
	var trailer Trailer

	i := xrefLine + 1
	if i >= doc.LineCount() {
		return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0, "truncated xref section")
	}
	header := strings.Fields(doc.Entry(i))
	if len(header) != 2 {
		return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0,
			fmt.Sprintf("invalid subsection header %q", doc.Entry(i)))
	}
	start, err1 := strconv.Atoi(header[0])
	count, err2 := strconv.Atoi(header[1])
	if err1 != nil || err2 != nil {
		return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0,
			fmt.Sprintf("invalid subsection header %q", doc.Entry(i)))
	}
	if start != 0 {
		return nil, trailer, pdferrors.Unsupported("parse cross-reference", "subsection does not start at object 0")
	}

	table := xref.NewTable(count)
	table.HeaderLine = xrefLine
	i++
	for id := 0; id < count; id, i = id+1, i+1 {
		if i >= doc.LineCount() {
			return nil, trailer, pdferrors.Inconsistency("parse cross-reference", id, "truncated xref entries")
		}
		parts := strings.Fields(doc.Entry(i))
		if len(parts) < 3 {
			return nil, trailer, pdferrors.Inconsistency("parse cross-reference", id,
				fmt.Sprintf("malformed entry %q", doc.Entry(i)))
		}
		off, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			return nil, trailer, pdferrors.Inconsistency("parse cross-reference", id, "invalid offset")
		}
		gen, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, trailer, pdferrors.Inconsistency("parse cross-reference", id, "invalid generation")
		}
		table.Entries[id] = xref.Entry{Offset: off, Generation: gen, InUse: parts[2] == "n"}
		if id > 0 && parts[2] == "n" {
			doc.SetOffset(id, off)
		}
	}

	if i >= doc.LineCount() || strings.TrimSpace(doc.Entry(i)) == "" {
		// tolerate a blank line before the trailer keyword
		i++
	}
	if i >= doc.LineCount() || strings.TrimSpace(doc.Entry(i)) != "trailer" {
		if i < doc.LineCount() {
			if next := strings.Fields(doc.Entry(i)); len(next) == 2 {
				return nil, trailer, pdferrors.Unsupported("parse cross-reference", "multiple xref subsections")
			}
		}
		return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0, "trailer keyword not found")
	}

	var dict strings.Builder
	for i++; i < doc.LineCount(); i++ {
		line := doc.Entry(i)
		dict.WriteString(line)
		dict.WriteByte('\n')
		if strings.Contains(line, ">>") {
			break
		}
	}
	content := dict.String()
	if m := sizeEntry.FindStringSubmatch(content); m != nil {
		trailer.Size, _ = strconv.Atoi(m[1])
	}
	table.Size = trailer.Size
	if m := rootRef.FindStringSubmatch(content); m != nil {
		trailer.RootID, _ = strconv.Atoi(m[1])
	}
	if m := infoRef.FindStringSubmatch(content); m != nil {
		trailer.InfoID, _ = strconv.Atoi(m[1])
	}

	for i++; i < doc.LineCount(); i++ {
		if strings.TrimSpace(doc.Entry(i)) == "startxref" {
			if i+1 >= doc.LineCount() {
				return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0, "startxref value missing")
			}
			value, err := strconv.ParseInt(strings.TrimSpace(doc.Entry(i+1)), 10, 64)
			if err != nil {
				return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0, "invalid startxref value")
			}
			table.StartXRef = value
			table.StartXRefLine = i + 1
			return table, trailer, nil
		}
	}
	return nil, trailer, pdferrors.Inconsistency("parse cross-reference", 0, "startxref keyword not found")
}

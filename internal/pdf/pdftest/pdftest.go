// Package pdftest builds small single-revision PDF documents with
// correct cross-reference offsets for use in tests. Offsets are computed
// while assembling, so fixtures stay valid when object bodies change.
package pdftest

import (
	"fmt"
	"strings"
)

// Object is one indirect object: its id and the body lines between the
// obj and endobj keywords.
type Object struct {
	ID   int
	Body []string
}

// File describes a document to assemble.
type File struct {
	// Header lines before the first object. Defaults to a bare %PDF-1.4
	// comment when empty.
	Header []string
	// Objects are emitted in slice order.
	Objects []Object
	// TrailerExtra is appended inside the trailer dictionary, after /Size
	// and /Root.
	TrailerExtra string
	// OffsetTweaks corrupts the emitted table entry for an object id by a
	// byte delta, for repair-path tests.
	OffsetTweaks map[int]int64
}

// Build assembles the file and returns its bytes. The cross-reference
// table holds the true byte offset of every object, adjusted by any
// requested tweak.
func Build(f File) []byte {
	header := f.Header
	if len(header) == 0 {
		header = []string{"%PDF-1.4"}
	}

	var lines []string
	var size int64
	push := func(l string) {
		lines = append(lines, l)
		size += int64(len(l)) + 1
	}

	for _, l := range header {
		push(l)
	}

	maxID := 0
	offsets := make(map[int]int64)
	for _, o := range f.Objects {
		offsets[o.ID] = size
		if o.ID > maxID {
			maxID = o.ID
		}
		push(fmt.Sprintf("%d 0 obj", o.ID))
		for _, l := range o.Body {
			push(l)
		}
		push("endobj")
	}

	xrefOffset := size
	push("xref")
	push(fmt.Sprintf("0 %d", maxID+1))
	push("0000000000 65535 f ")
	for id := 1; id <= maxID; id++ {
		off, ok := offsets[id]
		if !ok {
			push("0000000000 00000 f ")
			continue
		}
		push(fmt.Sprintf("%010d 00000 n ", off+f.OffsetTweaks[id]))
	}
	push("trailer")
	push(fmt.Sprintf("<< /Size %d /Root 1 0 R%s >>", maxID+1, f.TrailerExtra))
	push("startxref")
	push(fmt.Sprintf("%d", xrefOffset))
	lines = append(lines, "%%EOF")

	return []byte(strings.Join(lines, "\n"))
}

// SimpleForm is the baseline fixture: a one-page document with a single
// text field named Name holding the value A.
func SimpleForm() File {
	return File{
		Objects: []Object{
			{ID: 1, Body: []string{"<< /Type /Catalog /Pages 2 0 R /AcroForm 6 0 R >>"}},
			{ID: 2, Body: []string{"<< /Type /Pages /Kids [3 0 R] /Count 1 >>"}},
			{ID: 3, Body: []string{"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Annots [4 0 R] >>"}},
			{ID: 4, Body: []string{"<< /FT /Tx /T (Name) /V (A) /DA (/Helv 10 Tf 0 g) /Subtype /Widget /Rect [100 600 300 620] >>"}},
			{ID: 5, Body: []string{"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"}},
			{ID: 6, Body: []string{"<< /Fields [4 0 R] /DA (/Helv 10 Tf 0 g) >>"}},
		},
	}
}

// WithCheckbox appends a checkbox field named Agree with Yes and Off
// appearance states.
func WithCheckbox(f File) File {
	next := maxID(f) + 1
	f.Objects = append(f.Objects,
		Object{ID: next, Body: []string{
			fmt.Sprintf("<< /FT /Btn /T (Agree) /V /Off /AS /Off /AP << /N << /Yes %d 0 R /Off %d 0 R >> >> >>", next+1, next+2),
		}},
		Object{ID: next + 1, Body: []string{"<< /BBox [0 0 20 20] >>"}},
		Object{ID: next + 2, Body: []string{"<< /BBox [0 0 20 20] >>"}},
	)
	return f
}

// WithChoice appends a choice field named Color with three options.
func WithChoice(f File) File {
	next := maxID(f) + 1
	f.Objects = append(f.Objects, Object{ID: next, Body: []string{
		"<< /FT /Ch /T (Color) /Opt [(Red) (Green) (Blue)] /V (Red) >>",
	}})
	return f
}

// WithAppearanceStream rewires the text field to carry a normal
// appearance stream object, so value edits exercise stream regeneration.
func WithAppearanceStream(f File) File {
	next := maxID(f) + 1
	for i, o := range f.Objects {
		if o.ID == 4 {
			f.Objects[i].Body = []string{
				fmt.Sprintf("<< /FT /Tx /T (Name) /V (A) /DA (/Helv 10 Tf 0 g) /AP << /N %d 0 R >> >>", next),
			}
		}
	}
	content := "/Tx BMC q BT /Helv 10 Tf 0 g 2 2 Td (A) Tj ET Q EMC"
	f.Objects = append(f.Objects, Object{ID: next, Body: []string{
		fmt.Sprintf("<< /Type /XObject /Subtype /Form /BBox [0 0 200 20] /Length %d >>", len(content)),
		"stream",
		content,
		"endstream",
	}})
	return f
}

// WithInfo appends a document-info object and points the trailer at it.
func WithInfo(f File) File {
	next := maxID(f) + 1
	f.Objects = append(f.Objects, Object{ID: next, Body: []string{
		"<< /Title (Order Form) /Author (Accounting) /Producer (formfill) >>",
	}})
	f.TrailerExtra += fmt.Sprintf(" /Info %d 0 R", next)
	return f
}

// WithBadOffset corrupts the table entry of one object by delta bytes.
func WithBadOffset(f File, id int, delta int64) File {
	if f.OffsetTweaks == nil {
		f.OffsetTweaks = make(map[int]int64)
	}
	f.OffsetTweaks[id] = delta
	return f
}

func maxID(f File) int {
	m := 0
	for _, o := range f.Objects {
		if o.ID > m {
			m = o.ID
		}
	}
	return m
}

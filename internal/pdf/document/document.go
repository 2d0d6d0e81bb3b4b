// Package document holds the line-oriented document model the editing
// pipeline works on. It owns storage and derived position queries only;
// parsing lives in the parser package and offset recomputation in xref.
package document

import (
	"sort"
	"strings"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
)

const (
	// headProbeWindow bounds the structural probes that look for object
	// stream and linearization markers near the start of the file.
	headProbeWindow = 2048
	// tailProbeWindow bounds the probe for incremental-update trailer
	// chaining near the end of the file.
	tailProbeWindow = 512
)

// Document is the mutable in-memory representation of one PDF file: the
// raw content split on newline boundaries plus the offset bookkeeping the
// cross-reference rebuild depends on. A Document is owned by a single
// editing session and is not safe for concurrent use.
type Document struct {
	entries     []string
	positions   map[int]int   // object id -> line index of "N G obj"
	offsets     map[int]int64 // object id -> byte offset declared by the source xref
	shifts      map[int]int64 // object id -> cumulative edit delta at or before its position
	globalShift int64
	metadata    map[string]string
	loaded      bool
}

// New returns an empty document ready for Load.
func New() *Document {
	return &Document{
		positions: make(map[int]int),
		offsets:   make(map[int]int64),
		shifts:    make(map[int]int64),
		metadata:  make(map[string]string),
	}
}

// Load stores the raw content and splits it into line entries. The three
// structural probes run first, over bounded windows, so an unsupported
// document is rejected before any state is retained: the offset-shift
// arithmetic in this package is only valid for single-revision,
// non-streamed, non-linearized files.
func (d *Document) Load(raw []byte) error {
	if len(raw) == 0 {
		return pdferrors.Unsupported("load", "empty input")
	}
	content := string(raw)
	if !strings.HasPrefix(content, "%PDF-") {
		return pdferrors.Unsupported("load", "missing %PDF header")
	}

	head := content
	if len(head) > headProbeWindow {
		head = head[:headProbeWindow]
	}
	if strings.Contains(head, "/ObjStm") {
		return pdferrors.Unsupported("load", "document uses object streams")
	}
	if strings.Contains(head, "/Linearized") {
		return pdferrors.Unsupported("load", "document is linearized (fast web view)")
	}

	tail := content
	if len(tail) > tailProbeWindow {
		tail = tail[len(tail)-tailProbeWindow:]
	}
	if strings.Contains(tail, "/Prev") {
		return pdferrors.Unsupported("load", "document carries incremental updates")
	}

	d.entries = strings.Split(content, "\n")
	d.positions = make(map[int]int)
	d.offsets = make(map[int]int64)
	d.shifts = make(map[int]int64)
	d.metadata = make(map[string]string)
	d.globalShift = 0
	d.loaded = true
	return nil
}

// Loaded reports whether Load has succeeded.
func (d *Document) Loaded() bool {
	return d.loaded
}

// LineCount returns the number of line entries.
func (d *Document) LineCount() int {
	return len(d.entries)
}

// Entry returns the line at index i.
func (d *Document) Entry(i int) string {
	return d.entries[i]
}

// SetEntry replaces the line at index i. Shift accounting is the caller's
// responsibility; see RecordShift.
func (d *Document) SetEntry(i int, line string) {
	d.entries[i] = line
}

// Buffer serializes the entries back to a single byte stream. Before any
// edit this reproduces the loaded bytes exactly.
func (d *Document) Buffer() []byte {
	return []byte(strings.Join(d.entries, "\n"))
}

// LineOffset returns the byte offset at which line i starts in the
// serialized buffer, accounting for the newline separator after each
// preceding line.
func (d *Document) LineOffset(i int) int64 {
	var off int64
	for j := 0; j < i && j < len(d.entries); j++ {
		off += int64(len(d.entries[j])) + 1
	}
	return off
}

// SetPosition registers the line index where an object definition begins.
func (d *Document) SetPosition(id, line int) {
	d.positions[id] = line
}

// Position returns the starting line of an object.
func (d *Document) Position(id int) (int, bool) {
	line, ok := d.positions[id]
	return line, ok
}

// ObjectIDs returns all registered object ids in ascending order.
func (d *Document) ObjectIDs() []int {
	ids := make([]int, 0, len(d.positions))
	for id := range d.positions {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// SetOffset records the original byte offset an object was declared at in
// the source cross-reference table.
func (d *Document) SetOffset(id int, offset int64) {
	d.offsets[id] = offset
}

// Offset returns the original declared byte offset of an object.
func (d *Document) Offset(id int) (int64, bool) {
	off, ok := d.offsets[id]
	return off, ok
}

// Shift returns the cumulative byte delta accumulated against an object.
func (d *Document) Shift(id int) int64 {
	return d.shifts[id]
}

// GlobalShift returns the total byte delta applied to the file so far. The
// cross-reference table and the trailer startxref pointer sit after all
// objects, so they move by exactly this amount.
func (d *Document) GlobalShift() int64 {
	return d.globalShift
}

// RecordShift attributes a byte delta introduced at the given line to
// every object positioned at or after it, and to the global shift. Shifts
// only accumulate forward, so for any objects A before B in file order,
// shift(B) >= shift(A) holds after any edit sequence.
func (d *Document) RecordShift(line int, delta int64) {
	if delta == 0 {
		return
	}
	for id, pos := range d.positions {
		if pos >= line {
			d.shifts[id] += delta
		}
	}
	d.globalShift += delta
}

// SetMetadata stores one document-info key.
func (d *Document) SetMetadata(key, value string) {
	d.metadata[key] = value
}

// Metadata returns the document-info mapping. Informational only.
func (d *Document) Metadata() map[string]string {
	return d.metadata
}

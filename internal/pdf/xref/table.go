// Package xref owns the cross-reference table extracted from the trailer
// region and repairs it after edits: every entry's byte offset is
// recomputed from the original offset plus the cumulative shift recorded
// against its object, and the trailer's startxref pointer is moved by the
// global shift.
package xref

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/docuflow/formfill/internal/pdf/document"
	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
)

// Config controls how parsing and rebuilding react to inconsistencies
// between the recorded table and the objects actually found. Behavior is a
// pure function of (document, config); the manager keeps no mode state.
type Config struct {
	// Safe rebuilds the table from discovered object positions instead of
	// surfacing an inconsistency.
	Safe bool
	// Check verifies recorded offsets against discovered positions. Off
	// means the source table is trusted verbatim.
	Check bool
	// Halt makes any inconsistency fatal. Off tolerates and corrects,
	// which is how "fix corrupted file" behaves: Check on, Halt off.
	Halt bool
}

// FixConfig is the repair configuration: inconsistencies are detected and
// silently corrected rather than aborting.
func FixConfig() Config {
	return Config{Safe: true, Check: true, Halt: false}
}

// StrictConfig verifies the table and aborts on the first inconsistency.
func StrictConfig() Config {
	return Config{Check: true, Halt: true}
}

// State tracks the table lifecycle. No transition is reversible; an edit
// after Finalized drops the table back to pending-rebuild.
type State int

const (
	StateUnparsed State = iota
	StateParsed
	StateRebuilt
	StateFinalized
)

// Entry is one cross-reference record: byte offset, generation and the
// in-use flag.
type Entry struct {
	Offset     int64
	Generation int
	InUse      bool
}

// Table is the in-memory cross-reference table plus the line coordinates
// of its on-disk representation inside the document.
type Table struct {
	// Entries is indexed by object id; index 0 is the free-list head.
	Entries []Entry
	// HeaderLine is the line index of the "xref" keyword.
	HeaderLine int
	// StartXRefLine is the line index holding the startxref offset value.
	StartXRefLine int
	// StartXRef is the byte offset of the table as declared by the source
	// trailer.
	StartXRef int64
	// Size is the trailer's declared /Size.
	Size int

	state State
}

// NewTable returns a parsed table with room for size entries.
func NewTable(size int) *Table {
	return &Table{
		Entries: make([]Entry, size),
		state:   StateParsed,
	}
}

// State returns the current lifecycle state.
func (t *Table) State() State {
	return t.state
}

// MarkEdited drops a finalized table back to pending-rebuild.
func (t *Table) MarkEdited() {
	if t.state == StateFinalized {
		t.state = StateRebuilt
	}
}

// Verify compares each in-use entry against the byte offset of the object
// the parser actually discovered, reacting per cfg: in halt mode the first
// mismatch is fatal; in safe mode the recorded offset is replaced by the
// discovered one; otherwise mismatches are tolerated. It returns the
// number of corrected entries. A no-op unless cfg.Check is set.
func (t *Table) Verify(doc *document.Document, cfg Config) (int, error) {
	if !cfg.Check {
		return 0, nil
	}
	corrected := 0
	for id := 1; id < len(t.Entries); id++ {
		if !t.Entries[id].InUse {
			continue
		}
		line, ok := doc.Position(id)
		if !ok {
			if cfg.Halt {
				return corrected, pdferrors.Inconsistency("verify cross-reference", id, "object referenced by table was not found")
			}
			continue
		}
		actual := doc.LineOffset(line)
		if actual == t.Entries[id].Offset {
			continue
		}
		if cfg.Halt {
			return corrected, pdferrors.Inconsistency("verify cross-reference", id,
				fmt.Sprintf("table offset %d does not match discovered offset %d", t.Entries[id].Offset, actual))
		}
		if cfg.Safe {
			t.Entries[id].Offset = actual
			doc.SetOffset(id, actual)
			corrected++
		}
	}
	return corrected, nil
}

// Rebuild recomputes every in-use entry as original offset plus the
// cumulative shift recorded for its object, then writes the table back
// into the document in the fixed-width format the trailer region
// requires. Calling it twice without an intervening edit produces the same
// table both times.
func (t *Table) Rebuild(doc *document.Document) error {
	for id := 1; id < len(t.Entries); id++ {
		if !t.Entries[id].InUse {
			continue
		}
		off, ok := doc.Offset(id)
		if !ok {
			return pdferrors.Inconsistency("rebuild cross-reference", id, "no recorded offset for object")
		}
		t.Entries[id].Offset = off + doc.Shift(id)
	}
	return t.write(doc)
}

// write re-emits the table lines after the xref keyword. Entries are
// fixed-length decimal, newline-terminated: ten-digit offset, five-digit
// generation, in-use flag. The subsection header is rewritten too, so a
// corrected entry count survives the rebuild.
func (t *Table) write(doc *document.Document) error {
	line := t.HeaderLine
	if line < 0 || line >= doc.LineCount() || strings.TrimSpace(doc.Entry(line)) != "xref" {
		return pdferrors.Inconsistency("rebuild cross-reference", 0, "xref keyword not at recorded position")
	}
	doc.SetEntry(line+1, fmt.Sprintf("0 %d", len(t.Entries)))
	for id := 0; id < len(t.Entries); id++ {
		e := t.Entries[id]
		flag := "n"
		if !e.InUse {
			flag = "f"
		}
		doc.SetEntry(line+2+id, fmt.Sprintf("%010d %05d %s ", e.Offset, e.Generation, flag))
	}
	t.state = StateRebuilt
	return nil
}

// UpdateStartXRef re-points the trailer's startxref value: the table
// follows every object in the file, so its own offset moves by exactly the
// global shift.
func (t *Table) UpdateStartXRef(doc *document.Document) error {
	if t.StartXRefLine <= 0 || t.StartXRefLine >= doc.LineCount() {
		return pdferrors.Inconsistency("update startxref", 0, "startxref value line not recorded")
	}
	doc.SetEntry(t.StartXRefLine, strconv.FormatInt(t.StartXRef+doc.GlobalShift(), 10))
	t.state = StateFinalized
	return nil
}

package document

import (
	"bytes"
	"strings"
	"testing"

	pdferrors "github.com/docuflow/formfill/internal/pdf/errors"
)

func buildContent(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n"))
}

func TestLoadRoundTrip(t *testing.T) {
	raw := buildContent(
		"%PDF-1.4",
		"1 0 obj",
		"<< /Type /Catalog >>",
		"endobj",
		"%%EOF",
	)

	doc := New()
	if err := doc.Load(raw); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if !doc.Loaded() {
		t.Fatal("document should report loaded")
	}
	if doc.LineCount() != 5 {
		t.Errorf("expected 5 lines, got %d", doc.LineCount())
	}
	if !bytes.Equal(doc.Buffer(), raw) {
		t.Errorf("buffer does not round-trip:\nin:  %q\nout: %q", raw, doc.Buffer())
	}
}

func TestLoadRejectsUnsupportedStructures(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{
			name: "empty input",
			raw:  nil,
		},
		{
			name: "missing header",
			raw:  buildContent("hello", "world"),
		},
		{
			name: "object streams",
			raw:  buildContent("%PDF-1.5", "1 0 obj", "<< /Type /ObjStm /N 3 >>", "endobj", "%%EOF"),
		},
		{
			name: "linearized",
			raw:  buildContent("%PDF-1.4", "1 0 obj", "<< /Linearized 1 >>", "endobj", "%%EOF"),
		},
		{
			name: "incremental update",
			raw:  buildContent("%PDF-1.4", "1 0 obj", "<< /Type /Catalog >>", "endobj", "trailer", "<< /Size 2 /Prev 417 >>", "%%EOF"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := New()
			err := doc.Load(tt.raw)
			if err == nil {
				t.Fatal("expected load to fail")
			}
			if !pdferrors.IsKind(err, pdferrors.KindStructuralUnsupported) {
				t.Errorf("expected structural unsupported error, got %v", err)
			}
			// A rejected load must leave no partial state behind.
			if doc.Loaded() {
				t.Error("document must not report loaded after rejection")
			}
			if doc.LineCount() != 0 {
				t.Errorf("expected no line entries after rejection, got %d", doc.LineCount())
			}
		})
	}
}

func TestLoadProbesAreBounded(t *testing.T) {
	// A /Prev far from the end of the file is outside the tail probe
	// window and must not trigger rejection.
	filler := strings.Repeat("% padding line with some width to push the marker away\n", 40)
	raw := []byte("%PDF-1.4\n1 0 obj\n<< /Name (/Prev is just text here) >>\nendobj\n" + filler + "%%EOF")
	if len(raw) < tailProbeWindow+100 {
		t.Fatalf("fixture too small to exercise the tail window: %d bytes", len(raw))
	}

	doc := New()
	if err := doc.Load(raw); err != nil {
		t.Fatalf("marker outside probe window must not reject: %v", err)
	}
}

func TestLineOffset(t *testing.T) {
	doc := New()
	if err := doc.Load(buildContent("%PDF-1.4", "1 0 obj", "<< >>", "endobj")); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}

	// "%PDF-1.4\n" is 9 bytes, "1 0 obj\n" is 8 more.
	if got := doc.LineOffset(0); got != 0 {
		t.Errorf("line 0 offset = %d, want 0", got)
	}
	if got := doc.LineOffset(1); got != 9 {
		t.Errorf("line 1 offset = %d, want 9", got)
	}
	if got := doc.LineOffset(2); got != 17 {
		t.Errorf("line 2 offset = %d, want 17", got)
	}
}

func TestRecordShift(t *testing.T) {
	doc := New()
	if err := doc.Load(buildContent(
		"%PDF-1.4",
		"1 0 obj", "<< /V (A) >>", "endobj",
		"2 0 obj", "<< >>", "endobj",
		"3 0 obj", "<< >>", "endobj",
	)); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	doc.SetPosition(1, 1)
	doc.SetPosition(2, 4)
	doc.SetPosition(3, 7)

	// Edit inside object 1's body: objects at or after line 2 move.
	doc.RecordShift(2, 8)
	if got := doc.Shift(1); got != 0 {
		t.Errorf("object 1 shift = %d, want 0", got)
	}
	if got := doc.Shift(2); got != 8 {
		t.Errorf("object 2 shift = %d, want 8", got)
	}
	if got := doc.Shift(3); got != 8 {
		t.Errorf("object 3 shift = %d, want 8", got)
	}
	if got := doc.GlobalShift(); got != 8 {
		t.Errorf("global shift = %d, want 8", got)
	}

	// A second edit further down only moves the later object. Shifts are
	// monotonically non-decreasing in file order.
	doc.RecordShift(5, -3)
	if got := doc.Shift(2); got != 5 {
		t.Errorf("object 2 shift = %d, want 5", got)
	}
	if got := doc.Shift(3); got != 5 {
		t.Errorf("object 3 shift = %d, want 5", got)
	}
	if got := doc.GlobalShift(); got != 5 {
		t.Errorf("global shift = %d, want 5", got)
	}

	// Zero deltas are ignored entirely.
	doc.RecordShift(0, 0)
	if got := doc.GlobalShift(); got != 5 {
		t.Errorf("global shift after zero delta = %d, want 5", got)
	}
}

func TestObjectIDsSorted(t *testing.T) {
	doc := New()
	if err := doc.Load(buildContent("%PDF-1.4", "%%EOF")); err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	doc.SetPosition(3, 10)
	doc.SetPosition(1, 2)
	doc.SetPosition(2, 6)

	ids := doc.ObjectIDs()
	want := []int{1, 2, 3}
	if len(ids) != len(want) {
		t.Fatalf("expected %d ids, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids[%d] = %d, want %d", i, ids[i], want[i])
		}
	}
}

package logbuf

import (
	"fmt"
	"testing"
)

func TestLineSplitting(t *testing.T) {
	t.Parallel()
	b := New(10)

	// Writes arrive in arbitrary chunks; only complete lines become entries.
	fmt.Fprintf(b, "BRIDGE: first")
	if b.Len() != 0 {
		t.Fatal("partial line stored as entry")
	}
	fmt.Fprintf(b, " line\nSELECTOR: second line\n\n  \n")

	got := b.Snapshot()
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2 (blank lines skipped)", len(got))
	}
	if got[0].Msg != "BRIDGE: first line" || got[1].Msg != "SELECTOR: second line" {
		t.Errorf("unexpected entries: %+v", got)
	}
}

func TestRingOverwrite(t *testing.T) {
	t.Parallel()
	b := New(3)
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(b, "line %d\n", i)
	}

	got := b.Snapshot()
	if len(got) != 3 {
		t.Fatalf("entries = %d, want capacity 3", len(got))
	}
	for i, want := range []string{"line 3", "line 4", "line 5"} {
		if got[i].Msg != want {
			t.Errorf("entry %d = %q, want %q (oldest first)", i, got[i].Msg, want)
		}
	}
}

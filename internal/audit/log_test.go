package audit

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestPathPointsAtDatabase(t *testing.T) {
	l := openTestLog(t)

	// Path is what the shell reports in its startup log; it must name the
	// file actually backing the log.
	if got := filepath.Base(l.Path()); got != "audit.db" {
		t.Errorf("Path basename = %q, want audit.db", got)
	}
	if _, err := os.Stat(l.Path()); err != nil {
		t.Errorf("database missing at reported path: %v", err)
	}
}

func TestRecordAndRecent(t *testing.T) {
	l := openTestLog(t)

	l.Record("unauthorized-channel", "surface-1", "bogus-channel", "")
	l.Record("rate-limited", "surface-1", "picker-ready", "cap 100")
	l.Record("unauthorized-outbound", "", "internal-channel", "")

	events, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}

	// Newest first.
	if events[0].Kind != "unauthorized-outbound" {
		t.Errorf("events[0].Kind = %q, want unauthorized-outbound", events[0].Kind)
	}
	if events[2].Kind != "unauthorized-channel" || events[2].Sender != "surface-1" {
		t.Errorf("oldest event = %+v", events[2])
	}
	if events[1].Detail != "cap 100" {
		t.Errorf("detail = %q, want %q", events[1].Detail, "cap 100")
	}
}

func TestRecentLimit(t *testing.T) {
	l := openTestLog(t)

	for i := 0; i < 5; i++ {
		l.Record("rate-limited", "surface-1", "picker-ready", "")
	}
	events, err := l.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestPrune(t *testing.T) {
	l := openTestLog(t)

	l.Record("unauthorized-channel", "surface-1", "x", "")
	l.Record("unauthorized-channel", "surface-2", "y", "")

	// Everything just recorded is older than a cutoff in the future.
	n, err := l.Prune(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned = %d, want 2", n)
	}

	events, err := l.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events after prune = %d, want 0", len(events))
	}
}

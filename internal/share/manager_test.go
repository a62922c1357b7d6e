package share

import (
	"errors"
	"testing"

	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/config"
)

func TestIdleManager(t *testing.T) {
	t.Parallel()
	m := New(nil)

	if st := m.Status(); st.IsActive {
		t.Errorf("idle manager reports active: %+v", st)
	}
	if err := m.HandleAnswer("v=0"); !errors.Is(err, ErrNotActive) {
		t.Errorf("HandleAnswer on idle manager = %v, want ErrNotActive", err)
	}

	// Stop with no session is a no-op.
	m.Stop()
	m.Stop()
}

func TestStartRejectsWindowSource(t *testing.T) {
	t.Parallel()
	m := New(nil)

	// Rejected before any pipeline setup, so no session may appear.
	_, err := m.Start(capture.Source{ID: "window:7", Name: "Editor"}, config.Share{})
	if !errors.Is(err, ErrWindowSource) {
		t.Fatalf("Start(window source) = %v, want ErrWindowSource", err)
	}
	if st := m.Status(); st.IsActive {
		t.Errorf("rejected start left an active session: %+v", st)
	}
}

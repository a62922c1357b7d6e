// Package share runs the native screen-share pipeline using Pion.
// It imports only Pion libraries and stdlib plus the capture source model;
// coupling to the rest of the shell is via the Status callback only.
package share

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/config"
)

// Status describes the current sharing state as reported to surfaces.
type Status struct {
	IsActive   bool   `json:"isActive"`
	SourceID   string `json:"sourceId,omitempty"`
	SourceName string `json:"sourceName,omitempty"`
}

// ErrNotActive is returned by answer handling when no session is running.
var ErrNotActive = errors.New("no active share session")

// ErrWindowSource is returned by Start for window-kind sources. The capture
// driver grabs whole displays; a verified window choice still cannot be
// turned into a stream here.
var ErrWindowSource = errors.New("window sources cannot be captured")

// Manager owns at most one share session at a time. Starting a new session
// tears down the previous one first.
type Manager struct {
	onChange func(Status)

	mu   sync.Mutex
	sess *session
}

type session struct {
	src        capture.Source
	pc         *webrtc.PeerConnection
	closeMedia func()
	stopped    bool
}

// New creates a Manager. onChange is fired after every state transition
// (start, stop, transport failure). May be nil.
func New(onChange func(Status)) *Manager {
	return &Manager{onChange: onChange}
}

// Start begins sharing src and returns the local SDP offer, complete with
// gathered ICE candidates. Any previous session is stopped first.
func (m *Manager) Start(src capture.Source, cfg config.Share) (string, error) {
	if !src.IsScreen() {
		return "", fmt.Errorf("share source %q: %w", src.ID, ErrWindowSource)
	}
	m.Stop()

	pc, closeMedia, err := newSharePC(src, cfg)
	if err != nil {
		return "", fmt.Errorf("open share pipeline: %w", err)
	}

	sess := &session{src: src, pc: pc, closeMedia: closeMedia}

	pc.OnConnectionStateChange(func(st webrtc.PeerConnectionState) {
		log.Printf("SHARE [%s]: connection state %s", src.ID, st)
		if st == webrtc.PeerConnectionStateFailed || st == webrtc.PeerConnectionStateClosed {
			m.stopSession(sess)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		sess.teardown()
		return "", fmt.Errorf("create offer: %w", err)
	}

	// Wait for ICE gathering so the offer carries candidates. Localhost
	// loopback to the webview, so trickle buys nothing.
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		sess.teardown()
		return "", fmt.Errorf("set local description: %w", err)
	}
	<-gathered

	m.mu.Lock()
	m.sess = sess
	m.mu.Unlock()

	log.Printf("SHARE [%s]: session started (%s)", src.ID, src.Name)
	m.notify()
	return pc.LocalDescription().SDP, nil
}

// HandleAnswer applies the remote SDP answer to the active session.
func (m *Manager) HandleAnswer(sdp string) error {
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess == nil {
		return ErrNotActive
	}
	return sess.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
}

// Status returns the current sharing state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || m.sess.stopped {
		return Status{}
	}
	return Status{
		IsActive:   true,
		SourceID:   m.sess.src.ID,
		SourceName: m.sess.src.Name,
	}
}

// Stop tears down the active session. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	sess := m.sess
	m.mu.Unlock()
	if sess != nil {
		m.stopSession(sess)
	}
}

// stopSession stops one specific session. A session that is no longer the
// current one (already replaced by a newer Start) is torn down quietly.
func (m *Manager) stopSession(sess *session) {
	m.mu.Lock()
	if sess.stopped {
		m.mu.Unlock()
		return
	}
	sess.stopped = true
	current := m.sess == sess
	if current {
		m.sess = nil
	}
	m.mu.Unlock()

	sess.teardown()
	log.Printf("SHARE [%s]: session stopped", sess.src.ID)
	if current {
		m.notify()
	}
}

func (s *session) teardown() {
	if s.closeMedia != nil {
		s.closeMedia()
	}
	if err := s.pc.Close(); err != nil {
		log.Printf("SHARE [%s]: close peer connection: %v", s.src.ID, err)
	}
}

func (m *Manager) notify() {
	if m.onChange != nil {
		m.onChange(m.Status())
	}
}

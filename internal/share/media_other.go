//go:build !linux

package share

import (
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/config"
)

func newSharePC(capture.Source, config.Share) (*webrtc.PeerConnection, func(), error) {
	return nil, nil, errors.New("screen capture not supported on this platform")
}

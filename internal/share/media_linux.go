//go:build linux

package share

import (
	"log"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"

	"github.com/0xfcmartins/ms-wrappers/internal/capture"
	"github.com/0xfcmartins/ms-wrappers/internal/config"
)

// newSharePC creates a PeerConnection with a VP8 video track capturing the
// given source via pion/mediadevices (X11 screen driver on Linux).
// Returns the PC and a cleanup func for the capture tracks.
func newSharePC(src capture.Source, cfg config.Share) (*webrtc.PeerConnection, func(), error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, nil, err
	}
	vpxParams.BitRate = cfg.BitRate

	codecSelector := mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
	)

	mediaEngine := &webrtc.MediaEngine{}
	codecSelector.Populate(mediaEngine)

	interceptorRegistry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(mediaEngine, interceptorRegistry); err != nil {
		return nil, nil, err
	}

	// The answering side is the embedded webview over loopback, but ICE still
	// needs time to recover from brief renegotiation stalls.
	se := webrtc.SettingEngine{}
	se.SetICETimeouts(30*time.Second, 120*time.Second, 2*time.Second)

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(mediaEngine),
		webrtc.WithInterceptorRegistry(interceptorRegistry),
		webrtc.WithSettingEngine(se),
	)

	pc, err := api.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, nil, err
	}

	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Codec: codecSelector,
		Video: func(c *mediadevices.MediaTrackConstraints) {
			if src.DisplayID != "" {
				c.DeviceID = prop.StringExact(src.DisplayID)
			}
			if cfg.FrameRate > 0 {
				c.FrameRate = prop.FloatRanged{Ideal: float32(cfg.FrameRate)}
			}
		},
	})
	if err != nil {
		pc.Close()
		return nil, nil, err
	}

	tracks := stream.GetTracks()
	for _, track := range tracks {
		track.OnEnded(func(err error) {
			if err != nil {
				log.Printf("SHARE [%s]: capture track ended: %v", src.ID, err)
			}
		})
		if _, err := pc.AddTransceiverFromTrack(track, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionSendonly,
		}); err != nil {
			for _, t := range tracks {
				t.Close()
			}
			pc.Close()
			return nil, nil, err
		}
	}
	log.Printf("SHARE [%s]: capture started — %d tracks", src.ID, len(tracks))

	closeFn := func() {
		for _, t := range tracks {
			t.Close()
		}
	}
	return pc, closeFn, nil
}

package visualsink

import (
	"fmt"

	"github.com/pion/webrtc/v4"
)

// WebRTCSink writes visualization frames to a WebRTC data channel. The
// engine treats it as an opaque byte sink; it does not negotiate or own the
// PeerConnection, only the already-open DataChannel handed to it by the
// caller's signaling layer.
type WebRTCSink struct {
	dc *webrtc.DataChannel
}

// NewWebRTCSink wraps an already-open data channel. Label is expected to be
// something like "visualization"; the caller is responsible for creating it
// via PeerConnection.CreateDataChannel and waiting for webrtc.DataChannelStateOpen.
func NewWebRTCSink(dc *webrtc.DataChannel) *WebRTCSink {
	return &WebRTCSink{dc: dc}
}

// Write sends frame as one binary WebRTC data channel message.
func (s *WebRTCSink) Write(frame []byte) error {
	if s.dc == nil {
		return fmt.Errorf("visualsink: nil data channel")
	}
	if s.dc.ReadyState() != webrtc.DataChannelStateOpen {
		return nil
	}
	return s.dc.Send(frame)
}

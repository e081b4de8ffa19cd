package transport

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Data channel labels.
const (
	LabelFrames  = "frames"
	LabelControl = "control"
)

// DataChannelTransport carries frames and control messages over WebRTC DataChannels.
type DataChannelTransport struct {
	mu        sync.Mutex
	framesDC  *webrtc.DataChannel
	controlDC *webrtc.DataChannel

	onFrame   func(data []byte)
	onControl func(msg ControlMessage)
}

// NewDataChannelTransport wraps two DataChannels (frames + control). Either may be nil
// and set later when the remote side opens it.
func NewDataChannelTransport(framesDC, controlDC *webrtc.DataChannel) *DataChannelTransport {
	t := &DataChannelTransport{}
	if framesDC != nil {
		t.SetFramesChannel(framesDC)
	}
	if controlDC != nil {
		t.SetControlChannel(controlDC)
	}
	return t
}

func (t *DataChannelTransport) SendFrame(data []byte) error {
	t.mu.Lock()
	dc := t.framesDC
	t.mu.Unlock()
	if dc == nil {
		return fmt.Errorf("frames data channel not set")
	}
	if dc.ReadyState() != webrtc.DataChannelStateOpen {
		return fmt.Errorf("frames data channel %s", dc.ReadyState())
	}
	return dc.Send(data)
}

func (t *DataChannelTransport) SendControl(msg ControlMessage) error {
	t.mu.Lock()
	dc := t.controlDC
	t.mu.Unlock()
	if dc == nil {
		return fmt.Errorf("control data channel not set")
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return dc.SendText(string(data))
}

func (t *DataChannelTransport) OnFrame(cb func(data []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFrame = cb
}

func (t *DataChannelTransport) OnControl(cb func(msg ControlMessage)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onControl = cb
}

// SetFramesChannel sets or replaces the frames DataChannel (used when receiving negotiated channels).
func (t *DataChannelTransport) SetFramesChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.framesDC = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.mu.Lock()
		cb := t.onFrame
		t.mu.Unlock()
		if cb != nil {
			cb(msg.Data)
		}
	})
}

// SetControlChannel sets or replaces the control DataChannel.
func (t *DataChannelTransport) SetControlChannel(dc *webrtc.DataChannel) {
	t.mu.Lock()
	t.controlDC = dc
	t.mu.Unlock()
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		t.dispatchControl(msg.Data)
	})
}

func (t *DataChannelTransport) dispatchControl(data []byte) {
	cm, err := ParseControl(data)
	if err != nil {
		slog.Warn("bad control message", "err", err)
		return
	}
	t.mu.Lock()
	cb := t.onControl
	t.mu.Unlock()
	if cb != nil {
		cb(cm)
	}
}

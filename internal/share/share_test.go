package share

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junsooki/simrec/internal/capture"
	"github.com/junsooki/simrec/internal/config"
	"github.com/junsooki/simrec/internal/encoder"
	"github.com/junsooki/simrec/internal/transport"
)

func newTestHost(stop StopFunc) *Host {
	return NewHost(config.ShareConfig{
		SignalingURL: "ws://127.0.0.1:1",
		HostID:       "simrec-test",
		JPEGQuality:  70,
	}, stop, nil)
}

func TestObserveNeverBlocks(t *testing.T) {
	h := newTestHost(nil)
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))

	start := time.Now()
	for i := 0; i < 1000; i++ {
		h.Observe(capture.Frame{Index: i, Image: img})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, h.frames, 1)
	assert.Equal(t, 1000, h.frameCount)
}

func TestObserveKeepsNewestFrame(t *testing.T) {
	h := newTestHost(nil)
	first := image.NewRGBA(image.Rect(0, 0, 1, 1))
	second := image.NewRGBA(image.Rect(0, 0, 2, 2))

	h.Observe(capture.Frame{Index: 0, Image: first})
	h.Observe(capture.Frame{Index: 1, Image: second})

	assert.Same(t, second, <-h.frames)
}

func TestQuitControlRequestsStop(t *testing.T) {
	var reasons []string
	h := newTestHost(func(reason string) bool {
		reasons = append(reasons, reason)
		return len(reasons) == 1
	})

	h.handleControl(transport.ControlMessage{Type: transport.ControlStatus})
	h.handleControl(transport.ControlMessage{Type: transport.ControlQuit})
	h.handleControl(transport.ControlMessage{Type: transport.ControlQuit, Reason: "done"})

	assert.Equal(t, []string{"remote viewer", "remote viewer: done"}, reasons)
}

func TestStartFailsWithoutServer(t *testing.T) {
	h := newTestHost(nil)
	assert.Error(t, h.Start(context.Background()))
	h.Close()
}

type recordingSink struct {
	mu     sync.Mutex
	frames []*image.RGBA
	status []string
}

func (s *recordingSink) SetFrame(img *image.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, img)
}

func (s *recordingSink) SetStatus(st string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = append(s.status, st)
}

func newTestViewer(sink Sink) *Viewer {
	return NewViewer(config.ViewerConfig{
		SignalingURL: "ws://127.0.0.1:1",
		ViewerID:     "viewer-test",
		HostID:       "simrec-test",
	}, sink, nil)
}

func TestViewerRendersSharedFrames(t *testing.T) {
	sink := &recordingSink{}
	v := newTestViewer(sink)

	src := image.NewRGBA(image.Rect(0, 0, 8, 6))
	data, err := encoder.NewJPEGEncoder(70).Encode(src)
	require.NoError(t, err)

	v.handleFrame(data)
	v.handleFrame([]byte("garbage"))

	require.Len(t, sink.frames, 1)
	assert.Equal(t, image.Rect(0, 0, 8, 6), sink.frames[0].Bounds())
}

func TestViewerStatus(t *testing.T) {
	sink := &recordingSink{}
	v := newTestViewer(sink)

	v.handleControl(transport.ControlMessage{Type: transport.ControlStatus, Frames: 12})
	v.handleControl(transport.ControlMessage{Type: transport.ControlQuit})

	assert.Equal(t, []string{"REC 12 frames  [Q] stop"}, sink.status)
}

func TestViewerStopWithoutPeer(t *testing.T) {
	v := newTestViewer(&recordingSink{})
	assert.False(t, v.RequestStop())
	assert.Error(t, v.Start(context.Background()))
	v.Close()
}

type fakePublisher struct {
	frames  [][]byte
	control []transport.ControlMessage
	sendErr error
}

func (f *fakePublisher) SendFrame(data []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakePublisher) SendControl(msg transport.ControlMessage) error {
	f.control = append(f.control, msg)
	return nil
}

func (f *fakePublisher) OnControl(func(transport.ControlMessage)) {}

func TestPublishSendsFrameAndStatus(t *testing.T) {
	h := newTestHost(nil)
	pub := &fakePublisher{}

	h.publish(pub, image.NewRGBA(image.Rect(0, 0, 8, 8)), 5)

	require.Len(t, pub.frames, 1)
	data, err := encoder.FrameDecoder{}.Decode(pub.frames[0])
	require.NoError(t, err)
	assert.Equal(t, 8, data.Bounds().Dx())
	assert.Equal(t, []transport.ControlMessage{{Type: transport.ControlStatus, Frames: 5}}, pub.control)
}

func TestPublishDropsFrameWhenChannelClosed(t *testing.T) {
	h := newTestHost(nil)
	pub := &fakePublisher{sendErr: errors.New("frames data channel closed")}

	h.publish(pub, image.NewRGBA(image.Rect(0, 0, 8, 8)), 1)

	assert.Empty(t, pub.frames)
	assert.Empty(t, pub.control)
}

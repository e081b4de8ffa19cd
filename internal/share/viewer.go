package share

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/junsooki/simrec/internal/config"
	"github.com/junsooki/simrec/internal/encoder"
	"github.com/junsooki/simrec/internal/peer"
	"github.com/junsooki/simrec/internal/signaling"
	"github.com/junsooki/simrec/internal/transport"
)

// Sink receives what the viewer shows.
type Sink interface {
	SetFrame(img *image.RGBA)
	SetStatus(s string)
}

// Viewer watches a Host and can ask it to stop recording.
type Viewer struct {
	cfg  config.ViewerConfig
	sink Sink
	dec  encoder.Decoder
	log  *slog.Logger

	mu   sync.Mutex
	sig  *signaling.Client
	peer *peer.Viewer
}

// NewViewer creates a viewer that renders into sink.
func NewViewer(cfg config.ViewerConfig, sink Sink, log *slog.Logger) *Viewer {
	if log == nil {
		log = slog.Default()
	}
	return &Viewer{
		cfg:  cfg,
		sink: sink,
		dec:  encoder.FrameDecoder{},
		log:  log.With("host", cfg.HostID),
	}
}

// Start registers with the signaling server; the offer goes out once the
// relay acknowledges.
func (v *Viewer) Start(ctx context.Context) error {
	sig := signaling.NewClient(v.cfg.SignalingURL, v.cfg.ViewerID, signaling.RoleViewer, signaling.Handler{
		OnRegistered: v.connect,
		OnAnswer: func(_ string, payload json.RawMessage) {
			if p := v.current(); p != nil {
				if err := p.HandleAnswer(payload); err != nil {
					v.log.Warn("handle answer", "err", err)
				}
			}
		},
		OnICECandidate: func(_ string, payload json.RawMessage) {
			if p := v.current(); p != nil {
				if err := p.HandleICECandidate(payload); err != nil {
					v.log.Warn("handle ICE candidate", "err", err)
				}
			}
		},
		OnError: func(msg string) {
			v.log.Warn("signaling error", "message", msg)
			v.sink.SetStatus("error: " + msg)
		},
	}, v.log)

	v.mu.Lock()
	v.sig = sig
	v.mu.Unlock()
	return sig.Connect(ctx)
}

// RequestStop asks the host to stop recording. It reports false when no
// control channel is open yet.
func (v *Viewer) RequestStop() bool {
	p := v.current()
	if p == nil {
		return false
	}
	if err := p.Transport().SendControl(transport.ControlMessage{Type: transport.ControlQuit}); err != nil {
		v.log.Warn("send stop", "err", err)
		return false
	}
	v.log.Info("stop requested")
	return true
}

// Close disconnects from the host and the relay.
func (v *Viewer) Close() {
	v.mu.Lock()
	p, sig := v.peer, v.sig
	v.peer = nil
	v.mu.Unlock()
	if p != nil {
		p.Close()
	}
	if sig != nil {
		sig.Close()
	}
}

func (v *Viewer) current() *peer.Viewer {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.peer
}

func (v *Viewer) connect() {
	v.mu.Lock()
	sig := v.sig
	v.mu.Unlock()

	p, err := peer.NewViewer(sig, v.cfg.HostID, v.log)
	if err != nil {
		v.log.Error("create viewer peer", "err", err)
		return
	}
	p.Transport().OnFrame(v.handleFrame)
	p.Transport().OnControl(v.handleControl)
	p.OnDisconnect(func() { v.sink.SetStatus("disconnected") })

	v.mu.Lock()
	v.peer = p
	v.mu.Unlock()

	v.sink.SetStatus("connecting to " + v.cfg.HostID)
	if err := p.Connect(); err != nil {
		v.log.Error("send offer", "err", err)
	}
}

func (v *Viewer) handleFrame(data []byte) {
	img, err := v.dec.Decode(data)
	if err != nil {
		v.log.Debug("decode frame", "err", err)
		return
	}
	v.sink.SetFrame(img)
}

func (v *Viewer) handleControl(msg transport.ControlMessage) {
	switch msg.Type {
	case transport.ControlStatus:
		v.sink.SetStatus(statusLine(msg))
	default:
		v.log.Debug("ignoring control message", "type", msg.Type)
	}
}

func statusLine(msg transport.ControlMessage) string {
	if msg.Reason != "" {
		return "stopped: " + msg.Reason
	}
	return fmt.Sprintf("REC %d frames  [Q] stop", msg.Frames)
}

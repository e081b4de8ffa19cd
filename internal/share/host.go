// Package share streams the frames of a running recording to a remote viewer
// and accepts a remote stop request.
package share

import (
	"context"
	"encoding/json"
	"image"
	"log/slog"
	"sync"

	"github.com/junsooki/simrec/internal/capture"
	"github.com/junsooki/simrec/internal/config"
	"github.com/junsooki/simrec/internal/encoder"
	"github.com/junsooki/simrec/internal/peer"
	"github.com/junsooki/simrec/internal/signaling"
	"github.com/junsooki/simrec/internal/transport"
)

// StopFunc requests the recording to stop.
type StopFunc func(reason string) bool

// Host publishes captured frames to whichever viewer last connected.
type Host struct {
	cfg    config.ShareConfig
	stop   StopFunc
	enc    encoder.Encoder
	log    *slog.Logger
	frames chan *image.RGBA
	done   chan struct{}

	mu   sync.Mutex
	sig  *signaling.Client
	peer *peer.Host
	// frameCount is the index+1 of the newest observed frame.
	frameCount int

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHost creates a share host. Nothing is dialed until Start.
func NewHost(cfg config.ShareConfig, stop StopFunc, log *slog.Logger) *Host {
	if log == nil {
		log = slog.Default()
	}
	return &Host{
		cfg:    cfg,
		stop:   stop,
		enc:    encoder.NewJPEGEncoder(cfg.JPEGQuality),
		log:    log.With("share", cfg.HostID),
		frames: make(chan *image.RGBA, 1),
		done:   make(chan struct{}),
	}
}

// Start connects to the signaling server and begins streaming.
func (h *Host) Start(ctx context.Context) error {
	sig := signaling.NewClient(h.cfg.SignalingURL, h.cfg.HostID, signaling.RoleHost, signaling.Handler{
		OnRegistered: func() {
			h.log.Info("live share ready", "host_id", h.cfg.HostID)
		},
		OnOffer:        h.handleOffer,
		OnICECandidate: h.handleCandidate,
		OnError: func(msg string) {
			h.log.Warn("signaling error", "message", msg)
		},
	}, h.log)

	// Offers can arrive as soon as the connection is up.
	h.mu.Lock()
	h.sig = sig
	h.mu.Unlock()
	if err := sig.Connect(ctx); err != nil {
		return err
	}

	h.wg.Add(1)
	go h.streamLoop()
	return nil
}

// Observe is a frame store observer. It never blocks: when the sender is
// busy the previous pending frame is replaced.
func (h *Host) Observe(f capture.Frame) {
	h.mu.Lock()
	h.frameCount = f.Index + 1
	h.mu.Unlock()

	select {
	case h.frames <- f.Image:
		return
	default:
	}
	select {
	case <-h.frames:
	default:
	}
	select {
	case h.frames <- f.Image:
	default:
	}
}

// Close stops streaming and disconnects.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		h.mu.Lock()
		p, sig := h.peer, h.sig
		h.peer = nil
		h.mu.Unlock()
		// The peer's disconnect callback takes h.mu.
		if p != nil {
			p.Close()
		}
		if sig != nil {
			sig.Close()
		}
	})
}

func (h *Host) streamLoop() {
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return
		case img := <-h.frames:
			h.send(img)
		}
	}
}

func (h *Host) send(img *image.RGBA) {
	h.mu.Lock()
	p := h.peer
	count := h.frameCount
	h.mu.Unlock()
	if p == nil {
		return
	}
	h.publish(p.Transport(), img, count)
}

func (h *Host) publish(pub transport.Publisher, img *image.RGBA, count int) {
	data, err := h.enc.Encode(img)
	if err != nil {
		h.log.Warn("encode shared frame", "err", err)
		return
	}
	// A closed or still-connecting channel just drops the frame.
	if err := pub.SendFrame(data); err != nil {
		h.log.Debug("frame not sent", "err", err)
		return
	}
	if err := pub.SendControl(transport.ControlMessage{Type: transport.ControlStatus, Frames: count}); err != nil {
		h.log.Debug("status not sent", "err", err)
	}
}

func (h *Host) handleOffer(from string, payload json.RawMessage) {
	h.log.Info("viewer connecting", "viewer", from)

	h.mu.Lock()
	sig := h.sig
	old := h.peer
	h.peer = nil
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}

	p, err := peer.NewHost(sig, h.log)
	if err != nil {
		h.log.Warn("create host peer", "err", err)
		return
	}
	p.Transport().OnControl(h.handleControl)
	p.OnDisconnect(func() { h.drop(p) })
	if err := p.HandleOffer(from, payload); err != nil {
		h.log.Warn("handle offer", "viewer", from, "err", err)
		p.Close()
		return
	}

	h.mu.Lock()
	h.peer = p
	h.mu.Unlock()
}

// drop forgets p if it is still the current viewer.
func (h *Host) drop(p *peer.Host) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.peer == p {
		h.peer = nil
		h.log.Info("viewer disconnected", "viewer", p.Remote())
	}
}

func (h *Host) handleCandidate(from string, payload json.RawMessage) {
	h.mu.Lock()
	p := h.peer
	h.mu.Unlock()
	if p == nil {
		return
	}
	if err := p.HandleICECandidate(payload); err != nil {
		h.log.Warn("handle ICE candidate", "viewer", from, "err", err)
	}
}

func (h *Host) handleControl(msg transport.ControlMessage) {
	switch msg.Type {
	case transport.ControlQuit:
		reason := "remote viewer"
		if msg.Reason != "" {
			reason = "remote viewer: " + msg.Reason
		}
		if h.stop != nil && h.stop(reason) {
			h.log.Info("stop requested by viewer")
		}
	default:
		h.log.Debug("ignoring control message", "type", msg.Type)
	}
}

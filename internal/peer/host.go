package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/simrec/internal/transport"
)

// Host is the recording side of a live share. It owns the data channels and
// answers one viewer's offer.
type Host struct {
	*link
}

// NewHost creates a Host peer with its frames and control channels.
func NewHost(sig Signaler, log *slog.Logger) (*Host, error) {
	l, err := newLink(sig, "", log)
	if err != nil {
		return nil, err
	}

	// Only the newest frame matters, so frames may be lost or reordered.
	unordered, noRetransmits := false, uint16(0)
	frames, err := l.pc.CreateDataChannel(transport.LabelFrames, &webrtc.DataChannelInit{
		Ordered:        &unordered,
		MaxRetransmits: &noRetransmits,
	})
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("create frames channel: %w", err)
	}
	control, err := l.pc.CreateDataChannel(transport.LabelControl, nil)
	if err != nil {
		l.Close()
		return nil, fmt.Errorf("create control channel: %w", err)
	}

	l.transport = transport.NewDataChannelTransport(frames, control)
	return &Host{link: l}, nil
}

// HandleOffer answers an offer from viewer.
func (h *Host) HandleOffer(viewer string, payload json.RawMessage) error {
	h.setRemote(viewer)
	if err := h.remoteDescription(payload); err != nil {
		return err
	}
	answer, err := h.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	data, err := h.localDescription(answer)
	if err != nil {
		return err
	}
	return h.sig.SendAnswer(viewer, data)
}

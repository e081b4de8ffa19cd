package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/simrec/internal/transport"
)

// bootstrapLabel names a throwaway channel that gives the viewer's offer an
// m=application section, so the host's channels can be negotiated.
const bootstrapLabel = "bootstrap"

// Viewer is the watching side of a live share. It offers, and adopts the
// channels the host opens.
type Viewer struct {
	*link
	host string
}

// NewViewer creates a Viewer peer for host.
func NewViewer(sig Signaler, host string, log *slog.Logger) (*Viewer, error) {
	l, err := newLink(sig, host, log)
	if err != nil {
		return nil, err
	}
	l.transport = transport.NewDataChannelTransport(nil, nil)

	l.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		l.log.Debug("data channel received", "label", dc.Label())
		switch dc.Label() {
		case transport.LabelFrames:
			l.transport.SetFramesChannel(dc)
		case transport.LabelControl:
			l.transport.SetControlChannel(dc)
		}
	})
	return &Viewer{link: l, host: host}, nil
}

// Connect sends an offer to the host.
func (v *Viewer) Connect() error {
	if _, err := v.pc.CreateDataChannel(bootstrapLabel, nil); err != nil {
		return fmt.Errorf("create bootstrap channel: %w", err)
	}
	offer, err := v.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	data, err := v.localDescription(offer)
	if err != nil {
		return err
	}
	return v.sig.SendOffer(v.host, data)
}

// HandleAnswer applies the host's answer.
func (v *Viewer) HandleAnswer(payload json.RawMessage) error {
	return v.remoteDescription(payload)
}

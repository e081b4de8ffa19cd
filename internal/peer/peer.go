// Package peer manages the WebRTC connection between a recording host and a viewer.
package peer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junsooki/simrec/internal/transport"
)

// ICEServers is the default ICE server configuration.
var ICEServers = []webrtc.ICEServer{
	{URLs: []string{"stun:stun.l.google.com:19302", "stun:stun1.l.google.com:19302"}},
}

// Signaler relays session descriptions and candidates to the remote peer.
type Signaler interface {
	SendOffer(target string, payload json.RawMessage) error
	SendAnswer(target string, payload json.RawMessage) error
	SendICECandidate(target string, payload json.RawMessage) error
}

// link is the state shared by both ends: the peer connection, the data
// channel transport and the ID of the remote peer.
type link struct {
	pc        *webrtc.PeerConnection
	sig       Signaler
	transport *transport.DataChannelTransport
	log       *slog.Logger

	mu           sync.Mutex
	remote       string
	onDisconnect func()

	closeOnce sync.Once
}

func newLink(sig Signaler, remote string, log *slog.Logger) (*link, error) {
	if log == nil {
		log = slog.Default()
	}
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: ICEServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	l := &link{
		pc:     pc,
		sig:    sig,
		log:    log,
		remote: remote,
	}

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		l.log.Info("peer connection state", "remote", l.Remote(), "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			l.mu.Lock()
			fn := l.onDisconnect
			l.mu.Unlock()
			if fn != nil {
				fn()
			}
		}
	})

	// Trickle ICE: forward each local candidate once the remote is known.
	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		to := l.Remote()
		if c == nil || to == "" {
			return
		}
		data, err := json.Marshal(c.ToJSON())
		if err != nil {
			l.log.Warn("marshal ICE candidate", "err", err)
			return
		}
		if err := sig.SendICECandidate(to, data); err != nil {
			l.log.Debug("send ICE candidate", "err", err)
		}
	})
	return l, nil
}

// Remote returns the ID of the remote peer, or "" before negotiation.
func (l *link) Remote() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remote
}

func (l *link) setRemote(id string) {
	l.mu.Lock()
	l.remote = id
	l.mu.Unlock()
}

// OnDisconnect registers fn to run when the connection fails or closes.
func (l *link) OnDisconnect(fn func()) {
	l.mu.Lock()
	l.onDisconnect = fn
	l.mu.Unlock()
}

// Transport returns the data channel transport.
func (l *link) Transport() *transport.DataChannelTransport {
	return l.transport
}

// HandleICECandidate adds a remote ICE candidate.
func (l *link) HandleICECandidate(payload json.RawMessage) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(payload, &candidate); err != nil {
		return fmt.Errorf("decode ICE candidate: %w", err)
	}
	return l.pc.AddICECandidate(candidate)
}

// Close shuts down the peer connection. Safe to call more than once.
func (l *link) Close() {
	l.closeOnce.Do(func() {
		if err := l.pc.Close(); err != nil {
			l.log.Debug("close peer connection", "err", err)
		}
	})
}

// localDescription applies desc locally and returns it encoded for signaling.
func (l *link) localDescription(desc webrtc.SessionDescription) (json.RawMessage, error) {
	if err := l.pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local %s: %w", desc.Type, err)
	}
	return json.Marshal(desc)
}

func (l *link) remoteDescription(payload json.RawMessage) error {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(payload, &desc); err != nil {
		return fmt.Errorf("decode session description: %w", err)
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote %s: %w", desc.Type, err)
	}
	return nil
}

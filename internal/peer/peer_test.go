package peer

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	kind    string
	target  string
	payload json.RawMessage
}

type fakeSignaler struct {
	mu   sync.Mutex
	msgs []sent
}

func (f *fakeSignaler) record(kind, target string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{kind, target, payload})
	return nil
}

func (f *fakeSignaler) SendOffer(target string, p json.RawMessage) error {
	return f.record("offer", target, p)
}

func (f *fakeSignaler) SendAnswer(target string, p json.RawMessage) error {
	return f.record("answer", target, p)
}

func (f *fakeSignaler) SendICECandidate(target string, p json.RawMessage) error {
	return f.record("candidate", target, p)
}

func (f *fakeSignaler) first(kind string) (sent, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.msgs {
		if m.kind == kind {
			return m, true
		}
	}
	return sent{}, false
}

func TestViewerOfferIsAnsweredByHost(t *testing.T) {
	viewerSig := &fakeSignaler{}
	v, err := NewViewer(viewerSig, "simrec-host", nil)
	require.NoError(t, err)
	defer v.Close()
	require.NoError(t, v.Connect())

	offer, ok := viewerSig.first("offer")
	require.True(t, ok)
	assert.Equal(t, "simrec-host", offer.target)

	var desc webrtc.SessionDescription
	require.NoError(t, json.Unmarshal(offer.payload, &desc))
	assert.Contains(t, desc.SDP, "m=application")

	hostSig := &fakeSignaler{}
	h, err := NewHost(hostSig, nil)
	require.NoError(t, err)
	defer h.Close()
	require.NoError(t, h.HandleOffer("viewer-1", offer.payload))

	answer, ok := hostSig.first("answer")
	require.True(t, ok)
	assert.Equal(t, "viewer-1", answer.target)
	require.NoError(t, v.HandleAnswer(answer.payload))
}

func TestMalformedPayloads(t *testing.T) {
	h, err := NewHost(&fakeSignaler{}, nil)
	require.NoError(t, err)
	defer h.Close()

	assert.Error(t, h.HandleOffer("viewer-1", json.RawMessage(`not json`)))
	assert.Error(t, h.HandleICECandidate(json.RawMessage(`not json`)))
}

func TestRemoteTracksNegotiation(t *testing.T) {
	h, err := NewHost(&fakeSignaler{}, nil)
	require.NoError(t, err)
	assert.Empty(t, h.Remote())

	v, err := NewViewer(&fakeSignaler{}, "simrec-host", nil)
	require.NoError(t, err)
	defer v.Close()
	assert.Equal(t, "simrec-host", v.Remote())

	closed := make(chan struct{})
	h.OnDisconnect(func() { close(closed) })
	h.Close()
	h.Close()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect callback not called")
	}
}

package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relay answers a register with registered, then echoes an offer back as an answer.
func relay(t *testing.T, got chan<- Message) *httptest.Server {
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var msg Message
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			got <- msg
			switch msg.Type {
			case TypeRegister:
				_ = conn.WriteJSON(Message{Type: TypeRegistered, ID: msg.ID})
			case TypeOffer:
				_ = conn.WriteJSON(Message{Type: TypeAnswer, From: msg.Target, Payload: msg.Payload})
			}
		}
	}))
}

func wsURL(s *httptest.Server) string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func TestClientRegistersAndRoundTrips(t *testing.T) {
	got := make(chan Message, 8)
	srv := relay(t, got)
	defer srv.Close()

	registered := make(chan struct{}, 1)
	answers := make(chan json.RawMessage, 1)
	c := NewClient(wsURL(srv), "simrec-test", RoleHost, Handler{
		OnRegistered: func() { registered <- struct{}{} },
		OnAnswer: func(from string, payload json.RawMessage) {
			assert.Equal(t, "viewer-1", from)
			answers <- payload
		},
	}, nil)
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	reg := <-got
	assert.Equal(t, TypeRegister, reg.Type)
	assert.Equal(t, "simrec-test", reg.ID)
	assert.Equal(t, RoleHost, reg.Role)

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("not registered")
	}
	assert.Equal(t, StateRegistered, c.State())

	require.NoError(t, c.SendOffer("viewer-1", json.RawMessage(`{"sdp":"x"}`)))
	select {
	case payload := <-answers:
		assert.JSONEq(t, `{"sdp":"x"}`, string(payload))
	case <-time.After(2 * time.Second):
		t.Fatal("no answer")
	}
}

func TestSendAfterClose(t *testing.T) {
	srv := relay(t, make(chan Message, 8))
	defer srv.Close()

	c := NewClient(wsURL(srv), "simrec-test", RoleHost, Handler{}, nil)
	require.NoError(t, c.Connect(context.Background()))
	c.Close()
	c.Close()

	assert.Equal(t, StateClosed, c.State())
	assert.ErrorIs(t, c.SendICECandidate("viewer-1", json.RawMessage(`{}`)), ErrNotConnected)
	assert.Error(t, c.Connect(context.Background()))
}

func TestConnectFailure(t *testing.T) {
	c := NewClient("ws://127.0.0.1:1/none", "simrec-test", RoleHost, Handler{}, nil)
	assert.Error(t, c.Connect(context.Background()))
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient("ws://127.0.0.1:1/none", "simrec-test", RoleViewer, Handler{}, nil)
	assert.Error(t, c.Connect(ctx))
}

func TestDispatchError(t *testing.T) {
	var got string
	c := NewClient("ws://unused", "simrec-test", RoleHost, Handler{
		OnError: func(msg string) { got = msg },
	}, nil)
	c.dispatch(Message{Type: TypeError, Error: "host not found"})
	c.dispatch(Message{Type: "unknown"})
	assert.Equal(t, "host not found", got)
}

package transport

import (
	"encoding/json"
	"fmt"
)

// ControlType identifies a control message.
type ControlType string

const (
	// ControlQuit asks the recording host to stop and write its animation.
	ControlQuit ControlType = "quit"
	// ControlStatus reports the host's progress to viewers.
	ControlStatus ControlType = "status"
)

// ControlMessage is the wire format on the control data channel.
type ControlMessage struct {
	Type   ControlType `json:"type"`
	Frames int         `json:"frames,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// ParseControl decodes a control message.
func ParseControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, fmt.Errorf("decode control message: %w", err)
	}
	if msg.Type == "" {
		return ControlMessage{}, fmt.Errorf("control message without type")
	}
	return msg, nil
}

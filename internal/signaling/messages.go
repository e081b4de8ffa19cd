package signaling

import "encoding/json"

// MessageType identifies a signaling envelope.
type MessageType string

const (
	TypeRegister     MessageType = "register"
	TypeRegistered   MessageType = "registered"
	TypeOffer        MessageType = "offer"
	TypeAnswer       MessageType = "answer"
	TypeICECandidate MessageType = "ice-candidate"
	TypeError        MessageType = "error"
)

// Role is the side of a live share a client registers as.
type Role string

const (
	RoleHost   Role = "host"
	RoleViewer Role = "viewer"
)

// Message is the envelope for all signaling messages. The relay fills From
// and routes on Target.
type Message struct {
	Type    MessageType     `json:"type"`
	ID      string          `json:"id,omitempty"`
	Role    Role            `json:"clientType,omitempty"`
	From    string          `json:"from,omitempty"`
	Target  string          `json:"target,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"message,omitempty"`
}

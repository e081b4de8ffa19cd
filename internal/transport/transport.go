package transport

// Publisher is the recording side of a live share link.
type Publisher interface {
	SendFrame(data []byte) error
	SendControl(msg ControlMessage) error
	OnControl(callback func(msg ControlMessage))
}

// Subscriber is the watching side of a live share link.
type Subscriber interface {
	OnFrame(callback func(data []byte))
	OnControl(callback func(msg ControlMessage))
	SendControl(msg ControlMessage) error
}

var (
	_ Publisher  = (*DataChannelTransport)(nil)
	_ Subscriber = (*DataChannelTransport)(nil)
)

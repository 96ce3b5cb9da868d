package chat

// ConnectionStatus is the transport lifecycle position.
type ConnectionStatus int

const (
	Disconnected ConnectionStatus = iota
	Connecting
	Connected
	ConnectionError
)

func (s ConnectionStatus) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case ConnectionError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectionState is a transport status snapshot. Reason is set only when
// Status is ConnectionError.
type ConnectionState struct {
	Status ConnectionStatus
	Reason string
}

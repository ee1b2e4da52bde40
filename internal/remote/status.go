package remote

// Status is the connection state of a remote shell session.
//
// The forward path is disconnected, connecting, authenticating, connected.
// An explicit reconnect moves a connected session through reconnecting back
// to connecting. Failed and disconnected are terminal for a session
// instance; connecting again means building a fresh one.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusAuthenticating
	StatusConnected
	StatusReconnecting
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusAuthenticating:
		return "authenticating"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

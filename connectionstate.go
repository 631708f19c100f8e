package smtpkit

// ConnectionState names where a connection is in the lifecycle spec §3, §4.6
// describes:
//
//	Disconnected → Connected → HandshakeDone → [Authenticated] → Idle
//	Idle → InMail → InRcpt → InData → Idle
//	(any) → Closing → Disconnected
//	(any, on fatal) → Failed
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnected
	StateHandshakeDone
	StateAuthenticated
	StateIdle
	StateInMail
	StateInRcpt
	StateInData
	StateClosing
	StateFailed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateHandshakeDone:
		return "handshake_done"
	case StateAuthenticated:
		return "authenticated"
	case StateIdle:
		return "idle"
	case StateInMail:
		return "in_mail"
	case StateInRcpt:
		return "in_rcpt"
	case StateInData:
		return "in_data"
	case StateClosing:
		return "closing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CanSend reports whether a new transaction may begin from this state: only
// once the handshake (and auth, if configured) has completed and any prior
// transaction has returned to Idle.
func (s ConnectionState) CanSend() bool {
	return s == StateHandshakeDone || s == StateAuthenticated || s == StateIdle
}

// IsTerminal reports whether the connection requires a fresh Connect before
// any further command may be written (spec §8: "no further command is
// written" after a fatal error).
func (s ConnectionState) IsTerminal() bool {
	return s == StateDisconnected || s == StateFailed
}

package smtpkit

// ReusePolicy governs how many message transactions may share one
// connection before QUIT is sent (spec §3, §4.6).
type ReusePolicy struct {
	kind      reuseKind
	remaining int
}

type reuseKind int

const (
	reuseNone reuseKind = iota
	reuseLimited
	reuseUnlimited
)

// NoReuse closes the connection (QUIT) after every message.
func NoReuse() ReusePolicy { return ReusePolicy{kind: reuseNone} }

// ReuseLimited allows up to n messages (n >= 1) on one connection before it
// is closed.
func ReuseLimited(n int) ReusePolicy {
	if n < 1 {
		n = 1
	}
	return ReusePolicy{kind: reuseLimited, remaining: n}
}

// ReuseUnlimited allows an unbounded number of messages on one connection.
func ReuseUnlimited() ReusePolicy { return ReusePolicy{kind: reuseUnlimited} }

// AllowsAnother reports whether another message may be sent on the current
// connection without first closing and reconnecting.
func (p ReusePolicy) AllowsAnother() bool {
	switch p.kind {
	case reuseNone:
		return false
	case reuseLimited:
		return p.remaining > 0
	case reuseUnlimited:
		return true
	default:
		return false
	}
}

// Consume records that one message was just sent, returning the updated
// policy. The reuse counter monotonically decreases for ReuseLimited (or is
// unbounded), per spec §8.
func (p ReusePolicy) Consume() ReusePolicy {
	if p.kind == reuseLimited && p.remaining > 0 {
		p.remaining--
	}
	return p
}

// Remaining returns the number of further messages ReuseLimited allows, 0
// for NoReuse, or -1 for ReuseUnlimited, which has no ceiling.
func (p ReusePolicy) Remaining() int {
	switch p.kind {
	case reuseNone:
		return 0
	case reuseLimited:
		return p.remaining
	default:
		return -1
	}
}

func (p ReusePolicy) String() string {
	switch p.kind {
	case reuseNone:
		return "no-reuse"
	case reuseLimited:
		return "reuse-limited"
	case reuseUnlimited:
		return "reuse-unlimited"
	default:
		return "unknown"
	}
}

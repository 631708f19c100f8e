package smtpkit

import "crypto/tls"

// SecurityMode selects the TLS posture of a connection (spec §3, §4.3, §9).
type SecurityMode int

const (
	// SecurityNone never attempts TLS.
	SecurityNone SecurityMode = iota
	// SecurityOpportunistic upgrades via STARTTLS if the server advertises
	// it, and continues in plaintext otherwise.
	SecurityOpportunistic
	// SecurityRequired upgrades via STARTTLS and fails the connection
	// ([ErrKindTLSRequired]) if the server does not advertise STARTTLS or
	// its 220 reply is not received.
	SecurityRequired
	// SecurityWrapper performs the TLS handshake before the plaintext
	// banner is read ("implicit TLS", historically port 465).
	SecurityWrapper
)

func (m SecurityMode) String() string {
	switch m {
	case SecurityNone:
		return "none"
	case SecurityOpportunistic:
		return "opportunistic"
	case SecurityRequired:
		return "required"
	case SecurityWrapper:
		return "wrapper"
	default:
		return "unknown"
	}
}

// DefaultPort returns the façade's default port for this security mode
// (spec §4.7): 25 for everything except Wrapper, which defaults to 465.
func (m SecurityMode) DefaultPort() int {
	if m == SecurityWrapper {
		return 465
	}
	return 25
}

// Security bundles a SecurityMode with the TLS parameters the caller
// supplies as an opaque configuration (spec §6): supported protocol
// versions, certificate verification mode, and SNI hostname all live in the
// standard library's *tls.Config, which the core treats as a black box.
type Security struct {
	Mode   SecurityMode
	Params *tls.Config
}

// NewSecurity builds a Security value. A nil Params is valid for
// SecurityNone; for the other modes a nil Params means an empty tls.Config
// (system roots, no ServerName). The ServerName is not derived from the
// dial address, so with nil Params the TLS handshake fails: crypto/tls
// requires ServerName or InsecureSkipVerify to be set.
func NewSecurity(mode SecurityMode, params *tls.Config) Security {
	return Security{Mode: mode, Params: params}
}

// RequiresUpfrontTLS reports whether TLS must be established before the
// plaintext banner is read (true only for Wrapper).
func (s Security) RequiresUpfrontTLS() bool {
	return s.Mode == SecurityWrapper
}

// WantsSTARTTLS reports whether the connection should attempt STARTTLS once
// connected (Opportunistic or Required).
func (s Security) WantsSTARTTLS() bool {
	return s.Mode == SecurityOpportunistic || s.Mode == SecurityRequired
}

// MustUpgrade reports whether failing to upgrade via STARTTLS is fatal.
func (s Security) MustUpgrade() bool {
	return s.Mode == SecurityRequired
}

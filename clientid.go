package smtpkit

import (
	"net"
	"strings"
)

// ClientID represents the EHLO/HELO argument (spec §3, §4.8): a
// fully-qualified domain name, a bracketed IPv4 literal ("[192.0.2.1]"), or
// a bracketed IPv6 literal ("[IPv6:2001:db8::1]"). It is used verbatim on
// the wire.
type ClientID struct {
	raw string
}

// DefaultClientID is used when the façade is not configured with one
// (spec §4.7).
var DefaultClientID = ClientID{raw: "localhost"}

// NewClientIDFQDN builds a ClientID from a fully-qualified domain name. The
// name must contain at least one dot (spec §4.8).
func NewClientIDFQDN(fqdn string) (ClientID, error) {
	if fqdn == "" {
		return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: empty client id")
	}
	if !strings.Contains(fqdn, ".") {
		return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: client id FQDN must contain a dot")
	}
	if !isASCII(fqdn) {
		ascii, err := idnaLookup.ToASCII(fqdn)
		if err != nil {
			return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: client id fails IDNA validation")
		}
		return ClientID{raw: ascii}, nil
	}
	return ClientID{raw: fqdn}, nil
}

// NewClientIDIPv4 builds a bracketed IPv4 address-literal ClientID.
func NewClientIDIPv4(addr string) (ClientID, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() == nil {
		return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: invalid IPv4 address")
	}
	return ClientID{raw: "[" + ip.To4().String() + "]"}, nil
}

// NewClientIDIPv6 builds a bracketed IPv6 address-literal ClientID
// ("[IPv6:...]").
func NewClientIDIPv6(addr string) (ClientID, error) {
	ip := net.ParseIP(addr)
	if ip == nil || ip.To4() != nil {
		return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: invalid IPv6 address")
	}
	return ClientID{raw: "[IPv6:" + ip.String() + "]"}, nil
}

// ParseClientID parses a ClientID from its wire form: an FQDN, "[a.b.c.d]",
// or "[IPv6:...]".
func ParseClientID(s string) (ClientID, error) {
	if s == "" {
		return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: empty client id")
	}
	if !strings.HasPrefix(s, "[") {
		return NewClientIDFQDN(s)
	}
	if !strings.HasSuffix(s, "]") {
		return ClientID{}, newError(ErrKindMalformedReply, "smtpkit: unclosed address literal")
	}
	inner := s[1 : len(s)-1]
	if rest, ok := strings.CutPrefix(inner, "IPv6:"); ok {
		return NewClientIDIPv6(rest)
	}
	return NewClientIDIPv4(inner)
}

// String returns the wire form of the client id.
func (c ClientID) String() string {
	if c.raw == "" {
		return DefaultClientID.raw
	}
	return c.raw
}

// IsZero reports whether c was never assigned a value.
func (c ClientID) IsZero() bool { return c.raw == "" }

package smtpkit

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/secure/precis"
)

// idnaLookup validates internationalized domain labels the way a resolving
// mail system would, per RFC 6531 §3.3's reliance on IDNA2008 lookup rules
// for the SMTPUTF8 domain path (spec §4.8, §8.8).
var idnaLookup = idna.Lookup

// maxLocalPartLen is the RFC 5321 §4.5.3.1.1 limit on the local-part.
const maxLocalPartLen = 64

// maxMailboxLen is the RFC 5321 §4.5.3.1.2 limit on a full mailbox address.
const maxMailboxLen = 254

// Mailbox represents an email address as local-part@domain (RFC 5321 §4.1.2).
type Mailbox struct {
	LocalPart string
	Domain    string
}

// String returns the mailbox formatted as "local-part@domain".
func (m Mailbox) String() string {
	if m.LocalPart == "" && m.Domain == "" {
		return ""
	}
	return m.LocalPart + "@" + m.Domain
}

// IsZero reports whether the mailbox is empty.
func (m Mailbox) IsZero() bool {
	return m.LocalPart == "" && m.Domain == ""
}

// ReversePath represents the MAIL FROM path (RFC 5321 §4.1.1.2).
// A zero-value ReversePath represents the null reverse-path (<>) used for
// bounces; callers should prefer constructing it from a nil *Mailbox via
// [Envelope] rather than setting Null directly.
type ReversePath struct {
	Mailbox Mailbox
	Null    bool
}

// String returns the path formatted for the wire protocol (e.g., "<user@domain>" or "<>").
func (rp ReversePath) String() string {
	if rp.Null {
		return "<>"
	}
	return "<" + rp.Mailbox.String() + ">"
}

// ForwardPath represents the RCPT TO path (RFC 5321 §4.1.1.3).
type ForwardPath struct {
	Mailbox Mailbox
}

// String returns the path formatted for the wire protocol (e.g., "<user@domain>").
func (fp ForwardPath) String() string {
	return "<" + fp.Mailbox.String() + ">"
}

// ParseMailbox parses an email address string ("local-part@domain", no
// angle brackets) into a Mailbox. When allowUTF8 is false, the address must
// be pure ASCII (RFC 5321); when true, UTF-8 atext and internationalized
// domain labels are accepted (RFC 6531, SMTPUTF8). A non-ASCII address
// parsed with allowUTF8 false returns an [*Error] of kind
// [ErrKindUnsupportedUTF8].
func ParseMailbox(s string, allowUTF8 bool) (Mailbox, error) {
	if s == "" {
		return Mailbox{}, newError(ErrKindMalformedReply, "smtpkit: empty address")
	}
	if len(s) > maxMailboxLen {
		return Mailbox{}, newError(ErrKindMalformedReply, "smtpkit: address too long")
	}
	if !allowUTF8 && !isASCII(s) {
		return Mailbox{}, &Error{Kind: ErrKindUnsupportedUTF8, Message: "smtpkit: non-ASCII address without SMTPUTF8"}
	}

	at := strings.LastIndexByte(s, '@')
	if at < 0 {
		return Mailbox{}, newError(ErrKindMalformedReply, "smtpkit: missing @ in address")
	}
	if at == 0 {
		return Mailbox{}, newError(ErrKindMalformedReply, "smtpkit: empty local-part")
	}
	if at == len(s)-1 {
		return Mailbox{}, newError(ErrKindMalformedReply, "smtpkit: empty domain")
	}

	local := s[:at]
	domain := s[at+1:]

	if err := validateLocalPart(local, allowUTF8); err != nil {
		return Mailbox{}, err
	}
	if err := validateDomain(domain, allowUTF8); err != nil {
		return Mailbox{}, err
	}

	return Mailbox{LocalPart: local, Domain: domain}, nil
}

// ParseReversePath parses a MAIL FROM path string.
// It accepts "<>" (null reverse-path) or "<local@domain>" or "local@domain".
func ParseReversePath(s string, allowUTF8 bool) (ReversePath, error) {
	s = strings.TrimSpace(s)

	if s == "<>" {
		return ReversePath{Null: true}, nil
	}

	inner := s
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		inner = s[1 : len(s)-1]
	}
	if inner == "" {
		return ReversePath{Null: true}, nil
	}

	m, err := ParseMailbox(inner, allowUTF8)
	if err != nil {
		return ReversePath{}, err
	}
	return ReversePath{Mailbox: m}, nil
}

// ParseForwardPath parses a RCPT TO path string.
// It accepts "<local@domain>" or "local@domain".
func ParseForwardPath(s string, allowUTF8 bool) (ForwardPath, error) {
	s = strings.TrimSpace(s)

	inner := s
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		inner = s[1 : len(s)-1]
	}
	if inner == "" {
		return ForwardPath{}, newError(ErrKindMalformedReply, "smtpkit: empty forward path")
	}

	m, err := ParseMailbox(inner, allowUTF8)
	if err != nil {
		return ForwardPath{}, err
	}
	return ForwardPath{Mailbox: m}, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// validateLocalPart checks the local-part per RFC 5321 §4.1.2.
// Accepts dot-atom and quoted-string forms.
func validateLocalPart(local string, allowUTF8 bool) error {
	if local == "" {
		return newError(ErrKindMalformedReply, "smtpkit: empty local-part")
	}
	if len(local) > maxLocalPartLen {
		return newError(ErrKindMalformedReply, "smtpkit: local-part too long")
	}

	if len(local) >= 2 && local[0] == '"' && local[len(local)-1] == '"' {
		return validateQuotedLocalPart(local[1 : len(local)-1])
	}

	if err := validateDotAtom(local, allowUTF8); err != nil {
		return err
	}

	if allowUTF8 && !isASCII(local) {
		// RFC 6531 §3.3 leaves UTF-8 normalization of the local-part to the
		// application; we run it through PRECIS IdentifierClass the way
		// other internationalized protocols (XMPP, SASLprep's successors)
		// validate free-form identifiers, rejecting local-parts that
		// contain disallowed or unassigned code points.
		if _, err := precis.UsernameCaseMapped.String(local); err != nil {
			return newError(ErrKindUnsupportedUTF8, "smtpkit: local-part fails PRECIS normalization")
		}
	}

	return nil
}

func validateDotAtom(s string, allowUTF8 bool) error {
	if s == "" {
		return newError(ErrKindMalformedReply, "smtpkit: empty dot-atom")
	}
	if s[0] == '.' || s[len(s)-1] == '.' {
		return newError(ErrKindMalformedReply, "smtpkit: dot-atom cannot start or end with a dot")
	}
	if strings.Contains(s, "..") {
		return newError(ErrKindMalformedReply, "smtpkit: dot-atom cannot contain consecutive dots")
	}
	for _, r := range s {
		if !isDotAtomChar(r, allowUTF8) {
			return newError(ErrKindMalformedReply, "smtpkit: invalid character in local-part")
		}
	}
	return nil
}

func isDotAtomChar(r rune, allowUTF8 bool) bool {
	if r == '.' {
		return true
	}
	return isAtext(r, allowUTF8)
}

// isAtext checks for RFC 5321 atext characters, extended to UTF-8 atext
// (RFC 6531 §3.3) when allowUTF8 is set.
func isAtext(r rune, allowUTF8 bool) bool {
	if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
		return true
	}
	switch r {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '/', '=', '?', '^', '_', '`', '{', '|', '}', '~':
		return true
	}
	if allowUTF8 && r > 127 && utf8.ValidRune(r) {
		return true
	}
	return false
}

func validateQuotedLocalPart(s string) error {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' {
			i++
			if i >= len(s) {
				return newError(ErrKindMalformedReply, "smtpkit: trailing backslash in quoted local-part")
			}
			continue
		}
		if c == '"' {
			return newError(ErrKindMalformedReply, "smtpkit: unescaped quote in quoted local-part")
		}
	}
	return nil
}

// validateDomain checks the domain per RFC 5321 §4.1.2.
// Accepts DNS hostnames and IPv4/IPv6 address literals ([...]).
func validateDomain(domain string, allowUTF8 bool) error {
	if domain == "" {
		return newError(ErrKindMalformedReply, "smtpkit: empty domain")
	}
	if len(domain) > 255 {
		return newError(ErrKindMalformedReply, "smtpkit: domain too long")
	}

	if domain[0] == '[' {
		if domain[len(domain)-1] != ']' {
			return newError(ErrKindMalformedReply, "smtpkit: unclosed address literal")
		}
		return nil
	}

	if domain[0] == '.' || domain[len(domain)-1] == '.' {
		return newError(ErrKindMalformedReply, "smtpkit: domain cannot start or end with a dot")
	}

	labels := strings.Split(domain, ".")
	for _, label := range labels {
		if label == "" {
			return newError(ErrKindMalformedReply, "smtpkit: empty label in domain")
		}
		if len(label) > 63 {
			return newError(ErrKindMalformedReply, "smtpkit: domain label too long")
		}
		if !utf8.ValidString(label) {
			return newError(ErrKindMalformedReply, "smtpkit: invalid UTF-8 in domain label")
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return newError(ErrKindMalformedReply, "smtpkit: domain label cannot start or end with hyphen")
		}
		for _, r := range label {
			if !isDomainChar(r, allowUTF8) {
				return newError(ErrKindMalformedReply, "smtpkit: invalid character in domain")
			}
		}
	}

	if allowUTF8 && !isASCII(domain) {
		if _, err := idnaLookup.ToASCII(domain); err != nil {
			return newError(ErrKindUnsupportedUTF8, "smtpkit: domain fails IDNA validation")
		}
	}

	return nil
}

func isDomainChar(r rune, allowUTF8 bool) bool {
	if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
		return true
	}
	if r == '-' {
		return true
	}
	if allowUTF8 && r > 127 {
		return true
	}
	return false
}

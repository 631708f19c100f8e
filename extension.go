package smtpkit

import (
	"strconv"
	"strings"
)

// Extension represents an SMTP service extension keyword (RFC 5321 §2.2).
type Extension string

// Standard SMTP extension keywords recognized by this client (spec §4.4).
const (
	ExtSTARTTLS   Extension = "STARTTLS"
	ExtAUTH       Extension = "AUTH"
	ExtSIZE       Extension = "SIZE"
	ExtPIPELINING Extension = "PIPELINING"
	Ext8BITMIME   Extension = "8BITMIME"
	ExtSMTPUTF8   Extension = "SMTPUTF8"

	// Additional keywords some relays advertise. Retained as raw strings
	// per spec §4.4 ("unknown tokens... do not affect behavior") but named
	// here since they appear often enough to be worth a constant.
	ExtDSN                 Extension = "DSN"
	ExtENHANCEDSTATUSCODES Extension = "ENHANCEDSTATUSCODES"
	ExtCHUNKING            Extension = "CHUNKING"
)

// Extensions holds the set of SMTP extensions advertised in an EHLO response,
// mapped from keyword to parameters (e.g., "AUTH" → "PLAIN LOGIN"). It is
// cleared on connect and repopulated after each successful EHLO (spec §4.4).
type Extensions map[Extension]string

// Has reports whether the extension set includes the given keyword.
func (e Extensions) Has(ext Extension) bool {
	_, ok := e[ext]
	return ok
}

// Param returns the parameter string for the given extension keyword.
func (e Extensions) Param(ext Extension) string {
	return e[ext]
}

// AuthMechanisms returns the SASL mechanism names advertised by the AUTH
// extension, in the order the server listed them.
func (e Extensions) AuthMechanisms() []string {
	param := e[ExtAUTH]
	if param == "" {
		return nil
	}
	return strings.Fields(param)
}

// MaxSize returns the maximum message size in octets advertised via the
// SIZE extension (RFC 1870), or 0 if unadvertised or unlimited.
func (e Extensions) MaxSize() int64 {
	param := e[ExtSIZE]
	if param == "" {
		return 0
	}
	n, err := strconv.ParseInt(strings.TrimSpace(param), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseEHLOResponse parses the lines of a multi-line 250 EHLO response into
// an Extensions map. The first line (the greeting/hostname echo) is skipped;
// every subsequent line is "KEYWORD [params]", matched case-insensitively.
func ParseEHLOResponse(lines []string) Extensions {
	exts := make(Extensions)
	for i, line := range lines {
		if i == 0 {
			continue
		}
		keyword, params, _ := strings.Cut(line, " ")
		if keyword == "" {
			continue
		}
		exts[Extension(strings.ToUpper(keyword))] = params
	}
	return exts
}

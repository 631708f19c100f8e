// Package smtpkit provides the shared protocol types for an SMTP submission
// client (RFC 5321): reply codes, enhanced status codes, error kinds,
// address parsing, client identity, the extension set, SASL authentication,
// and the envelope, security, credentials, and reuse-policy value types
// consumed by [github.com/amousset/smtpkit/smtpclient].
//
// # Reply Codes
//
// [ReplyCode] constants cover the standard SMTP reply codes. [Reply] carries
// a code, an optional [EnhancedCode], and the reply's text lines, and
// classifies itself as positive, transient, or permanent.
//
// # Addresses
//
// [Mailbox], [ReversePath], and [ForwardPath] represent RFC 5321 email
// addresses, including internationalized addresses (RFC 6531) when
// [Extensions] advertises SMTPUTF8. [ClientID] represents the EHLO/HELO
// argument: an FQDN or a bracketed IPv4/IPv6 address literal.
//
// # Authentication
//
// The [SASLMechanism] interface and its implementations ([PlainAuth],
// [LoginAuth], [CramMD5Auth]) provide client-side SASL authentication.
// [SelectMechanism] picks the first mechanism both preferred by the caller
// and advertised by the server.
//
// # Extensions
//
// [Extension] and [Extensions] track the capabilities advertised in an EHLO
// reply. Use [ParseEHLOResponse] to parse a server's EHLO text lines.
//
// # Envelope, security, and reuse
//
// [Envelope] is what the core accepts per send. [Security] selects the TLS
// posture of a connection (none, opportunistic, required, or wrapper-from-
// connect). [ReusePolicy] governs how many transactions may share a single
// connection. [Credentials] holds SASL credentials with a secret that is
// zeroed when the Transport is closed.
package smtpkit

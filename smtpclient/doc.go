// Package smtpclient implements the SMTP submission client (RFC 5321,
// RFC 6409). Client drives a single connection's EHLO/STARTTLS/AUTH/
// MAIL/RCPT/DATA sequence; Transport is the higher-level façade that
// dials, authenticates, sends an envelope, and applies the configured
// connection-reuse policy across repeated Send calls.
package smtpclient

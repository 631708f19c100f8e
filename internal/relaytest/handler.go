// Package relaytest implements a minimal, in-process SMTP relay used only
// by smtpclient's integration tests: enough of RFC 5321/3207/4954 to drive
// Transport and Client through the scenarios a real relay would produce,
// without needing a network-visible MTA in the test suite. It is adapted
// from a production SMTP server's connection/session/handler split, pared
// down to what test doubles need: pluggable accept/reject decisions per
// command instead of real mailbox delivery.
package relaytest

import (
	"context"
	"io"

	"github.com/amousset/smtpkit"
)

// MailHandler decides whether to accept a MAIL FROM.
type MailHandler interface {
	OnMail(ctx context.Context, from smtpkit.ReversePath) error
}

// RcptHandler decides whether to accept one RCPT TO.
type RcptHandler interface {
	OnRcpt(ctx context.Context, to smtpkit.ForwardPath) error
}

// DataHandler receives the de-stuffed message body once DATA completes.
type DataHandler interface {
	OnData(ctx context.Context, from smtpkit.ReversePath, to []smtpkit.ForwardPath, r io.Reader) error
}

// AuthHandler authenticates a client for one mechanism/credential pair.
type AuthHandler interface {
	Authenticate(ctx context.Context, mechanism, username, password string) error
}

// MailHandlerFunc adapts a function to a MailHandler.
type MailHandlerFunc func(ctx context.Context, from smtpkit.ReversePath) error

func (f MailHandlerFunc) OnMail(ctx context.Context, from smtpkit.ReversePath) error { return f(ctx, from) }

// RcptHandlerFunc adapts a function to a RcptHandler.
type RcptHandlerFunc func(ctx context.Context, to smtpkit.ForwardPath) error

func (f RcptHandlerFunc) OnRcpt(ctx context.Context, to smtpkit.ForwardPath) error { return f(ctx, to) }

// DataHandlerFunc adapts a function to a DataHandler.
type DataHandlerFunc func(ctx context.Context, from smtpkit.ReversePath, to []smtpkit.ForwardPath, r io.Reader) error

func (f DataHandlerFunc) OnData(ctx context.Context, from smtpkit.ReversePath, to []smtpkit.ForwardPath, r io.Reader) error {
	return f(ctx, from, to, r)
}

// AuthHandlerFunc adapts a function to an AuthHandler.
type AuthHandlerFunc func(ctx context.Context, mechanism, username, password string) error

func (f AuthHandlerFunc) Authenticate(ctx context.Context, mechanism, username, password string) error {
	return f(ctx, mechanism, username, password)
}

package smtpclient

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/internal/wire"
)

// Client drives a single SMTP connection through the EHLO/STARTTLS/AUTH/
// MAIL/RCPT/DATA sequence (RFC 5321). It holds no connection-reuse policy
// of its own — that is [Transport]'s job; Client just exposes one
// connection's operations and its current [smtpkit.ConnectionState].
type Client struct {
	conn     *wire.Conn
	hostname string
	clientID smtpkit.ClientID
	exts     smtpkit.Extensions
	logger   *slog.Logger
	state    smtpkit.ConnectionState
}

// Dial opens a connection to addr according to security, reads the
// greeting, and negotiates EHLO (falling back to HELO, spec §4.1.1.1). The
// returned Client's State is HandshakeDone on success.
func Dial(ctx context.Context, addr string, clientID smtpkit.ClientID, security smtpkit.Security, logger *slog.Logger, dialer *net.Dialer) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var wc *wire.Conn
	var err error
	if security.RequiresUpfrontTLS() {
		wc, err = wire.DialTLS(ctx, dialer, addr, security.Params)
	} else {
		wc, err = wire.Dial(ctx, dialer, addr)
	}
	if err != nil {
		return nil, &smtpkit.Error{Kind: smtpkit.ErrKindResolution, Message: "smtpkit: dial " + addr, Err: err}
	}

	c := &Client{
		conn:     wc,
		clientID: clientID,
		logger:   logger,
		state:    smtpkit.StateConnected,
	}

	if err := c.readGreeting(); err != nil {
		wc.Shutdown()
		return nil, err
	}

	if err := c.ehlo(ctx); err != nil {
		wc.Shutdown()
		return nil, err
	}

	if !wc.IsTLS() {
		switch {
		case security.WantsSTARTTLS() && c.exts.Has(smtpkit.ExtSTARTTLS):
			if err := c.startTLS(ctx, security.Params); err != nil {
				if security.MustUpgrade() {
					wc.Shutdown()
					msg := fmt.Sprintf("smtpkit: STARTTLS upgrade failed (%s)", smtpkit.EnhancedCodeEncryptRequired)
					return nil, &smtpkit.Error{Kind: smtpkit.ErrKindTLSRequired, Message: msg, Err: err}
				}
				c.logger.Warn("starttls failed, continuing in plaintext", "err", err)
				break
			}
			// RFC 3207 §4.2: extensions must be re-negotiated over the
			// encrypted channel, discarding anything learned in the clear.
			if err := c.ehlo(ctx); err != nil {
				wc.Shutdown()
				return nil, err
			}
		case security.MustUpgrade():
			wc.Shutdown()
			msg := fmt.Sprintf("smtpkit: server does not advertise STARTTLS (%s)", smtpkit.EnhancedCodeEncryptRequired)
			return nil, &smtpkit.Error{Kind: smtpkit.ErrKindTLSRequired, Message: msg}
		}
	}

	c.state = smtpkit.StateHandshakeDone
	return c, nil
}

// NewClient wraps an already-connected net.Conn (e.g. from net.Pipe in a
// test, or a connection accepted by an in-process relay double) as a
// Client, reading the greeting and negotiating EHLO/HELO over it. The
// caller must not have read anything from nc yet.
func NewClient(nc net.Conn, clientID smtpkit.ClientID) (*Client, error) {
	c := &Client{
		conn:     wire.NewConn(nc, false),
		clientID: clientID,
		logger:   slog.Default(),
		state:    smtpkit.StateConnected,
	}
	if err := c.readGreeting(); err != nil {
		return nil, err
	}
	if err := c.ehlo(context.Background()); err != nil {
		return nil, err
	}
	c.state = smtpkit.StateHandshakeDone
	return c, nil
}

func (c *Client) readGreeting() error {
	reply, err := c.conn.ReadReply()
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyServiceReady) {
		return &smtpkit.Error{Kind: smtpkit.ErrKindConnectionRefused, Message: "smtpkit: server refused connection", Reply: toKitReply(reply)}
	}
	if len(reply.Lines) > 0 {
		c.hostname = reply.Lines[0]
	}
	return nil
}

// ehlo sends EHLO, falling back once to HELO if the server doesn't
// recognize it (RFC 5321 §4.1.1.1, spec §4.1.1).
func (c *Client) ehlo(ctx context.Context) error {
	c.applyDeadline(ctx)

	reply, err := c.conn.Cmd(wire.EHLOLine(c.clientID.String()))
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code == int(smtpkit.ReplyOK) {
		c.exts = smtpkit.ParseEHLOResponse(reply.Lines)
		return nil
	}

	if reply.Code == int(smtpkit.ReplySyntaxError) || reply.Code == int(smtpkit.ReplyCommandNotImpl) {
		reply, err = c.conn.Cmd(wire.HELOLine(c.clientID.String()))
		if err != nil {
			return translateWireErr(err)
		}
		if reply.Code != int(smtpkit.ReplyOK) {
			return smtpkit.ErrorFromReply(*toKitReply(reply))
		}
		c.exts = nil
		return nil
	}

	return smtpkit.ErrorFromReply(*toKitReply(reply))
}

// Extensions returns the extensions advertised by the last successful EHLO.
func (c *Client) Extensions() smtpkit.Extensions { return c.exts }

// State returns the connection's current lifecycle state.
func (c *Client) State() smtpkit.ConnectionState { return c.state }

// Hostname returns the server hostname as reported in the greeting's first
// line.
func (c *Client) Hostname() string { return c.hostname }

// IsTLS reports whether the connection is currently running over TLS.
func (c *Client) IsTLS() bool { return c.conn.IsTLS() }

func (c *Client) startTLS(ctx context.Context, cfg *tls.Config) error {
	c.applyDeadline(ctx)

	reply, err := c.conn.Cmd(wire.StartTLSLine())
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyServiceReady) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}

	if cfg == nil {
		cfg = &tls.Config{}
	}
	if err := c.conn.Upgrade(ctx, cfg); err != nil {
		return smtpkit.WrapTLS(err)
	}
	return nil
}

// Mail sends MAIL FROM (RFC 5321 §4.1.1.2, spec §4.1.2). Params are already
// ESMTP-formatted tokens ("SIZE=1234", "SMTPUTF8", ...), built by the
// caller from the extensions it wants to exercise.
func (c *Client) Mail(ctx context.Context, rp smtpkit.ReversePath, params ...string) error {
	c.applyDeadline(ctx)
	c.state = smtpkit.StateInMail

	reply, err := c.conn.Cmd(wire.MailLine(rp.String(), params...))
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyOK) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}
	return nil
}

// Rcpt sends one RCPT TO (RFC 5321 §4.1.1.3, spec §4.1.2). The caller is
// responsible for aggregating per-recipient outcomes across repeated calls
// (spec §7 AllRecipientsRejected).
func (c *Client) Rcpt(ctx context.Context, fp smtpkit.ForwardPath, params ...string) (smtpkit.Reply, error) {
	c.applyDeadline(ctx)
	c.state = smtpkit.StateInRcpt

	reply, err := c.conn.Cmd(wire.RcptLine(fp.String(), params...))
	if err != nil {
		return smtpkit.Reply{}, translateWireErr(err)
	}
	kr := *toKitReply(reply)
	if !kr.IsPositive() {
		return kr, smtpkit.ErrorFromReply(kr)
	}
	return kr, nil
}

// ServerMaxSize returns the SIZE extension's advertised maximum, or 0.
func (c *Client) ServerMaxSize() int64 {
	if c.exts == nil {
		return 0
	}
	return c.exts.MaxSize()
}

// Data sends DATA and streams r as the dot-stuffed, CRLF-normalized message
// body (RFC 5321 §4.1.1.4, spec §4.1.2, §4.3).
func (c *Client) Data(ctx context.Context, r io.Reader) error {
	c.applyDeadline(ctx)
	c.state = smtpkit.StateInData

	reply, err := c.conn.Cmd(wire.DataLine())
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyStartMailInput) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}

	dw := c.conn.DotWriter()
	if _, err := io.Copy(dw, r); err != nil {
		dw.Close()
		return smtpkit.WrapIO(err)
	}
	if err := dw.Close(); err != nil {
		return smtpkit.WrapIO(err)
	}

	reply, err = c.conn.ReadReply()
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyOK) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}
	c.state = smtpkit.StateIdle
	return nil
}

// Auth performs a SASL challenge/response exchange (RFC 4954, spec §4.1.4).
func (c *Client) Auth(ctx context.Context, mech smtpkit.SASLMechanism) error {
	c.applyDeadline(ctx)

	initial, err := mech.Start()
	if err != nil {
		return &smtpkit.Error{Kind: smtpkit.ErrKindAuthProtocolError, Message: "smtpkit: auth start failed", Err: err}
	}

	var reply wire.Reply
	if initial != nil {
		reply, err = c.conn.Cmd(wire.AuthInitialLine(mech.Name(), base64.StdEncoding.EncodeToString(initial)))
	} else {
		reply, err = c.conn.Cmd(wire.AuthInitialLine(mech.Name(), ""))
	}
	if err != nil {
		return translateWireErr(err)
	}

	for {
		switch {
		case reply.Code == int(smtpkit.ReplyAuthOK):
			c.state = smtpkit.StateAuthenticated
			return nil
		case reply.Code == int(smtpkit.ReplyAuthContinue):
			// fall through to challenge handling below
		default:
			if reply.Code == int(smtpkit.ReplyAuthFailed) {
				return &smtpkit.Error{Kind: smtpkit.ErrKindAuthRejected, Message: "smtpkit: authentication rejected", Reply: toKitReply(reply)}
			}
			return &smtpkit.Error{Kind: smtpkit.ErrKindAuthProtocolError, Message: "smtpkit: unexpected reply during auth", Reply: toKitReply(reply)}
		}

		challengeText := ""
		if len(reply.Lines) > 0 {
			challengeText = reply.Lines[0]
		}
		challenge, err := base64.StdEncoding.DecodeString(challengeText)
		if err != nil {
			c.conn.WriteLine("*")
			c.conn.ReadReply()
			return &smtpkit.Error{Kind: smtpkit.ErrKindAuthProtocolError, Message: "smtpkit: malformed base64 challenge", Err: err}
		}

		resp, err := mech.Next(challenge)
		if err != nil {
			c.conn.WriteLine("*")
			c.conn.ReadReply()
			return &smtpkit.Error{Kind: smtpkit.ErrKindAuthProtocolError, Message: "smtpkit: mechanism rejected challenge", Err: err}
		}

		reply, err = c.conn.Cmd(base64.StdEncoding.EncodeToString(resp))
		if err != nil {
			return translateWireErr(err)
		}
	}
}

// Reset sends RSET, aborting any in-progress transaction (RFC 5321 §4.1.1.5).
func (c *Client) Reset(ctx context.Context) error {
	c.applyDeadline(ctx)
	reply, err := c.conn.Cmd(wire.RsetLine())
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyOK) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}
	c.state = smtpkit.StateIdle
	return nil
}

// Noop sends NOOP as a keepalive (RFC 5321 §4.1.1.9).
func (c *Client) Noop(ctx context.Context) error {
	c.applyDeadline(ctx)
	reply, err := c.conn.Cmd(wire.NoopLine())
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyOK) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}
	return nil
}

// Close sends QUIT on a best-effort basis and closes the connection
// (RFC 5321 §4.1.1.10, spec §4.6).
func (c *Client) Close() error {
	c.conn.Cmd(wire.QuitLine())
	c.state = smtpkit.StateClosing
	err := c.conn.Shutdown()
	c.state = smtpkit.StateDisconnected
	return err
}

func (c *Client) applyDeadline(ctx context.Context) {
	if dl, ok := ctx.Deadline(); ok {
		c.conn.SetDeadline(dl)
		return
	}
	c.conn.SetDeadline(time.Time{})
}

func toKitReply(r wire.Reply) *smtpkit.Reply {
	code := smtpkit.ReplyCode(r.Code)
	text := r.Lines
	enhanced := smtpkit.EnhancedCode{}
	if len(text) > 0 {
		cl, su, de, rest := wire.ParseEnhancedCode(text[0])
		if cl != 0 {
			enhanced = smtpkit.EnhancedCode{Class: cl, Subject: su, Detail: de}
			text = append([]string{rest}, text[1:]...)
		}
	}
	if enhanced.IsZero() {
		enhanced = smtpkit.DefaultEnhancedCode(code)
	}
	return &smtpkit.Reply{Code: code, Enhanced: enhanced, Lines: text}
}

func translateWireErr(err error) *smtpkit.Error {
	switch {
	case errors.Is(err, wire.ErrLineTooLong):
		return &smtpkit.Error{Kind: smtpkit.ErrKindLineTooLong, Message: "smtpkit: reply line too long", Err: err}
	case errors.Is(err, wire.ErrMalformedReply):
		return &smtpkit.Error{Kind: smtpkit.ErrKindMalformedReply, Message: "smtpkit: malformed reply", Err: err}
	default:
		return smtpkit.WrapIO(err)
	}
}

// errIsTimeout reports whether err (or anything it wraps) is a network
// timeout, used by Transport to decide whether a failed connect should be
// classified as ErrKindTimeout (spec §5).
func errIsTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

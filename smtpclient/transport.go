package smtpclient

import (
	"context"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/internal/wire"
)

// Transport is the submission façade (spec §4.7): it owns at most one
// logical connection at a time, dialing lazily on the first Send and
// reusing it across subsequent calls according to its ReusePolicy. Like
// Client, it performs no internal locking — the caller must serialize
// calls to Send (spec §5).
type Transport struct {
	addr     string
	clientID smtpkit.ClientID
	security smtpkit.Security
	creds    *smtpkit.Credentials
	authPref []string
	allowUTF8 bool
	reuseCfg smtpkit.ReusePolicy
	timeout  time.Duration
	dialer   *net.Dialer
	logger   *slog.Logger

	client   *Client
	reuse    smtpkit.ReusePolicy
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithHelloName sets the EHLO/HELO client identity (default
// smtpkit.DefaultClientID).
func WithHelloName(id smtpkit.ClientID) TransportOption {
	return func(t *Transport) { t.clientID = id }
}

// WithTransportSecurity sets the TLS posture (default SecurityOpportunistic).
func WithTransportSecurity(s smtpkit.Security) TransportOption {
	return func(t *Transport) { t.security = s }
}

// WithCredentials enables AUTH once connected, trying mechanisms in the
// order given to WithAuthMechanisms (default: PLAIN, LOGIN, CRAM-MD5).
func WithCredentials(creds smtpkit.Credentials) TransportOption {
	return func(t *Transport) { t.creds = &creds }
}

// WithAuthMechanisms overrides the SASL mechanism preference order.
func WithAuthMechanisms(names []string) TransportOption {
	return func(t *Transport) { t.authPref = names }
}

// WithSMTPUTF8Allowed permits non-ASCII addresses, sent with the
// SMTPUTF8 MAIL parameter (RFC 6531).
func WithSMTPUTF8Allowed() TransportOption {
	return func(t *Transport) { t.allowUTF8 = true }
}

// WithConnectionReuse sets the reuse policy across repeated Send calls
// (default NoReuse).
func WithConnectionReuse(p smtpkit.ReusePolicy) TransportOption {
	return func(t *Transport) { t.reuseCfg = p }
}

// WithTransportTimeout sets the timeout that bounds dialing and the
// EHLO/STARTTLS handshake when ctx carries no
// earlier deadline (default 30s). It is not applied to the commands of a
// transaction: those are bounded only by the deadline of the ctx passed to
// Send, and a timeout there is reported as an ErrKindIO error.
func WithTransportTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.timeout = d }
}

// WithTransportDialer sets a custom net.Dialer.
func WithTransportDialer(d *net.Dialer) TransportOption {
	return func(t *Transport) { t.dialer = d }
}

// WithTransportLogger sets the structured logger (default slog.Default()).
func WithTransportLogger(l *slog.Logger) TransportOption {
	return func(t *Transport) { t.logger = l }
}

// NewTransport builds a Transport targeting host:port. If port is omitted,
// it defaults per the chosen Security mode (25, or 465 for Wrapper;
// spec §4.7); apply WithTransportSecurity before relying on the default.
func NewTransport(addr string, opts ...TransportOption) *Transport {
	t := &Transport{
		addr:     addr,
		clientID: smtpkit.DefaultClientID,
		security: smtpkit.NewSecurity(smtpkit.SecurityOpportunistic, nil),
		authPref: []string{"PLAIN", "LOGIN", "CRAM-MD5"},
		reuseCfg: smtpkit.NoReuse(),
		timeout:  30 * time.Second,
		dialer:   &net.Dialer{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if _, _, err := net.SplitHostPort(t.addr); err != nil {
		host := strings.TrimSuffix(strings.TrimPrefix(t.addr, "["), "]")
		t.addr = net.JoinHostPort(host, strconv.Itoa(t.security.Mode.DefaultPort()))
	}
	t.reuse = t.reuseCfg
	return t
}

// Send validates env and delivers it over the current (or a freshly
// dialed) connection. On success it returns a Reply with Code 250 and the
// per-recipient RecipientLog; the text of the server's final DATA reply is
// not included. On
// partial recipient rejection the message is still sent to the accepted
// recipients and Send returns successfully; the caller inspects the
// returned Reply's RecipientLog for the per-address outcome (spec §7). If
// every recipient was rejected, Send returns *smtpkit.Error with
// ErrKindAllRecipientsRejected and the connection remains usable.
func (t *Transport) Send(ctx context.Context, env smtpkit.Envelope) (*smtpkit.Reply, error) {
	if err := env.Validate(t.allowUTF8); err != nil {
		return nil, err
	}

	if t.client == nil {
		if err := t.connect(ctx); err != nil {
			return nil, err
		}
	}

	reply, err := t.send(ctx, env)
	if err != nil {
		if kerr, ok := err.(*smtpkit.Error); ok && kerr.Fatal() {
			t.discard()
		}
		return nil, err
	}

	t.reuse = t.reuse.Consume()
	if !t.reuse.AllowsAnother() {
		t.closeConn()
	}
	return reply, nil
}

// closeConn ends the current connection without touching credentials, used
// when the ReusePolicy's counter is exhausted and a future Send should
// dial fresh rather than reuse AUTH state.
func (t *Transport) closeConn() error {
	if t.client == nil {
		return nil
	}
	err := t.client.Close()
	t.client = nil
	return err
}

func (t *Transport) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	c, err := Dial(dialCtx, t.addr, t.clientID, t.security, t.logger, t.dialer)
	if err != nil {
		if kerr, ok := err.(*smtpkit.Error); ok && errIsTimeout(kerr.Err) {
			return &smtpkit.Error{Kind: smtpkit.ErrKindTimeout, Message: "smtpkit: dial timed out", Err: kerr.Err}
		}
		return err
	}
	t.client = c
	t.reuse = t.reuseCfg
	return nil
}

func (t *Transport) discard() {
	if t.client != nil {
		t.client.conn.Shutdown()
		t.client = nil
	}
}

// Close ends the current connection gracefully (QUIT) if one is open, and
// zeroes any configured credentials (spec §3, §9): call Close only once the
// Transport itself is being discarded, not between reused connections.
func (t *Transport) Close() error {
	if t.creds != nil {
		t.creds.Zero()
	}
	return t.closeConn()
}

func (t *Transport) send(ctx context.Context, env smtpkit.Envelope) (*smtpkit.Reply, error) {
	c := t.client

	// Only a freshly dialed connection is still in HandshakeDone; a reused
	// one already authenticated before its first transaction.
	if t.creds != nil && c.State() == smtpkit.StateHandshakeDone {
		prefs := t.authPref
		for {
			mech, ok := smtpkit.SelectMechanism(c.Extensions(), prefs, t.creds.User, t.creds.Secret())
			if !ok {
				return nil, &smtpkit.Error{Kind: smtpkit.ErrKindAuthNoMechanism, Message: "smtpkit: no common SASL mechanism with server"}
			}
			err := c.Auth(ctx, mech)
			if err == nil {
				break
			}
			// 504: the server does not support this mechanism; try the next one.
			if kerr, ok := err.(*smtpkit.Error); ok && kerr.Reply != nil && kerr.Reply.Code == smtpkit.ReplyParamNotImpl {
				next := make([]string, 0, len(prefs))
				for _, p := range prefs {
					if p != mech.Name() {
						next = append(next, p)
					}
				}
				prefs = next
				continue
			}
			return nil, err
		}
	}

	exts := c.Extensions()
	if t.allowUTF8 && !exts.Has(smtpkit.ExtSMTPUTF8) {
		// Without a negotiated SMTPUTF8, non-ASCII addresses are rejected.
		if err := env.Validate(false); err != nil {
			return nil, err
		}
	}
	mParams := mailParams(t.mailOptions(exts, env))
	rParams := rcptParams(nil)
	recipients := env.ForwardPaths()

	if exts.Has(smtpkit.ExtPIPELINING) {
		return t.sendPipelined(ctx, env, mParams, rParams, recipients)
	}
	return t.sendSequential(ctx, env, mParams, rParams, recipients)
}

// mailOptions derives the MAIL FROM parameters this Transport can offer for
// env, gated on what the server actually negotiated (spec §4.2: "appended
// only if negotiated"): SMTPUTF8 only if both the caller opted in and the
// server advertised it, BODY=8BITMIME only if advertised, SIZE only if the
// server advertised SIZE and env.Body exposes its length.
func (t *Transport) mailOptions(exts smtpkit.Extensions, env smtpkit.Envelope) []MailOption {
	var opts []MailOption
	if t.allowUTF8 && exts.Has(smtpkit.ExtSMTPUTF8) {
		opts = append(opts, WithSMTPUTF8())
	}
	if exts.Has(smtpkit.Ext8BITMIME) {
		opts = append(opts, WithBody("8BITMIME"))
	}
	if exts.Has(smtpkit.ExtSIZE) {
		if sizer, ok := env.Body.(interface{ Len() int }); ok {
			if n := sizer.Len(); n > 0 {
				opts = append(opts, WithSize(int64(n)))
			}
		}
	}
	return opts
}

// rcptParamsPerRecipient repeats rParams for every recipient in a pipelined
// batch (spec has no per-recipient DSN source yet; every RCPT in a Send
// shares the same parameters).
func rcptParamsPerRecipient(rParams []string, n int) [][]string {
	if len(rParams) == 0 {
		return nil
	}
	out := make([][]string, n)
	for i := range out {
		out[i] = rParams
	}
	return out
}

func (t *Transport) sendSequential(ctx context.Context, env smtpkit.Envelope, mailParams, rcptP []string, recipients []smtpkit.ForwardPath) (*smtpkit.Reply, error) {
	c := t.client

	if err := c.Mail(ctx, env.ReversePath(), mailParams...); err != nil {
		return nil, err
	}

	outcomes := make([]smtpkit.RecipientOutcome, len(recipients))
	accepted := 0
	for i, fp := range recipients {
		reply, err := c.Rcpt(ctx, fp, rcptP...)
		ok := err == nil
		if ok {
			accepted++
		}
		outcomes[i] = smtpkit.RecipientOutcome{Recipient: fp.Mailbox, Reply: reply, Accepted: ok}
	}

	if accepted == 0 {
		c.Reset(ctx)
		return nil, smtpkit.ErrAllRecipientsRejected(outcomes)
	}

	if err := c.Data(ctx, env.Body); err != nil {
		return nil, err
	}

	reply := &smtpkit.Reply{Code: smtpkit.ReplyOK, RecipientLog: outcomes}
	return reply, nil
}

func (t *Transport) sendPipelined(ctx context.Context, env smtpkit.Envelope, mailParams, rcptP []string, recipients []smtpkit.ForwardPath) (*smtpkit.Reply, error) {
	c := t.client

	result, err := c.SendPipelined(ctx, env.ReversePath(), mailParams, recipients, rcptParamsPerRecipient(rcptP, len(recipients)))
	if err != nil {
		return nil, err
	}

	if !result.Mail.IsPositive() {
		c.Reset(ctx)
		return nil, smtpkit.ErrorFromReply(result.Mail)
	}

	outcomes := make([]smtpkit.RecipientOutcome, len(recipients))
	accepted := 0
	for i, fp := range recipients {
		ok := result.Rcpt[i].IsPositive()
		if ok {
			accepted++
		}
		outcomes[i] = smtpkit.RecipientOutcome{Recipient: fp.Mailbox, Reply: result.Rcpt[i], Accepted: ok}
	}

	if accepted == 0 || !result.DataOK {
		c.Reset(ctx)
		if accepted == 0 {
			return nil, smtpkit.ErrAllRecipientsRejected(outcomes)
		}
		return nil, smtpkit.ErrorFromReply(result.Data)
	}

	if err := c.StreamBody(ctx, func(w *wire.DotWriter) error {
		_, err := io.Copy(w, env.Body)
		return err
	}); err != nil {
		return nil, err
	}

	return &smtpkit.Reply{Code: smtpkit.ReplyOK, RecipientLog: outcomes}, nil
}

package relaytest

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/internal/wire"
)

type sessionState int

const (
	stateNew sessionState = iota
	stateGreeted
	stateMail
	stateRcpt
)

// session drives one client connection through EHLO/STARTTLS/AUTH/MAIL
// transaction commands, consulting the server's handlers for each
// accept/reject decision a test wants to script.
type session struct {
	server *Server
	conn   *wire.Conn
	state  sessionState

	esmtp         bool
	tls           bool
	authenticated bool

	reversePath  smtpkit.ReversePath
	forwardPaths []smtpkit.ForwardPath
}

func (s *Server) handleConn(nc net.Conn) {
	conn := wire.NewConn(nc, false)
	defer conn.Shutdown()

	if err := conn.WriteLine(fmt.Sprintf("220 %s ESMTP ready", s.hostname)); err != nil {
		return
	}

	sess := &session{server: s, conn: conn, state: stateNew}

	for {
		// sess.conn, not conn: STARTTLS replaces it with the TLS stream.
		line, err := sess.conn.ReadLine(wire.MaxCommandLineLen)
		if err != nil {
			return
		}
		verb, args, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)

		switch verb {
		case "EHLO":
			sess.handleHello(args, true)
		case "HELO":
			sess.handleHello(args, false)
		case "STARTTLS":
			sess.handleStartTLS()
		case "AUTH":
			sess.handleAuth(args)
		case "MAIL":
			sess.handleMail(args)
		case "RCPT":
			sess.handleRcpt(args)
		case "DATA":
			sess.handleData()
		case "RSET":
			sess.resetTransaction()
			sess.reply(smtpkit.ReplyOK, "2.0.0", "Reset ok")
		case "NOOP":
			sess.reply(smtpkit.ReplyOK, "2.0.0", "OK")
		case "VRFY":
			sess.reply(smtpkit.ReplyCannotVRFY, "2.0.0", "Cannot VRFY user, but will accept message")
		case "QUIT":
			sess.reply(smtpkit.ReplyServiceClosing, "2.0.0", fmt.Sprintf("%s closing connection", s.hostname))
			return
		default:
			sess.reply(smtpkit.ReplySyntaxError, "5.5.1", "Command not recognized")
		}
	}
}

// reply sends a single-line reply, prefixing msg with the enhanced status
// code (RFC 3463) unless enhanced is empty — AUTH challenge lines carry a
// raw base64 blob with no enhanced code, and a stray separator there would
// corrupt it for the client's base64 decoder.
func (s *session) reply(code smtpkit.ReplyCode, enhanced, msg string) {
	line := msg
	if enhanced != "" {
		line = enhanced + " " + msg
	}
	s.conn.WriteLine(fmt.Sprintf("%d %s", code, line))
}

func (s *session) replyMulti(code smtpkit.ReplyCode, lines ...string) {
	if len(lines) == 0 {
		return
	}
	for _, l := range lines[:len(lines)-1] {
		s.conn.WriteLine(fmt.Sprintf("%d-%s", code, l))
	}
	s.conn.WriteLine(fmt.Sprintf("%d %s", code, lines[len(lines)-1]))
}

func (s *session) handleHello(args string, esmtp bool) {
	if args == "" {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.4", "EHLO requires a hostname")
		return
	}
	s.resetTransaction()
	s.esmtp = esmtp
	s.state = stateGreeted

	if !esmtp {
		s.reply(smtpkit.ReplyOK, "2.0.0", fmt.Sprintf("%s Hello %s", s.server.hostname, args))
		return
	}

	lines := []string{fmt.Sprintf("%s Hello %s", s.server.hostname, args)}
	if s.server.maxMessageSize > 0 {
		lines = append(lines, fmt.Sprintf("SIZE %d", s.server.maxMessageSize))
	}
	lines = append(lines, "PIPELINING", "8BITMIME", "ENHANCEDSTATUSCODES", "SMTPUTF8")
	if s.server.tlsConfig != nil && !s.tls {
		lines = append(lines, "STARTTLS")
	}
	if s.server.authHandler != nil && !s.authenticated {
		lines = append(lines, "AUTH PLAIN LOGIN CRAM-MD5")
	}
	s.replyMulti(smtpkit.ReplyOK, lines...)
}

func (s *session) handleStartTLS() {
	if s.server.tlsConfig == nil {
		s.reply(smtpkit.ReplyCommandNotImpl, "5.5.1", "STARTTLS not available")
		return
	}
	if s.tls {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "Already running TLS")
		return
	}
	s.reply(smtpkit.ReplyServiceReady, "2.0.0", "Ready to start TLS")

	tc := tls.Server(s.conn.NetConn(), s.server.tlsConfig)
	if err := tc.Handshake(); err != nil {
		s.server.logger.Error("relaytest: TLS handshake failed", "err", err)
		return
	}
	s.conn = wire.NewConn(tc, true)
	s.tls = true
	s.resetTransaction()
	s.state = stateNew
	s.esmtp = false
}

func (s *session) handleAuth(args string) {
	if s.server.authHandler == nil {
		s.reply(smtpkit.ReplyCommandNotImpl, "5.5.1", "AUTH not available")
		return
	}
	if s.state < stateGreeted {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "Send EHLO/HELO first")
		return
	}
	if s.authenticated {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "Already authenticated")
		return
	}

	mechanism, initial, _ := strings.Cut(args, " ")
	mechanism = strings.ToUpper(mechanism)

	switch mechanism {
	case "PLAIN":
		s.authPlain(initial)
	case "LOGIN":
		s.authLogin()
	case "CRAM-MD5":
		s.authCramMD5()
	default:
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.4", "Unrecognized authentication mechanism")
	}
}

func (s *session) readAuthLine() (string, bool) {
	line, err := s.conn.ReadLine(wire.MaxCommandLineLen)
	if err != nil {
		return "", false
	}
	if line == "*" {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.1", "Authentication cancelled")
		return "", false
	}
	return line, true
}

func (s *session) finishAuth(mechanism, username, password string) {
	if err := s.server.authHandler.Authenticate(context.Background(), mechanism, username, password); err != nil {
		s.reply(smtpkit.ReplyAuthFailed, "5.7.8", "Authentication failed")
		return
	}
	s.authenticated = true
	s.reply(smtpkit.ReplyAuthOK, "2.7.0", "Authentication successful")
}

func (s *session) authPlain(initial string) {
	var raw string
	if initial != "" {
		raw = initial
	} else {
		s.reply(smtpkit.ReplyAuthContinue, "", "")
		line, ok := s.readAuthLine()
		if !ok {
			return
		}
		raw = line
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.2", "Invalid base64")
		return
	}
	parts := strings.SplitN(string(decoded), "\x00", 3)
	if len(parts) != 3 {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.2", "Invalid PLAIN data")
		return
	}
	s.finishAuth("PLAIN", parts[1], parts[2])
}

func (s *session) authLogin() {
	s.reply(smtpkit.ReplyAuthContinue, "", base64.StdEncoding.EncodeToString([]byte("Username:")))
	userLine, ok := s.readAuthLine()
	if !ok {
		return
	}
	userBytes, err := base64.StdEncoding.DecodeString(userLine)
	if err != nil {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.2", "Invalid base64")
		return
	}
	s.reply(smtpkit.ReplyAuthContinue, "", base64.StdEncoding.EncodeToString([]byte("Password:")))
	passLine, ok := s.readAuthLine()
	if !ok {
		return
	}
	passBytes, err := base64.StdEncoding.DecodeString(passLine)
	if err != nil {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.2", "Invalid base64")
		return
	}
	s.finishAuth("LOGIN", string(userBytes), string(passBytes))
}

func (s *session) authCramMD5() {
	challenge := fmt.Sprintf("<%s@%s>", "relaytest", s.server.hostname)
	s.reply(smtpkit.ReplyAuthContinue, "", base64.StdEncoding.EncodeToString([]byte(challenge)))
	line, ok := s.readAuthLine()
	if !ok {
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.2", "Invalid base64")
		return
	}
	resp := string(decoded)
	idx := strings.LastIndex(resp, " ")
	if idx < 0 {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.2", "Invalid CRAM-MD5 response")
		return
	}
	username := resp[:idx]
	digest := resp[idx+1:]
	s.finishAuth("CRAM-MD5", username, challenge+":"+digest)
}

func (s *session) handleMail(args string) {
	if s.state < stateGreeted {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "Send EHLO/HELO first")
		return
	}
	if s.state >= stateMail {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "MAIL already specified")
		return
	}
	if s.server.submissionMode && !s.authenticated {
		s.reply(smtpkit.ReplyAuthRequired, "5.7.0", "Authentication required")
		return
	}

	upper := strings.ToUpper(args)
	if !strings.HasPrefix(upper, "FROM:") {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.4", "Syntax: MAIL FROM:<address>")
		return
	}
	pathStr, _, _ := strings.Cut(strings.TrimSpace(args[5:]), " ")
	rp, err := smtpkit.ParseReversePath(pathStr, true)
	if err != nil {
		s.reply(smtpkit.ReplySyntaxParamError, "5.1.7", "Invalid sender address")
		return
	}

	if s.server.mailHandler != nil {
		if err := s.server.mailHandler.OnMail(context.Background(), rp); err != nil {
			s.reply(smtpkit.ReplyMailboxNotFound, "5.1.0", err.Error())
			return
		}
	}

	s.reversePath = rp
	s.forwardPaths = nil
	s.state = stateMail
	s.reply(smtpkit.ReplyOK, "2.1.0", "Originator ok")
}

func (s *session) handleRcpt(args string) {
	if s.state < stateMail {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "Send MAIL first")
		return
	}
	if len(s.forwardPaths) >= s.server.maxRecipients {
		s.reply(smtpkit.ReplyInsufficientStorage, "5.5.3", "Too many recipients")
		return
	}

	upper := strings.ToUpper(args)
	if !strings.HasPrefix(upper, "TO:") {
		s.reply(smtpkit.ReplySyntaxParamError, "5.5.4", "Syntax: RCPT TO:<address>")
		return
	}
	pathStr, _, _ := strings.Cut(strings.TrimSpace(args[3:]), " ")
	fp, err := smtpkit.ParseForwardPath(pathStr, true)
	if err != nil {
		s.reply(smtpkit.ReplySyntaxParamError, "5.1.3", "Invalid recipient address")
		return
	}

	if s.server.rcptHandler != nil {
		if err := s.server.rcptHandler.OnRcpt(context.Background(), fp); err != nil {
			s.reply(smtpkit.ReplyMailboxNotFound, "5.1.1", err.Error())
			return
		}
	}

	s.forwardPaths = append(s.forwardPaths, fp)
	if s.state < stateRcpt {
		s.state = stateRcpt
	}
	s.reply(smtpkit.ReplyOK, "2.1.5", "Recipient ok")
}

func (s *session) handleData() {
	if s.state < stateRcpt {
		s.reply(smtpkit.ReplyBadSequence, "5.5.1", "Send RCPT first")
		return
	}
	s.reply(smtpkit.ReplyStartMailInput, "", "Start mail input; end with <CRLF>.<CRLF>")

	reader := s.conn.DotReader()

	if s.server.dataHandler != nil {
		err := s.server.dataHandler.OnData(context.Background(), s.reversePath, s.forwardPaths, reader)
		io.Copy(io.Discard, reader)
		if err != nil {
			s.reply(smtpkit.ReplyTransactionFailed, "5.3.0", err.Error())
			s.resetTransaction()
			s.state = stateGreeted
			return
		}
	} else {
		io.Copy(io.Discard, reader)
	}

	s.reply(smtpkit.ReplyOK, "2.0.0", "Message accepted")
	s.resetTransaction()
	s.state = stateGreeted
}

func (s *session) resetTransaction() {
	s.reversePath = smtpkit.ReversePath{}
	s.forwardPaths = nil
}

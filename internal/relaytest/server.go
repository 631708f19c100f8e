package relaytest

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Server is a minimal in-process SMTP relay for smtpclient's integration
// tests. It dispatches MAIL/RCPT/DATA/AUTH decisions to pluggable handlers
// so a test can script acceptance, rejection, or a size/recipient limit
// without a real mailbox store behind it.
type Server struct {
	hostname       string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	maxMessageSize int64
	maxRecipients  int
	tlsConfig      *tls.Config
	logger         *slog.Logger

	mailHandler    MailHandler
	rcptHandler    RcptHandler
	dataHandler    DataHandler
	authHandler    AuthHandler
	submissionMode bool

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
}

// Option configures a Server.
type Option func(*Server)

// NewServer builds a Server with the given options applied over defaults
// matched to the sizes smtpclient's tests exercise.
func NewServer(opts ...Option) *Server {
	s := &Server{
		hostname:       "relaytest.invalid",
		readTimeout:    5 * time.Second,
		writeTimeout:   5 * time.Second,
		maxMessageSize: 10 * 1024 * 1024,
		maxRecipients:  100,
		logger:         slog.Default(),
		quit:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithHostname(h string) Option { return func(s *Server) { s.hostname = h } }

func WithMaxMessageSize(n int64) Option { return func(s *Server) { s.maxMessageSize = n } }

func WithMaxRecipients(n int) Option { return func(s *Server) { s.maxRecipients = n } }

func WithTLSConfig(c *tls.Config) Option { return func(s *Server) { s.tlsConfig = c } }

func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.logger = l } }

func WithMailHandler(h MailHandler) Option { return func(s *Server) { s.mailHandler = h } }

func WithRcptHandler(h RcptHandler) Option { return func(s *Server) { s.rcptHandler = h } }

func WithDataHandler(h DataHandler) Option { return func(s *Server) { s.dataHandler = h } }

// WithAuthHandler sets the handler invoked for AUTH PLAIN/LOGIN/CRAM-MD5.
// When set, the server advertises AUTH with all three mechanisms.
func WithAuthHandler(h AuthHandler) Option { return func(s *Server) { s.authHandler = h } }

// WithSubmissionMode rejects MAIL FROM with 530 until AUTH has succeeded
// (RFC 6409 §4.1), matching how a submission-port relay behaves.
func WithSubmissionMode(enabled bool) Option { return func(s *Server) { s.submissionMode = enabled } }

// Serve accepts connections on ln until Shutdown or Close is called.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				return err
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(conn)
		}()
	}
}

// Addr returns the listener's address, or nil if Serve has not been called.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits for in-flight sessions to
// finish, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	close(s.quit)
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		ln.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close immediately closes the listener without waiting for sessions.
func (s *Server) Close() error {
	close(s.quit)
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln.Close()
	}
	return nil
}

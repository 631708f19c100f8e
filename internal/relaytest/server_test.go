package relaytest

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/amousset/smtpkit"
)

func dialRelay(t *testing.T, srv *Server) (net.Conn, *bufio.Reader, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go srv.Serve(ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn, bufio.NewReader(conn), func() {
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return strings.TrimRight(line, "\r\n")
}

func TestServer_FullTransaction(t *testing.T) {
	srv := NewServer(WithHostname("relay.invalid"))
	conn, r, cleanup := dialRelay(t, srv)
	defer cleanup()

	if got := readLine(t, r); !strings.HasPrefix(got, "220 ") {
		t.Fatalf("greeting = %q", got)
	}

	conn.Write([]byte("EHLO client.example\r\n"))
	for {
		line := readLine(t, r)
		if strings.HasPrefix(line, "250 ") {
			break
		}
	}

	conn.Write([]byte("MAIL FROM:<a@example.com>\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250 ") {
		t.Fatalf("MAIL reply = %q", got)
	}

	conn.Write([]byte("RCPT TO:<b@example.org>\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250 ") {
		t.Fatalf("RCPT reply = %q", got)
	}

	conn.Write([]byte("DATA\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "354 ") {
		t.Fatalf("DATA reply = %q", got)
	}
	conn.Write([]byte("Subject: hi\r\n\r\nbody\r\n.\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "250 ") {
		t.Fatalf("final reply = %q", got)
	}

	conn.Write([]byte("QUIT\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "221 ") {
		t.Fatalf("QUIT reply = %q", got)
	}
}

func TestServer_RcptRejectedByHandler(t *testing.T) {
	srv := NewServer(
		WithRcptHandler(RcptHandlerFunc(func(ctx context.Context, to smtpkit.ForwardPath) error {
			return errRejected
		})),
	)
	conn, r, cleanup := dialRelay(t, srv)
	defer cleanup()

	readLine(t, r) // greeting
	conn.Write([]byte("EHLO client.example\r\n"))
	for {
		if strings.HasPrefix(readLine(t, r), "250 ") {
			break
		}
	}
	conn.Write([]byte("MAIL FROM:<a@example.com>\r\n"))
	readLine(t, r) // 250
	conn.Write([]byte("RCPT TO:<nobody@example.org>\r\n"))
	if got := readLine(t, r); !strings.HasPrefix(got, "550 ") {
		t.Fatalf("RCPT reply = %q, want 550", got)
	}
}

type errRejectedType struct{}

func (errRejectedType) Error() string { return "no such user" }

var errRejected = errRejectedType{}

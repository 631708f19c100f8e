package smtpclient

import (
	"context"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/internal/relaytest"
)

func startRelay(t *testing.T, opts ...relaytest.Option) (addr string, stop func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := relaytest.NewServer(opts...)
	go srv.Serve(ln)
	return ln.Addr().String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func TestTransport_Send_AgainstRelay(t *testing.T) {
	var mu sync.Mutex
	var delivered []string

	addr, stop := startRelay(t,
		relaytest.WithDataHandler(relaytest.DataHandlerFunc(func(ctx context.Context, from smtpkit.ReversePath, to []smtpkit.ForwardPath, r io.Reader) error {
			body, _ := io.ReadAll(r)
			mu.Lock()
			delivered = append(delivered, string(body))
			mu.Unlock()
			return nil
		})),
	)
	defer stop()

	tr := NewTransport(addr, WithTransportTimeout(2*time.Second))
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sender := smtpkit.Mailbox{LocalPart: "alice", Domain: "example.com"}
	recipient := smtpkit.Mailbox{LocalPart: "bob", Domain: "example.org"}
	env := smtpkit.Envelope{
		Sender:     &sender,
		Recipients: []smtpkit.Mailbox{recipient},
		Body:       strings.NewReader("Subject: hi\r\n\r\nhello there\r\n"),
	}

	reply, err := tr.Send(ctx, env)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(reply.RecipientLog) != 1 || !reply.RecipientLog[0].Accepted {
		t.Errorf("RecipientLog = %#v", reply.RecipientLog)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 {
		t.Fatalf("delivered %d messages, want 1", len(delivered))
	}
}

func TestTransport_Send_AuthRequiredByRelay(t *testing.T) {
	addr, stop := startRelay(t,
		relaytest.WithSubmissionMode(true),
		relaytest.WithAuthHandler(relaytest.AuthHandlerFunc(func(ctx context.Context, mechanism, user, pass string) error {
			if user == "carol" && pass == "s3cret" {
				return nil
			}
			return errAuthRejected
		})),
	)
	defer stop()

	tr := NewTransport(addr,
		WithTransportTimeout(2*time.Second),
		WithCredentials(smtpkit.NewCredentials("carol", "s3cret")),
	)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sender := smtpkit.Mailbox{LocalPart: "carol", Domain: "example.com"}
	recipient := smtpkit.Mailbox{LocalPart: "dave", Domain: "example.org"}
	env := smtpkit.Envelope{
		Sender:     &sender,
		Recipients: []smtpkit.Mailbox{recipient},
		Body:       strings.NewReader("Subject: hi\r\n\r\nbody\r\n"),
	}

	if _, err := tr.Send(ctx, env); err != nil {
		t.Fatalf("Send: %v", err)
	}
}

var errAuthRejected = &smtpkit.Error{Kind: smtpkit.ErrKindAuthRejected, Message: "bad credentials"}

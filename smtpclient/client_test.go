package smtpclient

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/amousset/smtpkit"
)

func TestNewClient_HappyPath(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBasic(server, []string{"PIPELINING", "SIZE 10485760", "AUTH PLAIN LOGIN"}, func(s *scriptedServer) {
			line := s.readLine()
			if line != "MAIL FROM:<a@example.com>" {
				t.Errorf("unexpected MAIL line: %q", line)
			}
			s.send("250 OK")
			line = s.readLine()
			if line != "RCPT TO:<b@example.org>" {
				t.Errorf("unexpected RCPT line: %q", line)
			}
			s.send("250 OK")
			line = s.readLine()
			if line != "DATA" {
				t.Errorf("unexpected DATA line: %q", line)
			}
			s.send("354 go ahead")
			for {
				l := s.readLine()
				if l == "." {
					break
				}
			}
			s.send("250 accepted")
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := NewClient(client, smtpkit.DefaultClientID)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if !c.Extensions().Has(smtpkit.ExtPIPELINING) {
		t.Errorf("expected PIPELINING extension to be parsed")
	}
	if got := c.ServerMaxSize(); got != 10485760 {
		t.Errorf("ServerMaxSize = %d, want 10485760", got)
	}

	sender := smtpkit.Mailbox{LocalPart: "a", Domain: "example.com"}
	if err := c.Mail(ctx, smtpkit.ReversePath{Mailbox: sender}); err != nil {
		t.Fatalf("Mail: %v", err)
	}
	to := smtpkit.Mailbox{LocalPart: "b", Domain: "example.org"}
	if _, err := c.Rcpt(ctx, smtpkit.ForwardPath{Mailbox: to}); err != nil {
		t.Fatalf("Rcpt: %v", err)
	}
	if err := c.Data(ctx, strings.NewReader("hello\r\n")); err != nil {
		t.Fatalf("Data: %v", err)
	}
	c.Close()

	<-done
}

func TestNewClient_RcptRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBasic(server, []string{"AUTH PLAIN"}, func(s *scriptedServer) {
			s.readLine() // MAIL
			s.send("250 OK")
			s.readLine() // RCPT
			s.send("550 no such user")
		})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := NewClient(client, smtpkit.DefaultClientID)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sender := smtpkit.Mailbox{LocalPart: "a", Domain: "example.com"}
	if err := c.Mail(ctx, smtpkit.ReversePath{Mailbox: sender}); err != nil {
		t.Fatalf("Mail: %v", err)
	}
	to := smtpkit.Mailbox{LocalPart: "nobody", Domain: "example.org"}
	_, err = c.Rcpt(ctx, smtpkit.ForwardPath{Mailbox: to})
	if err == nil {
		t.Fatal("expected Rcpt error")
	}
	kerr, ok := err.(*smtpkit.Error)
	if !ok || kerr.Kind != smtpkit.ErrKindPermanent {
		t.Errorf("err = %#v, want ErrKindPermanent", err)
	}
	c.Close()

	<-done
}

package smtpclient

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/amousset/smtpkit"
)

func dialedTransport(t *testing.T, client net.Conn) *Transport {
	t.Helper()
	tr := NewTransport("unused:25")
	c, err := NewClient(client, smtpkit.DefaultClientID)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	tr.client = c
	tr.reuse = tr.reuseCfg
	return tr
}

func envelopeTo(addrs ...string) smtpkit.Envelope {
	var recipients []smtpkit.Mailbox
	for _, a := range addrs {
		local, domain, _ := strings.Cut(a, "@")
		recipients = append(recipients, smtpkit.Mailbox{LocalPart: local, Domain: domain})
	}
	sender := smtpkit.Mailbox{LocalPart: "sender", Domain: "example.com"}
	return smtpkit.Envelope{
		Sender:     &sender,
		Recipients: recipients,
		Body:       strings.NewReader("Subject: test\r\n\r\nbody\r\n"),
	}
}

func TestTransport_Send_HappyPath(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBasic(server, []string{"SIZE 1000000"}, func(s *scriptedServer) {
			s.readLine() // MAIL
			s.send("250 OK")
			s.readLine() // RCPT
			s.send("250 OK")
			s.readLine() // DATA
			s.send("354 go ahead")
			for {
				if s.readLine() == "." {
					break
				}
			}
			s.send("250 queued")
		})
	}()

	tr := dialedTransport(t, client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := tr.Send(ctx, envelopeTo("rcpt@example.org"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(reply.RecipientLog) != 1 || !reply.RecipientLog[0].Accepted {
		t.Errorf("RecipientLog = %#v", reply.RecipientLog)
	}
	tr.Close()
	<-done
}

func TestTransport_Send_AllRecipientsRejected(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBasic(server, nil, func(s *scriptedServer) {
			s.readLine() // MAIL
			s.send("250 OK")
			s.readLine() // RCPT
			s.send("550 no such user")
			s.readLine() // RSET
			s.send("250 OK")
		})
	}()

	tr := dialedTransport(t, client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := tr.Send(ctx, envelopeTo("nobody@example.org"))
	if err == nil {
		t.Fatal("expected error")
	}
	kerr, ok := err.(*smtpkit.Error)
	if !ok || kerr.Kind != smtpkit.ErrKindAllRecipientsRejected {
		t.Errorf("err = %#v, want ErrKindAllRecipientsRejected", err)
	}
	if len(kerr.Recipients) != 1 || kerr.Recipients[0].Accepted {
		t.Errorf("Recipients = %#v", kerr.Recipients)
	}
	tr.Close()
	<-done
}

func TestTransport_Send_PartialRejection(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBasic(server, nil, func(s *scriptedServer) {
			s.readLine() // MAIL
			s.send("250 OK")
			s.readLine() // RCPT good
			s.send("250 OK")
			s.readLine() // RCPT bad
			s.send("550 no such user")
			s.readLine() // DATA
			s.send("354 go ahead")
			for {
				if s.readLine() == "." {
					break
				}
			}
			s.send("250 queued")
		})
	}()

	tr := dialedTransport(t, client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := tr.Send(ctx, envelopeTo("good@example.org", "bad@example.org"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(reply.RecipientLog) != 2 {
		t.Fatalf("RecipientLog len = %d, want 2", len(reply.RecipientLog))
	}
	if !reply.RecipientLog[0].Accepted || reply.RecipientLog[1].Accepted {
		t.Errorf("RecipientLog = %#v", reply.RecipientLog)
	}
	tr.Close()
	<-done
}

func TestTransport_Send_Pipelined(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveBasic(server, []string{"PIPELINING"}, func(s *scriptedServer) {
			s.readLine() // MAIL
			s.readLine() // RCPT
			s.readLine() // DATA
			s.send("250 OK")
			s.send("250 OK")
			s.send("354 go ahead")
			for {
				if s.readLine() == "." {
					break
				}
			}
			s.send("250 queued")
		})
	}()

	tr := dialedTransport(t, client)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	reply, err := tr.Send(ctx, envelopeTo("rcpt@example.org"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(reply.RecipientLog) != 1 || !reply.RecipientLog[0].Accepted {
		t.Errorf("RecipientLog = %#v", reply.RecipientLog)
	}
	tr.Close()
	<-done
}

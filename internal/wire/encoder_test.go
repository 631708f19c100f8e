package wire

import "testing"

func TestMailLine_NoParams(t *testing.T) {
	got := MailLine("<a@b.com>")
	want := "MAIL FROM:<a@b.com>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMailLine_WithParams(t *testing.T) {
	got := MailLine("<a@b.com>", "SIZE=1024", "SMTPUTF8")
	want := "MAIL FROM:<a@b.com> SIZE=1024 SMTPUTF8"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestMailLine_NullReversePath(t *testing.T) {
	got := MailLine("<>")
	want := "MAIL FROM:<>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRcptLine(t *testing.T) {
	got := RcptLine("<c@d.com>")
	want := "RCPT TO:<c@d.com>"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAuthInitialLine_NoInitialResponse(t *testing.T) {
	got := AuthInitialLine("LOGIN", "")
	want := "AUTH LOGIN"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestAuthInitialLine_WithInitialResponse(t *testing.T) {
	got := AuthInitialLine("PLAIN", "AGEAYg==")
	want := "AUTH PLAIN AGEAYg=="
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEHLOLine(t *testing.T) {
	if got, want := EHLOLine("mail.example.com"), "EHLO mail.example.com"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestVrfyLine(t *testing.T) {
	if got, want := VrfyLine("postmaster"), "VRFY postmaster"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

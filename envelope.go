package smtpkit

import "io"

// Envelope is what the core accepts per send (spec §3). Sender is nil for
// the null reverse-path (bounces); Recipients must be non-empty. Body is a
// finite, pull-based byte stream, already MIME-formed and read exactly once
// by the client (spec §4.3, §6, §9).
type Envelope struct {
	// Sender is the reverse-path mailbox, or nil to send the null
	// reverse-path "<>" used for bounce messages.
	Sender *Mailbox
	// Recipients is the non-empty, ordered set of forward-path mailboxes.
	Recipients []Mailbox
	// MessageID is an opaque identifier used only for diagnostics/logging;
	// the core never inspects or transmits it.
	MessageID string
	// Body is read once by the client and dot-stuffed on the wire.
	Body io.Reader
}

// Validate checks the invariants spec §3 places on EmailEnvelope: a
// non-empty recipient list, syntactically valid addresses. Grounded on
// lettre's Envelope::new, which rejects an empty "to" at construction
// rather than deferring to the first rejected RCPT (see DESIGN.md).
func (e Envelope) Validate(allowUTF8 bool) error {
	if len(e.Recipients) == 0 {
		return newError(ErrKindMalformedReply, "smtpkit: envelope has no recipients")
	}
	if e.Sender != nil {
		if _, err := ParseMailbox(e.Sender.String(), allowUTF8); err != nil {
			return err
		}
	}
	for _, r := range e.Recipients {
		if _, err := ParseMailbox(r.String(), allowUTF8); err != nil {
			return err
		}
	}
	if e.Body == nil {
		return newError(ErrKindMalformedReply, "smtpkit: envelope has no body")
	}
	return nil
}

// ReversePath returns the MAIL FROM path for this envelope: the null path
// if Sender is nil.
func (e Envelope) ReversePath() ReversePath {
	if e.Sender == nil {
		return ReversePath{Null: true}
	}
	return ReversePath{Mailbox: *e.Sender}
}

// ForwardPaths returns the RCPT TO paths for this envelope, in order.
func (e Envelope) ForwardPaths() []ForwardPath {
	paths := make([]ForwardPath, len(e.Recipients))
	for i, r := range e.Recipients {
		paths[i] = ForwardPath{Mailbox: r}
	}
	return paths
}

// DedupeRecipients returns a copy of recipients with duplicates removed,
// preserving first-occurrence order (spec §3: "deduplicated by caller or by
// the engine").
func DedupeRecipients(recipients []Mailbox) []Mailbox {
	seen := make(map[string]bool, len(recipients))
	out := make([]Mailbox, 0, len(recipients))
	for _, r := range recipients {
		key := r.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

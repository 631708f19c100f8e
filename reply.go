package smtpkit

import (
	"fmt"
	"strings"
)

// ReplyCode represents a three-digit SMTP reply code as defined in RFC 5321 §4.2.
type ReplyCode int

// Reply code classes (RFC 5321 §4.2.1).
const (
	ClassPositiveCompletion   = 2 // 2xx
	ClassPositiveIntermediate = 3 // 3xx
	ClassTransientNegative    = 4 // 4xx
	ClassPermanentNegative    = 5 // 5xx
)

// Standard SMTP reply codes (RFC 5321 §4.2.2, §4.2.3).
const (
	// 2xx — Positive completion.
	ReplySystemStatus   ReplyCode = 211
	ReplyHelpMessage    ReplyCode = 214
	ReplyServiceReady   ReplyCode = 220
	ReplyServiceClosing ReplyCode = 221
	ReplyAuthOK         ReplyCode = 235
	ReplyOK             ReplyCode = 250
	ReplyUserNotLocal   ReplyCode = 251
	ReplyCannotVRFY     ReplyCode = 252

	// 3xx — Positive intermediate.
	ReplyAuthContinue   ReplyCode = 334
	ReplyStartMailInput ReplyCode = 354

	// 4xx — Transient negative completion.
	ReplyServiceNotAvailable ReplyCode = 421
	ReplyMailboxBusy         ReplyCode = 450
	ReplyLocalError          ReplyCode = 451
	ReplyInsufficientStorage ReplyCode = 452
	ReplyTempAuthFailure     ReplyCode = 454

	// 5xx — Permanent negative completion.
	ReplySyntaxError        ReplyCode = 500
	ReplySyntaxParamError   ReplyCode = 501
	ReplyCommandNotImpl     ReplyCode = 502
	ReplyBadSequence        ReplyCode = 503
	ReplyParamNotImpl       ReplyCode = 504
	ReplyAuthRequired       ReplyCode = 530
	ReplyAuthFailed         ReplyCode = 535
	ReplyMailboxNotFound    ReplyCode = 550
	ReplyUserNotLocalTry    ReplyCode = 551
	ReplyExceededStorage    ReplyCode = 552
	ReplyMailboxNameError   ReplyCode = 553
	ReplyTransactionFailed  ReplyCode = 554
	ReplyMailRcptParamError ReplyCode = 555
)

// Class returns the reply class (first digit): 2, 3, 4, or 5.
func (c ReplyCode) Class() int {
	return int(c) / 100
}

// IsPositive returns true for 2xx and 3xx reply codes.
func (c ReplyCode) IsPositive() bool {
	cl := c.Class()
	return cl == ClassPositiveCompletion || cl == ClassPositiveIntermediate
}

// IsTransient returns true for 4xx reply codes (temporary failures).
func (c ReplyCode) IsTransient() bool {
	return c.Class() == ClassTransientNegative
}

// IsPermanent returns true for 5xx reply codes (permanent failures).
func (c ReplyCode) IsPermanent() bool {
	return c.Class() == ClassPermanentNegative
}

// Reply is a parsed SMTP reply (RFC 5321 §4.2): a three-digit code, an
// optional enhanced status code (RFC 3463) extracted from the first line,
// and the reply's ordered, non-empty text lines.
//
// Reply also carries per-recipient outcomes, one per RCPT, when it is the
// result of a successful transaction (spec §7): any rejected addresses
// among them are informational, not an error, since the transaction as a
// whole still succeeded.
type Reply struct {
	Code          ReplyCode
	Enhanced      EnhancedCode
	Lines         []string
	RecipientLog  []RecipientOutcome // optional, populated by the client after RCPT
}

// RecipientOutcome records the reply a single RCPT TO received.
type RecipientOutcome struct {
	Recipient Mailbox
	Reply     Reply
	Accepted  bool
}

// String renders the reply the way it would appear on the wire, collapsing
// a multi-line reply onto one string joined by "; " for logging purposes.
func (r Reply) String() string {
	text := strings.Join(r.Lines, "; ")
	if !r.Enhanced.IsZero() {
		return fmt.Sprintf("%d %s %s", r.Code, r.Enhanced, text)
	}
	return fmt.Sprintf("%d %s", r.Code, text)
}

// IsPositive reports whether the reply is 2xx or 3xx.
func (r Reply) IsPositive() bool { return r.Code.IsPositive() }

// IsTransient reports whether the reply is 4xx.
func (r Reply) IsTransient() bool { return r.Code.IsTransient() }

// IsPermanent reports whether the reply is 5xx.
func (r Reply) IsPermanent() bool { return r.Code.IsPermanent() }

// defaultEnhancedCodes maps the standard reply codes this client issues
// commands against to the enhanced status code RFC 3463/5248 recommends for
// them, used to fill in Reply.Enhanced when a server's reply text carries
// no enhanced code of its own (plain SMTP servers have no obligation to
// advertise ENHANCEDSTATUSCODES and often omit it even when they do).
var defaultEnhancedCodes = map[ReplyCode]EnhancedCode{
	ReplyOK:                  EnhancedCodeOK,
	ReplySystemStatus:        EnhancedCodeOtherMail,
	ReplyHelpMessage:         EnhancedCodeOtherMail,
	ReplyUserNotLocal:        EnhancedCodeOtherAddress,
	ReplyCannotVRFY:          EnhancedCodeOtherMailbox,
	ReplyServiceNotAvailable: EnhancedCodeOtherNetwork,
	ReplyMailboxBusy:         EnhancedCodeOtherNetwork,
	ReplyLocalError:          EnhancedCodeOtherNetwork,
	ReplyTempAuthFailure:     EnhancedCodeTempAuthFailure,
	ReplySyntaxError:         EnhancedCodeSyntaxError,
	ReplySyntaxParamError:    EnhancedCodeInvalidParams,
	ReplyCommandNotImpl:      EnhancedCodeInvalidCommand,
	ReplyBadSequence:         EnhancedCodeInvalidCommand,
	ReplyParamNotImpl:        EnhancedCodeInvalidCommand,
	ReplyAuthRequired:        EnhancedCodeAuthRequired,
	ReplyAuthFailed:          EnhancedCodeAuthCredentials,
	ReplyMailboxNotFound:     EnhancedCodeBadDest,
	ReplyUserNotLocalTry:     EnhancedCodeAmbiguousDest,
	ReplyExceededStorage:     EnhancedCodeMailboxFull,
	ReplyMailboxNameError:    EnhancedCodeBadDestSyntax,
	ReplyMailRcptParamError:  EnhancedCodeInvalidParams,
}

// DefaultEnhancedCode returns the enhanced status code conventionally
// associated with code, or the zero EnhancedCode if none is established.
func DefaultEnhancedCode(code ReplyCode) EnhancedCode {
	return defaultEnhancedCodes[code]
}

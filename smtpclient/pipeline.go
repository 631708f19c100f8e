package smtpclient

import (
	"context"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/internal/wire"
)

// PipelinedResult holds the per-command replies of one pipelined
// MAIL+RCPT+DATA batch (spec §4.6 scenario 6, RFC 2920).
type PipelinedResult struct {
	Mail  smtpkit.Reply
	Rcpt  []smtpkit.Reply
	Data  smtpkit.Reply
	DataOK bool
}

// SendPipelined writes MAIL FROM, every RCPT TO, and DATA in a single flush
// and reads their replies back in the same order (spec §4.6: "the first
// 4xx/5xx in the batch determines the outcome; remaining replies are
// drained"). It does not itself decide whether to proceed to the body —
// the caller inspects PipelinedResult and, if DataOK, streams the body via
// [Client.StreamBody]; otherwise it must RSET before reusing the
// connection, since the server already consumed commands past the first
// rejection.
//
// Only valid when the server's EHLO response advertised PIPELINING
// (smtpkit.ExtPIPELINING); callers are responsible for checking that and
// falling back to sequential Mail/Rcpt/Data otherwise.
func (c *Client) SendPipelined(ctx context.Context, rp smtpkit.ReversePath, mailParams []string, recipients []smtpkit.ForwardPath, rcptParamsPerRecipient [][]string) (PipelinedResult, error) {
	c.applyDeadline(ctx)
	c.state = smtpkit.StateInMail

	lines := make([]string, 0, len(recipients)+2)
	lines = append(lines, wire.MailLine(rp.String(), mailParams...))
	for i, fp := range recipients {
		var params []string
		if i < len(rcptParamsPerRecipient) {
			params = rcptParamsPerRecipient[i]
		}
		lines = append(lines, wire.RcptLine(fp.String(), params...))
	}
	lines = append(lines, wire.DataLine())

	if err := c.conn.WriteLines(lines...); err != nil {
		return PipelinedResult{}, translateWireErr(err)
	}

	var result PipelinedResult

	mailReply, err := c.conn.ReadReply()
	if err != nil {
		return PipelinedResult{}, translateWireErr(err)
	}
	result.Mail = *toKitReply(mailReply)

	c.state = smtpkit.StateInRcpt
	result.Rcpt = make([]smtpkit.Reply, len(recipients))
	for i := range recipients {
		rcptReply, err := c.conn.ReadReply()
		if err != nil {
			return PipelinedResult{}, translateWireErr(err)
		}
		result.Rcpt[i] = *toKitReply(rcptReply)
	}

	dataReply, err := c.conn.ReadReply()
	if err != nil {
		return PipelinedResult{}, translateWireErr(err)
	}
	result.Data = *toKitReply(dataReply)
	result.DataOK = dataReply.Code == int(smtpkit.ReplyStartMailInput)
	if result.DataOK {
		c.state = smtpkit.StateInData
	}

	return result, nil
}

// StreamBody writes the dot-stuffed, CRLF-normalized body and reads the
// final reply to a DATA sequence already confirmed with a 354 (spec §4.3).
// Used after a pipelined batch's DataOK; the sequential path's [Client.Data]
// streams the body itself.
func (c *Client) StreamBody(ctx context.Context, body func(w *wire.DotWriter) error) error {
	c.applyDeadline(ctx)

	dw := c.conn.DotWriter()
	if err := body(dw); err != nil {
		dw.Close()
		return smtpkit.WrapIO(err)
	}
	if err := dw.Close(); err != nil {
		return smtpkit.WrapIO(err)
	}

	reply, err := c.conn.ReadReply()
	if err != nil {
		return translateWireErr(err)
	}
	if reply.Code != int(smtpkit.ReplyOK) {
		return smtpkit.ErrorFromReply(*toKitReply(reply))
	}
	c.state = smtpkit.StateIdle
	return nil
}

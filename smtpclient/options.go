package smtpclient

import "strconv"

// MailOption configures the ESMTP parameters attached to MAIL FROM
// (RFC 1870 SIZE, RFC 6152 BODY, RFC 6531 SMTPUTF8, RFC 3461 DSN).
type MailOption func(*mailOptions)

type mailOptions struct {
	size     int64
	body     string
	smtpUTF8 bool
	dsnRet   string
	dsnEnvID string
}

// WithSize sets the SIZE parameter (RFC 1870) to the message's declared
// octet length, letting the server reject it before DATA if it exceeds
// [Client.ServerMaxSize].
func WithSize(n int64) MailOption {
	return func(o *mailOptions) { o.size = n }
}

// WithBody sets the BODY parameter (RFC 6152): "7BIT" or "8BITMIME".
func WithBody(body string) MailOption {
	return func(o *mailOptions) { o.body = body }
}

// WithSMTPUTF8 sets the SMTPUTF8 parameter (RFC 6531), required whenever
// the envelope contains a non-ASCII address (spec §4.1.2, §9).
func WithSMTPUTF8() MailOption {
	return func(o *mailOptions) { o.smtpUTF8 = true }
}

// WithDSNReturn sets the RET parameter (RFC 3461): "FULL" or "HDRS".
func WithDSNReturn(ret string) MailOption {
	return func(o *mailOptions) { o.dsnRet = ret }
}

// WithDSNEnvelopeID sets the ENVID parameter (RFC 3461).
func WithDSNEnvelopeID(envid string) MailOption {
	return func(o *mailOptions) { o.dsnEnvID = envid }
}

// mailParams renders a mailOptions set into the ordered ESMTP parameter
// tokens wire.MailLine expects.
func mailParams(opts []MailOption) []string {
	var o mailOptions
	for _, opt := range opts {
		opt(&o)
	}
	var params []string
	if o.size > 0 {
		params = append(params, "SIZE="+strconv.FormatInt(o.size, 10))
	}
	if o.body != "" {
		params = append(params, "BODY="+o.body)
	}
	if o.smtpUTF8 {
		params = append(params, "SMTPUTF8")
	}
	if o.dsnRet != "" {
		params = append(params, "RET="+o.dsnRet)
	}
	if o.dsnEnvID != "" {
		params = append(params, "ENVID="+o.dsnEnvID)
	}
	return params
}

// RcptOption configures the ESMTP parameters attached to RCPT TO
// (RFC 3461 DSN).
type RcptOption func(*rcptOptions)

type rcptOptions struct {
	dsnNotify string
	dsnOrcpt  string
}

// WithDSNNotify sets the NOTIFY parameter (RFC 3461), e.g.
// "SUCCESS,FAILURE,DELAY" or "NEVER".
func WithDSNNotify(notify string) RcptOption {
	return func(o *rcptOptions) { o.dsnNotify = notify }
}

// WithDSNOriginalRecipient sets the ORCPT parameter (RFC 3461), e.g.
// "rfc822;user@example.com".
func WithDSNOriginalRecipient(orcpt string) RcptOption {
	return func(o *rcptOptions) { o.dsnOrcpt = orcpt }
}

func rcptParams(opts []RcptOption) []string {
	var o rcptOptions
	for _, opt := range opts {
		opt(&o)
	}
	var params []string
	if o.dsnNotify != "" {
		params = append(params, "NOTIFY="+o.dsnNotify)
	}
	if o.dsnOrcpt != "" {
		params = append(params, "ORCPT="+o.dsnOrcpt)
	}
	return params
}

// Command smtpsend delivers one message through smtpkit's submission
// Transport, configured from a YAML file and/or environment variables via
// smtpkitcfg. It exists as a thin operational harness around the library:
// flag parsing and logging setup only, no protocol logic of its own.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/amousset/smtpkit"
	"github.com/amousset/smtpkit/smtpclient"
	"github.com/amousset/smtpkit/smtpkitcfg"
)

func main() {
	os.Exit(run())
}

func run() int {
	from := flag.String("from", "", "sender mailbox (local@domain); empty means the null reverse-path")
	to := flag.String("to", "", "comma-separated recipient mailboxes")
	subject := flag.String("subject", "", "message subject")
	bodyFile := flag.String("body", "", "path to the message body; '-' or empty reads stdin")
	flag.Parse()

	cfg, err := smtpkitcfg.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "smtpsend:", err)
		return 1
	}

	logger := buildLogger(cfg)
	slogger := slog.New(newLogrusHandler(logger))

	if *to == "" {
		slogger.Error("smtpsend: -to is required")
		return 2
	}

	env, err := buildEnvelope(*from, *to, *subject, *bodyFile)
	if err != nil {
		slogger.Error("smtpsend: building envelope failed", "err", err)
		return 2
	}

	security, err := parseSecurity(cfg.Security, cfg.InsecureSkipVerify)
	if err != nil {
		slogger.Error("smtpsend: invalid security mode", "err", err)
		return 2
	}

	opts := []smtpclient.TransportOption{
		smtpclient.WithTransportSecurity(security),
		smtpclient.WithTransportTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		smtpclient.WithTransportLogger(slogger),
	}
	if cfg.HelloName != "" {
		if id, err := smtpkit.ParseClientID(cfg.HelloName); err == nil {
			opts = append(opts, smtpclient.WithHelloName(id))
		}
	}
	if cfg.Username != "" {
		opts = append(opts, smtpclient.WithCredentials(smtpkit.NewCredentials(cfg.Username, cfg.Password)))
	}
	if len(cfg.AuthMechanisms) > 0 {
		opts = append(opts, smtpclient.WithAuthMechanisms(cfg.AuthMechanisms))
	}
	if cfg.AllowUTF8 {
		opts = append(opts, smtpclient.WithSMTPUTF8Allowed())
	}

	tr := smtpclient.NewTransport(cfg.Addr, opts...)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	reply, err := tr.Send(ctx, env)
	if err != nil {
		slogger.Error("smtpsend: send failed", "err", err)
		return 1
	}

	for _, outcome := range reply.RecipientLog {
		slogger.Info("smtpsend: recipient outcome", "recipient", outcome.Recipient.String(), "accepted", outcome.Accepted)
	}
	slogger.Info("smtpsend: message sent")
	return 0
}

func buildLogger(cfg *smtpkitcfg.Config) *logrus.Logger {
	logger := logrus.New()
	logger.Out = os.Stdout
	if cfg.LogFormat == "json" {
		logger.Formatter = &logrus.JSONFormatter{}
	} else {
		logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func buildEnvelope(from, to, subject, bodyFile string) (smtpkit.Envelope, error) {
	var sender *smtpkit.Mailbox
	if from != "" {
		local, domain, ok := strings.Cut(from, "@")
		if !ok {
			return smtpkit.Envelope{}, fmt.Errorf("smtpsend: -from must be local@domain")
		}
		sender = &smtpkit.Mailbox{LocalPart: local, Domain: domain}
	}

	var recipients []smtpkit.Mailbox
	for _, addr := range strings.Split(to, ",") {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		local, domain, ok := strings.Cut(addr, "@")
		if !ok {
			return smtpkit.Envelope{}, fmt.Errorf("smtpsend: invalid recipient %q", addr)
		}
		recipients = append(recipients, smtpkit.Mailbox{LocalPart: local, Domain: domain})
	}

	body, err := readBody(bodyFile, subject)
	if err != nil {
		return smtpkit.Envelope{}, err
	}

	return smtpkit.Envelope{
		Sender:     sender,
		Recipients: recipients,
		Body:       strings.NewReader(body),
	}, nil
}

func readBody(path, subject string) (string, error) {
	var raw []byte
	var err error
	if path == "" || path == "-" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("smtpsend: reading message body: %w", err)
	}

	var b strings.Builder
	if subject != "" {
		fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	}
	b.WriteString("\r\n")
	b.Write(raw)
	return b.String(), nil
}

func parseSecurity(mode string, insecureSkipVerify bool) (smtpkit.Security, error) {
	var tlsCfg *tls.Config
	if insecureSkipVerify {
		tlsCfg = &tls.Config{InsecureSkipVerify: true}
	}
	switch strings.ToLower(mode) {
	case "", "opportunistic":
		return smtpkit.NewSecurity(smtpkit.SecurityOpportunistic, tlsCfg), nil
	case "required":
		return smtpkit.NewSecurity(smtpkit.SecurityRequired, tlsCfg), nil
	case "wrapper":
		return smtpkit.NewSecurity(smtpkit.SecurityWrapper, tlsCfg), nil
	case "none":
		return smtpkit.NewSecurity(smtpkit.SecurityNone, tlsCfg), nil
	default:
		return smtpkit.Security{}, fmt.Errorf("smtpsend: unknown security mode %q", mode)
	}
}

package smtpkit

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// SASLMechanism defines a client-side SASL authentication mechanism
// (spec §4.5).
type SASLMechanism interface {
	// Name returns the IANA-registered mechanism name (e.g., "PLAIN").
	Name() string
	// Start begins authentication and returns the initial response.
	// If no initial response is needed, return nil, nil.
	Start() ([]byte, error)
	// Next processes a server challenge and returns the response.
	Next(challenge []byte) ([]byte, error)
}

// PlainAuth returns a SASLMechanism implementing SASL PLAIN (RFC 4616).
// The identity is typically empty (server derives it from username).
func PlainAuth(identity, username, password string) SASLMechanism {
	return &plainAuth{identity: identity, username: username, password: password}
}

type plainAuth struct {
	identity string
	username string
	password string
}

func (a *plainAuth) Name() string { return "PLAIN" }

func (a *plainAuth) Start() ([]byte, error) {
	// PLAIN format: [authzid] NUL authcid NUL passwd
	resp := []byte(a.identity + "\x00" + a.username + "\x00" + a.password)
	return resp, nil
}

func (a *plainAuth) Next(challenge []byte) ([]byte, error) {
	return nil, fmt.Errorf("smtpkit: unexpected PLAIN challenge")
}

// loginAuth implements SASL LOGIN (draft-murchison-sasl-login).
type loginAuth struct {
	username string
	password string
	step     int
}

// LoginAuth returns a SASLMechanism implementing SASL LOGIN.
func LoginAuth(username, password string) SASLMechanism {
	return &loginAuth{username: username, password: password}
}

func (a *loginAuth) Name() string { return "LOGIN" }

func (a *loginAuth) Start() ([]byte, error) {
	// LOGIN has no initial response; the server drives with challenges.
	return nil, nil
}

func (a *loginAuth) Next(challenge []byte) ([]byte, error) {
	switch a.step {
	case 0:
		a.step++
		return []byte(a.username), nil
	case 1:
		a.step++
		return []byte(a.password), nil
	default:
		return nil, fmt.Errorf("smtpkit: unexpected LOGIN challenge at step %d", a.step)
	}
}

// cramMD5Auth implements SASL CRAM-MD5 (RFC 2195).
type cramMD5Auth struct {
	username string
	secret   string
}

// CramMD5Auth returns a SASLMechanism implementing SASL CRAM-MD5.
func CramMD5Auth(username, secret string) SASLMechanism {
	return &cramMD5Auth{username: username, secret: secret}
}

func (a *cramMD5Auth) Name() string { return "CRAM-MD5" }

func (a *cramMD5Auth) Start() ([]byte, error) {
	// CRAM-MD5 has no initial response; the server sends the challenge.
	return nil, nil
}

func (a *cramMD5Auth) Next(challenge []byte) ([]byte, error) {
	mac := hmac.New(md5.New, []byte(a.secret))
	mac.Write(challenge)
	digest := hex.EncodeToString(mac.Sum(nil))
	return []byte(a.username + " " + digest), nil
}

// MechanismFactory builds a SASLMechanism for a pair of credentials once the
// server's advertised name has been matched against the caller's preference
// list. This lets [SelectMechanism] pick a mechanism by name without the
// caller pre-building one instance per candidate.
type MechanismFactory func(user, secret string) SASLMechanism

// mechanismFactories maps the IANA names of the mechanisms this client
// implements to their constructors (spec §4.5). Preference order comes from
// the caller's list, not from this map.
var mechanismFactories = map[string]MechanismFactory{
	"PLAIN":    func(user, secret string) SASLMechanism { return PlainAuth("", user, secret) },
	"LOGIN":    func(user, secret string) SASLMechanism { return LoginAuth(user, secret) },
	"CRAM-MD5": func(user, secret string) SASLMechanism { return CramMD5Auth(user, secret) },
}

// SelectMechanism picks the first of preferred that both this client
// implements and the server advertised in exts, and returns a constructed
// mechanism for it. If none match, it reports ok=false so the caller can
// raise AuthNoMechanism (spec §4.5, §7).
func SelectMechanism(exts Extensions, preferred []string, user, secret string) (mech SASLMechanism, ok bool) {
	advertised := make(map[string]bool)
	for _, m := range exts.AuthMechanisms() {
		advertised[m] = true
	}
	for _, name := range preferred {
		if !advertised[name] {
			continue
		}
		factory, known := mechanismFactories[name]
		if !known {
			continue
		}
		return factory(user, secret), true
	}
	return nil, false
}

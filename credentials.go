package smtpkit

// Credentials holds SASL authentication material. The secret is held until
// Zero is called; call Zero (or let the façade call it on Close) to scrub it
// from memory once it is no longer needed (spec §3, §9). Credentials is
// read-only shared between the façade and the authenticator during a single
// AUTH exchange.
type Credentials struct {
	User   string
	secret []byte
}

// NewCredentials builds a Credentials value, copying secret into an
// internally owned buffer so the caller's own copy is unaffected by Zero.
func NewCredentials(user, secret string) Credentials {
	buf := make([]byte, len(secret))
	copy(buf, secret)
	return Credentials{User: user, secret: buf}
}

// Secret returns the secret as a string. Callers authenticating should
// prefer this only at the point of use; it is not retained by Credentials
// itself once Zero is called.
func (c Credentials) Secret() string {
	return string(c.secret)
}

// Zero overwrites the secret bytes with zeroes. The façade calls it from
// Transport.Close; a connection that the façade closes and redials under
// its reuse policy does not zero the secret, which stays in use for the
// next connection.
func (c *Credentials) Zero() {
	for i := range c.secret {
		c.secret[i] = 0
	}
	c.secret = nil
}

// IsZero reports whether no credentials were configured.
func (c Credentials) IsZero() bool {
	return c.User == "" && len(c.secret) == 0
}

package auth

import (
	"crypto/subtle"
	"net/http"
	"net/netip"
)

const (
	// HeaderName carries the API password.
	HeaderName = "X-HA-Access"

	// QueryParam carries the API password in the query string.
	QueryParam = "api_password"

	// BasicAuthUser is the only user name accepted with Basic auth.
	BasicAuthUser = "homeassistant"
)

// Authenticator checks requests against the API password and trusted networks.
// It is immutable after construction and safe for concurrent use.
type Authenticator struct {
	password []byte
	trusted  []netip.Prefix
}

// New creates an Authenticator. An empty password disables the credential check.
func New(password string, trusted []netip.Prefix) *Authenticator {
	a := &Authenticator{trusted: make([]netip.Prefix, len(trusted))}
	copy(a.trusted, trusted)
	if password != "" {
		a.password = []byte(password)
	}
	return a
}

// PasswordSet reports whether an API password is configured.
func (a *Authenticator) PasswordSet() bool {
	return a.password != nil
}

// IsTrusted reports whether ip lies in one of the trusted networks.
func (a *Authenticator) IsTrusted(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}
	ip = ip.Unmap()
	for _, p := range a.trusted {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

// Authenticate reports whether r, coming from client address ip, is
// authenticated.
func (a *Authenticator) Authenticate(r *http.Request, ip netip.Addr) bool {
	if a.password == nil || a.IsTrusted(ip) {
		return true
	}

	if v := r.Header.Get(HeaderName); v != "" {
		return a.ValidPassword(v)
	}
	if v := r.URL.Query().Get(QueryParam); v != "" {
		return a.ValidPassword(v)
	}
	if user, pass, ok := r.BasicAuth(); ok && user == BasicAuthUser {
		return a.ValidPassword(pass)
	}
	return false
}

// ValidPassword compares candidate with the API password in constant time.
func (a *Authenticator) ValidPassword(candidate string) bool {
	if a.password == nil {
		return true
	}
	return subtle.ConstantTimeCompare(a.password, []byte(candidate)) == 1
}

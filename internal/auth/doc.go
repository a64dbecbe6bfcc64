// Package auth decides whether an HTTP request to the front door is
// authenticated.
//
// The hub is protected by one shared secret, the API password. A request is
// authenticated when its client address lies in a trusted network, or when it
// presents the password in one of these places, checked in order:
//
//   - the X-HA-Access header
//   - the api_password query parameter
//   - HTTP Basic auth with user "homeassistant"
//
// With no password configured every request is authenticated.
package auth

// Package ban tracks failed authentication attempts per client address and
// bans addresses that reach a configurable threshold.
//
// A ban is standing: once an address is banned every later request from it
// is refused, whether or not it presents a valid credential. Bans are kept in
// memory for the request path and written through to a Store so they survive
// restarts. Failed attempts and new bans are announced through a Notifier.
//
// A threshold of NoThreshold (-1) never bans but still counts attempts.
//
// Thread Safety: Tracker is safe for concurrent use.
package ban

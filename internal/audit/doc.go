// Package audit keeps a persistent trail of front door security events:
// failed authentication attempts and IP bans.
//
// Recorder receives events from the ban tracker and writes them to the
// http_audit_log table in the background. SQLiteRepository reads them back
// for the /api/audit view.
package audit

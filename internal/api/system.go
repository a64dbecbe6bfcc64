package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/gray-logic-http/internal/audit"
	"github.com/nerrad567/gray-logic-http/internal/ban"
)

// registerSystemViews adds the views every front door serves.
func (s *Server) registerSystemViews() error {
	for _, v := range []View{
		{URL: "/api/", Name: "api:status", Get: s.handleStatus},
		{URL: "/api/health", Name: "api:health", Public: true, Get: s.handleHealth},
		{URL: "/api/metrics", Name: "api:metrics", Get: s.handleMetrics},
		{URL: "/api/bans", Name: "api:bans", Get: s.handleListBans},
	} {
		if err := s.RegisterView(v); err != nil {
			return err
		}
	}
	if s.audit != nil {
		return s.RegisterView(View{URL: "/api/audit", Name: "api:audit", Get: s.handleListAudit})
	}
	return nil
}

// handleStatus confirms an authenticated client can reach the API.
func (s *Server) handleStatus(_ *http.Request, _ map[string]string) (any, error) {
	return JSONMessage("API running.", http.StatusOK, "")
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(_ *http.Request, _ map[string]string) (any, error) {
	return JSON(map[string]any{
		"status":  "ok",
		"version": s.version,
	}, http.StatusOK)
}

// handleListBans lists banned addresses, oldest first.
func (s *Server) handleListBans(_ *http.Request, _ map[string]string) (any, error) {
	bans := []ban.Ban{}
	if s.bans != nil {
		bans = s.bans.Bans()
	}
	return JSON(map[string]any{"bans": bans}, http.StatusOK)
}

// handleListAudit pages through failed logins and bans, newest first.
// Query parameters: action, remote_addr, limit, offset.
func (s *Server) handleListAudit(r *http.Request, _ map[string]string) (any, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		Action:     q.Get("action"),
		RemoteAddr: q.Get("remote_addr"),
	}
	switch filter.Action {
	case "", audit.ActionLoginFailed, audit.ActionIPBanned:
	default:
		return nil, &Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "unknown action " + strconv.Quote(filter.Action)}
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		return nil, &Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "limit must be a non-negative integer"}
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		return nil, &Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: "offset must be a non-negative integer"}
	}

	res, err := s.audit.List(r.Context(), filter)
	if err != nil {
		return nil, err
	}
	return JSON(res, http.StatusOK)
}

// intParam parses an optional non-negative query parameter. Empty means 0.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, strconv.ErrRange
	}
	return n, nil
}

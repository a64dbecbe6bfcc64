package api

import (
	"net"
	"strconv"
	"strings"

	"github.com/nerrad567/gray-logic-http/internal/infrastructure/config"
)

// localIP returns the address of the interface used for outbound traffic.
// Dialling UDP sends no packets; it only selects a route.
var localIP = func() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return "127.0.0.1"
}

// APIEndpoint returns the base URL other components should use to reach the
// API: base_url when set, otherwise the bind host, otherwise the machine's
// primary local address.
func (s *Server) APIEndpoint() string {
	scheme := "http"
	if s.cfg.TLSEnabled() {
		scheme = "https"
	}

	if s.cfg.BaseURL != "" {
		base := strings.TrimRight(s.cfg.BaseURL, "/")
		if strings.Contains(base, "://") {
			return base
		}
		return scheme + "://" + base
	}

	host := s.cfg.ServerHost
	if host == "" || host == config.DefaultServerHost {
		host = localIP()
	}
	return scheme + "://" + net.JoinHostPort(host, strconv.Itoa(s.cfg.ServerPort))
}

package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"
)

// HandlerFunc handles one HTTP method of a view. params holds the values
// matched by the {name} placeholders of the route pattern.
//
// The result is written as described on writeResult. A non-nil error is
// logged and answered with a JSON 500, or with the status of an *Error.
type HandlerFunc func(r *http.Request, params map[string]string) (any, error)

// View is a set of handlers for one logical resource. URL and Name are
// required; URL patterns use chi syntax ("/api/states/{entity_id}").
type View struct {
	URL       string
	ExtraURLs []string
	Name      string

	// Public views may be called without authenticating.
	Public bool

	Get    HandlerFunc
	Post   HandlerFunc
	Put    HandlerFunc
	Patch  HandlerFunc
	Delete HandlerFunc
}

type methodHandler struct {
	method string
	fn     HandlerFunc
}

func (v View) methods() []methodHandler {
	var out []methodHandler
	for _, mh := range []methodHandler{
		{http.MethodGet, v.Get},
		{http.MethodPost, v.Post},
		{http.MethodPut, v.Put},
		{http.MethodPatch, v.Patch},
		{http.MethodDelete, v.Delete},
	} {
		if mh.fn != nil {
			out = append(out, mh)
		}
	}
	return out
}

func (v View) validate() error {
	if v.URL == "" {
		return fmt.Errorf("%w: view %q missing required URL", ErrInvalidView, v.Name)
	}
	if v.Name == "" {
		return fmt.Errorf("%w: view for %s missing required name", ErrInvalidView, v.URL)
	}
	for _, u := range append([]string{v.URL}, v.ExtraURLs...) {
		if !strings.HasPrefix(u, "/") {
			return fmt.Errorf("%w: view %s URL %q must start with /", ErrInvalidView, v.Name, u)
		}
	}
	if len(v.methods()) == 0 {
		return fmt.Errorf("%w: view %s has no handlers", ErrInvalidView, v.Name)
	}
	return nil
}

type route struct {
	method  string
	pattern string
	handler http.Handler
}

// RegisterView binds every handler of v to its URL and extra URLs.
// Either all routes are added or none are.
func (s *Server) RegisterView(v View) error {
	if err := v.validate(); err != nil {
		return err
	}

	var routes []route
	for _, mh := range v.methods() {
		h := s.dispatch(v, mh.fn)
		for _, u := range append([]string{v.URL}, v.ExtraURLs...) {
			routes = append(routes, route{method: mh.method, pattern: u, handler: h})
		}
	}
	if err := s.addRoutes(routes...); err != nil {
		return fmt.Errorf("registering view %s: %w", v.Name, err)
	}

	s.logger.Debug("view registered", "view", v.Name, "url", v.URL, "public", v.Public)
	return nil
}

// RegisterRedirect answers GET url with a permanent redirect to target.
func (s *Server) RegisterRedirect(url, target string) error {
	if !strings.HasPrefix(url, "/") {
		return fmt.Errorf("%w: redirect URL %q must start with /", ErrInvalidView, url)
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
	return s.addRoutes(route{method: http.MethodGet, pattern: url, handler: h})
}

// RegisterStaticPath serves the file or directory at path under urlPath.
// Directory listings are not served.
func (s *Server) RegisterStaticPath(urlPath, path string) error {
	if !strings.HasPrefix(urlPath, "/") {
		return fmt.Errorf("%w: static URL %q must start with /", ErrInvalidView, urlPath)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("static path %s: %w", path, err)
	}

	if !info.IsDir() {
		return s.addRoutes(route{method: http.MethodGet, pattern: urlPath, handler: File(path)})
	}

	prefix := strings.TrimRight(urlPath, "/")
	files := http.StripPrefix(prefix, http.FileServer(http.Dir(path)))
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			writeNotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	})
	return s.addRoutes(route{method: http.MethodGet, pattern: prefix + "/*", handler: h})
}

// addRoutes adds routes to the router while the server is stopped.
func (s *Server) addRoutes(routes ...route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return ErrRoutesFrozen
	}
	for _, rt := range routes {
		if _, exists := s.routes[rt.method+" "+rt.pattern]; exists {
			return fmt.Errorf("%w: %s %s", ErrRouteExists, rt.method, rt.pattern)
		}
	}
	for _, rt := range routes {
		s.router.Method(rt.method, rt.pattern, rt.handler)
		s.routes[rt.method+" "+rt.pattern] = struct{}{}
	}
	return nil
}

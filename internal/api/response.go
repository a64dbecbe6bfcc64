package api

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

const (
	contentTypeJSON = "application/json"
	contentTypeText = "text/plain; charset=utf-8"
)

// Response is a complete response built by a view handler. It is written as
// is; when Compress is set the body is compressed with an encoding the client
// accepts.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Compress bool
}

// Reply pairs a body with a status code. Body follows the same rules as a
// bare handler result: nil, string or []byte.
type Reply struct {
	Body   any
	Status int
}

// File returns a handler result that serves the file at path.
func File(path string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := os.Stat(path); err != nil {
			writeNotFound(w, r)
			return
		}
		http.ServeFile(w, r, path)
	})
}

// writeResult turns a view handler's result into a response.
//
// Handlers may return a *Response or an http.Handler, which are passed
// through, a Reply, or a bare body. Any other type is a programming error in
// the view and panics; the recovery middleware answers it with a 500.
func writeResult(w http.ResponseWriter, r *http.Request, view string, result any) {
	switch v := result.(type) {
	case *Response:
		if v == nil {
			writeBody(w, http.StatusOK, nil)
			return
		}
		v.write(w, r)
	case http.Handler:
		v.ServeHTTP(w, r)
	case Reply:
		writeBody(w, v.Status, coerceBody(view, v.Body))
	case *Reply:
		writeBody(w, v.Status, coerceBody(view, v.Body))
	default:
		writeBody(w, http.StatusOK, coerceBody(view, result))
	}
}

// coerceBody converts a bare handler body to bytes.
func coerceBody(view string, body any) []byte {
	switch b := body.(type) {
	case nil:
		return nil
	case string:
		return []byte(b)
	case []byte:
		return b
	default:
		panic(fmt.Sprintf("view %s returned a result of unsupported type %T", view, body))
	}
}

func writeBody(w http.ResponseWriter, status int, body []byte) {
	if status == 0 {
		status = http.StatusOK
	}
	if len(body) > 0 && w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", contentTypeText)
	}
	w.WriteHeader(status)
	if len(body) > 0 {
		w.Write(body) //nolint:errcheck // client may have gone away
	}
}

func (resp *Response) write(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	for k, vs := range resp.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	body := resp.Body
	if resp.Compress && len(body) > 0 {
		h.Add("Vary", "Accept-Encoding")
		if enc := negotiateEncoding(r.Header.Get("Accept-Encoding")); enc != "" {
			if compressed, err := compress(body, enc); err == nil {
				h.Set("Content-Encoding", enc)
				body = compressed
			}
		}
	}
	h.Set("Content-Length", strconv.Itoa(len(body)))

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(body) //nolint:errcheck // client may have gone away
	}
}

// negotiateEncoding picks the coding with the highest q-value from an
// Accept-Encoding header, br winning ties. A coding listed by name uses its
// own q-value, q=0 refusing it; "*" stands in for gzip only when gzip is not
// listed. An empty result means send the body as is.
func negotiateEncoding(header string) string {
	listed := make(map[string]float64)
	wildcard, hasWildcard := 0.0, false
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		name = strings.ToLower(strings.TrimSpace(name))
		switch name {
		case "":
			continue
		case "*":
			wildcard, hasWildcard = qValue(params), true
		default:
			listed[name] = qValue(params)
		}
	}

	brQ := listed["br"]
	gzQ, ok := listed["gzip"]
	if !ok && hasWildcard {
		gzQ = wildcard
	}

	switch {
	case brQ > 0 && brQ >= gzQ:
		return "br"
	case gzQ > 0:
		return "gzip"
	default:
		return ""
	}
}

// qValue reads the q parameter. Missing means 1; malformed means 0.
func qValue(params string) float64 {
	for _, p := range strings.Split(params, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(p), "=")
		if !ok || !strings.EqualFold(strings.TrimSpace(k), "q") {
			continue
		}
		q, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || q < 0 {
			return 0
		}
		return min(q, 1)
	}
	return 1
}

func compress(body []byte, encoding string) ([]byte, error) {
	var buf bytes.Buffer
	switch encoding {
	case "br":
		bw := brotli.NewWriterLevel(&buf, brotli.DefaultCompression)
		if _, err := bw.Write(body); err != nil {
			return nil, fmt.Errorf("brotli write: %w", err)
		}
		if err := bw.Close(); err != nil {
			return nil, fmt.Errorf("brotli close: %w", err)
		}
	case "gzip":
		gw := gzip.NewWriter(&buf)
		if _, err := gw.Write(body); err != nil {
			return nil, fmt.Errorf("gzip write: %w", err)
		}
		if err := gw.Close(); err != nil {
			return nil, fmt.Errorf("gzip close: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
	return buf.Bytes(), nil
}

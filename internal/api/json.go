package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// JSON serialises v with object keys sorted at every level and returns a
// compressed application/json response.
func JSON(v any, status int) (*Response, error) {
	body, err := marshalSorted(v)
	if err != nil {
		return nil, err
	}
	return &Response{
		Status:   status,
		Header:   http.Header{"Content-Type": []string{contentTypeJSON}},
		Body:     body,
		Compress: true,
	}, nil
}

// JSONMessage returns {"message": message}, plus "code" when code is not empty.
func JSONMessage(message string, status int, code string) (*Response, error) {
	data := map[string]string{"message": message}
	if code != "" {
		data["code"] = code
	}
	return JSON(data, status)
}

// marshalSorted encodes v, decodes it into generic maps and encodes again so
// struct fields come out in key order like map entries do.
func marshalSorted(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding json response: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("normalising json response: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encoding json response: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

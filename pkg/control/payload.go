package control

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
)

// Payload is the decoded argument object of a command. A nil Payload means
// the request carried none.
type Payload map[string]json.RawMessage

// Has reports whether key is present.
func (p Payload) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// Lookup decodes the value of key into v. It reports false when key is
// absent.
func (p Payload) Lookup(key string, v any) (bool, error) {
	raw, ok := p[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("field %q: %w", key, err)
	}
	return true, nil
}

// PayloadFromValues converts query parameters into a Payload. Each value is
// read as JSON when it parses, otherwise as a string. Only the first value
// of a repeated key is used.
func PayloadFromValues(values url.Values) Payload {
	if len(values) == 0 {
		return nil
	}
	p := make(Payload, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		v := []byte(vs[0])
		if json.Valid(v) {
			p[k] = json.RawMessage(v)
			continue
		}
		quoted, _ := json.Marshal(vs[0])
		p[k] = quoted
	}
	return p
}

// payloadFromRequest resolves the payload: the URL query first, then the
// body according to its content type. Form bodies and bodies without a
// content type are read as a query string, JSON bodies as an object, and
// anything else yields no payload.
func payloadFromRequest(r *http.Request) (Payload, error) {
	if p := PayloadFromValues(r.URL.Query()); p != nil {
		return p, nil
	}
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(body) == 0 {
		return nil, nil
	}

	ct := r.Header.Get("Content-Type")
	mediaType := ""
	if ct != "" {
		mediaType, _, err = mime.ParseMediaType(ct)
		if err != nil {
			return nil, nil
		}
	}

	switch mediaType {
	case "", "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, fmt.Errorf("parse form body: %w", err)
		}
		return PayloadFromValues(values), nil
	case "application/json":
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("parse JSON body: %w", err)
		}
		return p, nil
	default:
		return nil, nil
	}
}

package httpio

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// responseBuffer collects a handler's response so the worker can set the
// framing headers and write it in one piece.
type responseBuffer struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newResponseBuffer() *responseBuffer {
	return &responseBuffer{header: make(http.Header)}
}

func (rb *responseBuffer) Header() http.Header { return rb.header }

func (rb *responseBuffer) Write(p []byte) (int, error) {
	if rb.status == 0 {
		rb.WriteHeader(http.StatusOK)
	}
	return rb.body.Write(p)
}

func (rb *responseBuffer) WriteHeader(status int) {
	if rb.status == 0 {
		rb.status = status
	}
}

// reset discards anything a handler wrote.
func (rb *responseBuffer) reset() {
	rb.header = make(http.Header)
	rb.status = 0
	rb.body.Reset()
}

func (rb *responseBuffer) writeTo(w io.Writer, req *http.Request, closeConn bool) error {
	status := rb.status
	if status == 0 {
		status = http.StatusOK
	}
	if rb.header.Get("Content-Type") == "" && rb.body.Len() > 0 {
		rb.header.Set("Content-Type", http.DetectContentType(rb.body.Bytes()))
	}
	rb.header.Set("Content-Length", strconv.Itoa(rb.body.Len()))
	if closeConn {
		rb.header.Set("Connection", "close")
	}

	resp := &http.Response{
		StatusCode:    status,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Request:       req,
		Header:        rb.header,
		Body:          io.NopCloser(bytes.NewReader(rb.body.Bytes())),
		ContentLength: int64(rb.body.Len()),
		Close:         closeConn,
	}

	bw := bufio.NewWriter(w)
	if err := resp.Write(bw); err != nil {
		return fmt.Errorf("write response: %w", err)
	}
	return bw.Flush()
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// WriteString writes s as a plain text response with the given status.
func WriteString(w http.ResponseWriter, status int, s string) error {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, err := io.WriteString(w, s)
	return err
}

// Bail marks the connection serving r as unhealthy. The current response is
// still written, then the connection is closed.
func Bail(r *http.Request) {
	if rc := RequestContextFrom(r.Context()); rc != nil {
		rc.bail = true
	}
}

// RequireBasicAuth admits requests carrying the given credentials and
// records the user in the RequestContext for the current request only.
func RequireBasicAuth(user, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != password {
			w.Header().Set("WWW-Authenticate", `Basic realm="cbmock"`)
			WriteString(w, http.StatusUnauthorized, "Unauthorized\n")
			return
		}
		if rc := RequestContextFrom(r.Context()); rc != nil {
			rc.User = u
		}
		next.ServeHTTP(w, r)
	})
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	WriteString(w, http.StatusNotFound, "Not Found\n")
}

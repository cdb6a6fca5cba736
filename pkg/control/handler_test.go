package control

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cbmock/cbmock-go/pkg/httpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		path string
		want route
	}{
		{"/mock/opfail", route{kind: routeDispatch, command: "opfail"}},
		{"///mock/opfail", route{kind: routeDispatch, command: "opfail"}},
		{"/mock/opfail/", route{kind: routeDispatch, command: "opfail"}},
		{"/mock/help", route{kind: routeHelp}},
		{"/mock", route{kind: routeNotFound}},
		{"/mock/a/b", route{kind: routeNotFound}},
		{"/", route{kind: routeNotFound}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRoute(tt.path))
		})
	}
}

func testHandler() (*Dispatcher, *Handler) {
	d := NewDispatcher()
	d.Register("echo", "Echo the payload.", CommandFunc(func(_ context.Context, p Payload) *CommandStatus {
		var msg string
		if ok, err := p.Lookup("msg", &msg); err != nil || !ok {
			return Fail("Missing msg")
		}
		return OK().WithPayload(msg)
	}))
	return d, NewHandler(d)
}

func serve(h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandlerHelp(t *testing.T) {
	d, h := testHandler()

	help := serve(h, http.MethodGet, "/mock/help", "", "")
	assert.Equal(t, http.StatusOK, help.Code)
	assert.Equal(t, d.Help(), help.Body.String())

	bad := serve(h, http.MethodGet, "/mock/a/b", "", "")
	assert.Equal(t, http.StatusNotFound, bad.Code)
	assert.Equal(t, help.Body.String(), bad.Body.String())
}

func TestHandlerUnknownCommandMatchesHelp(t *testing.T) {
	_, h := testHandler()

	help := serve(h, http.MethodGet, "/mock/help", "", "")
	unknown := serve(h, http.MethodGet, "/mock/nosuchcommand", "", "")
	assert.Equal(t, http.StatusNotFound, unknown.Code)
	assert.Equal(t, help.Body.String(), unknown.Body.String())
}

func TestHandlerDispatch(t *testing.T) {
	_, h := testHandler()

	tests := []struct {
		name        string
		method      string
		target      string
		contentType string
		body        string
		want        string
	}{
		{"query", http.MethodGet, "/mock/echo?msg=hi", "", "", `{"status":"ok","payload":"hi"}`},
		{"form", http.MethodPost, "/mock/echo", "application/x-www-form-urlencoded", "msg=hi", `{"status":"ok","payload":"hi"}`},
		{"json", http.MethodPost, "/mock/echo", "application/json", `{"msg":"hi"}`, `{"status":"ok","payload":"hi"}`},
		{"other type", http.MethodPost, "/mock/echo", "text/plain", `msg=hi`, `{"status":"fail","error":"Missing msg"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, tt.method, tt.target, tt.contentType, tt.body)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.JSONEq(t, tt.want, w.Body.String())
		})
	}
}

func TestHandlerBadJSONBody(t *testing.T) {
	_, h := testHandler()
	w := serve(h, http.MethodPost, "/mock/echo", "application/json", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"fail"`)
}

func TestHandlerPanicBailsConnection(t *testing.T) {
	d, h := testHandler()
	d.Register("explode", "", CommandFunc(func(context.Context, Payload) *CommandStatus {
		panic("command exploded")
	}))

	srv := httpio.New()
	require.NoError(t, srv.Bind("127.0.0.1:0"))
	require.NoError(t, srv.Start())
	defer srv.Stop()
	h.Mount(srv)

	resp, err := http.Get("http://" + srv.Addr().String() + "/mock/explode")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, string(body), "command exploded")
	assert.True(t, resp.Close)
}

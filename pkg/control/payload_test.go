package control

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadFromValues(t *testing.T) {
	p := PayloadFromValues(url.Values{
		"code":    {"134"},
		"servers": {"[0,2]"},
		"bucket":  {"travel"},
	})

	var code int
	ok, err := p.Lookup("code", &code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 134, code)

	var servers []int
	_, err = p.Lookup("servers", &servers)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, servers)

	var bucket string
	_, err = p.Lookup("bucket", &bucket)
	require.NoError(t, err)
	assert.Equal(t, "travel", bucket)

	ok, err = p.Lookup("missing", &bucket)
	assert.False(t, ok)
	assert.NoError(t, err)

	assert.Nil(t, PayloadFromValues(nil))
}

func TestPayloadLookupTypeMismatch(t *testing.T) {
	p := Payload{"count": []byte(`"many"`)}
	var n int
	ok, err := p.Lookup("count", &n)
	assert.True(t, ok)
	assert.Error(t, err)
}

func TestPayloadFromRequest(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		contentType string
		body        string
		wantCode    bool
	}{
		{"query", "/mock/opfail?code=134&count=1", "", "", true},
		{"query wins over body", "/mock/opfail?code=134", "application/json", `{"other":1}`, true},
		{"form body", "/mock/opfail", "application/x-www-form-urlencoded", "code=134&count=1", true},
		{"no content type", "/mock/opfail", "", "code=134", true},
		{"json body", "/mock/opfail", "application/json", `{"code":134}`, true},
		{"json with charset", "/mock/opfail", "application/json; charset=utf-8", `{"code":134}`, true},
		{"other content type", "/mock/opfail", "text/plain", `{"code":134}`, false},
		{"empty", "/mock/opfail", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.target, strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			p, err := payloadFromRequest(r)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, p.Has("code"))
		})
	}
}

func TestPayloadFromRequestBadJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/mock/opfail", strings.NewReader("{"))
	r.Header.Set("Content-Type", "application/json")
	_, err := payloadFromRequest(r)
	assert.Error(t, err)
}

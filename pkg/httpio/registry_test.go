package httpio

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagged(tag string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteString(w, http.StatusOK, tag)
	})
}

func lookupTag(t *testing.T, r *registry, path string) string {
	t.Helper()
	h := r.lookup(path)
	if h == nil {
		return ""
	}
	rb := newResponseBuffer()
	h.ServeHTTP(rb, &http.Request{})
	return rb.body.String()
}

func TestRegistryTrailingSlash(t *testing.T) {
	r := newRegistry()
	r.register("/x", tagged("x"))

	assert.Equal(t, "x", lookupTag(t, r, "/x"))
	assert.Equal(t, "x", lookupTag(t, r, "/x/"))
	assert.Equal(t, "", lookupTag(t, r, "/x/y"))

	r.unregister("/x")
	assert.Nil(t, r.lookup("/x"))
	assert.Nil(t, r.lookup("/x/"))
}

func TestRegistryPrecedence(t *testing.T) {
	r := newRegistry()
	r.register("*", tagged("any"))
	r.register("/mock/*", tagged("mock"))
	r.register("/mock/special/*", tagged("special"))
	r.register("*.json", tagged("json"))
	r.register("/mock/help", tagged("help"))

	assert.Equal(t, "help", lookupTag(t, r, "/mock/help"))
	assert.Equal(t, "mock", lookupTag(t, r, "/mock/opfail"))
	assert.Equal(t, "special", lookupTag(t, r, "/mock/special/x"))
	assert.Equal(t, "json", lookupTag(t, r, "/data/file.json"))
	assert.Equal(t, "any", lookupTag(t, r, "/elsewhere"))
}

func TestWildcardMatch(t *testing.T) {
	assert.True(t, wildcardMatch("*", "/anything"))
	assert.True(t, wildcardMatch("/a/*", "/a/b"))
	assert.False(t, wildcardMatch("/a/*", "/b"))
	assert.True(t, wildcardMatch("*.txt", "/a.txt"))
	assert.False(t, wildcardMatch("*.txt", "/a.json"))
}

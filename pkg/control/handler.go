package control

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/cbmock/cbmock-go/pkg/httpio"
)

// BasePattern is the path pattern the handler is mounted on.
const BasePattern = "/mock/*"

type routeKind int

const (
	routeDispatch routeKind = iota
	routeHelp
	routeNotFound
)

type route struct {
	kind    routeKind
	command string
}

// parseRoute maps "/<base>/<command>" to a route. Leading slashes are
// ignored and trailing empty segments are dropped.
func parseRoute(path string) route {
	segments := strings.Split(strings.TrimLeft(path, "/"), "/")
	for len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	switch {
	case len(segments) != 2:
		return route{kind: routeNotFound}
	case segments[1] == "help":
		return route{kind: routeHelp}
	default:
		return route{kind: routeDispatch, command: segments[1]}
	}
}

// Handler serves the control plane over HTTP.
type Handler struct {
	dispatcher *Dispatcher
}

// NewHandler creates a handler for d.
func NewHandler(d *Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Mount registers the handler on srv.
func (h *Handler) Mount(srv *httpio.Server) {
	srv.Register(BasePattern, h)
}

func (h *Handler) writeHelp(w http.ResponseWriter, status int) {
	httpio.WriteString(w, status, h.dispatcher.Help())
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			httpio.WriteString(w, http.StatusInternalServerError, fmt.Sprintf("%v\n\n%s", p, debug.Stack()))
			httpio.Bail(r)
		}
	}()

	rt := parseRoute(r.URL.Path)
	switch rt.kind {
	case routeHelp:
		h.writeHelp(w, http.StatusOK)
		return
	case routeNotFound:
		h.writeHelp(w, http.StatusNotFound)
		return
	}

	payload, err := payloadFromRequest(r)
	if err != nil {
		httpio.WriteJSON(w, http.StatusBadRequest, Fail(err.Error()))
		return
	}

	status, err := h.dispatcher.Dispatch(r.Context(), rt.command, payload)
	if errors.Is(err, ErrCommandNotFound) {
		h.writeHelp(w, http.StatusNotFound)
		return
	}
	httpio.WriteJSON(w, http.StatusOK, status)
}

package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cbmock/cbmock-go/internal/testharness/client"
	"github.com/cbmock/cbmock-go/internal/testharness/engine"
	"github.com/cbmock/cbmock-go/internal/testharness/loader"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/sasl"
	"github.com/cbmock/cbmock-go/pkg/transport"
)

// Action names.
const (
	ActionControl        = "control"
	ActionOpfail         = "opfail"
	ActionConnect        = "connect"
	ActionDisconnect     = "disconnect"
	ActionAuthenticate   = "authenticate"
	ActionListMechanisms = "list_mechanisms"
	ActionSend           = "send"
	ActionWait           = "wait"
)

// Output keys.
const (
	KeyStatus         = "status"
	KeyError          = "error"
	KeyValue          = "value"
	KeyConnected      = "connected"
	KeyPort           = "port"
	KeyAuthStatus     = "auth_status"
	KeyResponseStatus = "response_status"
	KeyAttempts       = "attempts"
)

const (
	keyConns    = "conns"
	defaultConn = "default"
)

// conn is an open data connection in a scenario.
type conn struct {
	data   *client.DataClient
	bucket string
}

func conns(state *engine.ExecutionState) map[string]*conn {
	m, _ := state.Custom[keyConns].(map[string]*conn)
	return m
}

func allMechanisms() []string {
	return sasl.Mechanisms()
}

func (r *Runner) registerHandlers() {
	r.engine.RegisterHandler(ActionControl, r.handleControl)
	r.engine.RegisterHandler(ActionOpfail, r.handleOpfail)
	r.engine.RegisterHandler(ActionConnect, r.handleConnect)
	r.engine.RegisterHandler(ActionDisconnect, r.handleDisconnect)
	r.engine.RegisterHandler(ActionAuthenticate, r.handleAuthenticate)
	r.engine.RegisterHandler(ActionListMechanisms, r.handleListMechanisms)
	r.engine.RegisterHandler(ActionSend, r.handleSend)
	r.engine.RegisterHandler(ActionWait, handleWait)
}

// handleControl runs an arbitrary control command.
//
//	params: command, payload?
//	outputs: status, error, value (decoded payload)
func (r *Runner) handleControl(ctx context.Context, step *loader.Step, _ *engine.ExecutionState) (map[string]any, error) {
	name, err := paramString(step.Params, "command", "")
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New("control: command is required")
	}

	st, err := r.control.Command(ctx, name, step.Params["payload"])
	if err != nil {
		return nil, err
	}
	return statusOutputs(st), nil
}

func statusOutputs(st *client.Status) map[string]any {
	out := map[string]any{KeyStatus: st.Status, KeyError: st.Error}
	if len(st.Payload) > 0 {
		var v any
		if err := json.Unmarshal(st.Payload, &v); err == nil {
			out[KeyValue] = v
		}
	}
	return out
}

// handleOpfail is shorthand for OPFAIL with symbolic names.
//
//	params: code (number or name), count, operation? (number or name), servers?
//	outputs: status, error
func (r *Runner) handleOpfail(ctx context.Context, step *loader.Step, _ *engine.ExecutionState) (map[string]any, error) {
	payload := make(map[string]any)

	code, err := paramErrorCode(step.Params, "code")
	if err != nil {
		return nil, err
	}
	payload["code"] = code

	count, err := paramInt(step.Params, "count", 1)
	if err != nil {
		return nil, err
	}
	payload["count"] = count

	if _, ok := step.Params["operation"]; ok {
		op, err := paramOpcode(step.Params, "operation")
		if err != nil {
			return nil, err
		}
		payload["operation"] = uint8(op)
	}
	if servers, ok := step.Params["servers"]; ok {
		payload["servers"] = servers
	}

	st, err := r.control.Command(ctx, "OPFAIL", payload)
	if err != nil {
		return nil, err
	}
	return statusOutputs(st), nil
}

// handleConnect opens a data connection to a node.
//
//	params: bucket?, node? (default 0), conn? (default "default")
//	outputs: connected, port
func (r *Runner) handleConnect(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	bucket, err := paramString(step.Params, "bucket", "")
	if err != nil {
		return nil, err
	}
	node, err := paramInt(step.Params, "node", 0)
	if err != nil {
		return nil, err
	}
	name, err := paramString(step.Params, "conn", defaultConn)
	if err != nil {
		return nil, err
	}

	ports, err := r.control.Ports(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if node < 0 || node >= len(ports) {
		return nil, fmt.Errorf("connect: node %d out of range (bucket has %d)", node, len(ports))
	}
	if bucket == "" {
		info, err := r.control.Info(ctx)
		if err != nil {
			return nil, err
		}
		if len(info.Buckets) > 0 {
			bucket = info.Buckets[0].Name
		}
	}

	addr := net.JoinHostPort(r.host, strconv.Itoa(ports[node]))
	dc, err := client.DialData(ctx, addr, transport.ClientConfig{})
	if err != nil {
		return nil, err
	}

	m := conns(state)
	if old, ok := m[name]; ok {
		old.data.Close()
	}
	m[name] = &conn{data: dc, bucket: bucket}

	return map[string]any{KeyConnected: true, KeyPort: ports[node]}, nil
}

// handleDisconnect closes a data connection.
//
//	params: conn?
func (r *Runner) handleDisconnect(_ context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	c, name, err := lookupConn(step, state)
	if err != nil {
		return nil, err
	}
	delete(conns(state), name)
	return map[string]any{KeyConnected: false}, c.data.Close()
}

// handleAuthenticate runs a SASL exchange.
//
//	params: mechanism, username? (default: bucket), password?, conn?
//	outputs: auth_status, error
func (r *Runner) handleAuthenticate(_ context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	c, _, err := lookupConn(step, state)
	if err != nil {
		return nil, err
	}
	mech, err := paramString(step.Params, "mechanism", sasl.MechPlain)
	if err != nil {
		return nil, err
	}
	user, err := paramString(step.Params, "username", c.bucket)
	if err != nil {
		return nil, err
	}
	pass, err := paramString(step.Params, "password", "")
	if err != nil {
		return nil, err
	}

	status, err := c.data.Authenticate(mech, user, pass)
	if err != nil {
		return map[string]any{KeyAuthStatus: "", KeyError: err.Error()}, nil
	}
	return map[string]any{KeyAuthStatus: status.String(), KeyError: ""}, nil
}

// handleListMechanisms lists the node's mechanisms.
//
//	outputs: value ([]string)
func (r *Runner) handleListMechanisms(_ context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	c, _, err := lookupConn(step, state)
	if err != nil {
		return nil, err
	}
	mechs, err := c.data.ListMechanisms()
	if err != nil {
		return nil, err
	}
	return map[string]any{KeyValue: mechs}, nil
}

// handleSend sends one request. With retry set, retryable statuses are
// retried as the node's error map prescribes.
//
//	params: opcode (number or name), key?, value?, retry?, conn?
//	outputs: response_status, value (string), attempts
func (r *Runner) handleSend(ctx context.Context, step *loader.Step, state *engine.ExecutionState) (map[string]any, error) {
	c, _, err := lookupConn(step, state)
	if err != nil {
		return nil, err
	}
	op, err := paramOpcode(step.Params, "opcode")
	if err != nil {
		return nil, err
	}
	key, err := paramString(step.Params, "key", "")
	if err != nil {
		return nil, err
	}
	value, err := paramString(step.Params, "value", "")
	if err != nil {
		return nil, err
	}

	var body []byte
	if value != "" {
		body = []byte(value)
	}
	retry, _ := step.Params["retry"].(bool)

	var resp *protocol.Response
	sent := 1
	if retry {
		m, err := c.data.ErrorMap()
		if err != nil {
			return nil, err
		}
		resp, sent, err = c.data.DoRetry(ctx, m, op, key, body)
		if err != nil {
			return nil, err
		}
	} else if resp, err = c.data.Do(op, key, body); err != nil {
		return nil, err
	}
	return map[string]any{
		KeyResponseStatus: resp.Status.String(),
		KeyValue:          string(resp.Value),
		KeyAttempts:       sent,
	}, nil
}

// handleWait sleeps.
//
//	params: duration_ms
func handleWait(ctx context.Context, step *loader.Step, _ *engine.ExecutionState) (map[string]any, error) {
	ms, err := paramInt(step.Params, "duration_ms", 0)
	if err != nil {
		return nil, err
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func lookupConn(step *loader.Step, state *engine.ExecutionState) (*conn, string, error) {
	name, err := paramString(step.Params, "conn", defaultConn)
	if err != nil {
		return nil, "", err
	}
	c, ok := conns(state)[name]
	if !ok {
		return nil, "", fmt.Errorf("%s: no connection %q (connect first)", step.Action, name)
	}
	return c, name, nil
}

func paramErrorCode(params map[string]any, key string) (uint16, error) {
	if name, ok := params[key].(string); ok {
		for _, c := range protocol.ErrorCodes() {
			if c.String() == name {
				return uint16(c), nil
			}
		}
		return 0, fmt.Errorf("param %q: unknown error code %q", key, name)
	}
	n, err := paramInt(params, key, -1)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xffff {
		return 0, fmt.Errorf("param %q: missing or out of range", key)
	}
	return uint16(n), nil
}

func paramOpcode(params map[string]any, key string) (protocol.Opcode, error) {
	if name, ok := params[key].(string); ok {
		op, found := protocol.OpcodeByName(name)
		if !found {
			return 0, fmt.Errorf("param %q: unknown opcode %q", key, name)
		}
		return op, nil
	}
	n, err := paramInt(params, key, -1)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 0xff {
		return 0, fmt.Errorf("param %q: missing or out of range", key)
	}
	return protocol.Opcode(n), nil
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/cbmock/cbmock-go/pkg/control"
	"github.com/cbmock/cbmock-go/pkg/protocol"
)

// CommandError is returned when a command reports a fail status.
type CommandError struct {
	Command string
	Reason  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Command, e.Reason)
}

// Status is a decoded command response. Payload is left raw for the
// caller to decode.
type Status struct {
	Status  string          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Succeeded reports whether the command succeeded.
func (s *Status) Succeeded() bool {
	return s.Status == control.StatusOK
}

// ControlClient talks to the control endpoint of an emulator.
type ControlClient struct {
	baseURL  string
	http     *http.Client
	user     string
	password string
}

// ControlOption configures a ControlClient.
type ControlOption func(*ControlClient)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) ControlOption {
	return func(cc *ControlClient) { cc.http = c }
}

// WithBasicAuth sends credentials with every request.
func WithBasicAuth(user, password string) ControlOption {
	return func(cc *ControlClient) {
		cc.user = user
		cc.password = password
	}
}

// NewControlClient creates a client for the control API rooted at baseURL,
// for example "http://127.0.0.1:18091/mock".
func NewControlClient(baseURL string, opts ...ControlOption) *ControlClient {
	c := &ControlClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the control API root.
func (c *ControlClient) BaseURL() string {
	return c.baseURL
}

// Command posts payload as a JSON body. A nil payload sends no body.
func (c *ControlClient) Command(ctx context.Context, name string, payload any) (*Status, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", name, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.commandURL(name), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(name, req)
}

// Query runs a command with its arguments in the query string.
func (c *ControlClient) Query(ctx context.Context, name string, values url.Values) (*Status, error) {
	u := c.commandURL(name)
	if len(values) > 0 {
		u += "?" + values.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(name, req)
}

func (c *ControlClient) commandURL(name string) string {
	return c.baseURL + "/" + url.PathEscape(name)
}

func (c *ControlClient) do(name string, req *http.Request) (*Status, error) {
	if c.user != "" {
		req.SetBasicAuth(c.user, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", name, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", name, control.ErrCommandNotFound)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return nil, fmt.Errorf("%s: unexpected HTTP status %d", name, resp.StatusCode)
	}

	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", name, err)
	}
	return &st, nil
}

// run executes a command and turns a fail status into a *CommandError.
func (c *ControlClient) run(ctx context.Context, name string, payload any) (*Status, error) {
	st, err := c.Command(ctx, name, payload)
	if err != nil {
		return nil, err
	}
	if !st.Succeeded() {
		return st, &CommandError{Command: name, Reason: st.Error}
	}
	return st, nil
}

// Opfail injects code into the next count operations on the given
// servers (all when none are given).
func (c *ControlClient) Opfail(ctx context.Context, code protocol.ErrorCode, count int, servers ...int) error {
	payload := map[string]any{"code": uint16(code), "count": count}
	if len(servers) > 0 {
		payload["servers"] = servers
	}
	_, err := c.run(ctx, control.CmdOpfail, payload)
	return err
}

// OpfailOperation is Opfail restricted to one opcode.
func (c *ControlClient) OpfailOperation(ctx context.Context, code protocol.ErrorCode, count int, op protocol.Opcode, servers ...int) error {
	payload := map[string]any{"code": uint16(code), "count": count, "operation": uint8(op)}
	if len(servers) > 0 {
		payload["servers"] = servers
	}
	_, err := c.run(ctx, control.CmdOpfail, payload)
	return err
}

// ClearFailures removes injected failures from every node.
func (c *ControlClient) ClearFailures(ctx context.Context) error {
	return c.Opfail(ctx, protocol.StatusTempFail, 0)
}

// Ports returns the data ports of bucket, or of the default bucket when
// bucket is empty.
func (c *ControlClient) Ports(ctx context.Context, bucket string) ([]int, error) {
	var payload any
	if bucket != "" {
		payload = map[string]string{"bucket": bucket}
	}
	st, err := c.run(ctx, control.CmdGetMCPorts, payload)
	if err != nil {
		return nil, err
	}
	var ports []int
	if err := json.Unmarshal(st.Payload, &ports); err != nil {
		return nil, fmt.Errorf("decode ports: %w", err)
	}
	return ports, nil
}

// SetMechanisms restricts the SASL mechanisms of bucket, or of every
// bucket when bucket is empty.
func (c *ControlClient) SetMechanisms(ctx context.Context, bucket string, mechs ...string) error {
	payload := map[string]any{"mechs": mechs}
	if bucket != "" {
		payload["bucket"] = bucket
	}
	_, err := c.run(ctx, control.CmdSetSASLMechanisms, payload)
	return err
}

// MockInfo describes the emulator.
type MockInfo struct {
	Server  string `json:"server"`
	Version string `json:"version"`
	Buckets []struct {
		Name       string   `json:"name"`
		Nodes      int      `json:"nodes"`
		Mechanisms []string `json:"mechanisms"`
	} `json:"buckets"`
}

// Info returns the MOCKINFO payload.
func (c *ControlClient) Info(ctx context.Context) (*MockInfo, error) {
	st, err := c.run(ctx, control.CmdMockInfo, nil)
	if err != nil {
		return nil, err
	}
	var info MockInfo
	if err := json.Unmarshal(st.Payload, &info); err != nil {
		return nil, fmt.Errorf("decode mock info: %w", err)
	}
	return &info, nil
}

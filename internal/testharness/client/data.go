package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cbmock/cbmock-go/pkg/errmap"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/sasl"
	"github.com/cbmock/cbmock-go/pkg/transport"
)

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 5 * time.Second

// ErrOpaqueMismatch is returned when a response does not answer the
// request just sent.
var ErrOpaqueMismatch = errors.New("response opaque mismatch")

// DataClient sends requests to one node. Requests are serialized.
type DataClient struct {
	conn    *transport.ClientConn
	timeout time.Duration

	mu     sync.Mutex
	opaque uint32
	errMap *errmap.ErrorMap
}

// DialData connects to a node at address.
func DialData(ctx context.Context, address string, config transport.ClientConfig) (*DataClient, error) {
	conn, err := transport.Dial(ctx, address, config)
	if err != nil {
		return nil, err
	}
	return &DataClient{conn: conn, timeout: DefaultTimeout}, nil
}

// SetTimeout changes the per-request timeout.
func (c *DataClient) SetTimeout(d time.Duration) {
	c.mu.Lock()
	c.timeout = d
	c.mu.Unlock()
}

// Close closes the connection.
func (c *DataClient) Close() error {
	return c.conn.Close()
}

// Do sends one request and waits for its response. The opaque is assigned
// by the client.
func (c *DataClient) Do(op protocol.Opcode, key string, value []byte) (*protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opaque++
	data, err := protocol.EncodeRequest(&protocol.Request{
		Opcode: op,
		Opaque: c.opaque,
		Key:    key,
		Value:  value,
	})
	if err != nil {
		return nil, err
	}
	if err := c.conn.Send(data); err != nil {
		return nil, fmt.Errorf("send %s: %w", op, err)
	}

	raw, err := c.conn.Receive(c.timeout)
	if err != nil {
		return nil, fmt.Errorf("receive %s: %w", op, err)
	}
	resp, err := protocol.DecodeResponse(raw)
	if err != nil {
		return nil, err
	}
	if resp.Opaque != c.opaque {
		return nil, fmt.Errorf("%w: sent %d, got %d", ErrOpaqueMismatch, c.opaque, resp.Opaque)
	}
	return resp, nil
}

// Noop sends NOOP and returns its status.
func (c *DataClient) Noop() (protocol.ErrorCode, error) {
	resp, err := c.Do(protocol.OpNoop, "", nil)
	if err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// ListMechanisms returns the mechanisms the node offers.
func (c *DataClient) ListMechanisms() ([]string, error) {
	resp, err := c.Do(protocol.OpSASLListMechs, "", nil)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("list mechanisms: %s", resp.Status)
	}
	return strings.Fields(string(resp.Value)), nil
}

// Authenticate runs a complete exchange with mech. The returned status is
// the node's final answer; err is set only for transport or client-side
// protocol failures.
func (c *DataClient) Authenticate(mech, username, password string) (protocol.ErrorCode, error) {
	if mech == sasl.MechPlain {
		resp, err := c.Do(protocol.OpSASLAuth, mech, sasl.PlainMessage("", username, password))
		if err != nil {
			return 0, err
		}
		return resp.Status, nil
	}

	sc, err := sasl.NewScramClient(mech, username, password)
	if err != nil {
		return 0, err
	}
	resp, err := c.Do(protocol.OpSASLAuth, mech, sc.First())
	if err != nil {
		return 0, err
	}
	if resp.Status != protocol.StatusAuthContinue {
		return resp.Status, nil
	}

	final, err := sc.Final(resp.Value)
	if err != nil {
		return 0, err
	}
	resp, err = c.Do(protocol.OpSASLStep, mech, final)
	if err != nil {
		return 0, err
	}
	if resp.Status == protocol.StatusSuccess {
		if err := sc.Verify(resp.Value); err != nil {
			return resp.Status, fmt.Errorf("verify server signature: %w", err)
		}
	}
	return resp.Status, nil
}

package client

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/cbmock/cbmock-go/pkg/cluster"
	"github.com/cbmock/cbmock-go/pkg/control"
	"github.com/cbmock/cbmock-go/pkg/httpio"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/sasl"
	"github.com/cbmock/cbmock-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEmulator(t *testing.T) (*ControlClient, *cluster.Cluster) {
	t.Helper()

	cfg := cluster.Config{
		Host: "127.0.0.1",
		Buckets: []cluster.BucketConfig{
			{Name: "default", Password: "secret", Nodes: 2},
			{Name: "other", Nodes: 1},
		},
	}
	c, err := cluster.New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(c.Stop)

	d := control.NewDispatcher()
	control.RegisterClusterCommands(d, c)

	srv := httpio.New()
	control.NewHandler(d).Mount(srv)
	require.NoError(t, srv.Bind("127.0.0.1:0"))
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return NewControlClient(fmt.Sprintf("http://127.0.0.1:%d/mock/", srv.Port())), c
}

func dialPort(t *testing.T, port int) *DataClient {
	t.Helper()
	dc, err := DialData(context.Background(), fmt.Sprintf("127.0.0.1:%d", port), transport.ClientConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { dc.Close() })
	return dc
}

func TestControlClientPorts(t *testing.T) {
	cc, c := startEmulator(t)
	ctx := context.Background()

	ports, err := cc.Ports(ctx, "")
	require.NoError(t, err)
	require.Len(t, ports, 2)
	n, _ := c.DefaultBucket().Node(1)
	assert.Equal(t, n.Port(), ports[1])

	ports, err = cc.Ports(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, ports, 1)

	_, err = cc.Ports(ctx, "missing")
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "No such bucket", ce.Reason)
}

func TestControlClientOpfail(t *testing.T) {
	cc, _ := startEmulator(t)
	ctx := context.Background()

	ports, err := cc.Ports(ctx, "")
	require.NoError(t, err)

	require.NoError(t, cc.Opfail(ctx, protocol.StatusTempFail, 2, 0))

	dc := dialPort(t, ports[0])
	for i := 0; i < 2; i++ {
		status, err := dc.Noop()
		require.NoError(t, err)
		assert.Equal(t, protocol.StatusTempFail, status)
	}
	status, err := dc.Noop()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, status)

	other := dialPort(t, ports[1])
	status, err = other.Noop()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, status)
}

func TestControlClientOpfailOperationAndClear(t *testing.T) {
	cc, _ := startEmulator(t)
	ctx := context.Background()
	ports, err := cc.Ports(ctx, "")
	require.NoError(t, err)

	require.NoError(t, cc.OpfailOperation(ctx, protocol.StatusBusy, -1, protocol.OpVersion))
	dc := dialPort(t, ports[0])

	status, err := dc.Noop()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, status)

	resp, err := dc.Do(protocol.OpVersion, "", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusBusy, resp.Status)

	require.NoError(t, cc.ClearFailures(ctx))
	resp, err = dc.Do(protocol.OpVersion, "", nil)
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, resp.Status)
}

func TestControlClientCommandError(t *testing.T) {
	cc, _ := startEmulator(t)

	err := cc.Opfail(context.Background(), protocol.ErrorCode(0xfffe), 1)
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, control.CmdOpfail, ce.Command)
	assert.Equal(t, "Invalid error code", ce.Reason)
}

func TestControlClientUnknownCommand(t *testing.T) {
	cc, _ := startEmulator(t)

	_, err := cc.Command(context.Background(), "NOPE", nil)
	assert.True(t, errors.Is(err, control.ErrCommandNotFound))
}

func TestControlClientQuery(t *testing.T) {
	cc, _ := startEmulator(t)

	st, err := cc.Query(context.Background(), "opfail", map[string][]string{"code": {"134"}})
	require.NoError(t, err)
	assert.False(t, st.Succeeded())
	assert.Equal(t, "Missing count", st.Error)
}

func TestControlClientInfo(t *testing.T) {
	cc, _ := startEmulator(t)

	info, err := cc.Info(context.Background())
	require.NoError(t, err)
	require.Len(t, info.Buckets, 2)
	assert.Equal(t, "default", info.Buckets[0].Name)
	assert.Equal(t, 2, info.Buckets[0].Nodes)
	assert.NotEmpty(t, info.Server)
}

func TestDataClientAuthenticate(t *testing.T) {
	cc, _ := startEmulator(t)
	ctx := context.Background()
	ports, err := cc.Ports(ctx, "")
	require.NoError(t, err)

	for _, mech := range sasl.Mechanisms() {
		t.Run(mech, func(t *testing.T) {
			dc := dialPort(t, ports[0])
			status, err := dc.Authenticate(mech, "default", "secret")
			require.NoError(t, err)
			assert.Equal(t, protocol.StatusSuccess, status)

			bad := dialPort(t, ports[0])
			status, err = bad.Authenticate(mech, "default", "wrong")
			require.NoError(t, err)
			assert.Equal(t, protocol.StatusAuthError, status)
		})
	}
}

func TestDataClientMechanisms(t *testing.T) {
	cc, _ := startEmulator(t)
	ctx := context.Background()
	ports, err := cc.Ports(ctx, "")
	require.NoError(t, err)

	require.NoError(t, cc.SetMechanisms(ctx, "default", sasl.MechPlain))
	dc := dialPort(t, ports[0])

	mechs, err := dc.ListMechanisms()
	require.NoError(t, err)
	assert.Equal(t, []string{sasl.MechPlain}, mechs)

	status, err := dc.Authenticate(sasl.MechScramSHA256, "default", "secret")
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusAuthError, status)

	err = cc.SetMechanisms(ctx, "", "BOGUS")
	var ce *CommandError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Invalid mechanism", ce.Reason)
}

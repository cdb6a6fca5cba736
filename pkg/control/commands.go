package control

import (
	"context"

	"github.com/cbmock/cbmock-go/pkg/cluster"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/sasl"
	"github.com/cbmock/cbmock-go/pkg/version"
)

// Command names.
const (
	CmdOpfail            = "OPFAIL"
	CmdGetOpfail         = "GET_OPFAIL"
	CmdHelp              = "HELP"
	CmdMockInfo          = "MOCKINFO"
	CmdGetMCPorts        = "GET_MCPORTS"
	CmdSetSASLMechanisms = "SET_SASL_MECHANISMS"
)

// RegisterClusterCommands registers the built-in commands operating on c.
func RegisterClusterCommands(d *Dispatcher, c *cluster.Cluster) {
	d.Register(CmdOpfail, `Make nodes fail operations with an error code.
{"code": int, "count": int, "operation"?: int, "servers"?: [int]}
count < 0 fails until replaced, count 0 clears the injection.`, &opfailCommand{cluster: c})

	d.Register(CmdGetOpfail, `Show the injected failure of every node.`,
		CommandFunc(func(context.Context, Payload) *CommandStatus {
			return OK().WithPayload(failureState(c))
		}))

	d.Register(CmdHelp, `Show this text.`,
		CommandFunc(func(context.Context, Payload) *CommandStatus {
			return OK().WithPayload(d.Help())
		}))

	d.Register(CmdMockInfo, `Describe the server and its buckets.`,
		CommandFunc(func(context.Context, Payload) *CommandStatus {
			return OK().WithPayload(mockInfo(c))
		}))

	d.Register(CmdGetMCPorts, `List the data-plane ports of a bucket.
{"bucket"?: string}`, CommandFunc(func(_ context.Context, p Payload) *CommandStatus {
		b, st := bucketArg(c, p)
		if st != nil {
			return st
		}
		ports := make([]int, 0, len(b.Nodes()))
		for _, n := range b.Nodes() {
			ports = append(ports, n.Port())
		}
		return OK().WithPayload(ports)
	}))

	d.Register(CmdSetSASLMechanisms, `Restrict the SASL mechanisms offered.
{"mechs": [string], "bucket"?: string}`, CommandFunc(func(_ context.Context, p Payload) *CommandStatus {
		return setMechanisms(c, p)
	}))
}

type opfailCommand struct {
	cluster *cluster.Cluster
}

// Execute validates every argument before touching any node.
func (o *opfailCommand) Execute(_ context.Context, p Payload) *CommandStatus {
	var code, count int
	if ok, err := p.Lookup("code", &code); err != nil {
		return Fail("Invalid error code")
	} else if !ok {
		return Fail("Missing code")
	}
	if ok, err := p.Lookup("count", &count); err != nil {
		return Fail("Invalid count")
	} else if !ok {
		return Fail("Missing count")
	}

	var operation *int
	if _, err := p.Lookup("operation", &operation); err != nil {
		return Fail("Invalid operation")
	}
	var servers []int
	if _, err := p.Lookup("servers", &servers); err != nil {
		return Fail("Invalid servers")
	}

	ec := protocol.ErrorCode(code)
	if code < 0 || code > 0xffff || !ec.IsKnown() {
		return Fail("Invalid error code")
	}
	var op *protocol.Opcode
	if operation != nil {
		if *operation < 0 || *operation > 0xff {
			return Fail("Invalid operation")
		}
		opc := protocol.Opcode(*operation)
		op = &opc
	}

	o.cluster.SetFailure(cluster.NewFailureContext(ec, count, op), servers)
	return OK()
}

type nodeFailure struct {
	Index     int    `json:"index"`
	Code      uint16 `json:"code"`
	Name      string `json:"name"`
	Remaining int    `json:"remaining"`
	Operation *uint8 `json:"operation,omitempty"`
}

func failureState(c *cluster.Cluster) map[string][]nodeFailure {
	out := make(map[string][]nodeFailure)
	for _, b := range c.Buckets() {
		list := []nodeFailure{}
		for _, n := range b.Nodes() {
			fc := n.Failure()
			if !fc.Active() {
				continue
			}
			nf := nodeFailure{
				Index:     n.Index(),
				Code:      uint16(fc.Code),
				Name:      fc.Code.String(),
				Remaining: fc.Remaining,
			}
			if fc.Operation != nil {
				op := uint8(*fc.Operation)
				nf.Operation = &op
			}
			list = append(list, nf)
		}
		out[b.Name()] = list
	}
	return out
}

type bucketInfo struct {
	Name       string   `json:"name"`
	Nodes      int      `json:"nodes"`
	Mechanisms []string `json:"mechanisms"`
}

func mockInfo(c *cluster.Cluster) map[string]any {
	buckets := make([]bucketInfo, 0)
	for _, b := range c.Buckets() {
		buckets = append(buckets, bucketInfo{
			Name:       b.Name(),
			Nodes:      len(b.Nodes()),
			Mechanisms: b.Mechanisms(),
		})
	}
	return map[string]any{
		"server":  version.ServerString(),
		"version": version.Current,
		"buckets": buckets,
	}
}

// bucketArg resolves the optional "bucket" field, defaulting to the first
// bucket.
func bucketArg(c *cluster.Cluster, p Payload) (*cluster.Bucket, *CommandStatus) {
	var name string
	ok, err := p.Lookup("bucket", &name)
	if err != nil {
		return nil, Fail("Invalid bucket")
	}
	if !ok {
		return c.DefaultBucket(), nil
	}
	b := c.Bucket(name)
	if b == nil {
		return nil, Fail("No such bucket")
	}
	return b, nil
}

func setMechanisms(c *cluster.Cluster, p Payload) *CommandStatus {
	var mechs []string
	if ok, err := p.Lookup("mechs", &mechs); err != nil {
		return Fail("Invalid mechs")
	} else if !ok {
		return Fail("Missing mechs")
	}
	for _, m := range mechs {
		if !sasl.IsKnown(m) {
			return Fail("Invalid mechanism")
		}
	}

	targets := c.Buckets()
	if p.Has("bucket") {
		b, st := bucketArg(c, p)
		if st != nil {
			return st
		}
		targets = []*cluster.Bucket{b}
	}
	for _, b := range targets {
		if err := b.SetMechanisms(mechs); err != nil {
			return Fail(err.Error())
		}
	}
	return OK()
}

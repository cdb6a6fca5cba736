package cluster

import (
	"fmt"
	"sync/atomic"

	"github.com/cbmock/cbmock-go/pkg/sasl"
)

// Bucket is a named, credential-scoped set of nodes. Node indices never
// change after construction.
type Bucket struct {
	name     string
	password string
	nodes    []*Node
	mechs    atomic.Pointer[[]string]
}

func newBucket(c *Cluster, bc BucketConfig) (*Bucket, error) {
	b := &Bucket{name: bc.Name, password: bc.Password}
	mechs := bc.Mechanisms
	if len(mechs) == 0 {
		mechs = sasl.Mechanisms()
	}
	if err := b.SetMechanisms(mechs); err != nil {
		return nil, err
	}

	for i := 0; i < bc.Nodes; i++ {
		addr := fmt.Sprintf("%s:0", c.config.Host)
		if bc.BasePort > 0 {
			addr = fmt.Sprintf("%s:%d", c.config.Host, bc.BasePort+i)
		}
		b.nodes = append(b.nodes, newNode(c, b, i, addr))
	}
	return b, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string { return b.name }

// Password returns the bucket password.
func (b *Bucket) Password() string { return b.password }

// Credentials returns the credentials that authenticate against the bucket.
func (b *Bucket) Credentials() sasl.Credentials {
	return sasl.Credentials{Username: b.name, Password: b.password}
}

// Nodes returns the nodes in index order.
func (b *Bucket) Nodes() []*Node {
	return append([]*Node(nil), b.nodes...)
}

// Node returns the node at index i.
func (b *Bucket) Node(i int) (*Node, bool) {
	if i < 0 || i >= len(b.nodes) {
		return nil, false
	}
	return b.nodes[i], true
}

// Mechanisms returns the SASL mechanisms the bucket offers.
func (b *Bucket) Mechanisms() []string {
	return *b.mechs.Load()
}

// SetMechanisms replaces the offered SASL mechanisms. Connections already
// negotiating keep their mechanism instance.
func (b *Bucket) SetMechanisms(mechs []string) error {
	for _, m := range mechs {
		if !sasl.IsKnown(m) {
			return fmt.Errorf("%w: %q", sasl.ErrUnknownMechanism, m)
		}
	}
	cp := append([]string(nil), mechs...)
	b.mechs.Store(&cp)
	return nil
}

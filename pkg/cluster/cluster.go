package cluster

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"

	"github.com/cbmock/cbmock-go/pkg/errmap"
	"github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/metrics"
)

// Cluster is the set of emulated buckets and their nodes.
type Cluster struct {
	config   Config
	buckets  []*Bucket
	byName   map[string]*Bucket
	logger   *slog.Logger
	protoLog log.Logger
	metrics  *metrics.Metrics
	executor Executor
	errorMap *errmap.ErrorMap
	tlsConf  *tls.Config
}

// Option configures a Cluster.
type Option func(*Cluster)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cluster) { c.logger = l }
}

// WithProtocolLogger sets the protocol event trace.
func WithProtocolLogger(l log.Logger) Option {
	return func(c *Cluster) { c.protoLog = l }
}

// WithMetrics records cluster activity in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cluster) { c.metrics = m }
}

// WithExecutor sets the executor for operations the core does not answer.
func WithExecutor(e Executor) Option {
	return func(c *Cluster) { c.executor = e }
}

// WithErrorMap replaces the error map served by GET_ERROR_MAP.
func WithErrorMap(m *errmap.ErrorMap) Option {
	return func(c *Cluster) { c.errorMap = m }
}

// WithTLS serves the data plane over TLS.
func WithTLS(conf *tls.Config) Option {
	return func(c *Cluster) { c.tlsConf = conf }
}

// New builds the cluster described by cfg. Nodes do not listen until Start.
func New(cfg Config, opts ...Option) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Host == "" {
		cfg.Host = DefaultConfig().Host
	}

	c := &Cluster{
		config: cfg,
		byName: make(map[string]*Bucket, len(cfg.Buckets)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	c.protoLog = log.OrNoop(c.protoLog)
	if c.executor == nil {
		c.executor = NotSupportedExecutor{}
	}
	if c.errorMap == nil {
		c.errorMap = errmap.Default()
	}

	for _, bc := range cfg.Buckets {
		b, err := newBucket(c, bc)
		if err != nil {
			return nil, err
		}
		c.buckets = append(c.buckets, b)
		c.byName[b.name] = b
	}
	return c, nil
}

// Start starts every node. If any node fails to listen, the nodes already
// started are stopped again.
func (c *Cluster) Start(ctx context.Context) error {
	var started []*Node
	for _, b := range c.buckets {
		for _, n := range b.nodes {
			if err := n.start(ctx); err != nil {
				for _, s := range started {
					s.stop()
				}
				return fmt.Errorf("start %s: %w", n, err)
			}
			started = append(started, n)
		}
	}
	c.logger.Info("cluster started", "buckets", len(c.buckets), "nodes", len(started))
	return nil
}

// Stop stops every node and closes their connections.
func (c *Cluster) Stop() {
	for _, b := range c.buckets {
		for _, n := range b.nodes {
			n.stop()
		}
	}
	c.logger.Info("cluster stopped")
}

// Host returns the address nodes listen on.
func (c *Cluster) Host() string {
	return c.config.Host
}

// Buckets returns the buckets in creation order.
func (c *Cluster) Buckets() []*Bucket {
	return append([]*Bucket(nil), c.buckets...)
}

// Bucket returns the named bucket, or nil.
func (c *Cluster) Bucket(name string) *Bucket {
	return c.byName[name]
}

// DefaultBucket returns the first configured bucket.
func (c *Cluster) DefaultBucket() *Bucket {
	return c.buckets[0]
}

// ErrorMap returns the error map served to clients.
func (c *Cluster) ErrorMap() *errmap.ErrorMap {
	return c.errorMap
}

// SetFailure installs fc on the selected nodes of every bucket. An empty
// servers list selects every node; indices a bucket does not have are
// skipped. It returns the number of nodes updated.
func (c *Cluster) SetFailure(fc *FailureContext, servers []int) int {
	selected := make(map[int]bool, len(servers))
	for _, idx := range servers {
		selected[idx] = true
	}

	updated := 0
	for _, b := range c.buckets {
		for _, n := range b.nodes {
			if len(selected) > 0 && !selected[n.index] {
				continue
			}
			n.SetFailure(fc)
			updated++
		}
	}
	return updated
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/cbmock/cbmock-go/pkg/cert"
	"github.com/cbmock/cbmock-go/pkg/cluster"
	"github.com/cbmock/cbmock-go/pkg/control"
	"github.com/cbmock/cbmock-go/pkg/discovery"
	"github.com/cbmock/cbmock-go/pkg/httpio"
	mocklog "github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/metrics"
	"github.com/cbmock/cbmock-go/pkg/version"
)

// Options holds everything main derives from flags.
type Options struct {
	Cluster cluster.Config

	// ControlAddress is the listen address of the HTTP control server.
	ControlAddress string

	// AdminUser and AdminPassword protect the control endpoint with basic
	// auth when both are set.
	AdminUser     string
	AdminPassword string

	// ServeMetrics exposes Prometheus metrics on /metrics.
	ServeMetrics bool

	// ProtocolLog is a CBOR event file path. Empty disables it.
	ProtocolLog string

	// TraceProtocol mirrors protocol events to the operational logger.
	TraceProtocol bool

	// InstanceName for mDNS advertisement.
	InstanceName string

	// TLS serves the data ports over TLS. With TLSCertFile and TLSKeyFile
	// set the identity is loaded from them, or generated and saved there
	// when they do not exist yet; otherwise a self-signed identity is
	// generated in memory.
	TLS         bool
	TLSCertFile string
	TLSKeyFile  string
}

// app is a running emulator: the cluster, its control server and the
// optional advertisement.
type app struct {
	opts       Options
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cluster    *cluster.Cluster
	dispatcher *control.Dispatcher
	server     *httpio.Server
	advertiser discovery.Advertiser
	identity   *cert.Identity
	closers    []io.Closer
}

// newApp builds the emulator. adv may be nil.
func newApp(opts Options, logger *slog.Logger, adv discovery.Advertiser) (*app, error) {
	a := &app{
		opts:       opts,
		logger:     logger,
		metrics:    metrics.New(),
		advertiser: adv,
	}

	protoLog, err := a.protocolLogger()
	if err != nil {
		return nil, err
	}

	clusterOpts := []cluster.Option{
		cluster.WithLogger(logger.With("component", "cluster")),
		cluster.WithProtocolLogger(protoLog),
		cluster.WithMetrics(a.metrics),
	}
	if opts.TLS {
		if a.identity, err = a.loadIdentity(); err != nil {
			a.close()
			return nil, err
		}
		clusterOpts = append(clusterOpts, cluster.WithTLS(a.identity.ServerConfig()))
	}

	a.cluster, err = cluster.New(opts.Cluster, clusterOpts...)
	if err != nil {
		a.close()
		return nil, err
	}

	a.dispatcher = control.NewDispatcher(
		control.WithLogger(logger.With("component", "control")),
		control.WithProtocolLogger(protoLog),
		control.WithMetrics(a.metrics))
	control.RegisterClusterCommands(a.dispatcher, a.cluster)

	a.server = httpio.New(
		httpio.WithLogger(logger.With("component", "httpio")),
		httpio.WithMetrics(a.metrics))

	handler := control.NewHandler(a.dispatcher)
	if opts.AdminUser != "" && opts.AdminPassword != "" {
		a.server.Register(control.BasePattern, httpio.RequireBasicAuth(opts.AdminUser, opts.AdminPassword, handler))
	} else {
		handler.Mount(a.server)
	}
	if opts.ServeMetrics {
		a.server.Register("/metrics", a.metrics.Handler())
	}

	return a, nil
}

func (a *app) protocolLogger() (mocklog.Logger, error) {
	var loggers []mocklog.Logger
	if a.opts.ProtocolLog != "" {
		fl, err := mocklog.NewFileLogger(a.opts.ProtocolLog)
		if err != nil {
			return nil, fmt.Errorf("open protocol log: %w", err)
		}
		a.closers = append(a.closers, fl)
		loggers = append(loggers, fl)
	}
	if a.opts.TraceProtocol {
		loggers = append(loggers, mocklog.NewSlogAdapter(a.logger.With("component", "protocol")))
	}

	switch len(loggers) {
	case 0:
		return nil, nil
	case 1:
		return loggers[0], nil
	default:
		return mocklog.NewMultiLogger(loggers...), nil
	}
}

func (a *app) loadIdentity() (*cert.Identity, error) {
	certFile, keyFile := a.opts.TLSCertFile, a.opts.TLSKeyFile
	persist := certFile != "" && keyFile != ""
	if persist {
		_, certErr := os.Stat(certFile)
		_, keyErr := os.Stat(keyFile)
		if certErr == nil && keyErr == nil {
			return cert.LoadIdentity(certFile, keyFile)
		}
	}

	id, err := cert.GenerateSelfSigned("cbmock", []string{a.opts.Cluster.Host}, cert.DefaultValidity)
	if err != nil {
		return nil, err
	}
	if persist {
		if err := id.Save(certFile, keyFile); err != nil {
			return nil, err
		}
		a.logger.Info("generated TLS identity", "cert", certFile, "key", keyFile)
	}
	return id, nil
}

// start brings up the nodes, then the control server, then advertises.
func (a *app) start(ctx context.Context) error {
	if err := a.cluster.Start(ctx); err != nil {
		return err
	}
	if err := a.server.Bind(a.opts.ControlAddress); err != nil {
		a.cluster.Stop()
		return err
	}
	if err := a.server.Start(); err != nil {
		a.server.Stop()
		a.cluster.Stop()
		return err
	}
	a.logger.Info("control server listening", slog.String("addr", a.server.Addr().String()))

	if a.advertiser != nil {
		if err := a.advertiser.Advertise(ctx, a.instanceInfo()); err != nil {
			// Discovery is best effort; the emulator stays usable by port.
			a.logger.Warn("mDNS advertisement failed", slog.Any("error", err))
		}
	}
	return nil
}

func (a *app) instanceInfo() *discovery.InstanceInfo {
	info := &discovery.InstanceInfo{
		Name:    a.opts.InstanceName,
		Port:    a.server.Port(),
		Version: version.Current,
		Path:    "/mock",
	}
	for _, b := range a.cluster.Buckets() {
		info.Buckets = append(info.Buckets, discovery.BucketInfo{Name: b.Name(), Nodes: len(b.Nodes())})
	}
	return info
}

// stop tears down in reverse start order.
func (a *app) stop() {
	if a.advertiser != nil {
		if err := a.advertiser.Stop(); err != nil {
			a.logger.Warn("mDNS stop failed", slog.Any("error", err))
		}
	}
	a.server.Stop()
	a.cluster.Stop()
	a.close()
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", slog.Any("error", err))
		}
	}
	a.closers = nil
}

// controlURL returns the base URL of the control endpoint.
func (a *app) controlURL() string {
	host := a.cluster.Host()
	if h, _, err := net.SplitHostPort(a.server.Addr().String()); err == nil && h != "::" && h != "0.0.0.0" {
		host = h
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(a.server.Port())) + "/mock"
}

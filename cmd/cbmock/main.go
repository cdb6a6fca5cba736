// Command cbmock runs an emulated cluster for client library tests.
//
// Each bucket's nodes listen on their own data ports; a single HTTP
// control server accepts commands under /mock/<COMMAND> to inject faults
// and inspect or reconfigure the cluster.
//
// Usage:
//
//	cbmock [flags]
//
// Flags:
//
//	-config string          YAML cluster file (default: one bucket, four nodes)
//	-host string            Address the data nodes listen on
//	-port int               Control server port (default 18091)
//	-admin-user string      Basic auth user for the control endpoint
//	-admin-password string  Basic auth password for the control endpoint
//	-metrics                Serve Prometheus metrics on /metrics
//	-log-level string       Log level: debug, info, warn, error (default "info")
//	-protocol-log string    File path for protocol event logging (CBOR format)
//	-trace                  Log protocol events to the operational log
//	-mdns                   Advertise the control endpoint via mDNS
//	-mdns-name string       mDNS instance name (default "cbmock-<port>")
//	-mdns-interface string  Network interface used for mDNS
//	-interactive            Read control commands from the terminal
//	-tls                    Serve the data ports over TLS
//	-tls-cert string        PEM certificate for -tls, generated if missing
//	-tls-key string         PEM EC private key for -tls, generated if missing
//
// Examples:
//
//	# Default cluster, control server on 18091
//	cbmock
//
//	# Two buckets from a file, random control port, interactive console
//	cbmock -config cluster.yaml -port 0 -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/cbmock/cbmock-go/cmd/cbmock/interactive"
	"github.com/cbmock/cbmock-go/pkg/cluster"
	"github.com/cbmock/cbmock-go/pkg/discovery"
	"github.com/cbmock/cbmock-go/pkg/version"
)

var (
	configFile    = flag.String("config", "", "YAML cluster file")
	host          = flag.String("host", "", "Address the data nodes listen on")
	port          = flag.Int("port", 18091, "Control server port")
	adminUser     = flag.String("admin-user", "", "Basic auth user for the control endpoint")
	adminPassword = flag.String("admin-password", "", "Basic auth password for the control endpoint")
	serveMetrics  = flag.Bool("metrics", false, "Serve Prometheus metrics on /metrics")
	logLevel      = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	protocolLog   = flag.String("protocol-log", "", "File path for protocol event logging (CBOR format)")
	trace         = flag.Bool("trace", false, "Log protocol events to the operational log")
	mdns          = flag.Bool("mdns", false, "Advertise the control endpoint via mDNS")
	mdnsName      = flag.String("mdns-name", "", "mDNS instance name")
	mdnsInterface = flag.String("mdns-interface", "", "Network interface used for mDNS")
	interactiveOn = flag.Bool("interactive", false, "Read control commands from the terminal")
	useTLS        = flag.Bool("tls", false, "Serve the data ports over TLS")
	tlsCert       = flag.String("tls-cert", "", "PEM certificate for -tls, generated if missing")
	tlsKey        = flag.String("tls-key", "", "PEM EC private key for -tls, generated if missing")
)

func main() {
	flag.Parse()

	opts, err := buildOptions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var console *interactive.Console
	var logOut io.Writer = os.Stderr
	if *interactiveOn {
		console, err = interactive.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		logOut = console.Stderr()
	}

	logger, err := newLogger(logOut, *logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting", slog.String("server", version.ServerString()))

	var adv discovery.Advertiser
	if *mdns {
		adv, err = discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{
			Interface: *mdnsInterface,
			Logger:    logger.With("component", "discovery"),
		})
		if err != nil {
			logger.Error("mDNS unavailable", slog.Any("error", err))
			os.Exit(1)
		}
	}

	a, err := newApp(opts, logger, adv)
	if err != nil {
		logger.Error("setup failed", slog.Any("error", err))
		os.Exit(1)
	}
	if err := a.start(ctx); err != nil {
		logger.Error("start failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("ready", slog.String("control", a.controlURL()))

	if console != nil {
		go console.Run(ctx, cancel, a.dispatcher)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()
	a.stop()
}

func buildOptions() (Options, error) {
	cfg := cluster.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = cluster.LoadConfig(*configFile)
		if err != nil {
			return Options{}, err
		}
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port < 0 || *port > 65535 {
		return Options{}, fmt.Errorf("port must be 0-65535, got %d", *port)
	}
	if (*tlsCert == "") != (*tlsKey == "") {
		return Options{}, fmt.Errorf("tls-cert and tls-key must be set together")
	}
	if (*adminUser == "") != (*adminPassword == "") {
		return Options{}, fmt.Errorf("admin-user and admin-password must be set together")
	}

	controlHost := cfg.Host
	if controlHost == "" {
		controlHost = cluster.DefaultConfig().Host
	}

	return Options{
		Cluster:        cfg,
		ControlAddress: net.JoinHostPort(controlHost, strconv.Itoa(*port)),
		AdminUser:      *adminUser,
		AdminPassword:  *adminPassword,
		ServeMetrics:   *serveMetrics,
		ProtocolLog:    *protocolLog,
		TraceProtocol:  *trace,
		InstanceName:   *mdnsName,
		TLS:            *useTLS || *tlsCert != "",
		TLSCertFile:    *tlsCert,
		TLSKeyFile:     *tlsKey,
	}, nil
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

package transport

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func echoServer(t *testing.T, cfg ServerConfig) *Server {
	t.Helper()
	if cfg.NewHandler == nil {
		cfg.NewHandler = func(*ServerConn) FrameHandler {
			return FrameHandlerFunc(func(_ context.Context, frame []byte) ([]byte, error) {
				return frame, nil
			})
		}
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })
	return srv
}

func TestNewServerRequiresHandler(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatal("expected error without NewHandler")
	}
}

func TestServerEcho(t *testing.T) {
	srv := echoServer(t, ServerConfig{})
	if srv.Port() == 0 {
		t.Fatal("expected bound port")
	}

	conn, err := Dial(context.Background(), srv.Addr().String(), ClientConfig{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if err := conn.Send([]byte("hello")); err != nil {
		t.Fatal(err)
	}
	got, err := conn.Receive(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Errorf("got %q", got)
	}
}

func TestServerHandlerPerConnection(t *testing.T) {
	var mu sync.Mutex
	created := 0
	srv := echoServer(t, ServerConfig{
		NewHandler: func(*ServerConn) FrameHandler {
			mu.Lock()
			created++
			mu.Unlock()
			n := 0
			return FrameHandlerFunc(func(_ context.Context, _ []byte) ([]byte, error) {
				n++
				return []byte{byte(n)}, nil
			})
		},
	})

	for i := 0; i < 2; i++ {
		conn, err := Dial(context.Background(), srv.Addr().String(), ClientConfig{})
		if err != nil {
			t.Fatal(err)
		}
		for want := 1; want <= 3; want++ {
			conn.Send([]byte("x"))
			got, err := conn.Receive(2 * time.Second)
			if err != nil {
				t.Fatal(err)
			}
			if int(got[0]) != want {
				t.Errorf("conn %d: counter = %d, want %d", i, got[0], want)
			}
		}
		conn.Close()
	}

	mu.Lock()
	defer mu.Unlock()
	if created != 2 {
		t.Errorf("handlers created = %d, want 2", created)
	}
}

func TestServerHandlerErrorClosesConnection(t *testing.T) {
	errs := make(chan error, 1)
	srv := echoServer(t, ServerConfig{
		NewHandler: func(*ServerConn) FrameHandler {
			return FrameHandlerFunc(func(context.Context, []byte) ([]byte, error) {
				return nil, errors.New("boom")
			})
		},
		OnError: func(_ *ServerConn, err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})

	conn, err := Dial(context.Background(), srv.Addr().String(), ClientConfig{})
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Send([]byte("x"))

	if _, err := conn.Receive(2 * time.Second); err == nil {
		t.Fatal("expected closed connection")
	}
	select {
	case err := <-errs:
		if err.Error() != "boom" {
			t.Errorf("OnError got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("OnError not called")
	}
}

func TestServerStopClosesConnections(t *testing.T) {
	srv := echoServer(t, ServerConfig{})

	var conns []*ClientConn
	for i := 0; i < 5; i++ {
		c, err := Dial(context.Background(), srv.Addr().String(), ClientConfig{})
		if err != nil {
			t.Fatal(err)
		}
		c.Send([]byte("x"))
		if _, err := c.Receive(2 * time.Second); err != nil {
			t.Fatal(err)
		}
		conns = append(conns, c)
	}
	if n := srv.ConnectionCount(); n != 5 {
		t.Errorf("ConnectionCount = %d, want 5", n)
	}

	srv.Stop()
	if n := srv.ConnectionCount(); n != 0 {
		t.Errorf("ConnectionCount after Stop = %d", n)
	}
	for _, c := range conns {
		if _, err := c.Receive(time.Second); err == nil {
			t.Error("expected connection closed by server")
		}
		c.Close()
	}
	if _, err := net.DialTimeout("tcp", srv.Addr().String(), 200*time.Millisecond); err == nil {
		t.Error("listener still accepting after Stop")
	}
}

func TestServerLogsConnectionState(t *testing.T) {
	rec := &recordingLogger{}
	disconnected := make(chan struct{})
	srv := echoServer(t, ServerConfig{
		Logger:       rec,
		OnDisconnect: func(*ServerConn) { close(disconnected) },
	})

	conn, err := Dial(context.Background(), srv.Addr().String(), ClientConfig{})
	if err != nil {
		t.Fatal(err)
	}
	conn.Close()

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDisconnect not called")
	}

	var states []string
	for _, e := range rec.Events() {
		if e.StateChange != nil {
			states = append(states, e.StateChange.NewState)
		}
	}
	if len(states) != 2 || states[0] != "CONNECTED" || states[1] != "DISCONNECTED" {
		t.Errorf("states = %v", states)
	}
}

func TestServerTLS(t *testing.T) {
	cert := generateTestCert(t)
	srv := echoServer(t, ServerConfig{
		TLSConfig: &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12},
	})

	conn, err := Dial(context.Background(), srv.Addr().String(), ClientConfig{
		TLSConfig: &tls.Config{InsecureSkipVerify: true},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	payload := []byte{1, 2, 3}
	conn.Send(payload)
	got, err := conn.Receive(2 * time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %v", got)
	}
}

type failingListener struct {
	closed atomic.Bool
}

func (l *failingListener) Accept() (net.Conn, error) {
	if l.closed.Load() {
		return nil, net.ErrClosed
	}
	return nil, errors.New("accept: too many open files")
}

func (l *failingListener) Close() error {
	l.closed.Store(true)
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func TestAcceptErrorsBackOff(t *testing.T) {
	var reports atomic.Int32
	srv, err := NewServer(ServerConfig{
		NewHandler: func(*ServerConn) FrameHandler { return nil },
		OnError:    func(*ServerConn, error) { reports.Add(1) },
	})
	if err != nil {
		t.Fatal(err)
	}
	srv.listener = &failingListener{}
	srv.ctx, srv.cancel = context.WithCancel(context.Background())
	srv.running.Store(true)
	srv.wg.Add(1)
	go srv.acceptLoop()

	time.Sleep(200 * time.Millisecond)
	srv.Stop()

	// 5+10+20+40+80 ms already exceeds the window.
	if n := reports.Load(); n < 1 || n > 8 {
		t.Errorf("accept errors reported %d times, want a handful", n)
	}
}

func TestNextAcceptDelay(t *testing.T) {
	d := nextAcceptDelay(0)
	if d != minAcceptDelay {
		t.Errorf("first delay = %v", d)
	}
	for i := 0; i < 20; i++ {
		d = nextAcceptDelay(d)
	}
	if d != maxAcceptDelay {
		t.Errorf("delay not capped: %v", d)
	}
}

func generateTestCert(t *testing.T) tls.Certificate {
	t.Helper()

	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("Failed to generate key: %v", err)
	}
	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "cbmock-test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("Failed to create certificate: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
}

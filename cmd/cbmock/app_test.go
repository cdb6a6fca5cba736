package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/cbmock/cbmock-go/internal/testharness/client"
	"github.com/cbmock/cbmock-go/pkg/cluster"
	"github.com/cbmock/cbmock-go/pkg/discovery"
	mocklog "github.com/cbmock/cbmock-go/pkg/log"
	"github.com/cbmock/cbmock-go/pkg/protocol"
	"github.com/cbmock/cbmock-go/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubAdvertiser struct {
	mock.Mock
}

func (s *stubAdvertiser) Advertise(ctx context.Context, info *discovery.InstanceInfo) error {
	return s.Called(ctx, info).Error(0)
}

func (s *stubAdvertiser) Stop() error {
	return s.Called().Error(0)
}

func testOptions() Options {
	return Options{
		Cluster:        cluster.DefaultConfig(),
		ControlAddress: "127.0.0.1:0",
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startApp(t *testing.T, opts Options, adv discovery.Advertiser) *app {
	t.Helper()
	a, err := newApp(opts, discardLogger(), adv)
	require.NoError(t, err)
	require.NoError(t, a.start(context.Background()))
	return a
}

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestAppServesControlAndAdvertises(t *testing.T) {
	adv := &stubAdvertiser{}
	adv.On("Advertise", mock.Anything, mock.MatchedBy(func(info *discovery.InstanceInfo) bool {
		return info.Port > 0 && info.Path == "/mock" &&
			len(info.Buckets) == 1 && info.Buckets[0] == discovery.BucketInfo{Name: "default", Nodes: 4}
	})).Return(nil).Once()
	adv.On("Stop").Return(nil).Once()

	a := startApp(t, testOptions(), adv)

	code, body := httpGet(t, a.controlURL()+"/mockinfo")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"ok"`)

	code, _ = httpGet(t, a.controlURL()+"/opfail?code=134&count=1")
	assert.Equal(t, http.StatusOK, code)
	n, _ := a.cluster.DefaultBucket().Node(0)
	assert.NotNil(t, n.Failure())

	a.stop()
	adv.AssertExpectations(t)
}

func TestAppAdvertiseFailureIsNotFatal(t *testing.T) {
	adv := &stubAdvertiser{}
	adv.On("Advertise", mock.Anything, mock.Anything).Return(errors.New("no multicast")).Once()
	adv.On("Stop").Return(nil).Maybe()

	a := startApp(t, testOptions(), adv)
	defer a.stop()

	code, _ := httpGet(t, a.controlURL()+"/help")
	assert.Equal(t, http.StatusOK, code)
}

func TestAppMetricsEndpoint(t *testing.T) {
	opts := testOptions()
	opts.ServeMetrics = true
	a := startApp(t, opts, nil)
	defer a.stop()

	httpGet(t, a.controlURL()+"/mockinfo")

	base := strings.TrimSuffix(a.controlURL(), "/mock")
	code, body := httpGet(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `cbmock_control_commands_total{command="MOCKINFO",status="ok"} 1`)
}

func TestAppMetricsDisabled(t *testing.T) {
	a := startApp(t, testOptions(), nil)
	defer a.stop()

	base := strings.TrimSuffix(a.controlURL(), "/mock")
	code, _ := httpGet(t, base+"/metrics")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestAppBasicAuth(t *testing.T) {
	opts := testOptions()
	opts.AdminUser = "admin"
	opts.AdminPassword = "secret"
	a := startApp(t, opts, nil)
	defer a.stop()

	code, _ := httpGet(t, a.controlURL()+"/mockinfo")
	assert.Equal(t, http.StatusUnauthorized, code)

	req, err := http.NewRequest(http.MethodGet, a.controlURL()+"/mockinfo", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAppProtocolLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cbor")
	opts := testOptions()
	opts.ProtocolLog = path
	opts.TraceProtocol = true

	a := startApp(t, opts, nil)
	httpGet(t, a.controlURL()+"/opfail?code=134&count=1&servers=[0]")
	a.stop()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := mocklog.NewDecoder(f)
	var categories []mocklog.Category
	for {
		var ev mocklog.Event
		if err := dec.Decode(&ev); err != nil {
			break
		}
		categories = append(categories, ev.Category)
	}
	assert.Contains(t, categories, mocklog.CategoryFault)
	assert.Contains(t, categories, mocklog.CategoryMessage)
}

func TestAppTLSDataPorts(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions()
	opts.TLS = true
	opts.TLSCertFile = filepath.Join(dir, "server.crt")
	opts.TLSKeyFile = filepath.Join(dir, "server.key")

	a := startApp(t, opts, nil)
	defer a.stop()
	require.NotNil(t, a.identity)
	assert.FileExists(t, opts.TLSCertFile)

	n, _ := a.cluster.DefaultBucket().Node(0)
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(n.Port()))
	dc, err := client.DialData(context.Background(), addr,
		transport.ClientConfig{TLSConfig: a.identity.ClientConfig("localhost")})
	require.NoError(t, err)
	defer dc.Close()

	status, err := dc.Noop()
	require.NoError(t, err)
	assert.Equal(t, protocol.StatusSuccess, status)

	again, err := newApp(opts, discardLogger(), nil)
	require.NoError(t, err)
	defer again.close()
	assert.True(t, again.identity.Certificate.Equal(a.identity.Certificate))
}

func TestAppStartFailsOnBusyControlPort(t *testing.T) {
	first := startApp(t, testOptions(), nil)
	defer first.stop()

	opts := testOptions()
	opts.ControlAddress = first.server.Addr().String()
	a, err := newApp(opts, discardLogger(), nil)
	require.NoError(t, err)
	assert.Error(t, a.start(context.Background()))
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(io.Discard, "debug")
	assert.NoError(t, err)
	_, err = newLogger(io.Discard, "loud")
	assert.Error(t, err)
}

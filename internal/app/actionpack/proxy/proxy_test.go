package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dennishilgert/actionpack/internal/app/actionpack"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/publisher"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/request"
	"github.com/dennishilgert/actionpack/pkg/concurrency/worker"
	"github.com/dennishilgert/actionpack/pkg/health"
	"github.com/stretchr/testify/require"
)

type recordedBuild struct {
	req         request.Request
	credentials publisher.Credentials
}

type fakeService struct {
	lock   sync.Mutex
	builds []recordedBuild
	result actionpack.Result
}

func (f *fakeService) Build(ctx context.Context, req request.Request, credentials publisher.Credentials) actionpack.Result {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.builds = append(f.builds, recordedBuild{req: req, credentials: credentials})
	return f.result
}

type syncBuffer struct {
	lock sync.Mutex
	buf  bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.buf.String()
}

func newTestServer(t *testing.T, service *fakeService, logs *syncBuffer) Server {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	workerManager := worker.NewWorkerManager(1)
	go workerManager.Run(ctx)

	return NewServer(service, workerManager, Options{
		Credentials: publisher.Credentials{ApiKey: "configured:key", ApiHost: "configured.example.com"},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("actionpack_builds_completed_total 1\n"))
		}),
		LogWriters: []io.Writer{logs},
	})
}

func serve(s Server, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestRun_BuildsWithConfiguredCredentials(t *testing.T) {
	service := &fakeService{result: actionpack.Result{Result: "successfully created a new action demo"}}
	logs := &syncBuffer{}
	s := newTestServer(t, service, logs)

	rec := serve(s, http.MethodPost, "/run", `{"value":{"action_name":"demo","action_data":"UEs="},"activation_id":"abc"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"result":"successfully created a new action demo"}`, rec.Body.String())

	require.Len(t, service.builds, 1)
	require.Equal(t, "demo", service.builds[0].req.ActionName)
	require.Equal(t, "UEs=", service.builds[0].req.ActionData)
	require.Equal(t, publisher.Credentials{ApiKey: "configured:key", ApiHost: "configured.example.com"}, service.builds[0].credentials)
	require.Equal(t, ActivationSentinel+"\n", logs.String())
}

func TestRun_ActivationCredentialsOverride(t *testing.T) {
	service := &fakeService{result: actionpack.Result{Error: "Warning: No action data provided, please specify action_data."}}
	s := newTestServer(t, service, &syncBuffer{})

	rec := serve(s, http.MethodPost, "/run", `{"value":{"action_name":"demo"},"api_host":"https://activation.example.com","api_key":"act:key"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result actionpack.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Failed())
	require.Equal(t, publisher.Credentials{ApiKey: "act:key", ApiHost: "https://activation.example.com"}, service.builds[0].credentials)
}

func TestRun_InvalidPayload(t *testing.T) {
	service := &fakeService{}
	logs := &syncBuffer{}
	s := newTestServer(t, service, logs)

	rec := serve(s, http.MethodPost, "/run", `{"value":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid activation payload")
	require.Empty(t, service.builds)
	require.Equal(t, ActivationSentinel+"\n", logs.String())
}

func TestInitHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeService{}, &syncBuffer{})

	rec := serve(s, http.MethodPost, "/init", `{"value":{}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = serve(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "actionpack_builds_completed_total")
}

func TestRun_StoppedWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	workerManager := worker.NewWorkerManager(1)
	stopped := make(chan struct{})
	go func() {
		workerManager.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	s := NewServer(&fakeService{}, workerManager, Options{LogWriters: []io.Writer{&syncBuffer{}}})
	rec := serve(s, http.MethodPost, "/run", `{"value":{"action_name":"demo"}}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth_ReportsProvider(t *testing.T) {
	provider := health.NewHealthStatusProvider(health.ProviderOptions{Targets: 1})
	s := NewServer(&fakeService{}, worker.NewWorkerManager(1), Options{HealthProvider: provider})

	rec := serve(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	provider.Ready()
	rec = serve(s, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RunAndShutdown(t *testing.T) {
	provider := health.NewHealthStatusProvider(health.ProviderOptions{Targets: 1})
	s := NewServer(&fakeService{}, worker.NewWorkerManager(1), Options{HealthProvider: provider})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Run(ctx)
	}()
	require.NoError(t, s.Ready(context.Background()))
	require.True(t, provider.Healthy())

	cancel()
	require.NoError(t, <-errCh)
}

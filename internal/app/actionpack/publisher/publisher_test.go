package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dennishilgert/actionpack/internal/pkg/faults"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method   string
	path     string
	query    string
	user     string
	password string
	body     map[string]map[string]string
}

func newServer(t *testing.T, status int, response string) (*httptest.Server, chan capturedRequest) {
	t.Helper()

	captured := make(chan capturedRequest, 1)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		req := capturedRequest{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.RawQuery,
		}
		req.user, req.password, _ = r.BasicAuth()
		require.NoError(t, json.Unmarshal(raw, &req.body))
		captured <- req

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(server.Close)
	return server, captured
}

func writeBundle(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "demo.zip")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPublish(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, `{"name":"demo"}`)
	p, err := NewPublisher(Options{
		Credentials:   Credentials{ApiKey: "user:pass:word", ApiHost: server.URL},
		SkipTlsVerify: true,
	})
	require.NoError(t, err)

	resp, err := p.Publish(context.Background(), Action{
		Namespace:  "_",
		Name:       "demo",
		Kind:       "python:3",
		Main:       "handler",
		BundlePath: writeBundle(t, "zip bytes"),
	})
	require.NoError(t, err)
	require.Equal(t, "successfully created a new action demo", resp.Message)
	require.JSONEq(t, `{"name":"demo"}`, string(resp.Body))

	req := <-captured
	require.Equal(t, http.MethodPut, req.method)
	require.Equal(t, "/api/v1/namespaces/_/actions/demo", req.path)
	require.Equal(t, "overwrite=true&blocking=true&result=true", req.query)
	require.Equal(t, "user", req.user)
	require.Equal(t, "pass:word", req.password)
	require.Equal(t, "python:3", req.body["exec"]["kind"])
	require.Equal(t, "handler", req.body["exec"]["main"])
	require.Equal(t, base64.StdEncoding.EncodeToString([]byte("zip bytes")), req.body["exec"]["code"])
}

func TestPublish_OmitsEmptyMain(t *testing.T) {
	t.Parallel()

	server, captured := newServer(t, http.StatusOK, `{}`)
	p, err := NewPublisher(Options{
		Credentials:   Credentials{ApiKey: "user:pass", ApiHost: server.URL},
		SkipTlsVerify: true,
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), Action{Namespace: "_", Name: "demo", Kind: "python:2", BundlePath: writeBundle(t, "x")})
	require.NoError(t, err)

	req := <-captured
	_, hasMain := req.body["exec"]["main"]
	require.False(t, hasMain)
}

func TestPublish_RejectedStatusPropagates(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusConflict, `{"error":"resource already exists"}`)
	p, err := NewPublisher(Options{
		Credentials:   Credentials{ApiKey: "user:pass", ApiHost: server.URL},
		SkipTlsVerify: true,
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), Action{Namespace: "_", Name: "demo", Kind: "python:2", BundlePath: writeBundle(t, "x")})
	require.True(t, faults.Is(err, faults.Publish))
	require.Contains(t, err.Error(), "status 409")
	require.Contains(t, err.Error(), "resource already exists")
}

func TestPublish_TlsVerification(t *testing.T) {
	t.Parallel()

	server, _ := newServer(t, http.StatusOK, `{}`)
	p, err := NewPublisher(Options{
		Credentials: Credentials{ApiKey: "user:pass", ApiHost: server.URL},
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), Action{Namespace: "_", Name: "demo", Kind: "python:2", BundlePath: writeBundle(t, "x")})
	require.True(t, faults.Is(err, faults.Publish))
}

func TestPublish_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	p, err := NewPublisher(Options{
		Credentials: Credentials{ApiKey: "user:pass", ApiHost: server.URL},
		Timeout:     100 * time.Millisecond,
	})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), Action{Namespace: "_", Name: "demo", Kind: "python:2", BundlePath: writeBundle(t, "x")})
	require.True(t, faults.Is(err, faults.Publish))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublish_MissingBundle(t *testing.T) {
	t.Parallel()

	p, err := NewPublisher(Options{Credentials: Credentials{ApiKey: "user:pass", ApiHost: "whisk.example.com"}})
	require.NoError(t, err)

	_, err = p.Publish(context.Background(), Action{Name: "demo", BundlePath: filepath.Join(t.TempDir(), "missing.zip")})
	require.True(t, faults.Is(err, faults.Filesystem))
}

func TestCredentials_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		credentials Credentials
		expected    string
	}{
		{"missing key", Credentials{ApiHost: "host"}, "required environment variable __OW_API_KEY is not set"},
		{"missing host", Credentials{ApiKey: "user:pass"}, "required environment variable __OW_API_HOST is not set"},
		{"key without colon", Credentials{ApiKey: "token", ApiHost: "host"}, "__OW_API_KEY must have the form <user>:<password>"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewPublisher(Options{Credentials: test.credentials})
			require.True(t, faults.Is(err, faults.Config))
			require.EqualError(t, err, test.expected)
		})
	}
}

func TestCredentials_Override(t *testing.T) {
	t.Parallel()

	base := Credentials{ApiKey: "a:b", ApiHost: "configured"}
	require.Equal(t, Credentials{ApiKey: "c:d", ApiHost: "configured"}, base.Override(Credentials{ApiKey: "c:d"}))
	require.Equal(t, base, base.Override(Credentials{}))
}

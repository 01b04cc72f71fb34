package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClient_Generate_Success(t *testing.T) {
	var (
		got       Request
		gotMethod string
		gotHeader http.Header
		decodeErr error
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		decodeErr = json.NewDecoder(r.Body).Decode(&got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"I am the forest"},{"type":"text","text":"ignored"}],"usage":{"input_tokens":10,"output_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewClient(Settings{APIKey: "test-key", Endpoint: srv.URL})
	out := c.Generate(context.Background(), "compiled prompt")

	require.True(t, out.Succeeded(), "unexpected failure: %v", out.Err())
	require.Equal(t, "I am the forest", out.Text())

	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	require.Equal(t, "test-key", gotHeader.Get("x-api-key"))
	require.Equal(t, APIVersion, gotHeader.Get("anthropic-version"))
	require.NoError(t, decodeErr)
	require.Equal(t, Model, got.Model)
	require.Equal(t, MaxTokens, got.MaxTokens)
	require.Equal(t, []Message{{Role: "user", Content: "compiled prompt"}}, got.Messages)
}

func TestClient_Generate_MissingCredentialMakesNoCall(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(Settings{Endpoint: srv.URL})
	require.False(t, c.Enabled())

	out := c.Generate(context.Background(), "p")
	require.False(t, out.Succeeded())
	require.True(t, errors.Is(out.Err(), ErrMissingCredential))
	require.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestClient_Generate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":{"message":"boom"}}`},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`},
		{name: "unauthorized", status: http.StatusUnauthorized, body: ``},
		{name: "undecodable body", status: http.StatusOK, body: `not json`},
		{name: "wrong shape", status: http.StatusOK, body: `{"content":"nope"}`},
		{name: "empty content", status: http.StatusOK, body: `{"content":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			out := NewClient(Settings{APIKey: "k", Endpoint: srv.URL}).Generate(context.Background(), "p")
			require.False(t, out.Succeeded())
			require.Error(t, out.Err())
			require.Empty(t, out.Text())
		})
	}
}

func TestClient_Generate_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	out := NewClient(Settings{APIKey: "k", Endpoint: url}).Generate(context.Background(), "p")
	require.False(t, out.Succeeded())
}

func TestClient_Generate_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(Settings{APIKey: "k", Endpoint: srv.URL, Timeout: 50 * time.Millisecond})
	start := time.Now()
	out := c.Generate(context.Background(), "p")
	require.False(t, out.Succeeded())
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestClient_Generate_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewClient(Settings{APIKey: "k", Endpoint: srv.URL}).Generate(ctx, "p")
	require.False(t, out.Succeeded())
	require.True(t, errors.Is(out.Err(), context.Canceled))
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Settings{APIKey: "k"})
	require.Equal(t, DefaultEndpoint, c.endpoint)
	require.Equal(t, DefaultTimeout, c.httpClient.Timeout)

	c = NewClient(Settings{APIKey: "k"}, WithHTTPClient(&http.Client{}))
	require.Equal(t, DefaultTimeout, c.httpClient.Timeout)
}

func TestOutcome(t *testing.T) {
	s := Success("hi")
	require.True(t, s.Succeeded())
	require.Equal(t, "hi", s.Text())
	require.NoError(t, s.Err())

	f := Failure(nil)
	require.False(t, f.Succeeded())
	require.Error(t, f.Err())
}

package engage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/pattern-space/pkg/generation"
)

func serve(t *testing.T, h http.Handler, method, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, "http://example.com/engage", strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler_ManifestSuccess(t *testing.T) {
	gw := &fakeGateway{outcome: generation.Success("Headline\n\nBody")}
	h := NewHTTPHandler(newTestService(t, gw), zerolog.Nop())

	rec := serve(t, h, http.MethodPost, `{"coordinate":"Forest.Creativity","type":"manifest"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, Response{Coordinate: "Forest.Creativity", Voice: "Headline\n\nBody"}, out)
}

func TestHTTPHandler_FallbackIsStill200(t *testing.T) {
	gw := &fakeGateway{outcome: generation.Failure(errors.New("boom"))}
	h := NewHTTPHandler(newTestService(t, gw), zerolog.Nop())

	rec := serve(t, h, http.MethodPost, `{"coordinate":"Ocean.Mystery","type":"explore","query":"why?","conversation_history":[{"role":"human","content":"hi"}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, map[string]string{
		"coordinate": "Ocean.Mystery",
		"voice":      "I hear your question: 'why?'. Let me consider this...",
	}, out)
}

func TestHTTPHandler_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		method string
		body   string
		status int
	}{
		{name: "wrong method", method: http.MethodGet, body: ``, status: http.StatusMethodNotAllowed},
		{name: "malformed json", method: http.MethodPost, body: `{"coordinate":`, status: http.StatusBadRequest},
		{name: "missing coordinate", method: http.MethodPost, body: `{"type":"manifest"}`, status: http.StatusBadRequest},
		{name: "missing type", method: http.MethodPost, body: `{"coordinate":"Forest"}`, status: http.StatusBadRequest},
		{name: "unknown type", method: http.MethodPost, body: `{"coordinate":"Forest","type":"summon"}`, status: http.StatusBadRequest},
		{name: "explore without query", method: http.MethodPost, body: `{"coordinate":"Forest","type":"explore"}`, status: http.StatusBadRequest},
		{name: "explore with empty query", method: http.MethodPost, body: `{"coordinate":"Forest","type":"explore","query":""}`, status: http.StatusBadRequest},
		{name: "bad history shape", method: http.MethodPost, body: `{"coordinate":"Forest","type":"manifest","conversation_history":"nope"}`, status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{outcome: generation.Success("unused")}
			h := NewHTTPHandler(newTestService(t, gw), zerolog.Nop())

			rec := serve(t, h, tt.method, tt.body, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			require.Equal(t, 0, gw.Calls())
		})
	}
}

func TestHTTPHandler_EmptyCoordinateIsAccepted(t *testing.T) {
	gw := &fakeGateway{outcome: generation.Failure(nil)}
	h := NewHTTPHandler(newTestService(t, gw), zerolog.Nop())

	rec := serve(t, h, http.MethodPost, `{"coordinate":"","type":"manifest"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var out Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Equal(t, "", out.Coordinate)
	require.Equal(t, "I am  - a collaborative intelligence speaking from Pattern.Space", out.Voice)
}

func TestHTTPHandler_RequestIDIsEchoed(t *testing.T) {
	h := NewHTTPHandler(newTestService(t, &fakeGateway{outcome: generation.Success("v")}), zerolog.Nop())

	rec := serve(t, h, http.MethodPost, `{"coordinate":"Forest","type":"manifest"}`, map[string]string{RequestIDHeader: "abc-123"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestHTTPHandler_BodyTooLarge(t *testing.T) {
	gw := &fakeGateway{outcome: generation.Success("unused")}
	h := NewHTTPHandler(newTestService(t, gw), zerolog.Nop())

	big := `{"coordinate":"Forest","type":"manifest","domain":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
	rec := serve(t, h, http.MethodPost, big, nil)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	require.Equal(t, 0, gw.Calls())
}

func TestHTTPHandler_NilService(t *testing.T) {
	rec := serve(t, NewHTTPHandler(nil, zerolog.Nop()), http.MethodPost, `{}`, nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDFromRequest(t *testing.T) {
	require.NotEmpty(t, RequestIDFromRequest(nil))

	req := httptest.NewRequest(http.MethodPost, "/engage", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("a", 500))
	id := RequestIDFromRequest(req)
	require.NotEqual(t, strings.Repeat("a", 500), id)
	require.Len(t, id, 36)
}

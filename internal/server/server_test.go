package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/navigator/internal/chat"
	"github.com/joss/navigator/internal/domain"
	"github.com/joss/navigator/internal/media"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/provider"
	"github.com/joss/navigator/internal/testutil"
	"github.com/joss/navigator/pkg/llm"
)

type fakeResolver struct {
	p        llm.Provider
	err      error
	selected *domain.ProviderSelection
}

func (f *fakeResolver) Resolve(sel domain.ProviderSelection) (*provider.Resolved, error) {
	f.selected = &sel
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Resolved{Type: provider.ProviderOpenAI, Model: "test-model", Provider: f.p}, nil
}

func newTestServer(t *testing.T, resolver chat.ProviderResolver, lib media.Library) *Server {
	t.Helper()
	if lib == nil {
		lib = testutil.NewFakeLibrary()
	}
	svc := chat.New(resolver, func(media.Auth) media.Library { return lib }, nil, chat.Settings{MaxSteps: 5})
	return New(svc, Options{Metrics: metrics.New()})
}

func chatBody(t *testing.T, extra map[string]any) *bytes.Reader {
	t.Helper()
	body := map[string]any{
		"messages": []map[string]any{
			{"id": "u1", "role": "user", "content": "find inception"},
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func postChat(t *testing.T, s *Server, body *bytes.Reader, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("X-Emby-Token", "tok")
		req.Header.Set("X-Jellyfin-User-Id", "user-1")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type frame struct {
	code    string
	payload string
}

func parseFrames(t *testing.T, body string) []frame {
	t.Helper()
	var frames []frame
	for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
		code, payload, ok := strings.Cut(line, ":")
		require.True(t, ok, "malformed frame %q", line)
		require.True(t, json.Valid([]byte(payload)), "frame payload is not JSON: %q", line)
		frames = append(frames, frame{code: code, payload: payload})
	}
	return frames
}

func codes(frames []frame) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(f.code)
	}
	return sb.String()
}

func TestChatRequiresSession(t *testing.T) {
	mock := testutil.NewMockProvider(testutil.TextResponse("hi"))
	s := newTestServer(t, &fakeResolver{p: mock}, nil)

	rec := postChat(t, s, chatBody(t, nil), false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unauthorized: missing Jellyfin session")
	assert.Equal(t, 0, mock.CallCount())
}

func TestChatErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		resolver chat.ProviderResolver
		body     func(t *testing.T) *bytes.Reader
		status   int
		contains string
	}{
		{
			name:     "missing credential",
			resolver: provider.NewFactory(provider.ProviderOpenAI, nil),
			body:     func(t *testing.T) *bytes.Reader { return chatBody(t, nil) },
			status:   http.StatusInternalServerError,
			contains: "OPENAI_API_KEY",
		},
		{
			name:     "unknown provider",
			resolver: provider.NewFactory(provider.ProviderOpenAI, nil),
			body: func(t *testing.T) *bytes.Reader {
				return chatBody(t, map[string]any{"aiProvider": "skynet", "apiKey": "k"})
			},
			status:   http.StatusBadRequest,
			contains: "unknown provider",
		},
		{
			name:     "first generation fails",
			resolver: &fakeResolver{p: &testutil.ErrorProvider{Err: errors.New("connection refused to upstream")}},
			body:     func(t *testing.T) *bytes.Reader { return chatBody(t, nil) },
			status:   http.StatusBadGateway,
			contains: "could not complete the request",
		},
		{
			name:     "empty conversation",
			resolver: &fakeResolver{p: testutil.NewMockProvider()},
			body: func(t *testing.T) *bytes.Reader {
				return bytes.NewReader([]byte(`{"messages":[]}`))
			},
			status:   http.StatusBadRequest,
			contains: "no messages",
		},
		{
			name:     "invalid body",
			resolver: &fakeResolver{p: testutil.NewMockProvider()},
			body: func(t *testing.T) *bytes.Reader {
				return bytes.NewReader([]byte(`{"messages":`))
			},
			status:   http.StatusBadRequest,
			contains: "invalid request body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", "")
			s := newTestServer(t, tt.resolver, nil)

			rec := postChat(t, s, tt.body(t), true)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.contains)
			assert.NotContains(t, rec.Body.String(), "connection refused")
		})
	}
}

func TestChatStreamsToolLoop(t *testing.T) {
	lib := testutil.NewFakeLibrary()
	lib.Items = []media.Item{{ID: "m1", Name: "Inception", Type: media.TypeMovie, ProductionYear: 2010}}
	mock := testutil.NewMockProvider(
		testutil.ToolCallResponse("call-1", "searchMedia", map[string]any{"query": "Inception"}),
		testutil.TextResponse("Found it."),
	)
	s := newTestServer(t, &fakeResolver{p: mock}, lib)

	rec := postChat(t, s, chatBody(t, nil), true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "v1", rec.Header().Get(DataStreamHeader))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	frames := parseFrames(t, rec.Body.String())
	assert.Equal(t, "f9aef0ed", codes(frames))

	var call struct {
		ToolCallID string         `json:"toolCallId"`
		ToolName   string         `json:"toolName"`
		Args       map[string]any `json:"args"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[1].payload), &call))
	assert.Equal(t, "call-1", call.ToolCallID)
	assert.Equal(t, "searchMedia", call.ToolName)
	assert.Equal(t, "Inception", call.Args["query"])

	var result struct {
		ToolCallID string `json:"toolCallId"`
		Card       string `json:"card"`
		Result     struct {
			Success bool         `json:"success"`
			Results []media.Item `json:"results"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[2].payload), &result))
	assert.Equal(t, "call-1", result.ToolCallID)
	assert.Equal(t, "media-list", result.Card)
	assert.True(t, result.Result.Success)
	require.Len(t, result.Result.Results, 1)
	assert.Equal(t, "m1", result.Result.Results[0].ID)

	var step struct {
		FinishReason string `json:"finishReason"`
		IsContinued  bool   `json:"isContinued"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[3].payload), &step))
	assert.Equal(t, "tool-calls", step.FinishReason)
	assert.True(t, step.IsContinued)

	assert.Equal(t, `"Found it."`, frames[5].payload)

	var done struct {
		FinishReason string    `json:"finishReason"`
		Usage        wireUsage `json:"usage"`
	}
	require.NoError(t, json.Unmarshal([]byte(frames[7].payload), &done))
	assert.Equal(t, "stop", done.FinishReason)
	assert.Positive(t, done.Usage.PromptTokens)
	assert.NotEqual(t, frames[0].payload, frames[4].payload)
}

func TestChatPassesSelectionAndSession(t *testing.T) {
	mock := testutil.NewMockProvider(testutil.TextResponse("ok"))
	resolver := &fakeResolver{p: mock}
	s := newTestServer(t, resolver, nil)

	rec := postChat(t, s, chatBody(t, map[string]any{
		"aiProvider":       "anthropic",
		"model":            "claude-x",
		"apiKey":           "sk-user",
		"currentMedia":     map[string]any{"id": "m1", "name": "Inception", "type": "Movie"},
		"currentTimestamp": 125.5,
	}), true)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolver.selected)
	assert.Equal(t, "anthropic", resolver.selected.Provider)
	assert.Equal(t, "claude-x", resolver.selected.Model)
	assert.Equal(t, "sk-user", resolver.selected.APIKey)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].SystemPrompt, "Inception")
}

func TestChatMidStreamErrorIsGeneric(t *testing.T) {
	mock := testutil.NewMockProvider([]domain.StreamEvent{
		{Type: domain.StreamEventText, Content: "Let me "},
		{Type: domain.StreamEventError, Error: errors.New("upstream 500: secret details")},
	})
	s := newTestServer(t, &fakeResolver{p: mock}, nil)

	rec := postChat(t, s, chatBody(t, nil), true)

	require.Equal(t, http.StatusOK, rec.Code)
	frames := parseFrames(t, rec.Body.String())
	last := frames[len(frames)-1]
	assert.Equal(t, "3", last.code)
	assert.Contains(t, last.payload, "could not complete the request")
	assert.NotContains(t, rec.Body.String(), "secret details")
}

func TestToolsEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeResolver{p: testutil.NewMockProvider()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Tools []domain.Tool `json:"tools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	names := make([]string, 0, len(body.Tools))
	for _, tl := range body.Tools {
		names = append(names, tl.Name)
	}
	assert.Contains(t, names, "searchMedia")
	assert.Contains(t, names, "skipToSubtitleContent")
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, &fakeResolver{p: testutil.NewMockProvider()}, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "navigator_chat_requests_total")
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	t.Run("preflight", func(t *testing.T) {
		h := CORS([]string{"http://jellyfin.local:8096"}, ok)
		req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
		req.Header.Set("Origin", "http://jellyfin.local:8096")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "http://jellyfin.local:8096", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Emby-Token")
	})

	t.Run("unknown origin", func(t *testing.T) {
		h := CORS([]string{"http://jellyfin.local:8096"}, ok)
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("no origins configured", func(t *testing.T) {
		h := CORS(nil, ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestReadyRoute(t *testing.T) {
	svc := chat.New(&fakeResolver{p: testutil.NewMockProvider()}, nil, nil, chat.Settings{})

	without := New(svc, Options{Metrics: metrics.New()})
	rec := httptest.NewRecorder()
	without.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	with := New(svc, Options{Metrics: metrics.New(), Ready: func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}})
	rec = httptest.NewRecorder()
	with.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanamz/swchat/pkg/engine"
	"github.com/germanamz/swchat/pkg/logging"
	"github.com/germanamz/swchat/pkg/providers/bedrock/bedrocktest"
	"github.com/germanamz/swchat/pkg/server"
	"github.com/germanamz/swchat/pkg/sse"
)

const testModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

type blockJSON struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type requestJSON struct {
	Messages []struct {
		Role    string      `json:"role"`
		Content []blockJSON `json:"content"`
	} `json:"messages"`
}

// stubBedrock answers questions about Luke with a getPeople tool use, then
// with text once the tool result is in the transcript. Anything else gets a
// plain greeting.
type stubBedrock struct {
	srv      *httptest.Server
	invokes  atomic.Int32
	streams  atomic.Int32
	override atomic.Pointer[http.HandlerFunc]
}

// replace routes every later request to h.
func (s *stubBedrock) replace(h http.HandlerFunc) { s.override.Store(&h) }

func newStubBedrock(t *testing.T) *stubBedrock {
	t.Helper()

	s := &stubBedrock{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := s.override.Load(); h != nil {
			(*h)(w, r)
			return
		}

		switch {
		case r.URL.Path == "/foundation-models":
			writeBody(w, map[string]any{"modelSummaries": []map[string]any{{
				"modelId":      testModel,
				"modelName":    "Claude 3.5 Sonnet",
				"providerName": "Anthropic",
			}}})
		case strings.HasSuffix(r.URL.Path, "/invoke-with-response-stream"):
			s.streams.Add(1)
			_ = bedrocktest.WriteStream(w, bedrocktest.TextDeltas("Luke ", "is a Jedi."))
		case strings.HasSuffix(r.URL.Path, "/invoke"):
			s.invokes.Add(1)

			var req requestJSON
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			writeBody(w, answer(req))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.srv.Close)

	return s
}

func answer(req requestJSON) map[string]any {
	text := func(s string) map[string]any {
		return map[string]any{
			"content":     []blockJSON{{Type: "text", Text: s}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 20, "output_tokens": 5},
		}
	}

	for _, m := range req.Messages {
		for _, b := range m.Content {
			if b.Type == "tool_result" {
				return text("Luke is a Jedi.")
			}
		}
	}

	if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content[0].Text, "Luke") {
		return map[string]any{
			"content": []blockJSON{
				{Type: "text", Text: "Let me check"},
				{Type: "tool_use", ID: "toolu_1", Name: "getPeople", Input: json.RawMessage(`{"people":"Luke"}`)},
			},
			"stop_reason": "tool_use",
		}
	}

	return text("Hello there!")
}

func writeBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newSWAPI(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"count":1,"next":null,"previous":null,"results":[{"name":"Luke Skywalker"}]}`)
	}))
	t.Cleanup(srv.Close)

	return srv
}

// lockedBuffer collects log output written from server goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	srv     *httptest.Server
	bedrock *stubBedrock
	logs    *lockedBuffer
}

func newFixture(t *testing.T, mutate ...func(*engine.Config)) *fixture {
	t.Helper()

	br := newStubBedrock(t)
	sw := newSWAPI(t)

	cfg := engine.DefaultConfig()
	cfg.Env = "test"
	cfg.Bedrock.ModelID = testModel
	cfg.Bedrock.Token = "tok"
	cfg.Bedrock.RuntimeURL = br.srv.URL
	cfg.Bedrock.ControlURL = br.srv.URL
	cfg.Tools.SWAPIBase = sw.URL
	for _, m := range mutate {
		m(&cfg)
	}

	logs := &lockedBuffer{}
	logger := logging.New(logging.Options{Writer: logs, Level: "debug"})

	e, err := engine.New(context.Background(), cfg, engine.WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })

	srv := httptest.NewServer(server.New(e, server.Options{Logger: logger}).Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, bedrock: br, logs: logs}
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(f.srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	return resp
}

func decode[T any](t *testing.T, r io.Reader) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

type chatReply struct {
	Response string `json:"response"`
	Tool     struct {
		UsedTool int      `json:"used_tool"`
		Names    []string `json:"names"`
	} `json:"tool"`
	Truncated bool `json:"truncated"`
}

func TestChat_WithTool(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/chat", `{"user_input":"Who is Luke Skywalker?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reply := decode[chatReply](t, resp.Body)
	assert.Equal(t, "Luke is a Jedi.", reply.Response)
	assert.Equal(t, 1, reply.Tool.UsedTool)
	assert.Equal(t, []string{"getPeople"}, reply.Tool.Names)
	assert.False(t, reply.Truncated)

	// Tool round plus the final answer call.
	assert.Equal(t, int32(3), f.bedrock.invokes.Load())
}

func TestChat_WithoutTool(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/chat", `{"user_input":"Hi"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	reply := decode[chatReply](t, resp.Body)
	assert.Equal(t, "Hello there!", reply.Response)
	assert.Equal(t, 0, reply.Tool.UsedTool)
	assert.Equal(t, []string{}, reply.Tool.Names)
}

func TestChat_InvalidBody(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{``, `{`, `{"question":"Hi"}`, `{"user_input":42}`} {
		resp := f.post(t, "/chat", body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, body)

		detail := decode[map[string]string](t, resp.Body)
		assert.NotEmpty(t, detail["detail"], body)
	}
	assert.Zero(t, f.bedrock.invokes.Load())
}

func TestChat_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.bedrock.replace(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"model not found"}`, http.StatusNotFound)
	})

	resp := f.post(t, "/chat", `{"user_input":"Hi"}`)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	detail := decode[map[string]string](t, resp.Body)
	assert.Contains(t, detail["detail"], "inference")
}

func TestChat_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/chat")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStream(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/stream", `{"user_input":"Who is Luke Skywalker?"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sse.ContentType, resp.Header.Get("Content-Type"))

	var frames []string
	err := sse.Read(context.Background(), resp.Body, func(_, data string) error {
		frames = append(frames, data)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`{"delta":"Let me check"}`,
		`{"tool_event":{"used":true,"names":["getPeople"]}}`,
		`{"delta":"Luke "}`,
		`{"delta":"is a Jedi."}`,
		`{"done":true}`,
	}, frames)
	assert.Equal(t, int32(2), f.bedrock.invokes.Load())
	assert.Equal(t, int32(1), f.bedrock.streams.Load())
}

func TestStream_InvalidBody(t *testing.T) {
	f := newFixture(t)

	resp := f.post(t, "/stream", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSuggestions(t *testing.T) {
	f := newFixture(t)
	f.bedrock.replace(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		assert.Nil(t, req["tools"])

		writeBody(w, map[string]any{
			"content":     []blockJSON{{Type: "text", Text: "Who is Yoda?\n\nWhat is the Falcon?\nWhere is Hoth?\nMore?"}},
			"stop_reason": "end_turn",
		})
	})

	resp := f.post(t, "/suggestions", `{"people":"Yoda"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[map[string][]string](t, resp.Body)
	assert.Equal(t, []string{"Who is Yoda?", "What is the Falcon?", "Where is Hoth?"}, got["suggestions"])
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/live")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, resp.Body))

	ready, err := http.Get(f.srv.URL + "/ready")
	require.NoError(t, err)
	defer func() { _ = ready.Body.Close() }()
	assert.Equal(t, http.StatusOK, ready.StatusCode)
	assert.Equal(t, map[string]string{"status": "ready"}, decode[map[string]string](t, ready.Body))
}

func TestReady_CacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	f := newFixture(t, func(c *engine.Config) { c.Cache.RedisURL = "redis://" + mr.Addr() })
	mr.Close()

	resp, err := http.Get(f.srv.URL + "/ready")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode[map[string]string](t, resp.Body)
	assert.Equal(t, "unavailable", body["status"])
	assert.NotEmpty(t, body["detail"])
}

func TestDebugModels(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/debug/models")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Models []struct {
			ID       string `json:"modelId"`
			Provider string `json:"providerName"`
		} `json:"models"`
		Settings map[string]string `json:"settings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	require.Len(t, body.Models, 1)
	assert.Equal(t, testModel, body.Models[0].ID)
	assert.Equal(t, "Anthropic", body.Models[0].Provider)
	assert.Equal(t, "test", body.Settings["env"])
	assert.Equal(t, "bedrock", body.Settings["provider"])
	assert.Equal(t, testModel, body.Settings["model_id"])
}

func TestRequestLogging(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/live", nil)
	require.NoError(t, err)
	req.Header.Set(server.RequestIDHeader, "8b0b1b2e-3f5c-4a39-9d7c-0e8f6a1b2c3d")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "8b0b1b2e-3f5c-4a39-9d7c-0e8f6a1b2c3d", resp.Header.Get(server.RequestIDHeader))

	// The completion line is written after the response is flushed.
	assert.Eventually(t, func() bool {
		return strings.Contains(f.logs.String(), `"msg":"request completed"`)
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, f.logs.String(), `"request_id":"8b0b1b2e-3f5c-4a39-9d7c-0e8f6a1b2c3d"`)
	assert.Contains(t, f.logs.String(), `"status_code":200`)
}

func TestRequestID_Generated(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodGet, f.srv.URL+"/live", nil)
	require.NoError(t, err)
	req.Header.Set(server.RequestIDHeader, "not-a-uuid")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	id := resp.Header.Get(server.RequestIDHeader)
	assert.NotEqual(t, "not-a-uuid", id)
	assert.Len(t, id, 36)
}

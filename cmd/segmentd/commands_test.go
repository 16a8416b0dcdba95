package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		httpClient: ts.server.Client(),
	}
}

func withClient(t *testing.T, ts *testServer) {
	t.Helper()
	orig := newAPIClient
	newAPIClient = func() (*apiClient, error) { return ts.client(), nil }
	t.Cleanup(func() { newAPIClient = orig })
}

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestAnalyzeCommandPostsPromptAndSession(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/analysis": "event: workflow_complete\ndata: {\"type\":\"workflow_complete\",\"response\":\"完成\"}\n\n",
	})
	withClient(t, ts)

	if err := runCommand(t, "analyze", "--session", "abc", "为VVIP客户做新品推广"); err != nil {
		t.Fatalf("analyze: %v", err)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("got %d requests, want 1", len(ts.requests))
	}
	req := ts.requests[0]
	if req.Path != "/v1/analysis" {
		t.Errorf("path = %q", req.Path)
	}
	for _, want := range []string{`"prompt":"为VVIP客户做新品推广"`, `"session_id":"abc"`, `"stream":true`} {
		if !strings.Contains(req.Body, want) {
			t.Errorf("body missing %s: %s", want, req.Body)
		}
	}
}

func TestSessionsNewPrintsID(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /v1/sessions": `{"session_id":"fresh-id"}`,
	})
	withClient(t, ts)

	if err := runCommand(t, "sessions", "new"); err != nil {
		t.Fatalf("sessions new: %v", err)
	}
	if ts.requests[0].Method != "POST" || ts.requests[0].Path != "/v1/sessions" {
		t.Errorf("request = %+v", ts.requests[0])
	}
}

func TestSessionsListRequestsAllSessions(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /v1/sessions": `[{"session_id":"a1","created_at":"2026-03-01T09:00:00Z","turns":2,"goal":"新品推广"}]`,
	})
	withClient(t, ts)

	if err := runCommand(t, "sessions", "list"); err != nil {
		t.Fatalf("sessions list: %v", err)
	}
	if ts.requests[0].Method != "GET" || ts.requests[0].Path != "/v1/sessions" {
		t.Errorf("request = %+v", ts.requests[0])
	}
}

func TestSessionsResetCallsDelete(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"DELETE /v1/sessions/old": `{"status":"reset","session_id":"new-id"}`,
	})
	withClient(t, ts)

	if err := runCommand(t, "sessions", "reset", "old"); err != nil {
		t.Fatalf("sessions reset: %v", err)
	}
	if ts.requests[0].Method != "DELETE" {
		t.Errorf("method = %q, want DELETE", ts.requests[0].Method)
	}
}

func TestDecodeJSONErrorResponse(t *testing.T) {
	resp := &http.Response{
		StatusCode: 500,
		Body:       http.NoBody,
	}
	var v any
	if err := decodeJSON(resp, &v); err == nil {
		t.Fatal("expected error for 500 response")
	}
}

func TestStreamSSEParsesEvents(t *testing.T) {
	body := "event: node_start\ndata: {\"stage\":\"intent_recognition\"}\n\nevent: workflow_complete\ndata: {\"response\":\"ok\"}\n\n"
	resp := &http.Response{
		StatusCode: 200,
		Body:       newReadCloser(body),
	}

	var types []string
	err := streamSSE(resp, func(eventType, data string) {
		types = append(types, eventType)
	})
	if err != nil {
		t.Fatalf("streamSSE: %v", err)
	}
	if len(types) != 2 || types[0] != "node_start" || types[1] != "workflow_complete" {
		t.Errorf("types = %v", types)
	}
}

func TestNoColorFlag(t *testing.T) {
	orig := noColor
	defer func() { noColor = orig }()

	noColor = false
	if got := colorize(colorGreen, "x"); got == "x" {
		t.Error("color expected with noColor=false")
	}
	noColor = true
	if got := colorize(colorGreen, "x"); got != "x" {
		t.Errorf("colorize = %q, want plain text with noColor=true", got)
	}
}

func newReadCloser(s string) *readCloser {
	return &readCloser{Reader: strings.NewReader(s)}
}

type readCloser struct {
	*strings.Reader
}

func (readCloser) Close() error { return nil }

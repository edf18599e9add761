package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/convoflow/convoflow/engine"
	"github.com/convoflow/convoflow/forge"
	"github.com/convoflow/convoflow/storage"
)

type fakeSessionStore struct {
	sessions map[string]*storage.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]*storage.Session{}}
}

func (s *fakeSessionStore) Find(_ context.Context, id string) (*storage.Session, error) {
	session, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) Save(_ context.Context, session *storage.Session) error {
	s.sessions[session.ID] = session
	return nil
}

func (s *fakeSessionStore) Delete(_ context.Context, id string) error {
	delete(s.sessions, id)
	return nil
}

type fakeCredentials struct {
	calls int
	err   error
}

func (f *fakeCredentials) Resolve(_ context.Context, _ string) (forge.Credentials, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return forge.Credentials{"apiKey": "secret"}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(store storage.SessionStore, credentials engine.CredentialsResolver, registry *forge.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := discardLogger()
	bridge := engine.NewBridge(registry, credentials, logger)
	executor := engine.NewExecutor(bridge, logger)
	g := gin.New()
	New(logger, store, executor, bridge).Register(g)
	return g
}

func postJSON(t *testing.T, router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body %q: %v", w.Body.String(), err)
	}
	return body
}

// demoFlow greets by name, suspends on a yes/no question and closes with a
// final bubble.
func demoFlow() engine.Flow {
	return engine.Flow{
		ID: "f1",
		Groups: []engine.Group{
			{
				ID: "g1",
				Blocks: []engine.Block{
					{
						ID:      "b1",
						Type:    engine.BlockTypeText,
						Content: map[string]any{"text": "Hello {{Name}}"},
					},
					{
						ID:   "b2",
						Type: engine.BlockTypeChoiceInput,
						Items: []engine.Item{
							{ID: "i1", Content: "Yes"},
							{ID: "i2", Content: "No"},
						},
						Options: map[string]any{"variableId": "v-answer"},
					},
					{
						ID:      "b3",
						Type:    engine.BlockTypeText,
						Content: map[string]any{"text": "You said {{Answer}}"},
					},
				},
			},
		},
		Variables: engine.Variables{
			{ID: "v-name", Name: "Name", Value: "Ada"},
			{ID: "v-answer", Name: "Answer"},
		},
	}
}

func TestStartSession(t *testing.T) {
	store := newFakeSessionStore()
	router := newTestRouter(store, &fakeCredentials{}, forge.NewRegistry())

	w := postJSON(t, router, "/api/v1/sessions", map[string]any{"flow": demoFlow()})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	sessionID, _ := body["sessionId"].(string)
	if sessionID == "" {
		t.Fatal("expected a session id")
	}
	if ended, _ := body["ended"].(bool); ended {
		t.Error("session suspended on input should not be ended")
	}

	messages, _ := body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %v, expected one greeting bubble", messages)
	}
	first := messages[0].(map[string]any)
	if content := first["content"].(map[string]any); content["text"] != "Hello Ada" {
		t.Errorf("greeting = %v", content["text"])
	}
	if body["input"] == nil {
		t.Error("expected the resolved input block in the response")
	}

	saved, ok := store.sessions[sessionID]
	if !ok {
		t.Fatal("session was not persisted")
	}
	if saved.State.CurrentBlockID != "b2" {
		t.Errorf("CurrentBlockID = %q, expected suspension on the input block", saved.State.CurrentBlockID)
	}
}

func TestStartSession_BadRequests(t *testing.T) {
	router := newTestRouter(newFakeSessionStore(), &fakeCredentials{}, forge.NewRegistry())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d", w.Code)
	}

	w = postJSON(t, router, "/api/v1/sessions", map[string]any{"flow": engine.Flow{ID: "empty"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty flow: status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "Flow has no groups" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestContinueSession(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["s1"] = &storage.Session{
		ID: "s1",
		State: engine.SessionState{
			FlowQueue:      []engine.FlowContext{{Flow: demoFlow()}},
			CurrentBlockID: "b2",
		},
	}
	router := newTestRouter(store, &fakeCredentials{}, forge.NewRegistry())

	w := postJSON(t, router, "/api/v1/sessions/s1/continue", map[string]any{"message": "Yes"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}

	body := decodeBody(t, w)
	if ended, _ := body["ended"].(bool); !ended {
		t.Error("flow should have run to completion")
	}
	messages, _ := body["messages"].([]any)
	if len(messages) != 1 {
		t.Fatalf("messages = %v", messages)
	}
	closing := messages[0].(map[string]any)["content"].(map[string]any)
	if closing["text"] != "You said Yes" {
		t.Errorf("closing bubble = %v", closing["text"])
	}

	state := store.sessions["s1"].State
	if state.CurrentBlockID != "" {
		t.Errorf("CurrentBlockID = %q after flow end", state.CurrentBlockID)
	}
	if value, ok := state.CurrentVariables().Get("v-answer"); !ok || value != "Yes" {
		t.Errorf("persisted answer = %v (found %v)", value, ok)
	}
}

func TestContinueSession_NotFound(t *testing.T) {
	router := newTestRouter(newFakeSessionStore(), &fakeCredentials{}, forge.NewRegistry())

	w := postJSON(t, router, "/api/v1/sessions/missing/continue", map[string]any{"message": "hi"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "Session not found" {
		t.Errorf("message = %v", body["message"])
	}
}

// streamFlow is a single forged block the session is currently pointing at.
func streamFlow(action string) engine.SessionState {
	return engine.SessionState{
		FlowQueue: []engine.FlowContext{{Flow: engine.Flow{
			ID: "f1",
			Groups: []engine.Group{{
				ID: "g1",
				Blocks: []engine.Block{{
					ID:   "b1",
					Type: "fake",
					Options: map[string]any{
						"action":        action,
						"credentialsId": "c1",
					},
				}},
			}},
		}}},
		CurrentBlockID: "b1",
	}
}

func streamRegistry(stream func(forge.StreamRun) (io.ReadCloser, error)) *forge.Registry {
	return forge.NewRegistry(forge.Block{
		ID: "fake",
		Actions: []forge.Action{{
			Name:   "Ask Assistant",
			Stream: stream,
		}},
	})
}

func TestStream_NoSessionID(t *testing.T) {
	router := newTestRouter(newFakeSessionStore(), &fakeCredentials{}, forge.NewRegistry())

	w := postJSON(t, router, "/api/v1/integrations/stream", map[string]any{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "No session ID provided" {
		t.Errorf("message = %v", body["message"])
	}
	if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("stream headers missing on error response, origin = %q", origin)
	}
}

func TestStream_NoState(t *testing.T) {
	credentials := &fakeCredentials{}
	router := newTestRouter(newFakeSessionStore(), credentials, forge.NewRegistry())

	w := postJSON(t, router, "/api/v1/integrations/stream", map[string]any{"sessionId": "missing"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "No state found" {
		t.Errorf("message = %v", body["message"])
	}
	if credentials.calls != 0 {
		t.Errorf("credentials touched %d times for a missing session", credentials.calls)
	}
}

func TestStream_NoStreamFunction(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["s1"] = &storage.Session{ID: "s1", State: streamFlow("Ask Assistant")}
	credentials := &fakeCredentials{}
	registry := forge.NewRegistry(forge.Block{
		ID: "fake",
		Actions: []forge.Action{{
			Name:   "Ask Assistant",
			Server: func(forge.ServerRun) error { return nil },
		}},
	})
	router := newTestRouter(store, credentials, registry)

	w := postJSON(t, router, "/api/v1/integrations/stream", map[string]any{"sessionId": "s1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "This action does not have a stream function" {
		t.Errorf("message = %v", body["message"])
	}
	if credentials.calls != 0 {
		t.Errorf("credentials resolved %d times before the capability check", credentials.calls)
	}
}

func TestStream_ProviderError(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["s1"] = &storage.Session{ID: "s1", State: streamFlow("Ask Assistant")}
	registry := streamRegistry(func(forge.StreamRun) (io.ReadCloser, error) {
		return nil, &forge.ProviderError{Name: "WebhookError", Status: http.StatusTooManyRequests, Message: "rate limited"}
	})
	router := newTestRouter(store, &fakeCredentials{}, registry)

	w := postJSON(t, router, "/api/v1/integrations/stream", map[string]any{"sessionId": "s1"})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
	body := decodeBody(t, w)
	if body["name"] != "WebhookError" || body["message"] != "rate limited" {
		t.Errorf("body = %v", body)
	}
}

func TestStream_ForwardsBody(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["s1"] = &storage.Session{ID: "s1", State: streamFlow("Ask Assistant")}
	var seen forge.StreamRun
	registry := streamRegistry(func(run forge.StreamRun) (io.ReadCloser, error) {
		seen = run
		return io.NopCloser(strings.NewReader("data: first\n\ndata: second\n\n")), nil
	})
	credentials := &fakeCredentials{}
	router := newTestRouter(store, credentials, registry)

	w := postJSON(t, router, "/api/v1/integrations/stream", map[string]any{"sessionId": "s1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "data: first\n\ndata: second\n\n" {
		t.Errorf("body = %q, expected upstream chunks verbatim", w.Body.String())
	}
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Errorf("Cache-Control = %q", cc)
	}
	if !w.Flushed {
		t.Error("stream chunks must be flushed as they are written")
	}
	if credentials.calls != 1 {
		t.Errorf("credentials resolved %d times", credentials.calls)
	}
	if seen.Credentials["apiKey"] != "secret" {
		t.Errorf("stream run credentials = %v", seen.Credentials)
	}
}

func TestStream_CredentialsFailure(t *testing.T) {
	store := newFakeSessionStore()
	store.sessions["s1"] = &storage.Session{ID: "s1", State: streamFlow("Ask Assistant")}
	registry := streamRegistry(func(forge.StreamRun) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("unreachable")), nil
	})
	router := newTestRouter(store, &fakeCredentials{err: errors.New("cipher: message authentication failed")}, registry)

	w := postJSON(t, router, "/api/v1/integrations/stream", map[string]any{"sessionId": "s1"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if body := decodeBody(t, w); body["message"] != "Could not find credentials" {
		t.Errorf("message = %v", body["message"])
	}
}

func TestStreamPreflight(t *testing.T) {
	router := newTestRouter(newFakeSessionStore(), &fakeCredentials{}, forge.NewRegistry())

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/integrations/stream", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}

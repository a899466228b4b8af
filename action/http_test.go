package action

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPExecutor_GET_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	exec := NewHTTPExecutor()
	result, err := exec.Execute(context.Background(), Action{
		Kind:     KindHttpCall,
		Endpoint: server.URL,
		Method:   "GET",
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if result.Output["status_code"] != 200 {
		t.Errorf("expected status_code 200, got %v", result.Output["status_code"])
	}
}

func TestHTTPExecutor_POST_WithBody(t *testing.T) {
	var receivedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		_, _ = r.Body.Read(buf)
		receivedBody = string(buf)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	exec := NewHTTPExecutor()
	result, err := exec.Execute(context.Background(), Action{
		Kind:     KindHttpCall,
		Endpoint: server.URL,
		Method:   "POST",
		Body:     `{"key":"value"}`,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success for 201, got %+v", result)
	}
	if receivedBody != `{"key":"value"}` {
		t.Errorf("expected body forwarded, got %q", receivedBody)
	}
}

func TestHTTPExecutor_NonSuccessStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	exec := NewHTTPExecutor()
	result, err := exec.Execute(context.Background(), Action{
		Kind:     KindHttpCall,
		Endpoint: server.URL,
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false for a 500 response")
	}
}

func TestHTTPExecutor_UnsupportedKind(t *testing.T) {
	exec := NewHTTPExecutor()
	result, err := exec.Execute(context.Background(), Action{Kind: KindNotify}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false for an unsupported action kind")
	}
}

func TestHTTPExecutor_MissingEndpoint(t *testing.T) {
	exec := NewHTTPExecutor()
	_, err := exec.Execute(context.Background(), Action{Kind: KindHttpCall}, nil)
	if err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tjfontaine/jarvis/internal/core/ports"
	"github.com/tjfontaine/jarvis/internal/testutil"
)

func TestClient_Complete(t *testing.T) {
	recorder, cleanup := testutil.NewVCRRecorder(t, "openai_directive")
	defer cleanup()

	c := New("test-key", "", WithHTTPClient(testutil.VCRHTTPClient(recorder)))
	got, err := c.Complete(context.Background(), []ports.ChatMessage{
		{Role: ports.ChatRoleSystem, Content: "route"},
		{Role: ports.ChatRoleUser, Content: "il fait sombre dans la cuisine"},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if want := `{"type":"command","text":"allume lumière cuisine"}`; got != want {
		t.Errorf("Complete() = %q, want %q", got, want)
	}
}

func TestClient_RequestShape(t *testing.T) {
	var body struct {
		Model          string  `json:"model"`
		Temperature    float64 `json:"temperature"`
		ResponseFormat struct {
			Type string `json:"type"`
		} `json:"response_format"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"  {\"type\":\"chat\",\"text\":\"hi\"}\n"}}]}`))
	}))
	defer srv.Close()

	c := New("k", "local-model", WithBaseURL(srv.URL+"/v1/"))
	got, err := c.Complete(context.Background(), []ports.ChatMessage{{Role: ports.ChatRoleUser, Content: "hello"}})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `{"type":"chat","text":"hi"}` {
		t.Errorf("Complete() = %q", got)
	}
	if body.Model != "local-model" || body.ResponseFormat.Type != "json_object" {
		t.Errorf("request = %+v", body)
	}
	if body.Temperature < 0.19 || body.Temperature > 0.21 {
		t.Errorf("temperature = %v", body.Temperature)
	}
	if len(body.Messages) != 1 || body.Messages[0].Role != "user" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestClient_EmptyCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"   "}}]}`))
	}))
	defer srv.Close()

	_, err := New("k", "", WithBaseURL(srv.URL)).Complete(context.Background(), nil)
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Errorf("error = %v, want ErrEmptyCompletion", err)
	}
}

func TestClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := New("k", "", WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	if _, err := c.Complete(context.Background(), nil); err == nil {
		t.Fatal("expected timeout error")
	}
}

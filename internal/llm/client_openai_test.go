package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wisebot/internal/wisdom"
)

func newOpenAITestClient(serverURL string) *OpenAIClient {
	return NewOpenAIClient(OpenAIConfig{
		APIKey:  "sk-test",
		BaseURL: serverURL,
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func TestOpenAICompleteChat(t *testing.T) {
	var gotReq openAIRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer sk-test" {
			t.Errorf("auth header = %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"  hello there  "}}]}`)
	}))
	defer server.Close()

	client := newOpenAITestClient(server.URL)

	messages := []wisdom.Message{
		{Role: wisdom.RoleSystem, Content: "be wise"},
		{Role: wisdom.RoleUser, Content: "hi", SpeakerName: "alice"},
	}

	got, err := client.CompleteChat(context.Background(), messages)
	if err != nil {
		t.Fatalf("CompleteChat failed: %v", err)
	}
	if got != "hello there" {
		t.Errorf("response = %q, want trimmed %q", got, "hello there")
	}

	if len(gotReq.Messages) != 2 {
		t.Fatalf("sent %d messages, want 2", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Name != "alice" {
		t.Errorf("payload messages = %+v", gotReq.Messages)
	}
}

func TestOpenAICompleteChatAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"message":"bad request","type":"invalid_request_error"}}`)
	}))
	defer server.Close()

	client := newOpenAITestClient(server.URL)
	if _, err := client.CompleteChat(context.Background(), []wisdom.Message{{Role: wisdom.RoleUser, Content: "hi"}}); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestOpenAICompleteChatNoKey(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{})
	if _, err := client.CompleteChat(context.Background(), nil); err == nil {
		t.Fatal("expected error without API key")
	}
}

func TestOpenAIStreamChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\" world\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newOpenAITestClient(server.URL)

	content, errs := client.StreamChat(context.Background(), []wisdom.Message{{Role: wisdom.RoleUser, Content: "hi"}})

	var full string
	for delta := range content {
		full += delta
	}
	if err, ok := <-errs; ok && err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if full != "Hello world" {
		t.Errorf("streamed content = %q", full)
	}
}

func TestOpenAIStreamChatMidStreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"partial\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"error\":{\"message\":\"overloaded\",\"type\":\"server_error\"}}\n\n")
	}))
	defer server.Close()

	client := newOpenAITestClient(server.URL)

	content, errs := client.StreamChat(context.Background(), []wisdom.Message{{Role: wisdom.RoleUser, Content: "hi"}})
	for range content {
	}

	err, ok := <-errs
	if !ok || err == nil {
		t.Fatal("expected mid-stream error")
	}
}

func TestOpenAIGenerateImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req imageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		if req.Prompt != "a wise owl" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		fmt.Fprint(w, `{"data":[{"url":"https://images.example/owl.png"}]}`)
	}))
	defer server.Close()

	client := newOpenAITestClient(server.URL)

	url, err := client.GenerateImage(context.Background(), "a wise owl")
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if url != "https://images.example/owl.png" {
		t.Errorf("url = %q", url)
	}
}

func TestNewClientFactory(t *testing.T) {
	client, err := NewClient(clientConfig("openai"), time.Second)
	if err != nil {
		t.Fatalf("openai: %v", err)
	}
	if _, ok := client.(*OpenAIClient); !ok {
		t.Errorf("got %T, want *OpenAIClient", client)
	}

	client, err = NewClient(clientConfig("anthropic"), time.Second)
	if err != nil {
		t.Fatalf("anthropic: %v", err)
	}
	if _, ok := client.(*AnthropicClient); !ok {
		t.Errorf("got %T, want *AnthropicClient", client)
	}

	if _, err := NewClient(clientConfig("carrier-pigeon"), time.Second); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

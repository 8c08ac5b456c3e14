package enrich

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChatTranslatorRequest(t *testing.T) {
	var gotAuth string
	var gotReq chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"choices":[{"message":{"content":"  你好  "}}]}`))
	}))
	defer server.Close()

	translator := NewChatTranslator(Settings{
		BaseURL: server.URL,
		Model:   "test-model",
		APIKey:  "secret",
	}, server.Client())

	got, err := translator.Translate(context.Background(), "hello", "zh")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != "你好" {
		t.Errorf("Expected trimmed translation, got: %q", got)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer auth, got: %q", gotAuth)
	}
	if gotReq.Model != "test-model" {
		t.Errorf("Expected configured model, got: %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[1].Content != "hello" {
		t.Errorf("Expected system+user messages, got: %+v", gotReq.Messages)
	}
}

func TestChatTranslatorRejectsInvalidLanguage(t *testing.T) {
	translator := NewChatTranslator(Settings{BaseURL: "http://127.0.0.1:1"}, nil)

	if _, err := translator.Translate(context.Background(), "hello", "not a language!"); err == nil {
		t.Fatal("Expected error for invalid target language")
	}
}

func TestChatTranslatorPropagatesHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer server.Close()

	translator := NewChatTranslator(Settings{BaseURL: server.URL}, server.Client())

	if _, err := translator.Translate(context.Background(), "hello", "zh"); err == nil {
		t.Fatal("Expected error for non-2xx response")
	}
}

func TestExtractTextShapes(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"openai message", `{"choices":[{"message":{"content":"result"}}]}`, "result"},
		{"completion text", `{"choices":[{"text":"result"}]}`, "result"},
		{"top-level response", `{"response":"result"}`, "result"},
		{"top-level text", `{"text":"result"}`, "result"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractText([]byte(tc.body))
			if err != nil {
				t.Fatalf("Expected no error, got: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected %q, got: %q", tc.want, got)
			}
		})
	}

	if _, err := extractText([]byte(`{"choices":[]}`)); err == nil {
		t.Error("Expected error for empty response")
	}
}

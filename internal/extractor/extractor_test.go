package extractor_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"voice-memories-go/internal/extractor"
	"voice-memories-go/internal/logger"
)

func newClient(t *testing.T, handler http.HandlerFunc) *extractor.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return extractor.New(extractor.Config{BaseURL: srv.URL, APIKey: "key", Model: "gpt-test", Temperature: 0.3}, logger.Discard())
}

func TestCompleteRequestShape(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["temperature"] != 0.3 {
			t.Errorf("unexpected temperature %v", req["temperature"])
		}
		format, _ := req["response_format"].(map[string]any)
		if format["type"] != "json_object" {
			t.Errorf("expected json_object response format, got %v", req["response_format"])
		}
		msgs, _ := req["messages"].([]any)
		if len(msgs) != 2 {
			t.Errorf("expected system and user messages, got %d", len(msgs))
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"title\":\"x\"}"}}]}`))
	})

	got, err := client.Complete(context.Background(), "sys", "user")
	if err != nil || got != `{"title":"x"}` {
		t.Fatalf("Complete: %q %v", got, err)
	}
}

func TestCompleteEmptyAndFailureShapes(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"null content", 200, `{"choices":[{"message":{"content":null}}]}`, false},
		{"empty content", 200, `{"choices":[{"message":{"content":""}}]}`, false},
		{"no choices", 200, `{"choices":[]}`, true},
		{"http error", 429, `{"error":"rate limited"}`, true},
		{"garbage", 200, `<html>`, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})
			got, err := client.Complete(context.Background(), "s", "u")
			if tc.wantErr && err == nil {
				t.Fatal("expected error")
			}
			if !tc.wantErr && (err != nil || got != "") {
				t.Fatalf("expected empty content without error, got %q %v", got, err)
			}
		})
	}
}

func TestStripFence(t *testing.T) {
	cases := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"  ```\r\n{\"a\":1}\r\n```\n", `{"a":1}`, true},
		{"```json\n{\"t\":\"keep ``` inside\"}\n```", "{\"t\":\"keep ``` inside\"}", true},
		{`{"a":1}`, "", false},
		{"Sure! ```json\n{\"a\":1}\n```", "", false},
		{"```json\n{\"a\":1}\n``` thanks", "", false},
		{"```{\"a\":1}```", "", false},
	}
	for _, tc := range cases {
		got, ok := extractor.StripFence(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Fatalf("StripFence(%q) = %q, %v; want %q, %v", tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestBuildAnalysisPrompt(t *testing.T) {
	system, user := extractor.BuildAnalysisPrompt("we met today")
	if !strings.Contains(system, "key_points") || !strings.Contains(user, "TRANSCRIPT:\nwe met today") {
		t.Fatalf("unexpected prompts:\n%s\n%s", system, user)
	}
}

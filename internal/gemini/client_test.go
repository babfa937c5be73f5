package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/accionlabs/intelhub/internal/config"
	"github.com/accionlabs/intelhub/internal/retry"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(&config.AIConfig{BaseURL: srv.URL, APIKey: "k", Model: "gemini-test"})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewClient_requiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.AIConfig{Model: "m"})
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestGenerate_sendsRequestAndParsesGrounding(t *testing.T) {
	var got generateRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/gemini-test:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "k" {
			t.Errorf("missing api key header")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_, _ = io.WriteString(w, `{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "thinking", "thought": true}, {"text": "{\"a\":"}, {"text": "1}"}]},
				"finishReason": "STOP",
				"groundingMetadata": {"groundingChunks": [
					{"web": {"uri": "https://a.example", "title": "A"}},
					{"retrievedContext": {}}
				]}
			}]
		}`)
	})

	resp, err := c.Generate(context.Background(), &Request{
		Prompt:            "hello",
		SystemInstruction: "be brief",
		GoogleSearch:      true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != `{"a":1}` {
		t.Errorf("text = %q", resp.Text)
	}
	if resp.FinishReason != "STOP" {
		t.Errorf("finish = %q", resp.FinishReason)
	}
	if len(resp.Sources) != 1 || resp.Sources[0].URI != "https://a.example" {
		t.Errorf("sources = %+v", resp.Sources)
	}
	if len(got.Contents) != 1 || got.Contents[0].Parts[0].Text != "hello" {
		t.Errorf("contents = %+v", got.Contents)
	}
	if got.SystemInstruction == nil || got.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction = %+v", got.SystemInstruction)
	}
	if len(got.Tools) != 1 || got.Tools[0].GoogleSearch == nil {
		t.Errorf("tools = %+v", got.Tools)
	}
	if got.GenerationConfig != nil {
		t.Errorf("generation config should be omitted without schema")
	}
}

func TestGenerate_responseSchema(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`)
	})
	_, err := c.Generate(context.Background(), &Request{
		Prompt: "facts",
		ResponseSchema: &Schema{Type: "OBJECT", Properties: map[string]*Schema{
			"facts": {Type: "ARRAY", Items: &Schema{Type: "STRING"}},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	gc, ok := raw["generationConfig"].(map[string]any)
	if !ok {
		t.Fatalf("generationConfig missing: %v", raw)
	}
	if gc["responseMimeType"] != "application/json" {
		t.Errorf("mime = %v", gc["responseMimeType"])
	}
}

func TestGenerate_blockedPrompt(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"promptFeedback":{"blockReason":"SAFETY"}}`)
	})
	resp, err := c.Generate(context.Background(), &Request{Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.BlockReason != "SAFETY" || resp.Text != "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestGenerate_apiErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  int
		wantClass retry.Class
	}{
		{"rate limited", 429, `{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`, 429, retry.RateLimited},
		{"internal", 500, `{"error":{"code":500,"message":"oops","status":"INTERNAL"}}`, 500, retry.Transient},
		{"bad request", 400, `{"error":{"code":400,"message":"bad","status":"INVALID_ARGUMENT"}}`, 400, retry.Fatal},
		{"non json body", 502, `<html>bad gateway</html>`, 502, retry.Fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})
			_, err := c.Generate(context.Background(), &Request{Prompt: "x"})
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", apiErr.Code, tt.wantCode)
			}
			if got := retry.Classify(err); got != tt.wantClass {
				t.Errorf("class = %s, want %s", got, tt.wantClass)
			}
			if !strings.Contains(err.Error(), "model API error") {
				t.Errorf("message = %q", err.Error())
			}
		})
	}
}

func TestAPIError_classifiesByStatusWhenCodeMissing(t *testing.T) {
	if (&APIError{Status: "RESOURCE_EXHAUSTED"}).RetryClass() != retry.RateLimited {
		t.Error("status alone should classify as rate limited")
	}
	if (&APIError{Status: "INTERNAL"}).RetryClass() != retry.Transient {
		t.Error("status alone should classify as transient")
	}
}

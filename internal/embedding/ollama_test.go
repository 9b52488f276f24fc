package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaEngineEmbed(t *testing.T) {
	var gotModel, gotPrompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		gotModel = req.Model
		gotPrompt = req.Prompt
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e, err := NewOllamaEngine(srv.URL, "embeddinggemma", 3, 5*time.Second)
	if err != nil {
		t.Fatalf("NewOllamaEngine failed: %v", err)
	}

	vec, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 || vec[1] != 0.2 {
		t.Errorf("unexpected vector: %v", vec)
	}
	if gotModel != "embeddinggemma" || gotPrompt != "hello world" {
		t.Errorf("request mismatch: model=%q prompt=%q", gotModel, gotPrompt)
	}
}

func TestOllamaEngineServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	e, _ := NewOllamaEngine(srv.URL, "", 0, 0)
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error from 500 response")
	}
}

func TestOllamaEngineDefaults(t *testing.T) {
	e, err := NewOllamaEngine("", "", 0, 0)
	if err != nil {
		t.Fatalf("NewOllamaEngine failed: %v", err)
	}
	if e.endpoint != "http://localhost:11434" {
		t.Errorf("unexpected default endpoint %s", e.endpoint)
	}
	if e.model != "embeddinggemma" {
		t.Errorf("unexpected default model %s", e.model)
	}
	if e.Dimensions() != 768 {
		t.Errorf("unexpected default dims %d", e.Dimensions())
	}
	if e.Name() != "ollama:embeddinggemma" {
		t.Errorf("unexpected name %s", e.Name())
	}
}

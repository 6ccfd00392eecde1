package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "llama3" || req.Prompt != "What is 2+2?" || req.Stream {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"model":"llama3","response":"4","done":true}`)
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL+"/", time.Second)
	reply, err := client.Generate(context.Background(), "llama3", "What is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", reply)
}

func TestOllamaGenerateFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"non-success status": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"error":"model 'nope' not found"}`)
		},
		"error field": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"error":"out of memory"}`)
		},
		"bad json": func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `not json`)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			_, err := NewOllamaClient(server.URL, time.Second).Generate(context.Background(), "nope", "hi")
			assert.Error(t, err)
		})
	}
}

func TestOllamaGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := NewOllamaClient(server.URL, 50*time.Millisecond).Generate(context.Background(), "llama3", "hi")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestOllamaGenerateUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewOllamaClient(url, time.Second).Generate(context.Background(), "llama3", "hi")
	assert.Error(t, err)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "h...", truncate("héllo", 2))
	assert.Equal(t, "hé...", truncate("héllo", 3))

	long := strings.Repeat("é", 300)
	got := truncate(long, 511)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 255)+"...", got)
}

func TestOllamaErrorBodyIsValidUTF8(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("x" + strings.Repeat("模", 400)))
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, 5*time.Second)
	_, err := client.Generate(context.Background(), "llama3", "hi")
	require.Error(t, err)
	assert.True(t, utf8.ValidString(err.Error()))
}

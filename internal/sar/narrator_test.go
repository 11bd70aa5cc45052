package sar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/cache"
	"github.com/opensource-finance/kestrel/internal/domain"
)

func fakeChatServer(t *testing.T, calls *atomic.Int32, narrative string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)

		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %d", len(req.Messages))
		}
		if !strings.Contains(req.Messages[1].Content, "cust-1") {
			t.Error("prompt missing customer ID")
		}
		if !strings.Contains(req.Messages[1].Content, "structured_transactions") {
			t.Error("prompt missing violated rule names")
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": narrative}},
			},
		})
	}))
}

func testTxs() []domain.Transaction {
	return []domain.Transaction{
		{
			ID:         "t1",
			CustomerID: "cust-1",
			Date:       time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			Amount:     9500,
			Type:       "deposit",
			Country:    "Utopia",
		},
	}
}

func TestGenerate(t *testing.T) {
	var calls atomic.Int32
	srv := fakeChatServer(t, &calls, "On March 1, 2025, the customer conducted...")
	defer srv.Close()

	n := NewNarrator(domain.NarratorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "llama3-70b-8192",
	}, nil)

	narrative, err := n.Generate(context.Background(), "ds-1", "cust-1",
		[]string{"structured_transactions", "high_value_cash_deposits"}, testTxs())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(narrative, "March 1") {
		t.Errorf("unexpected narrative: %q", narrative)
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	n := NewNarrator(domain.NarratorConfig{}, nil)

	_, err := n.Generate(context.Background(), "ds-1", "cust-1", []string{"r1"}, nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGenerateServesCacheOnRepeat(t *testing.T) {
	var calls atomic.Int32
	srv := fakeChatServer(t, &calls, "cached narrative")
	defer srv.Close()

	n := NewNarrator(domain.NarratorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "llama3-70b-8192",
	}, cache.NewLRUCache(10))

	violations := []string{"structured_transactions"}
	for i := 0; i < 3; i++ {
		got, err := n.Generate(context.Background(), "ds-1", "cust-1", violations, testTxs())
		if err != nil {
			t.Fatalf("generate %d failed: %v", i, err)
		}
		if got != "cached narrative" {
			t.Fatalf("generate %d: unexpected narrative %q", i, got)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("expected 1 upstream call, got %d", calls.Load())
	}
}

func TestInvalidateForcesRegeneration(t *testing.T) {
	var calls atomic.Int32
	srv := fakeChatServer(t, &calls, "narrative")
	defer srv.Close()

	n := NewNarrator(domain.NarratorConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
	}, cache.NewLRUCache(10))

	ctx := context.Background()
	violations := []string{"structured_transactions"}
	n.Generate(ctx, "ds-1", "cust-1", violations, testTxs())
	n.Invalidate(ctx, "ds-1", "cust-1")
	n.Generate(ctx, "ds-1", "cust-1", violations, testTxs())

	if calls.Load() != 2 {
		t.Errorf("expected 2 upstream calls after invalidation, got %d", calls.Load())
	}
}

func TestGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	n := NewNarrator(domain.NarratorConfig{BaseURL: srv.URL}, nil)

	_, err := n.Generate(context.Background(), "ds-1", "cust-1", []string{"r1"}, nil)
	if err == nil {
		t.Fatal("expected error from failing upstream")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	n := NewNarrator(domain.NarratorConfig{BaseURL: srv.URL}, nil)

	_, err := n.Generate(context.Background(), "ds-1", "cust-1", []string{"r1"}, nil)
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Fatalf("expected empty-narrative error, got %v", err)
	}
}

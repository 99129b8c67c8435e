package crew

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestLinkupSearchFormatsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		if body["q"] != "golang history" || body["depth"] != "standard" {
			t.Errorf("unexpected request payload: %v", body)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{
				{"name": "Go at Google", "url": "https://example.com/go", "content": "Go began in 2007."},
				{"name": "Go FAQ", "url": "https://example.com/faq", "content": "Designed by Pike and others."},
			},
		})
	}))
	defer srv.Close()

	c := newLinkupClient("test-key", srv.URL, srv.Client())
	out, err := c.Search(context.Background(), "golang history", "", "")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !strings.Contains(out, "[1] Go at Google") || !strings.Contains(out, "[2] Go FAQ") {
		t.Fatalf("results not numbered: %q", out)
	}
	if !strings.Contains(out, "https://example.com/go") {
		t.Fatalf("source url missing: %q", out)
	}
}

func TestLinkupSearchRetriesOn429(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]string{{"name": "n", "url": "u", "content": "c"}},
		})
	}))
	defer srv.Close()

	c := newLinkupClient("k", srv.URL, srv.Client())
	out, err := c.Search(context.Background(), "q", "deep", "searchResults")
	if err != nil {
		t.Fatalf("Search failed after retry: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if !strings.Contains(out, "[1] n") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLinkupSearchSourcedAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"answer":  "Go was announced in 2009.",
			"sources": []map[string]string{{"name": "blog", "url": "https://example.com", "content": "announcement"}},
		})
	}))
	defer srv.Close()

	c := newLinkupClient("k", srv.URL, srv.Client())
	out, err := c.Search(context.Background(), "q", "", "sourcedAnswer")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if !strings.HasPrefix(out, "Go was announced in 2009.") {
		t.Fatalf("answer should lead the output: %q", out)
	}
	if !strings.Contains(out, "[1] blog") {
		t.Fatalf("sources should follow the answer: %q", out)
	}
}

func TestLinkupSearchMissingKey(t *testing.T) {
	c := newLinkupClient("", "", nil)
	if _, err := c.Search(context.Background(), "q", "", ""); err == nil {
		t.Fatalf("expected error without api key")
	}
}

func TestLinkupSearchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newLinkupClient("k", srv.URL, srv.Client())
	if _, err := c.Search(context.Background(), "q", "", ""); err == nil {
		t.Fatalf("expected error on http 500")
	}
}

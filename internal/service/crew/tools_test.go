package crew

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

type fakeSearchTool struct {
	result string
	err    error
	calls  int
}

func (f *fakeSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: "fake_search"}, nil
}

func (f *fakeSearchTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.result, nil
}

func TestWebSearchFetchesURLDirectly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("expected a user agent header")
		}
		w.Write([]byte("page body"))
	}))
	defer srv.Close()

	ws := &webSearchTool{httpClient: srv.Client()}
	out, err := ws.run(context.Background(), &webSearchParams{Query: srv.URL})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "page body" {
		t.Fatalf("unexpected content %q", out)
	}
}

func TestWebSearchFallsBackAcrossProviders(t *testing.T) {
	google := &fakeSearchTool{err: errors.New("quota exceeded")}
	duck := &fakeSearchTool{result: "ddg results"}
	ws := &webSearchTool{google: google, duck: duck}

	out, err := ws.run(context.Background(), &webSearchParams{Query: "golang generics"})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if out != "ddg results" {
		t.Fatalf("expected duckduckgo fallback, got %q", out)
	}
	if google.calls != 1 || duck.calls != 1 {
		t.Fatalf("unexpected provider call counts google=%d duck=%d", google.calls, duck.calls)
	}
}

func TestWebSearchAllProvidersFail(t *testing.T) {
	ws := &webSearchTool{
		google: &fakeSearchTool{err: errors.New("down")},
		duck:   &fakeSearchTool{err: errors.New("down")},
	}
	if _, err := ws.run(context.Background(), &webSearchParams{Query: "q"}); err == nil {
		t.Fatalf("expected error when every provider fails")
	}
}

func TestWebSearchEmptyQuery(t *testing.T) {
	ws := &webSearchTool{duck: &fakeSearchTool{result: "x"}}
	if _, err := ws.run(context.Background(), &webSearchParams{Query: "  "}); err == nil {
		t.Fatalf("expected error for blank query")
	}
}

func TestLooksLikeURL(t *testing.T) {
	if !looksLikeURL("https://example.com/page") {
		t.Fatalf("https url not recognized")
	}
	if !looksLikeURL("HTTP://EXAMPLE.COM") {
		t.Fatalf("case insensitive match expected")
	}
	if looksLikeURL("what is http") {
		t.Fatalf("plain question misclassified as url")
	}
}

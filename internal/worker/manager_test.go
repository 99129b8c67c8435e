package worker

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"deepresearch/internal/config"
	"deepresearch/internal/redis"
)

type stubCrew struct {
	markdown string
	err      error
	block    chan struct{}
}

func (c *stubCrew) Kickoff(ctx context.Context, query string) (string, error) {
	if c.block != nil {
		<-c.block
	}
	return c.markdown, c.err
}

func countingFactory(crew *stubCrew, calls *int64) CrewFactory {
	return func(ctx context.Context, provider, model string) (CrewRunner, error) {
		atomic.AddInt64(calls, 1)
		return crew, nil
	}
}

func testCacheClient(t *testing.T) *redis.Client {
	t.Helper()
	srv := miniredis.RunT(t)
	host, portStr, ok := strings.Cut(srv.Addr(), ":")
	if !ok {
		t.Fatalf("unexpected miniredis addr %q", srv.Addr())
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}
	client, err := redis.NewRedisClient(&config.Config{
		Redis: config.RedisConfig{Host: host, Port: port},
	})
	if err != nil {
		t.Fatalf("connect miniredis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestManagerRunReturnsResult(t *testing.T) {
	var calls int64
	m := NewManager(countingFactory(&stubCrew{markdown: "# Report"}, &calls), ManagerConfig{
		MinWorkers: 1,
		MaxWorkers: 2,
		QueueSize:  4,
	}, nil)

	got, err := m.Run(ResearchRequest{Query: "what is quic", Provider: "gemini", Model: "gemini-2.5-flash"})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got != "# Report" {
		t.Fatalf("unexpected markdown %q", got)
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Fatalf("expected 1 crew build, got %d", n)
	}
}

func TestManagerRunPropagatesCrewError(t *testing.T) {
	var calls int64
	wantErr := errors.New("search task: upstream down")
	m := NewManager(countingFactory(&stubCrew{err: wantErr}, &calls), ManagerConfig{
		MinWorkers: 1,
		MaxWorkers: 1,
		QueueSize:  2,
	}, testCacheClient(t))

	if _, err := m.Run(ResearchRequest{Query: "q"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected crew error, got %v", err)
	}
	// failures must not be cached
	if _, err := m.Run(ResearchRequest{Query: "q"}); !errors.Is(err, wantErr) {
		t.Fatalf("expected crew error on retry, got %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Fatalf("expected 2 crew builds, got %d", n)
	}
}

func TestManagerCacheHitSkipsCrew(t *testing.T) {
	var calls int64
	m := NewManager(countingFactory(&stubCrew{markdown: "cached body"}, &calls), ManagerConfig{
		MinWorkers: 1,
		MaxWorkers: 1,
		QueueSize:  2,
		CacheTTL:   time.Minute,
	}, testCacheClient(t))

	req := ResearchRequest{Query: "History of Go", Provider: "gemini", Model: "gemini-2.5-flash"}
	if _, err := m.Run(req); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	// same query with different spacing and case should hit the cache
	req.Query = "  history   of GO "
	got, err := m.Run(req)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if got != "cached body" {
		t.Fatalf("unexpected cached markdown %q", got)
	}
	if n := atomic.LoadInt64(&calls); n != 1 {
		t.Fatalf("expected crew to run once, got %d", n)
	}
}

func TestManagerCacheKeyIncludesModel(t *testing.T) {
	var calls int64
	m := NewManager(countingFactory(&stubCrew{markdown: "body"}, &calls), ManagerConfig{
		MinWorkers: 1,
		MaxWorkers: 1,
		QueueSize:  2,
		CacheTTL:   time.Minute,
	}, testCacheClient(t))

	if _, err := m.Run(ResearchRequest{Query: "q", Provider: "gemini", Model: "a"}); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if _, err := m.Run(ResearchRequest{Query: "q", Provider: "gemini", Model: "b"}); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if n := atomic.LoadInt64(&calls); n != 2 {
		t.Fatalf("expected 2 crew builds for distinct models, got %d", n)
	}
}

func TestManagerRejectsWhenSaturated(t *testing.T) {
	block := make(chan struct{})
	var calls int64
	m := NewManager(countingFactory(&stubCrew{markdown: "slow", block: block}, &calls), ManagerConfig{
		MinWorkers: 1,
		MaxWorkers: 1,
		QueueSize:  1,
	}, nil)

	const attempts = 10
	errCh := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := m.Run(ResearchRequest{Query: "slow question"})
			errCh <- err
		}()
	}

	// one job runs, one sits with the dispatcher, one fills the queue;
	// the rest must fail fast
	busy := 0
	deadline := time.After(3 * time.Second)
	for busy < attempts-3 {
		select {
		case err := <-errCh:
			if !errors.Is(err, ErrManagerBusy) {
				t.Fatalf("expected ErrManagerBusy before release, got %v", err)
			}
			busy++
		case <-deadline:
			t.Fatalf("only %d busy rejections before deadline", busy)
		}
	}

	close(block)
	for i := busy; i < attempts; i++ {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, ErrManagerBusy) {
				t.Fatalf("unexpected error after release: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("accepted jobs did not finish")
		}
	}
}

func TestPoolRetiresIdleWorkersAboveMinimum(t *testing.T) {
	p := newJobChannelPool(1, 4, 20*time.Millisecond, func(task *researchTask) {
		task.resultCh <- taskReturn{markdown: "ok"}
	})
	var chans []chan Job
	for i := 0; i < 4; i++ {
		chans = append(chans, p.acquire())
	}
	for _, ch := range chans {
		p.Release(ch)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.Lock()
		running := p.running
		p.mu.Unlock()
		if running == 1 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected pool to shrink to 1 worker, still running %d", running)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

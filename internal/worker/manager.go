package worker

import (
	"context"
	"errors"
	"time"

	"deepresearch/internal/redis"
)

// ErrManagerBusy is returned when the research queue is full.
var ErrManagerBusy = errors.New("research queue is full")

// ResearchRequest carries one research run through the pool.
type ResearchRequest struct {
	Context  context.Context
	Query    string
	Provider string
	Model    string
}

// CrewRunner is the research pipeline front door.
type CrewRunner interface {
	Kickoff(ctx context.Context, query string) (string, error)
}

// CrewFactory builds a crew for the requested provider/model.
type CrewFactory func(ctx context.Context, provider, model string) (CrewRunner, error)

type ManagerConfig struct {
	MinWorkers        int
	MaxWorkers        int
	QueueSize         int
	WorkerIdleTimeout time.Duration
	CacheTTL          time.Duration
}

type JobType int

const (
	Research JobType = iota
	Stop
)

type Job struct {
	Type JobType
	Task *researchTask
}

type researchTask struct {
	req      ResearchRequest
	resultCh chan taskReturn
}

type taskReturn struct {
	markdown string
	err      error
}

// Manager runs research jobs on an elastic worker pool and fronts the
// redis report cache.
type Manager struct {
	pool     *jobChannelPool
	jobQueue chan Job
	cache    *reportCache
	crews    CrewFactory
}

func NewManager(factory CrewFactory, cfg ManagerConfig, cacheClient *redis.Client) *Manager {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 1
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	m := &Manager{
		jobQueue: make(chan Job, cfg.QueueSize),
		cache:    newReportCache(cacheClient, cfg.CacheTTL),
		crews:    factory,
	}
	m.pool = newJobChannelPool(cfg.MinWorkers, cfg.MaxWorkers, cfg.WorkerIdleTimeout, m.handleResearch)

	// Warm up the minimum worker set.
	for i := 0; i < cfg.MinWorkers; i++ {
		m.pool.spawnWorker()
	}

	go m.dispatch()
	return m
}

// Run executes the research request, consulting the report cache first.
// A full queue fails fast with ErrManagerBusy instead of blocking the
// caller's HTTP request.
func (m *Manager) Run(req ResearchRequest) (string, error) {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
		req.Context = ctx
	}
	if markdown, ok := m.cache.load(ctx, req); ok {
		debugLog("[manager] cache hit for query %q", req.Query)
		return markdown, nil
	}

	task := &researchTask{req: req, resultCh: make(chan taskReturn, 1)}
	select {
	case m.jobQueue <- Job{Type: Research, Task: task}:
	default:
		return "", ErrManagerBusy
	}

	ret := <-task.resultCh
	if ret.err != nil {
		return "", ret.err
	}
	m.cache.store(ctx, req, ret.markdown)
	return ret.markdown, nil
}

func (m *Manager) dispatch() {
	for job := range m.jobQueue {
		workerChan := m.pool.acquire()
		debugLog("[manager] assign job to worker-%d", m.pool.workerID(workerChan))
		workerChan <- job
	}
}

func (m *Manager) handleResearch(task *researchTask) {
	req := task.req
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	crew, err := m.crews(ctx, req.Provider, req.Model)
	if err != nil {
		task.resultCh <- taskReturn{err: err}
		return
	}
	markdown, err := crew.Kickoff(ctx, req.Query)
	task.resultCh <- taskReturn{markdown: markdown, err: err}
}

package scheduler

import (
	"context"
	"fmt"
	"sync"
)

type Work[T any] func(ctx context.Context) (T, error)

type Result[T any] struct {
	Data T
	Err  error
}

// Future delivers the result of one work item exactly once on C.
type Future[T any] struct {
	c      chan Result[T]
	cancel context.CancelFunc
}

func (f *Future[T]) C() <-chan Result[T] {
	return f.c
}

// Stop cancels the context handed to the work.
func (f *Future[T]) Stop() {
	f.cancel()
}

type workRequest[T any] struct {
	fn  Work[T]
	c   chan Result[T]
	ctx context.Context
}

// Scheduler runs work on a fixed number of workers in FIFO order.
type Scheduler[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []workRequest[T]
	closed bool
	wg     sync.WaitGroup

	mainCtx    context.Context
	mainCancel context.CancelFunc
}

func NewScheduler[T any](nbWorkers int) *Scheduler[T] {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler[T]{
		mainCtx:    ctx,
		mainCancel: cancel,
	}
	s.cond = sync.NewCond(&s.mu)

	for range max(nbWorkers, 1) {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// AddWork queues w. After Close the future resolves immediately with
// context.Canceled.
func (s *Scheduler[T]) AddWork(w Work[T]) *Future[T] {
	c := make(chan Result[T], 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		c <- Result[T]{Err: context.Canceled}
		return &Future[T]{c: c, cancel: func() {}}
	}

	ctx, cancel := context.WithCancel(s.mainCtx)
	s.queue = append(s.queue, workRequest[T]{fn: w, c: c, ctx: ctx})
	s.cond.Signal()
	return &Future[T]{c: c, cancel: cancel}
}

// Close cancels all work, resolves queued work with context.Canceled and
// waits for running work to return.
func (s *Scheduler[T]) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	pending := s.queue
	s.queue = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	s.mainCancel()
	for _, r := range pending {
		r.c <- Result[T]{Err: context.Canceled}
	}
	s.wg.Wait()
}

func (s *Scheduler[T]) worker() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		r := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		r.c <- run(r)
	}
}

func run[T any](r workRequest[T]) (result Result[T]) {
	defer func() {
		if p := recover(); p != nil {
			result = Result[T]{Err: fmt.Errorf("worker panicked: %v", p)}
		}
	}()
	v, err := r.fn(r.ctx)
	return Result[T]{Data: v, Err: err}
}

// Package tasksup supervises a set of named background goroutines sharing
// a single cancellation signal, converting panics into structured errors
// instead of letting them crash the process.
package tasksup

import (
	"context"
	"sync"

	"github.com/csc-dev/commonsensecoder/errors"
	"github.com/csc-dev/commonsensecoder/logger"
)

// Body is the function a supervised task runs. It receives a context that
// is canceled when the Supervisor shuts down.
type Body func(ctx context.Context) error

type result struct {
	name string
	err  error
}

// Supervisor owns a set of named tasks and a shared cancellation signal.
//
// Results are recorded in an append-only slice rather than drained from a
// channel, so Run and Shutdown can both observe every completed task
// without racing each other over who gets to consume which result: Run
// waits for (and reports) the first entry, Shutdown waits for all tasks to
// finish and then reads the whole slice.
type Supervisor struct {
	log *zapLoggerAdapter

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cond    *sync.Cond
	wg      sync.WaitGroup
	count   int
	results []result
}

// zapLoggerAdapter avoids importing zap's concrete type into this file's
// public surface; Supervisor just needs Debugw/Warnw.
type zapLoggerAdapter = interface {
	Debugw(msg string, kv ...interface{})
	Warnw(msg string, kv ...interface{})
}

// New creates a Supervisor bound to the given parent context. Cancelling
// the parent context also cancels all supervised tasks.
func New(parent context.Context) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	s := &Supervisor{
		log:    logger.ComponentLogger("tasksup"),
		ctx:    ctx,
		cancel: cancel,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Spawn records and starts a named task. Every spawned task's completion
// (whether success, error, or panic) is recorded exactly once.
func (s *Supervisor) Spawn(name string, body Body) {
	s.mu.Lock()
	s.count++
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Debugw("task spawn", logger.FieldOperation, name)
		err := s.runCaught(name, body)
		if err != nil {
			s.log.Warnw("task error", logger.FieldOperation, name, logger.FieldError, err)
		} else {
			s.log.Debugw("task complete", logger.FieldOperation, name)
			err = errors.Newf("task '%s' returned early", name)
		}

		s.mu.Lock()
		s.results = append(s.results, result{name: name, err: err})
		s.cond.Broadcast()
		s.mu.Unlock()
	}()
}

// runCaught invokes body, converting a panic into a structured error whose
// message preserves a string/error payload verbatim; other payloads become
// "<unknown>".
func (s *Supervisor) runCaught(name string, body Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			msg := "<unknown>"
			switch v := r.(type) {
			case string:
				msg = v
			case error:
				msg = v.Error()
			}
			err = errors.Wrapf(errors.Newf("panic: %s", msg), "task %s", name)
		}
	}()
	if e := body(s.ctx); e != nil {
		return errors.Wrapf(e, "task %s", name)
	}
	return nil
}

// Run blocks until the first task returns, then returns its error. A
// normal (nil-error) return from any task is itself treated as a failure.
// If no tasks were ever spawned, Run blocks forever (until ctx is done).
func (s *Supervisor) Run() error {
	s.mu.Lock()
	n := s.count
	s.mu.Unlock()

	if n == 0 {
		<-s.ctx.Done()
		return s.ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.results) == 0 {
		s.cond.Wait()
	}
	return s.results[0].err
}

// Shutdown cancels all supervised tasks and waits for them to finish,
// aggregating errors: the first error encountered (in spawn-completion
// order) is returned, but every task is still drained to completion.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "timeout waiting for supervised tasks to shut down")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	for _, r := range s.results {
		if first == nil && r.err != nil {
			first = r.err
		}
	}
	return first
}

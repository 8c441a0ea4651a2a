package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/fornellas/slogxt/log"
)

type worker struct {
	name string
	// Receives the single result of the worker function.
	result chan error
}

// WorkerManager runs named goroutines sharing one context. The first worker to return cancels the
// context for all others, so a connection's reader and dispatcher live and die together.
type WorkerManager struct {
	ctx     context.Context
	cancel  context.CancelFunc
	workers []worker
}

func NewWorkerManager(ctx context.Context) *WorkerManager {
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerManager{
		ctx:    ctx,
		cancel: cancel,
	}
}

func (wm *WorkerManager) run(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	logger := log.MustLogger(ctx)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic", "recovered", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
		logger.Debug("Finished", "err", err)
	}()
	logger.Debug("Starting")
	return fn(ctx)
}

// StartWorker runs fn in a new goroutine with the manager's context. A panic in fn is reported as
// an error of the worker.
func (wm *WorkerManager) StartWorker(name string, fn func(context.Context) error) {
	w := worker{name: name, result: make(chan error, 1)}
	wm.workers = append(wm.workers, w)
	ctx, _ := log.MustWithGroup(wm.ctx, name)
	go func() {
		defer wm.cancel()
		w.result <- wm.run(ctx, name, fn)
	}()
}

// Cancel cancels the context of all workers, without waiting for them.
func (wm *WorkerManager) Cancel() {
	wm.cancel()
}

// Wait blocks until all workers have returned, joining their errors, each prefixed by the worker
// name. context.Canceled, the result of Cancel, is not reported.
func (wm *WorkerManager) Wait() error {
	logger := log.MustLogger(wm.ctx)
	logger.Debug("Waiting for workers", "count", len(wm.workers))
	var err error
	for _, w := range wm.workers {
		if workerErr := <-w.result; workerErr != nil && !errors.Is(workerErr, context.Canceled) {
			err = errors.Join(err, workerErr)
		}
	}
	wm.workers = nil
	logger.Debug("All workers finished", "err", err)
	return err
}

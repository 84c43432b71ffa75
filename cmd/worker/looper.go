package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	taskengine "github.com/Lelouch-Britannia/KubePlayground/cmd/worker/tasks/engine"
	taskreaper "github.com/Lelouch-Britannia/KubePlayground/cmd/worker/tasks/reaper"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kengine "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/engine"
	eventdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop/recurring"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

// Wrapper for monitoring loop tasks
//
//	Log the start and end of each time a task is executed. Essentially, it executes a task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	// counter for execution of the task
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)

		// log at the end of the task
		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s",
				counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	// which loop to run
	Type domain.LoopType

	// Policy for the looping
	Policy recurring.Policy
}

// Start the engine loop: pull jobs and drive them to their terminal
// event, with `concurrency` pullers competing on the queue.
//
// It returns when all pullers have stopped. Errors from the pullers
// are joined.
func StartEngineLoop(
	ctx context.Context,
	logger *log.Logger,
	e *kengine.Engine,
	concurrency int,
	manifest LoopManifest,
) error {
	if concurrency < 1 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, concurrency)
	wg := sync.WaitGroup{}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			defer cancel() // one puller stopping stops its siblings

			l := byLogger(logger, Copied(), WithPrefix(
				fmt.Sprintf("[engine loop #%d]", n),
			))
			_, err := loop.Start(
				ctx, taskengine.Seed(),
				monitor(l, taskengine.Task(e).Applied(manifest.Policy)),
			)
			errs[n] = err
		}(i)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// Start the reaper loop: sweep scope namespaces idle for longer than
// idleThreshold and event streams kept past the retention window.
func StartReaperLoop(
	ctx context.Context,
	logger *log.Logger,
	scopes scope.Manager,
	idleThreshold time.Duration,
	events eventdb.EventInterface,
	retention time.Duration,
	manifest LoopManifest,
) error {
	_, err := loop.Start(
		ctx, taskreaper.Seed(),
		monitor(
			byLogger(logger, Copied(), WithPrefix("[reaper loop]")),
			taskreaper.Task(scopes, idleThreshold, events, retention).Applied(manifest.Policy),
		),
	)
	return err
}

package engine

import (
	"context"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/engine"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop/recurring"
)

// initial value for task
func Seed() any {
	return nil
}

// Return:
//
// - task: pull one job from the queue and drive it to its terminal
// event. "ok" means a job was processed, so the policy keeps pulling
// while there is backlog.
func Task(e *engine.Engine) recurring.Task[any] {
	return func(ctx context.Context, value any) (any, bool, error) {
		processed, err := e.ProcessOne(ctx)
		return value, processed, err
	}
}

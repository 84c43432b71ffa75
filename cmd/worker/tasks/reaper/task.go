package reaper

import (
	"context"
	"time"

	eventdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop/recurring"
)

// initial value for task
func Seed() any {
	return nil
}

// Return:
//
// - task: delete scopes idle for longer than idleThreshold, then
// drop event streams of jobs completed before the retention window.
// "ok" is false even when something was swept, so the policy's
// cooldown always applies between sweeps.
func Task(
	scopes scope.Manager,
	idleThreshold time.Duration,
	events eventdb.EventInterface,
	retention time.Duration,
) recurring.Task[any] {
	return func(ctx context.Context, value any) (any, bool, error) {
		if _, err := scopes.Reap(ctx, idleThreshold); err != nil {
			return value, false, err
		}
		if _, err := events.Prune(ctx, retention); err != nil {
			return value, false, err
		}
		return value, false, nil
	}
}

package reaper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	eventmock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db/mock"
	scopemock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope/mock"
)

func TestReaperTask(t *testing.T) {
	t.Run("idle scopes and expired events are swept, and ok stays false so the cooldown applies", func(t *testing.T) {
		scopes := scopemock.New()
		scopes.Impl.Reap = func(ctx context.Context, ttl time.Duration) (int, error) {
			if ttl != 30*time.Minute {
				t.Errorf("ttl = %v, want %v", ttl, 30*time.Minute)
			}
			return 2, nil
		}
		events := eventmock.New()
		events.Impl.Prune = func(ctx context.Context, retention time.Duration) (int, error) {
			if retention != time.Hour {
				t.Errorf("retention = %v, want %v", retention, time.Hour)
			}
			return 5, nil
		}

		testee := Task(scopes, 30*time.Minute, events, time.Hour)
		_, ok, err := testee(context.Background(), Seed())

		if ok || err != nil {
			t.Errorf("(ok, err) = (%v, %v), want (%v, %v)", ok, err, false, nil)
		}
		if scopes.Called.Reap != 1 {
			t.Errorf("Reap is called %d times, want 1", scopes.Called.Reap)
		}
		if events.Called.Prune != 1 {
			t.Errorf("Prune is called %d times, want 1", events.Called.Prune)
		}
	})

	t.Run("when nothing is swept, it is not an error", func(t *testing.T) {
		scopes := scopemock.New()
		scopes.Impl.Reap = func(ctx context.Context, ttl time.Duration) (int, error) {
			return 0, nil
		}
		events := eventmock.New()
		events.Impl.Prune = func(ctx context.Context, retention time.Duration) (int, error) {
			return 0, nil
		}

		testee := Task(scopes, time.Hour, events, time.Hour)
		_, ok, err := testee(context.Background(), Seed())

		if ok || err != nil {
			t.Errorf("(ok, err) = (%v, %v), want (%v, %v)", ok, err, false, nil)
		}
	})

	t.Run("when reaping scopes fails, it returns the error without pruning events", func(t *testing.T) {
		scopes := scopemock.New()
		expectedError := fmt.Errorf("expected error")
		scopes.Impl.Reap = func(ctx context.Context, ttl time.Duration) (int, error) {
			return 0, expectedError
		}
		events := eventmock.New()

		testee := Task(scopes, time.Hour, events, time.Hour)
		_, ok, err := testee(context.Background(), Seed())

		if ok || !errors.Is(err, expectedError) {
			t.Errorf("(ok, err) = (%v, %v), want (%v, %v)", ok, err, false, expectedError)
		}
		if events.Called.Prune != 0 {
			t.Errorf("Prune is called %d times, want 0", events.Called.Prune)
		}
	})

	t.Run("when pruning events fails, it returns the error", func(t *testing.T) {
		scopes := scopemock.New()
		scopes.Impl.Reap = func(ctx context.Context, ttl time.Duration) (int, error) {
			return 0, nil
		}
		events := eventmock.New()
		expectedError := fmt.Errorf("expected error")
		events.Impl.Prune = func(ctx context.Context, retention time.Duration) (int, error) {
			return 0, expectedError
		}

		testee := Task(scopes, time.Hour, events, time.Hour)
		_, ok, err := testee(context.Background(), Seed())

		if ok || !errors.Is(err, expectedError) {
			t.Errorf("(ok, err) = (%v, %v), want (%v, %v)", ok, err, false, expectedError)
		}
	})
}

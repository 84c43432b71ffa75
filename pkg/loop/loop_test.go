package loop_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop"
)

func TestStart(t *testing.T) {
	t.Run("it loops until Break", func(t *testing.T) {
		total, err := loop.Start(
			context.Background(), 0,
			func(_ context.Context, value int) (int, loop.Next) {
				value += 1
				if 10 <= value {
					return value, loop.Break(nil)
				}
				return value, loop.Continue(0)
			},
		)
		if err != nil {
			t.Fatal(err)
		}
		if total != 10 {
			t.Errorf("total = %d, want 10", total)
		}
	})

	t.Run("it breaks with error from task", func(t *testing.T) {
		expectedError := errors.New("expected error")
		_, err := loop.Start(
			context.Background(), 0,
			func(_ context.Context, value int) (int, loop.Next) {
				return value, loop.Break(expectedError)
			},
		)
		if !errors.Is(err, expectedError) {
			t.Errorf("err = %v, want %v", err, expectedError)
		}
	})

	t.Run("it stops when context is canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		count := 0
		_, err := loop.Start(
			ctx, 0,
			func(_ context.Context, value int) (int, loop.Next) {
				count += 1
				if 3 <= count {
					cancel()
				}
				return value, loop.Continue(time.Millisecond)
			},
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want %v", err, context.Canceled)
		}
	})

	t.Run("it does not start task when context is done already", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		_, err := loop.Start(
			ctx, 0,
			func(_ context.Context, value int) (int, loop.Next) {
				called = true
				return value, loop.Break(nil)
			},
		)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want %v", err, context.Canceled)
		}
		if called {
			t.Error("task is called, unexpectedly.")
		}
	})
}

package recurring_test

import (
	"errors"
	"testing"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/loop/recurring"
)

func TestParsePolicy(t *testing.T) {
	for name, testcase := range map[string]struct {
		when        string
		then        recurring.Policy
		expectError bool
	}{
		"forever means forever": {
			when: "forever",
			then: recurring.Forever(0),
		},
		"forever:3s means forever with cooldown 3 seconds": {
			when: "forever:3s",
			then: recurring.Forever(3 * time.Second),
		},
		"forever:someday can not be parsed (someday is not time.Duration)": {
			when:        "forever:someday",
			expectError: true,
		},
		"backlog means backlog": {
			when: "backlog",
			then: recurring.Backlog(),
		},
		"backlog:param can not be parsed (it should not take any parameters)": {
			when:        "backlog:param",
			expectError: true,
		},
		"empty string can not be parsed (it is not policy)": {
			when:        "",
			expectError: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			when, expected := testcase.when, testcase.then
			actual, err := recurring.ParsePolicy(when)

			if testcase.expectError {
				if err == nil {
					t.Fatal("expected error does not occured")
				}
				return
			}

			if err != nil {
				t.Fatal(err)
			}

			if actual != expected {
				t.Errorf("policy = %v, want %v", actual, expected)
			}
		})
	}
}

func TestUntilError(t *testing.T) {
	t.Run("it breaks when the task errors", func(t *testing.T) {
		expectedError := errors.New("expected error")
		p := recurring.UntilError(recurring.Forever(0))

		next := p.Next(true, expectedError)
		if next != loop.Break(expectedError) {
			t.Errorf("next = %v, want %v", next, loop.Break(expectedError))
		}
	})

	t.Run("it continues while the task has backlog", func(t *testing.T) {
		p := recurring.UntilError(recurring.Forever(3 * time.Second))

		if next := p.Next(true, nil); next != loop.Continue(0) {
			t.Errorf("next = %v, want %v", next, loop.Continue(0))
		}
		if next := p.Next(false, nil); next != loop.Continue(3*time.Second) {
			t.Errorf("next = %v, want %v", next, loop.Continue(3*time.Second))
		}
	})
}

package scope_test

import (
	"strings"
	"testing"

	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
)

func TestScopeNameFor(t *testing.T) {
	t.Run("the owner key can be decoded back out of the name", func(t *testing.T) {
		for _, ownerKey := range []string{
			"user-1:ex-42", "alice", "UPPER and spaces", "日本語",
		} {
			name, err := scope.ScopeNameFor(ownerKey)
			if err != nil {
				t.Fatalf("unexpected error for %q: %s", ownerKey, err)
			}

			if !strings.HasPrefix(name, "pg-") {
				t.Errorf("unexpected name shape: %s", name)
			}
			if 63 < len(name) {
				t.Errorf("name is too long for a namespace: %s", name)
			}
			if name != strings.ToLower(name) {
				t.Errorf("namespace names must be lowercase: %s", name)
			}

			decoded, ok := scope.OwnerKeyOf(name)
			if !ok {
				t.Fatalf("cannot decode %s", name)
			}
			if decoded != ownerKey {
				t.Errorf("owner key does not round-trip: %q -> %s -> %q", ownerKey, name, decoded)
			}
		}
	})

	t.Run("two names for one owner key do not collide", func(t *testing.T) {
		a, err := scope.ScopeNameFor("alice")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		b, err := scope.ScopeNameFor("alice")
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if a == b {
			t.Errorf("names collide: %s", a)
		}
	})

	t.Run("when the owner key is too long, it rejects it", func(t *testing.T) {
		if _, err := scope.ScopeNameFor(strings.Repeat("x", 64)); !kerr.AsInvalid(err) {
			t.Errorf("unexpected error: %s", err)
		}
	})
}

func TestOwnerKeyOf(t *testing.T) {
	t.Run("it rejects names not made by ScopeNameFor", func(t *testing.T) {
		for _, name := range []string{
			"default", "kube-system", "pg-", "pg-short", "pg-!!!-abcdef",
		} {
			if owner, ok := scope.OwnerKeyOf(name); ok {
				t.Errorf("unexpectedly decoded %s as %q", name, owner)
			}
		}
	})
}

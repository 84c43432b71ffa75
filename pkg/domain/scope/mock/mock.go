package mock

import (
	"context"
	"errors"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
)

type Manager struct {
	Impl struct {
		Lock            func(ownerKey string) func()
		ResolveOrCreate func(ctx context.Context, ownerKey string) (domain.Scope, error)
		ResolveExisting func(ctx context.Context, ownerKey string) (domain.Scope, error)
		Reset           func(ctx context.Context, ownerKey string) error
		Reap            func(ctx context.Context, ttl time.Duration) (int, error)
	}
	Called struct {
		Lock            uint64
		ResolveOrCreate uint64
		ResolveExisting uint64
		Reset           uint64
		Reap            uint64
	}
}

var _ scope.Manager = &Manager{}

func New() *Manager {
	return &Manager{}
}

// Lock defaults to a no-op release, since it has no error to fall
// back on.
func (m *Manager) Lock(ownerKey string) func() {
	m.Called.Lock += 1
	if m.Impl.Lock == nil {
		return func() {}
	}
	return m.Impl.Lock(ownerKey)
}

func (m *Manager) ResolveOrCreate(ctx context.Context, ownerKey string) (domain.Scope, error) {
	m.Called.ResolveOrCreate += 1
	if m.Impl.ResolveOrCreate == nil {
		return domain.Scope{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.ResolveOrCreate(ctx, ownerKey)
}

func (m *Manager) ResolveExisting(ctx context.Context, ownerKey string) (domain.Scope, error) {
	m.Called.ResolveExisting += 1
	if m.Impl.ResolveExisting == nil {
		return domain.Scope{}, errors.New("[MOCK] not implemented")
	}
	return m.Impl.ResolveExisting(ctx, ownerKey)
}

func (m *Manager) Reset(ctx context.Context, ownerKey string) error {
	m.Called.Reset += 1
	if m.Impl.Reset == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.Reset(ctx, ownerKey)
}

func (m *Manager) Reap(ctx context.Context, ttl time.Duration) (int, error) {
	m.Called.Reap += 1
	if m.Impl.Reap == nil {
		return 0, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Reap(ctx, ttl)
}

package scope

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Manager owns the namespaces backing scopes.
type Manager interface {
	// Lock takes the owner's scope for exclusive use and returns
	// the release. A job holds it from resolving the scope until
	// its last touch of the cluster, so that two jobs of one owner
	// never interleave their applies, prunes and inspections.
	// Owners do not block each other.
	Lock(ownerKey string) (release func())

	// ResolveOrCreate returns the live scope of the owner key,
	// creating namespace and resource quota when there is none.
	// The caller holds the owner's Lock.
	//
	// ErrExhausted is returned when creating would exceed the
	// live scope limit.
	ResolveOrCreate(ctx context.Context, ownerKey string) (domain.Scope, error)

	// ResolveExisting returns the live scope of the owner key,
	// or ErrMissing when the owner has none.
	// The caller holds the owner's Lock.
	ResolveExisting(ctx context.Context, ownerKey string) (domain.Scope, error)

	// Reset deletes the owner's namespace and forgets the scope.
	// Resetting an owner without a scope is a no-op.
	Reset(ctx context.Context, ownerKey string) error

	// Reap deletes scope namespaces untouched for longer than ttl
	// and returns how many it deleted. It scans the cluster, not
	// just its own records, so scopes left behind by an earlier
	// process are swept too. Deletion is best effort: a namespace
	// that cannot be deleted now is logged and retried next sweep.
	Reap(ctx context.Context, ttl time.Duration) (int, error)
}

type manager struct {
	client  cluster.K8sClient
	quota   domain.ScopeQuota
	maxLive int
	logger  *log.Logger
	now     func() time.Time

	mu     sync.Mutex
	scopes map[string]domain.Scope
	owners keyedMutex
}

var _ Manager = &manager{}

func NewManager(client cluster.K8sClient, quota domain.ScopeQuota, maxLive int, logger *log.Logger) Manager {
	return &manager{
		client:  client,
		quota:   quota,
		maxLive: maxLive,
		logger:  logger,
		now:     time.Now,
		scopes:  map[string]domain.Scope{},
	}
}

// keyedMutex serializes work per owner key, so that concurrent jobs
// of different owners do not block each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) of(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.locks == nil {
		k.locks = map[string]*sync.Mutex{}
	}
	if _, ok := k.locks[key]; !ok {
		k.locks[key] = &sync.Mutex{}
	}
	return k.locks[key]
}

func (m *manager) Lock(ownerKey string) func() {
	lock := m.owners.of(ownerKey)
	lock.Lock()
	return lock.Unlock
}

func (m *manager) ResolveOrCreate(ctx context.Context, ownerKey string) (domain.Scope, error) {
	if s, ok, err := m.resolve(ctx, ownerKey); err != nil {
		return domain.Scope{}, err
	} else if ok {
		return s, nil
	}

	if m.liveCount() >= m.maxLive {
		return domain.Scope{}, kerr.NewExhausted(fmt.Sprintf(
			"cannot create a scope for %q: %d scopes are live already", ownerKey, m.maxLive,
		))
	}

	name, err := ScopeNameFor(ownerKey)
	if err != nil {
		return domain.Scope{}, err
	}

	ns := &kubecore.Namespace{
		ObjectMeta: kubeapimeta.ObjectMeta{
			Name:   name,
			Labels: cluster.ScopeSelector(),
		},
	}
	if _, err := m.client.CreateNamespace(ctx, ns); err != nil {
		return domain.Scope{}, err
	}

	quota := &kubecore.ResourceQuota{
		ObjectMeta: kubeapimeta.ObjectMeta{Name: "scope-quota", Namespace: name},
		Spec: kubecore.ResourceQuotaSpec{
			Hard: kubecore.ResourceList{
				kubecore.ResourceRequestsCPU:        m.quota.CPU,
				kubecore.ResourceRequestsMemory:     m.quota.Memory,
				kubecore.ResourceName("count/pods"): *resource.NewQuantity(m.quota.ObjectCount, resource.DecimalSI),
			},
		},
	}
	if _, err := m.client.CreateResourceQuota(ctx, name, quota); err != nil {
		// the namespace exists without its quota. roll it back.
		if derr := m.client.DeleteNamespace(ctx, name); derr != nil && !kubeerr.IsNotFound(derr) {
			m.logger.Printf("failed to roll back namespace %s: %s", name, derr)
		}
		return domain.Scope{}, err
	}

	t := m.now()
	s := domain.Scope{
		Name: name, OwnerKey: ownerKey,
		CreatedAt: t, LastTouched: t,
		Quota: m.quota,
	}
	m.remember(s)
	m.logger.Printf("scope created: %s (owner = %s)", name, ownerKey)
	return s, nil
}

func (m *manager) ResolveExisting(ctx context.Context, ownerKey string) (domain.Scope, error) {
	s, ok, err := m.resolve(ctx, ownerKey)
	if err != nil {
		return domain.Scope{}, err
	}
	if !ok {
		return domain.Scope{}, kerr.NewMissing(fmt.Sprintf("no scope for %q", ownerKey))
	}
	return s, nil
}

// resolve finds the owner's scope, adopting namespaces made by an
// earlier process and dropping records of namespaces deleted behind
// our back. The caller holds the owner's lock.
func (m *manager) resolve(ctx context.Context, ownerKey string) (domain.Scope, bool, error) {
	if s, ok := m.recall(ownerKey); ok {
		// the namespace may have been reset by another process
		if _, err := m.client.GetNamespace(ctx, s.Name); err != nil {
			if !kubeerr.IsNotFound(err) {
				return domain.Scope{}, false, err
			}
			m.forget(ownerKey)
		} else {
			s.LastTouched = m.now()
			m.remember(s)
			return s, true, nil
		}
	}

	// adoption: scan namespaces carrying the scope mark
	namespaces, err := m.client.FindNamespaces(ctx, cluster.ScopeSelector())
	if err != nil {
		return domain.Scope{}, false, err
	}
	for _, ns := range namespaces {
		if ns.Status.Phase == kubecore.NamespaceTerminating {
			continue
		}
		owner, ok := OwnerKeyOf(ns.Name)
		if !ok || owner != ownerKey {
			continue
		}
		t := m.now()
		s := domain.Scope{
			Name: ns.Name, OwnerKey: ownerKey,
			CreatedAt: ns.CreationTimestamp.Time, LastTouched: t,
			Quota: m.quota,
		}
		m.remember(s)
		m.logger.Printf("scope adopted: %s (owner = %s)", ns.Name, ownerKey)
		return s, true, nil
	}

	return domain.Scope{}, false, nil
}

func (m *manager) Reset(ctx context.Context, ownerKey string) error {
	lock := m.owners.of(ownerKey)
	lock.Lock()
	defer lock.Unlock()

	s, ok, err := m.resolve(ctx, ownerKey)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}

	if err := m.client.DeleteNamespace(ctx, s.Name); err != nil && !kubeerr.IsNotFound(err) {
		return err
	}
	m.forget(ownerKey)
	m.logger.Printf("scope reset: %s (owner = %s)", s.Name, ownerKey)
	return nil
}

func (m *manager) Reap(ctx context.Context, ttl time.Duration) (int, error) {
	deadline := m.now().Add(-ttl)

	namespaces, err := m.client.FindNamespaces(ctx, cluster.ScopeSelector())
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, ns := range namespaces {
		if ns.Status.Phase == kubecore.NamespaceTerminating {
			continue
		}
		ownerKey, ok := OwnerKeyOf(ns.Name)
		if !ok {
			continue
		}

		lock := m.owners.of(ownerKey)
		lock.Lock()

		// a namespace nobody remembers was last touched by the
		// process that made it, at the latest when it was created
		lastTouched := ns.CreationTimestamp.Time
		if current, ok := m.recall(ownerKey); ok && current.Name == ns.Name {
			lastTouched = current.LastTouched
		}
		if !lastTouched.Before(deadline) {
			lock.Unlock()
			continue
		}

		if err := m.client.DeleteNamespace(ctx, ns.Name); err != nil && !kubeerr.IsNotFound(err) {
			m.logger.Printf("cannot reap scope %s (owner = %s): %s; retrying next sweep", ns.Name, ownerKey, err)
			lock.Unlock()
			continue
		}
		m.forget(ownerKey)
		m.logger.Printf("scope reaped: %s (owner = %s)", ns.Name, ownerKey)
		reaped += 1
		lock.Unlock()
	}
	return reaped, nil
}

func (m *manager) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scopes)
}

func (m *manager) recall(ownerKey string) (domain.Scope, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.scopes[ownerKey]
	return s, ok
}

func (m *manager) remember(s domain.Scope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes[s.OwnerKey] = s
}

func (m *manager) forget(ownerKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, ownerKey)
}

package engine_test

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	clustermock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster/mock"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/engine"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	eventinmemory "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db/inmemory"
	eventmock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db/mock"
	jobdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db"
	jobmock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db/mock"
	scopemock "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope/mock"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/verify"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const webManifest = `
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
spec:
  replicas: 1
  selector:
    matchLabels:
      app: web
  template:
    metadata:
      labels:
        app: web
    spec:
      containers:
        - name: web
          image: nginx:1.25
`

type harness struct {
	jobs   *jobmock.JobInterface
	events db
	scopes *scopemock.Manager
	client *clustermock.MockClient
	testee *engine.Engine
}

type db = interface {
	Publish(ctx context.Context, event domain.Event) error
	Replay(ctx context.Context, jobId string, fromSeq int64) ([]domain.Event, bool, error)
	Follow(ctx context.Context, jobId string, fromSeq int64) (<-chan domain.Event, error)
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

func newHarness(events db) *harness {
	h := &harness{
		jobs:   jobmock.New(),
		events: events,
		scopes: scopemock.New(),
		client: clustermock.NewMockClient(),
	}
	h.testee = engine.New(
		h.jobs, events, h.scopes, h.client, verify.New(),
		time.Minute, time.Second, log.New(io.Discard, "", 0),
	)
	return h
}

func happyScope(m *scopemock.Manager) {
	resolve := func(_ context.Context, ownerKey string) (domain.Scope, error) {
		return domain.Scope{Name: "pg-fake", OwnerKey: ownerKey}, nil
	}
	m.Impl.ResolveOrCreate = resolve
	m.Impl.ResolveExisting = resolve
}

// pruneNothing lets Prune run over an empty namespace. The returned
// flag flips when the prune listing actually happens.
func pruneNothing(c *clustermock.MockClient) *bool {
	pruned := false
	c.Impl.FindDeployments = func(_ context.Context, _ string, _ cluster.LabelSelector) ([]kubeapps.Deployment, error) {
		pruned = true
		return nil, nil
	}
	c.Impl.FindServices = func(_ context.Context, _ string, _ cluster.LabelSelector) ([]kubecore.Service, error) {
		return nil, nil
	}
	c.Impl.FindConfigMaps = func(_ context.Context, _ string, _ cluster.LabelSelector) ([]kubecore.ConfigMap, error) {
		return nil, nil
	}
	c.Impl.FindPods = func(_ context.Context, _ string, _ cluster.LabelSelector) ([]kubecore.Pod, error) {
		return nil, nil
	}
	return &pruned
}

func collectEvents(t *testing.T, events db, jobId string) ([]domain.Event, bool) {
	t.Helper()
	got, closed, err := events.Replay(context.Background(), jobId, 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	return got, closed
}

func terminalReport(t *testing.T, events []domain.Event) domain.Report {
	t.Helper()
	last := events[len(events)-1]
	if !last.Terminal() || last.Report == nil {
		t.Fatalf("last event is not a terminal with a report: %+v", last)
	}
	return *last.Report
}

func TestEngine_Handle_Deploy(t *testing.T) {
	ctx := context.Background()

	envelope := domain.JobEnvelope{
		JobId: "job-1", Kind: domain.Deploy, OwnerKey: "alice",
		Manifest: []byte(webManifest),
	}

	t.Run("a clean deploy ends in a passed report", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)
		h.client.Impl.CreateDeployment = func(_ context.Context, _ string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
			return depl, nil
		}
		pruned := pruneNothing(h.client)

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, closed := collectEvents(t, h.events, "job-1")
		if !closed {
			t.Fatal("stream is not closed")
		}
		if events[0].Kind != domain.EventJobStarted || events[0].Seq != 1 {
			t.Errorf("first event is not job_started with seq 1: %+v", events[0])
		}
		for i, ev := range events {
			if ev.Seq != int64(i+1) {
				t.Fatalf("sequence has gaps: %+v", events)
			}
		}

		report := terminalReport(t, events)
		if report.Status() != domain.Passed {
			t.Errorf("unexpected report: %+v", report)
		}
		// resolve scope, apply, prune
		if len(report.Results) != 3 {
			t.Errorf("unexpected step count: %+v", report.Results)
		}
		if !*pruned {
			t.Errorf("deploy did not prune")
		}
	})

	t.Run("a manifest the api server refuses makes a failed report", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)
		h.client.Impl.CreateDeployment = func(_ context.Context, _ string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
			return nil, kubeerr.NewInvalid(
				schema.GroupKind{Group: "apps", Kind: "Deployment"}, depl.Name, nil,
			)
		}
		pruneNothing(h.client)

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, _ := collectEvents(t, h.events, "job-1")
		report := terminalReport(t, events)
		if report.Status() != domain.Failed {
			t.Errorf("unexpected report: %+v", report)
		}
	})

	t.Run("an unreachable api server makes an errored report, not a failed one", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)
		h.client.Impl.CreateDeployment = func(_ context.Context, _ string, _ *kubeapps.Deployment) (*kubeapps.Deployment, error) {
			return nil, errors.New("fake: connection refused")
		}
		pruneNothing(h.client)

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, _ := collectEvents(t, h.events, "job-1")
		if terminalReport(t, events).Status() != domain.Errored {
			t.Errorf("unexpected report: %+v", terminalReport(t, events))
		}
	})

	t.Run("a broken manifest fails before any scope is made", func(t *testing.T) {
		h := newHarness(eventinmemory.New())

		broken := envelope
		broken.Manifest = []byte("{{{")

		if err := h.testee.Handle(ctx, broken); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, _ := collectEvents(t, h.events, "job-1")
		if terminalReport(t, events).Status() != domain.Failed {
			t.Errorf("unexpected report: %+v", terminalReport(t, events))
		}
		if h.scopes.Called.ResolveOrCreate != 0 {
			t.Errorf("scope was touched for a broken manifest")
		}
	})

	t.Run("a full cluster makes the scope step fail", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		h.scopes.Impl.ResolveOrCreate = func(_ context.Context, _ string) (domain.Scope, error) {
			return domain.Scope{}, kerr.NewExhausted("5 scopes are live already")
		}

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, _ := collectEvents(t, h.events, "job-1")
		report := terminalReport(t, events)
		if report.Status() != domain.Failed {
			t.Errorf("unexpected report: %+v", report)
		}
		if h.client.Called.CreateDeployment != 0 {
			t.Errorf("resources were applied without a scope")
		}
	})

	t.Run("the owner's scope is held for the whole run", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)

		held := false
		h.scopes.Impl.Lock = func(_ string) func() {
			held = true
			return func() { held = false }
		}
		h.client.Impl.CreateDeployment = func(_ context.Context, _ string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
			if !held {
				t.Error("applied without holding the owner's scope")
			}
			return depl, nil
		}
		pruned := pruneNothing(h.client)

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		if h.scopes.Called.Lock != 1 {
			t.Errorf("Lock is taken %d times, want 1", h.scopes.Called.Lock)
		}
		if held {
			t.Error("the owner's scope is not released")
		}
		if !*pruned {
			t.Errorf("deploy did not prune")
		}
	})

	t.Run("a malformed envelope ends in an errored report without touching the cluster", func(t *testing.T) {
		h := newHarness(eventinmemory.New())

		malformed := envelope
		malformed.OwnerKey = ""

		if err := h.testee.Handle(ctx, malformed); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, closed := collectEvents(t, h.events, "job-1")
		if !closed {
			t.Fatal("stream is not closed")
		}
		if terminalReport(t, events).Status() != domain.Errored {
			t.Errorf("unexpected report: %+v", terminalReport(t, events))
		}
		if h.scopes.Called.ResolveOrCreate != 0 || h.scopes.Called.Lock != 0 {
			t.Error("a malformed envelope reached the scope manager")
		}
	})

	t.Run("running the same job twice leaves one set of events", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)
		h.client.Impl.CreateDeployment = func(_ context.Context, _ string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
			return depl, nil
		}
		pruneNothing(h.client)

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		first, _ := collectEvents(t, h.events, "job-1")

		// the lease ran out and the job comes around again
		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		second, _ := collectEvents(t, h.events, "job-1")

		if len(first) != len(second) {
			t.Errorf("replayed job changed the log: %d -> %d events", len(first), len(second))
		}
	})
}

func TestEngine_Handle_Verify(t *testing.T) {
	ctx := context.Background()

	envelope := domain.JobEnvelope{
		JobId: "job-2", Kind: domain.Verify, OwnerKey: "alice",
		Assertions: []domain.Assertion{
			{
				Target:    domain.TargetSelector{Kind: domain.KindDeployment, Name: "web"},
				Predicate: domain.Exists,
			},
			{
				Target:    domain.TargetSelector{Kind: domain.KindDeployment, Name: "web"},
				Predicate: domain.ReadyReplicasAtLeast,
				Expected:  "2",
			},
		},
	}

	t.Run("each assertion becomes a step, and failures do not stop the rest", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)
		h.client.Impl.GetDeployment = func(_ context.Context, _ string, name string) (*kubeapps.Deployment, error) {
			return &kubeapps.Deployment{
				ObjectMeta: kubeapimeta.ObjectMeta{Name: name},
				Status:     kubeapps.DeploymentStatus{ReadyReplicas: 1},
			}, nil
		}

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, _ := collectEvents(t, h.events, "job-2")
		report := terminalReport(t, events)

		// resolve scope + 2 assertions
		if len(report.Results) != 3 {
			t.Fatalf("unexpected step count: %+v", report.Results)
		}
		if report.Results[1].Status != domain.Passed {
			t.Errorf("exists assertion should pass: %+v", report.Results[1])
		}
		if report.Results[2].Status != domain.Failed {
			t.Errorf("replica assertion should fail: %+v", report.Results[2])
		}
		if report.Status() != domain.Failed {
			t.Errorf("unexpected report status: %s", report.Status())
		}
	})

	t.Run("an unknown predicate errors the job before any cluster call", func(t *testing.T) {
		h := newHarness(eventinmemory.New())

		malformed := envelope
		malformed.Assertions = []domain.Assertion{
			{
				Target:    domain.TargetSelector{Kind: domain.KindDeployment, Name: "web"},
				Predicate: domain.Predicate("is_pretty"),
			},
		}

		if err := h.testee.Handle(ctx, malformed); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, _ := collectEvents(t, h.events, "job-2")
		if terminalReport(t, events).Status() != domain.Errored {
			t.Errorf("unexpected report: %+v", terminalReport(t, events))
		}
		if h.scopes.Called.ResolveExisting != 0 {
			t.Error("a malformed envelope reached the scope manager")
		}
		if h.client.Called.GetDeployment != 0 || h.client.Called.FindDeployments != 0 {
			t.Error("a malformed envelope reached the cluster")
		}
	})

	t.Run("verifying without a scope fails the job cleanly", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		h.scopes.Impl.ResolveExisting = func(_ context.Context, ownerKey string) (domain.Scope, error) {
			return domain.Scope{}, kerr.NewMissing("no scope for " + ownerKey)
		}

		if err := h.testee.Handle(ctx, envelope); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}

		events, closed := collectEvents(t, h.events, "job-2")
		if !closed {
			t.Fatal("stream is not closed")
		}
		if terminalReport(t, events).Status() != domain.Failed {
			t.Errorf("unexpected report: %+v", terminalReport(t, events))
		}
	})
}

func TestEngine_ProcessOne(t *testing.T) {
	ctx := context.Background()

	t.Run("when the queue is drained, it reports no work without error", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		h.jobs.Impl.Pull = func(_ context.Context, _ time.Duration) (domain.JobEnvelope, jobdb.Ack, error) {
			return domain.JobEnvelope{}, nil, kerr.NewMissing("the job queue is drained")
		}

		processed, err := h.testee.ProcessOne(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if processed {
			t.Error("nothing should have been processed")
		}
	})

	t.Run("it acknowledges only after the terminal event is durable", func(t *testing.T) {
		h := newHarness(eventinmemory.New())
		happyScope(h.scopes)
		h.client.Impl.CreateDeployment = func(_ context.Context, _ string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
			return depl, nil
		}
		pruneNothing(h.client)

		acked := false
		h.jobs.Impl.Pull = func(_ context.Context, _ time.Duration) (domain.JobEnvelope, jobdb.Ack, error) {
			envelope := domain.JobEnvelope{
				JobId: "job-1", Kind: domain.Deploy, OwnerKey: "alice",
				Manifest: []byte(webManifest),
			}
			return envelope, func(context.Context) error {
				_, closed, err := h.events.Replay(context.Background(), "job-1", 0)
				if err != nil || !closed {
					t.Errorf("acknowledged before the terminal event (closed = %v, err = %v)", closed, err)
				}
				acked = true
				return nil
			}, nil
		}

		processed, err := h.testee.ProcessOne(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if !processed || !acked {
			t.Errorf("job is not processed and acknowledged (processed = %v, acked = %v)", processed, acked)
		}
	})

	t.Run("when events cannot be made durable, the job is not acknowledged", func(t *testing.T) {
		events := eventmock.New()
		events.Impl.Publish = func(context.Context, domain.Event) error {
			return errors.New("fake: database is down")
		}
		h := newHarness(events)

		h.jobs.Impl.Pull = func(_ context.Context, _ time.Duration) (domain.JobEnvelope, jobdb.Ack, error) {
			envelope := domain.JobEnvelope{
				JobId: "job-1", Kind: domain.Deploy, OwnerKey: "alice",
				Manifest: []byte(webManifest),
			}
			return envelope, func(context.Context) error {
				t.Error("the job must not be acknowledged")
				return nil
			}, nil
		}

		if _, err := h.testee.ProcessOne(ctx); err == nil {
			t.Error("the trouble should be escalated")
		}
	})
}

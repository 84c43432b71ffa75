package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	eventdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/event/db"
	jobdb "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/job/db"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/scope"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/verify"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
)

// Engine pulls job envelopes and drives them to a terminal event.
//
// Running a job is idempotent end to end: deploys converge on the
// manifest, verifies do not mutate anything, and events dedupe on
// their sequence number. A job cut short by a crash is redelivered
// and re-run without harm.
type Engine struct {
	jobs      jobdb.JobInterface
	events    eventdb.EventInterface
	scopes    scope.Manager
	client    cluster.K8sClient
	evaluator verify.Evaluator
	logger    *log.Logger

	// how long a pulled job stays invisible to other workers
	lease time.Duration

	// ceiling on each apply sub-step and each assertion
	stepTimeout time.Duration

	now func() time.Time
}

func New(
	jobs jobdb.JobInterface,
	events eventdb.EventInterface,
	scopes scope.Manager,
	client cluster.K8sClient,
	evaluator verify.Evaluator,
	lease time.Duration,
	stepTimeout time.Duration,
	logger *log.Logger,
) *Engine {
	return &Engine{
		jobs:        jobs,
		events:      events,
		scopes:      scopes,
		client:      client,
		evaluator:   evaluator,
		lease:       lease,
		stepTimeout: stepTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// kubeRejected tells a manifest the api server refused (user's
// problem) apart from the api server being unreachable (ours).
func kubeRejected(err error) bool {
	return kubeerr.IsInvalid(err) || kubeerr.IsBadRequest(err) || kubeerr.IsForbidden(err)
}

// ProcessOne pulls one job and drives it to its terminal event.
//
// Returns
//
// - bool: true when a job was processed; false when the queue was
// drained
//
// - error: infrastructure trouble. The pulled job, if any, is not
// acknowledged, so it will be delivered again.
func (e *Engine) ProcessOne(ctx context.Context) (bool, error) {
	envelope, ack, err := e.jobs.Pull(ctx, e.lease)
	if err != nil {
		if kerr.AsMissingError(err) {
			return false, nil
		}
		return false, err
	}

	e.logger.Printf("job %s: pulled (%s for %s)", envelope.JobId, envelope.Kind, envelope.OwnerKey)
	if err := e.Handle(ctx, envelope); err != nil {
		e.logger.Printf("job %s: not acknowledged: %s", envelope.JobId, err)
		return true, err
	}

	if err := ack(ctx); err != nil {
		// the terminal event is durable; the retry will dedupe
		return true, err
	}
	e.logger.Printf("job %s: done", envelope.JobId)
	return true, nil
}

// Handle runs one envelope and publishes its events.
//
// Whatever happens inside the job itself, exactly one terminal event
// is published. An error return means the terminal event could not
// be made durable and the job must be redelivered.
func (e *Engine) Handle(ctx context.Context, envelope domain.JobEnvelope) error {
	seq := sequencer{}

	if err := e.events.Publish(ctx, domain.Event{
		JobId: envelope.JobId, Seq: seq.next(),
		Kind: domain.EventJobStarted, Timestamp: e.now(),
	}); err != nil {
		return err
	}

	var results []domain.StepResult
	var publishErr error
	publish := func(name string, run func(ctx context.Context) domain.StepResult) {
		if publishErr != nil {
			return
		}
		if err := e.events.Publish(ctx, domain.Event{
			JobId: envelope.JobId, Seq: seq.next(),
			Kind: domain.EventStepStarted, StepName: name, Timestamp: e.now(),
		}); err != nil {
			publishErr = err
			return
		}

		sctx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		result := run(sctx)
		cancel()
		results = append(results, result)

		if err := e.events.Publish(ctx, domain.Event{
			JobId: envelope.JobId, Seq: seq.next(),
			Kind: domain.EventStepResult, StepName: name,
			Step: &result, Timestamp: e.now(),
		}); err != nil {
			publishErr = err
		}
	}

	if verr := envelope.Validate(); verr != nil {
		// producer bug. No scope, no cluster call.
		publish("inspect envelope", func(context.Context) domain.StepResult {
			return domain.StepResult{
				Name:     "inspect envelope",
				Status:   domain.Errored,
				Observed: verr.Error(),
			}
		})
	} else {
		switch envelope.Kind {
		case domain.Deploy:
			e.deploy(ctx, envelope, publish)
		case domain.Verify:
			e.verify(ctx, envelope, publish)
		}
	}
	if publishErr != nil {
		return publishErr
	}

	report := domain.Report{
		JobId: envelope.JobId, Results: results, CompletedAt: e.now(),
	}
	return e.events.Publish(ctx, domain.Event{
		JobId: envelope.JobId, Seq: seq.next(),
		Kind: domain.EventJobCompleted, Report: &report, Timestamp: e.now(),
	})
}

// stepFunc publishes one named step around run.
type stepFunc func(name string, run func(ctx context.Context) domain.StepResult)

func (e *Engine) deploy(ctx context.Context, envelope domain.JobEnvelope, publish stepFunc) {
	resources, err := cluster.DecodeManifest(envelope.Manifest)
	if err != nil {
		publish("decode manifest", func(context.Context) domain.StepResult {
			return domain.StepResult{
				Name: "decode manifest", Status: domain.Failed, Observed: err.Error(),
			}
		})
		return
	}

	// one owner, one job at a time: a concurrent deploy of the same
	// owner must not prune what this one just applied
	release := e.scopes.Lock(envelope.OwnerKey)
	defer release()

	var c cluster.Cluster
	publish("resolve scope", func(sctx context.Context) domain.StepResult {
		start := e.now()
		s, err := e.scopes.ResolveOrCreate(sctx, envelope.OwnerKey)
		if err != nil {
			status := domain.Errored
			if kerr.AsExhausted(err) || kerr.AsInvalid(err) {
				status = domain.Failed
			}
			return domain.StepResult{
				Name: "resolve scope", Status: status,
				Observed: err.Error(), Duration: e.now().Sub(start),
			}
		}
		c = cluster.AttachCluster(e.client, s.Name)
		return domain.StepResult{
			Name: "resolve scope", Status: domain.Passed,
			Observed: s.Name, Duration: e.now().Sub(start),
		}
	})
	if c == nil {
		return
	}

	scopeName := c.Namespace()
	for _, r := range resources {
		r := r
		name := fmt.Sprintf("apply %s/%s", r.Kind, r.Name())
		publish(name, func(sctx context.Context) domain.StepResult {
			start := e.now()
			if err := c.Apply(sctx, scopeName, []cluster.Resource{r}); err != nil {
				status := domain.Errored
				if kubeRejected(err) {
					status = domain.Failed
				}
				return domain.StepResult{
					Name: name, Status: status,
					Observed: err.Error(), Duration: e.now().Sub(start),
				}
			}
			return domain.StepResult{
				Name: name, Status: domain.Passed,
				Observed: "accepted by the api server", Duration: e.now().Sub(start),
			}
		})
	}

	publish("prune", func(sctx context.Context) domain.StepResult {
		start := e.now()
		if err := c.Prune(sctx, resources); err != nil {
			return domain.StepResult{
				Name: "prune", Status: domain.Errored,
				Observed: err.Error(), Duration: e.now().Sub(start),
			}
		}
		return domain.StepResult{
			Name: "prune", Status: domain.Passed,
			Duration: e.now().Sub(start),
		}
	})
}

func (e *Engine) verify(ctx context.Context, envelope domain.JobEnvelope, publish stepFunc) {
	release := e.scopes.Lock(envelope.OwnerKey)
	defer release()

	var c cluster.Cluster
	publish("resolve scope", func(sctx context.Context) domain.StepResult {
		start := e.now()
		s, err := e.scopes.ResolveExisting(sctx, envelope.OwnerKey)
		if err != nil {
			status := domain.Errored
			if kerr.AsMissingError(err) {
				status = domain.Failed
			}
			return domain.StepResult{
				Name: "resolve scope", Status: status,
				Observed: err.Error(), Duration: e.now().Sub(start),
			}
		}
		c = cluster.AttachCluster(e.client, s.Name)
		return domain.StepResult{
			Name: "resolve scope", Status: domain.Passed,
			Observed: s.Name, Duration: e.now().Sub(start),
		}
	})
	if c == nil {
		return
	}

	for _, a := range envelope.Assertions {
		a := a
		publish(a.Name(), func(sctx context.Context) domain.StepResult {
			return e.evaluator.EvaluateOne(sctx, c, a)
		})
	}
}

// sequencer numbers a job's events 1, 2, 3, ...
type sequencer struct {
	n int64
}

func (s *sequencer) next() int64 {
	s.n += 1
	return s.n
}

package verify

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
)

// Evaluator checks assertions against the live state of a scope.
//
// Evaluating never mutates the cluster, so running the same job twice
// only differs where the cluster itself moved in between.
type Evaluator interface {
	// EvaluateOne checks one assertion.
	//
	// A mismatch is a Failed result with what was observed; only
	// the cluster being unaskable makes an Errored result.
	// EvaluateOne does not return an error: every outcome is a
	// StepResult.
	EvaluateOne(ctx context.Context, c cluster.Cluster, a domain.Assertion) domain.StepResult

	// Evaluate checks every assertion in order, without stopping
	// at failures.
	Evaluate(ctx context.Context, c cluster.Cluster, assertions []domain.Assertion) []domain.StepResult
}

type evaluator struct {
	now func() time.Time
}

var _ Evaluator = evaluator{}

func New() Evaluator {
	return evaluator{now: time.Now}
}

func (e evaluator) Evaluate(ctx context.Context, c cluster.Cluster, assertions []domain.Assertion) []domain.StepResult {
	results := make([]domain.StepResult, 0, len(assertions))
	for _, a := range assertions {
		results = append(results, e.EvaluateOne(ctx, c, a))
	}
	return results
}

func (e evaluator) EvaluateOne(ctx context.Context, c cluster.Cluster, a domain.Assertion) domain.StepResult {
	start := e.now()
	status, observed := e.evaluate(ctx, c, a)
	return domain.StepResult{
		Name:     a.Name(),
		Status:   status,
		Observed: observed,
		Duration: e.now().Sub(start),
	}
}

func (e evaluator) evaluate(ctx context.Context, c cluster.Cluster, a domain.Assertion) (domain.StepStatus, string) {
	if _, err := domain.AsPredicate(string(a.Predicate)); err != nil {
		return domain.Errored, err.Error()
	}

	if a.Predicate == domain.LogContains {
		return e.evaluateLogs(ctx, c, a)
	}

	snapshots, err := c.Find(ctx, a.Target)
	if err != nil {
		return domain.Errored, fmt.Sprintf("cannot inspect %s: %s", a.Target, err)
	}

	// name order, so that multi-match observations read stably
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].Name < snapshots[j].Name
	})

	switch a.Predicate {
	case domain.Exists:
		if len(snapshots) == 0 {
			return domain.Failed, fmt.Sprintf("%s is not found", a.Target)
		}
		return domain.Passed, fmt.Sprintf("%d resource(s) found", len(snapshots))

	case domain.FieldEquals:
		if len(snapshots) == 0 {
			return domain.Failed, fmt.Sprintf("%s is not found", a.Target)
		}
		for _, s := range snapshots {
			got, err := s.Field(a.Field)
			if err != nil {
				if kerr.AsMissingError(err) {
					return domain.Failed, fmt.Sprintf("%s %s has no field %q", s.Kind, s.Name, a.Field)
				}
				return domain.Errored, fmt.Sprintf("cannot read %s of %s: %s", a.Field, s.Name, err)
			}
			if got != a.Expected {
				return domain.Failed, fmt.Sprintf("%s = %q on %s", a.Field, got, s.Name)
			}
		}
		return domain.Passed, fmt.Sprintf("%s = %q", a.Field, a.Expected)

	case domain.ReadyReplicasAtLeast:
		want, err := strconv.ParseInt(a.Expected, 10, 64)
		if err != nil {
			return domain.Errored, fmt.Sprintf("expected value %q is not an integer", a.Expected)
		}
		ready := int64(0)
		for _, s := range snapshots {
			ready += s.ReadyReplicas()
		}
		if ready < want {
			return domain.Failed, fmt.Sprintf("%d of %d replicas are ready", ready, want)
		}
		return domain.Passed, fmt.Sprintf("%d of %d replicas are ready", ready, want)

	case domain.ConditionTrue:
		if len(snapshots) == 0 {
			return domain.Failed, fmt.Sprintf("%s is not found", a.Target)
		}
		for _, s := range snapshots {
			if got := s.Condition(a.Expected); got != "True" {
				if got == "" {
					return domain.Failed, fmt.Sprintf("%s does not report condition %q", s.Name, a.Expected)
				}
				return domain.Failed, fmt.Sprintf("condition %s = %s on %s", a.Expected, got, s.Name)
			}
		}
		return domain.Passed, fmt.Sprintf("condition %s = True", a.Expected)
	}

	// unreachable: AsPredicate rejected everything else above
	return domain.Errored, fmt.Sprintf("unknown predicate: %s", a.Predicate)
}

func (e evaluator) evaluateLogs(ctx context.Context, c cluster.Cluster, a domain.Assertion) (domain.StepStatus, string) {
	logs, err := c.Logs(ctx, a.Target)
	if err != nil {
		return domain.Errored, fmt.Sprintf("cannot read logs of %s: %s", a.Target, err)
	}
	if !strings.Contains(logs, a.Expected) {
		return domain.Failed, fmt.Sprintf("logs of %s do not contain %q", a.Target, a.Expected)
	}
	return domain.Passed, fmt.Sprintf("logs contain %q", a.Expected)
}

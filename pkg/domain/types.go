package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/cmp"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
)

// JobKind is what a worker should do with a JobEnvelope.
type JobKind string

const (
	// apply the manifest of the envelope into the owner's isolation scope.
	Deploy JobKind = "deploy"

	// judge the assertions of the envelope against the owner's isolation scope.
	Verify JobKind = "verify"
)

func (k JobKind) String() string {
	return string(k)
}

func AsJobKind(s string) (JobKind, error) {
	switch JobKind(s) {
	case Deploy:
		return Deploy, nil
	case Verify:
		return Verify, nil
	}
	return JobKind(""), fmt.Errorf("unknown job kind: %s", s)
}

// ResourceKind is a kind of k8s resource this system can deploy and inspect.
//
// This is a closed set. Manifests carrying other kinds are rejected before
// touching the cluster.
type ResourceKind string

const (
	KindDeployment ResourceKind = "Deployment"
	KindService    ResourceKind = "Service"
	KindConfigMap  ResourceKind = "ConfigMap"
	KindPod        ResourceKind = "Pod"
)

func AsResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case KindDeployment, KindService, KindConfigMap, KindPod:
		return ResourceKind(s), nil
	}
	return ResourceKind(""), fmt.Errorf("unsupported resource kind: %s", s)
}

// Predicate is how an Assertion judges its target.
//
// This is a closed set; evaluators switch over it exhaustively,
// so adding a new predicate without a handler is a compile-time matter,
// not a runtime "unknown string" surprise.
type Predicate string

const (
	// the target is present in the scope.
	Exists Predicate = "exists"

	// the named field of the target deep-equals the expected value.
	// Missing field means fail, not error.
	FieldEquals Predicate = "field_equals"

	// the target's ready replica count >= expected value.
	// Run too early, it fails with an accurate "0 of N" observation.
	ReadyReplicasAtLeast Predicate = "ready_replicas_at_least"

	// any container log stream of the target contains the expected substring.
	LogContains Predicate = "log_contains"

	// the named status condition of the target is reported "True".
	ConditionTrue Predicate = "condition_true"
)

func AsPredicate(s string) (Predicate, error) {
	switch Predicate(s) {
	case Exists, FieldEquals, ReadyReplicasAtLeast, LogContains, ConditionTrue:
		return Predicate(s), nil
	}
	return Predicate(""), fmt.Errorf("unknown predicate: %s", s)
}

// TargetSelector points at resource(s) in an isolation scope,
// by kind + name or by kind + label selector.
type TargetSelector struct {
	Kind   ResourceKind      `json:"kind"`
	Name   string            `json:"name,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

func (s TargetSelector) Equal(o TargetSelector) bool {
	return s.Kind == o.Kind &&
		s.Name == o.Name &&
		cmp.MapEq(s.Labels, o.Labels)
}

func (s TargetSelector) String() string {
	if s.Name != "" {
		return fmt.Sprintf("%s/%s", s.Kind, s.Name)
	}
	return fmt.Sprintf("%s[%v]", s.Kind, s.Labels)
}

// Assertion is one declarative check against live cluster state.
// Stateless and immutable; supplied as part of a Verify payload.
type Assertion struct {
	Target    TargetSelector `json:"target"`
	Predicate Predicate      `json:"predicate"`

	// dot-path of the field to inspect. Used by FieldEquals.
	Field string `json:"field,omitempty"`

	// expected value, as text. ReadyReplicasAtLeast parses it as an integer.
	Expected string `json:"expected,omitempty"`
}

func (a Assertion) Equal(o Assertion) bool {
	return a.Target.Equal(o.Target) &&
		a.Predicate == o.Predicate &&
		a.Field == o.Field &&
		a.Expected == o.Expected
}

// Name of the assertion, used as the step name in events and reports.
func (a Assertion) Name() string {
	return fmt.Sprintf("%s %s", a.Target, a.Predicate)
}

// JobEnvelope is an immutable description of one unit of work.
//
// Producers assign JobId; workers consume an envelope exactly once per
// delivery attempt and never mutate it. A changed request is a new envelope
// with a new JobId.
type JobEnvelope struct {
	JobId    string  `json:"jobId"`
	Kind     JobKind `json:"kind"`
	OwnerKey string  `json:"ownerKey"`

	// raw manifest text. Deploy only.
	Manifest []byte `json:"manifest,omitempty"`

	// ordered checklist. Verify only.
	Assertions []Assertion `json:"assertions,omitempty"`

	SubmittedAt time.Time `json:"submittedAt"`
}

func (e JobEnvelope) Equal(o JobEnvelope) bool {
	return e.JobId == o.JobId &&
		e.Kind == o.Kind &&
		e.OwnerKey == o.OwnerKey &&
		bytes.Equal(e.Manifest, o.Manifest) &&
		cmp.SliceEqWith(e.Assertions, o.Assertions, Assertion.Equal) &&
		e.SubmittedAt.Equal(o.SubmittedAt)
}

// Validate rejects malformed envelopes before any cluster interaction.
func (e JobEnvelope) Validate() error {
	if e.JobId == "" {
		return kerr.NewInvalid("job id is required")
	}
	if e.OwnerKey == "" {
		return kerr.NewInvalid("owner key is required")
	}
	switch e.Kind {
	case Deploy:
		if len(e.Manifest) == 0 {
			return kerr.NewInvalid("deploy job without manifest")
		}
	case Verify:
		if len(e.Assertions) == 0 {
			return kerr.NewInvalid("verify job without assertions")
		}
		for i, a := range e.Assertions {
			if _, err := AsPredicate(string(a.Predicate)); err != nil {
				return kerr.NewInvalid(fmt.Sprintf("assertion #%d: %s", i, err))
			}
			if _, err := AsResourceKind(string(a.Target.Kind)); err != nil {
				return kerr.NewInvalid(fmt.Sprintf("assertion #%d: %s", i, err))
			}
			if a.Target.Name == "" && len(a.Target.Labels) == 0 {
				return kerr.NewInvalid(fmt.Sprintf("assertion #%d: target needs a name or labels", i))
			}
			if a.Predicate == FieldEquals && a.Field == "" {
				return kerr.NewInvalid(fmt.Sprintf("assertion #%d: field_equals needs a field path", i))
			}
		}
	default:
		return kerr.NewInvalid(fmt.Sprintf("unknown job kind: %s", e.Kind))
	}
	return nil
}

// StepStatus is the outcome of one apply sub-step or one assertion.
type StepStatus string

const (
	// the step was inspected and matched.
	Passed StepStatus = "passed"

	// the step was inspected and did not match. Routine, expected outcome.
	Failed StepStatus = "failed"

	// the step could not be inspected at all
	// (API unreachable, timeout, permission denied, ...).
	// Surfaced distinctly so users are not misled into fixing a manifest
	// when the problem is infrastructural.
	Errored StepStatus = "errored"
)

// StepResult is the outcome of evaluating one Assertion or one apply sub-step.
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Observed string        `json:"observed,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r StepResult) Equal(o StepResult) bool {
	return r.Name == o.Name &&
		r.Status == o.Status &&
		r.Observed == o.Observed
}

// Report aggregates all StepResults of one job, in declared order.
type Report struct {
	JobId       string       `json:"jobId"`
	Results     []StepResult `json:"results"`
	CompletedAt time.Time    `json:"completedAt"`
}

// Status of the whole report: Passed iff all steps passed.
// Errored dominates Failed, so "could not even look" is never
// mistaken for "looked and did not match".
func (r Report) Status() StepStatus {
	status := Passed
	for _, s := range r.Results {
		switch s.Status {
		case Errored:
			return Errored
		case Failed:
			status = Failed
		}
	}
	return status
}

// MarshalJSON writes the aggregate status alongside the step results,
// so viewers need not re-derive it.
func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	return json.Marshal(struct {
		plain
		Status StepStatus `json:"status"`
	}{plain: plain(r), Status: r.Status()})
}

func (r Report) Equal(o Report) bool {
	return r.JobId == o.JobId &&
		cmp.SliceEqWith(r.Results, o.Results, StepResult.Equal)
}

// EventKind is a lifecycle marker of a job.
type EventKind string

const (
	EventJobStarted  EventKind = "job_started"
	EventStepStarted EventKind = "step_started"
	EventStepResult  EventKind = "step_result"

	// terminal. Closes the job's event log.
	EventJobCompleted EventKind = "job_completed"
)

// Event is a Step Result or lifecycle marker framed for streaming.
//
// Events of a job carry a dense sequence number starting at 1,
// and are delivered to every subscriber in that order.
type Event struct {
	JobId     string      `json:"jobId"`
	Seq       int64       `json:"seq"`
	Kind      EventKind   `json:"kind"`
	StepName  string      `json:"stepName,omitempty"`
	Step      *StepResult `json:"step,omitempty"`
	Report    *Report     `json:"report,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Terminal returns true when no further events follow for the job.
func (e Event) Terminal() bool {
	return e.Kind == EventJobCompleted
}

func (e Event) Equal(o Event) bool {
	return e.JobId == o.JobId &&
		e.Seq == o.Seq &&
		e.Kind == o.Kind &&
		e.StepName == o.StepName &&
		cmp.PEqualWith(e.Step, o.Step, StepResult.Equal) &&
		cmp.PEqualWith(e.Report, o.Report, Report.Equal)
}

// ScopeQuota bounds what one isolation scope may consume.
type ScopeQuota struct {
	CPU         resource.Quantity
	Memory      resource.Quantity
	ObjectCount int64
}

// Scope is an isolated, quota-bounded slice of the cluster
// dedicated to one owner (session/user + exercise pair).
type Scope struct {
	// k8s namespace name. Derived from OwnerKey; see pkg/domain/scope.
	Name string

	OwnerKey    string
	CreatedAt   time.Time
	LastTouched time.Time
	Quota       ScopeQuota
}

package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
)

func TestJobEnvelope_Validate(t *testing.T) {
	base := domain.JobEnvelope{
		JobId:       "job-1",
		Kind:        domain.Deploy,
		OwnerKey:    "user-1/exercise-1",
		Manifest:    []byte("apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: conf"),
		SubmittedAt: time.Now(),
	}

	t.Run("a well-formed deploy envelope is valid", func(t *testing.T) {
		if err := base.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("a well-formed verify envelope is valid", func(t *testing.T) {
		e := base
		e.Kind = domain.Verify
		e.Manifest = nil
		e.Assertions = []domain.Assertion{
			{
				Target:    domain.TargetSelector{Kind: domain.KindDeployment, Name: "web"},
				Predicate: domain.ReadyReplicasAtLeast,
				Expected:  "3",
			},
		}
		if err := e.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	for name, breakIt := range map[string]func(*domain.JobEnvelope){
		"an envelope without job id is invalid": func(e *domain.JobEnvelope) {
			e.JobId = ""
		},
		"an envelope without owner key is invalid": func(e *domain.JobEnvelope) {
			e.OwnerKey = ""
		},
		"a deploy envelope without manifest is invalid": func(e *domain.JobEnvelope) {
			e.Manifest = nil
		},
		"an envelope with unknown kind is invalid": func(e *domain.JobEnvelope) {
			e.Kind = domain.JobKind("destroy")
		},
		"a verify envelope without assertions is invalid": func(e *domain.JobEnvelope) {
			e.Kind = domain.Verify
			e.Assertions = nil
		},
		"an assertion with unknown predicate is invalid": func(e *domain.JobEnvelope) {
			e.Kind = domain.Verify
			e.Assertions = []domain.Assertion{
				{
					Target:    domain.TargetSelector{Kind: domain.KindPod, Name: "p"},
					Predicate: domain.Predicate("is_pretty"),
				},
			}
		},
		"an assertion with unsupported resource kind is invalid": func(e *domain.JobEnvelope) {
			e.Kind = domain.Verify
			e.Assertions = []domain.Assertion{
				{
					Target:    domain.TargetSelector{Kind: domain.ResourceKind("CronJob"), Name: "c"},
					Predicate: domain.Exists,
				},
			}
		},
		"an assertion without name nor labels is invalid": func(e *domain.JobEnvelope) {
			e.Kind = domain.Verify
			e.Assertions = []domain.Assertion{
				{
					Target:    domain.TargetSelector{Kind: domain.KindPod},
					Predicate: domain.Exists,
				},
			}
		},
		"a field_equals assertion without field path is invalid": func(e *domain.JobEnvelope) {
			e.Kind = domain.Verify
			e.Assertions = []domain.Assertion{
				{
					Target:    domain.TargetSelector{Kind: domain.KindService, Name: "svc"},
					Predicate: domain.FieldEquals,
					Expected:  "ClusterIP",
				},
			}
		},
	} {
		t.Run(name, func(t *testing.T) {
			e := base
			breakIt(&e)
			err := e.Validate()
			if err == nil {
				t.Fatal("expected error does not occured")
			}
			if !kerr.AsInvalid(err) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestReport_Status(t *testing.T) {
	for name, testcase := range map[string]struct {
		when []domain.StepStatus
		then domain.StepStatus
	}{
		"all steps passed means passed": {
			when: []domain.StepStatus{domain.Passed, domain.Passed},
			then: domain.Passed,
		},
		"one failed step means failed": {
			when: []domain.StepStatus{domain.Passed, domain.Failed, domain.Passed},
			then: domain.Failed,
		},
		"one errored step means errored, even with failures": {
			when: []domain.StepStatus{domain.Failed, domain.Errored, domain.Passed},
			then: domain.Errored,
		},
		"empty report means passed": {
			when: []domain.StepStatus{},
			then: domain.Passed,
		},
	} {
		t.Run(name, func(t *testing.T) {
			results := make([]domain.StepResult, 0, len(testcase.when))
			for i, s := range testcase.when {
				results = append(results, domain.StepResult{
					Name: string(rune('a' + i)), Status: s,
				})
			}
			report := domain.Report{JobId: "job-1", Results: results}

			if actual := report.Status(); actual != testcase.then {
				t.Errorf("status = %s, want %s", actual, testcase.then)
			}
		})
	}
}

func TestReport_MarshalJSON(t *testing.T) {
	t.Run("the marshalled report carries its aggregate status", func(t *testing.T) {
		report := domain.Report{
			JobId: "job-1",
			Results: []domain.StepResult{
				{Name: "Deployment web exists", Status: domain.Passed},
				{Name: "Service web exists", Status: domain.Failed},
			},
			CompletedAt: time.Date(2024, 4, 1, 12, 34, 56, 0, time.UTC),
		}

		b, err := json.Marshal(report)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		wire := map[string]json.RawMessage{}
		if err := json.Unmarshal(b, &wire); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(wire["status"]) != `"failed"` {
			t.Errorf("status = %s, want %q", wire["status"], domain.Failed)
		}
		if _, ok := wire["results"]; !ok {
			t.Errorf("results are missing: %s", b)
		}
	})
}

func TestEvent_Terminal(t *testing.T) {
	t.Run("job_completed is terminal", func(t *testing.T) {
		e := domain.Event{Kind: domain.EventJobCompleted}
		if !e.Terminal() {
			t.Error("job_completed should be terminal")
		}
	})
	t.Run("other kinds are not terminal", func(t *testing.T) {
		for _, k := range []domain.EventKind{
			domain.EventJobStarted, domain.EventStepStarted, domain.EventStepResult,
		} {
			if (domain.Event{Kind: k}).Terminal() {
				t.Errorf("%s should not be terminal", k)
			}
		}
	})
}

package worker_test

import (
	"testing"
	"time"

	kconf "github.com/Lelouch-Britannia/KubePlayground/pkg/configs/worker"
	"k8s.io/apimachinery/pkg/api/resource"
)

func TestConfigMarshall(t *testing.T) {
	t.Run("it loads config from yaml: ", func(t *testing.T) {
		workerYml := []byte(`
port: 8080
cluster:
  database: postgres://playground:secret@db:5432/playground
  quota:
    cpu: "2"
    memory: 2Gi
    objectCount: 30
worker:
  concurrency: 4
  stepTimeout: 30s
  lease: 120s
  maxLiveScopes: 50
scopes:
  idleThreshold: 30m
  reapInterval: 1m
events:
  retention: 1h
`)
		result, err := kconf.Unmarshal(workerYml)

		if err != nil {
			t.Fatalf("failed to parse config.: %v", err)
		}

		t.Run(".port", func(t *testing.T) {
			actual := result.Port()
			expected := int32(8080)
			if actual != expected {
				t.Errorf("mismatch. (expected, actual) = (%d, %d)", expected, actual)
			}
		})

		t.Run(".cluster.domain (default)", func(t *testing.T) {
			actual := result.Cluster().Domain()
			expected := "cluster.local"
			if actual != expected {
				t.Errorf("mismatch. (expected, actual) = (%s, %s)", expected, actual)
			}
		})

		t.Run(".cluster.database", func(t *testing.T) {
			actual := result.Cluster().Database()
			expected := "postgres://playground:secret@db:5432/playground"
			if actual != expected {
				t.Errorf("mismatch. (expected, actual) = (%s, %s)", expected, actual)
			}
		})

		t.Run(".cluster.quota", func(t *testing.T) {
			actual := result.Cluster().Quota()
			if expected := resource.MustParse("2"); !expected.Equal(actual.CPU) {
				t.Errorf("cpu mismatch. (expected, actual) = (%v, %v)", expected, actual.CPU)
			}
			if expected := resource.MustParse("2Gi"); !expected.Equal(actual.Memory) {
				t.Errorf("memory mismatch. (expected, actual) = (%v, %v)", expected, actual.Memory)
			}
			if actual.ObjectCount != 30 {
				t.Errorf("objectCount mismatch. actual = %d", actual.ObjectCount)
			}
		})

		t.Run(".worker", func(t *testing.T) {
			w := result.Worker()
			if w.Concurrency() != 4 {
				t.Errorf("concurrency mismatch. actual = %d", w.Concurrency())
			}
			if w.StepTimeout() != 30*time.Second {
				t.Errorf("stepTimeout mismatch. actual = %v", w.StepTimeout())
			}
			if w.Lease() != 120*time.Second {
				t.Errorf("lease mismatch. actual = %v", w.Lease())
			}
			if w.MaxLiveScopes() != 50 {
				t.Errorf("maxLiveScopes mismatch. actual = %d", w.MaxLiveScopes())
			}
		})

		t.Run(".scopes", func(t *testing.T) {
			s := result.Scopes()
			if s.IdleThreshold() != 30*time.Minute {
				t.Errorf("idleThreshold mismatch. actual = %v", s.IdleThreshold())
			}
			if s.ReapInterval() != time.Minute {
				t.Errorf("reapInterval mismatch. actual = %v", s.ReapInterval())
			}
		})

		t.Run(".events.retention", func(t *testing.T) {
			if actual := result.Events().Retention(); actual != time.Hour {
				t.Errorf("retention mismatch. actual = %v", actual)
			}
		})
	})

	t.Run("it panics on a config missing required values: ", func(t *testing.T) {
		workerYml := []byte(`
port: 8080
cluster:
  quota:
    cpu: "2"
    memory: 2Gi
    objectCount: 30
worker:
  concurrency: 4
  stepTimeout: 30s
  lease: 120s
  maxLiveScopes: 50
scopes:
  idleThreshold: 30m
  reapInterval: 1m
events:
  retention: 1h
`)
		defer func() {
			if recover() == nil {
				t.Error("no panic for a config without cluster.database")
			}
		}()
		kconf.Unmarshal(workerYml)
	})

	t.Run("it panics on a duration it cannot parse: ", func(t *testing.T) {
		workerYml := []byte(`
port: 8080
cluster:
  database: postgres://playground:secret@db:5432/playground
  quota:
    cpu: "2"
    memory: 2Gi
    objectCount: 30
worker:
  concurrency: 4
  stepTimeout: soon
  lease: 120s
  maxLiveScopes: 50
scopes:
  idleThreshold: 30m
  reapInterval: 1m
events:
  retention: 1h
`)
		defer func() {
			if recover() == nil {
				t.Error("no panic for an unparsable duration")
			}
		}()
		kconf.Unmarshal(workerYml)
	})
}

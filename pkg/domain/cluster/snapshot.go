package cluster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// Snapshot is the observed state of a single live resource,
// taken at one point in time.
type Snapshot struct {
	Kind domain.ResourceKind
	Name string

	// Object is the resource as a generic map, for field path lookups.
	Object map[string]interface{}

	// set only for Deployments
	readyReplicas int64

	conditions map[string]string
}

func snapshotOf(kind domain.ResourceKind, name string, obj runtime.Object) (Snapshot, error) {
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return Snapshot{}, err
	}

	s := Snapshot{Kind: kind, Name: name, Object: m, conditions: map[string]string{}}

	switch o := obj.(type) {
	case *kubeapps.Deployment:
		s.readyReplicas = int64(o.Status.ReadyReplicas)
		for _, c := range o.Status.Conditions {
			s.conditions[string(c.Type)] = string(c.Status)
		}
	case *kubecore.Pod:
		for _, c := range o.Status.Conditions {
			s.conditions[string(c.Type)] = string(c.Status)
		}
	case *kubecore.Service, *kubecore.ConfigMap:
		// no conditions to speak of
	}

	return s, nil
}

// ReadyReplicas returns status.readyReplicas.
// It is zero for kinds other than Deployment.
func (s Snapshot) ReadyReplicas() int64 {
	return s.readyReplicas
}

// Condition returns the status ("True", "False", "Unknown") of the
// named condition, or "" when the resource does not carry it.
func (s Snapshot) Condition(name string) string {
	return s.conditions[name]
}

// Field walks a dot-separated path over the resource map and renders
// the value it finds as a string.
//
// Path segments index maps by key; a segment of digits indexes slices.
// ErrMissing is returned when the path does not resolve.
func (s Snapshot) Field(path string) (string, error) {
	var cursor interface{} = s.Object
	for _, seg := range strings.Split(path, ".") {
		switch here := cursor.(type) {
		case map[string]interface{}:
			next, ok := here[seg]
			if !ok {
				return "", kerr.NewMissing(fmt.Sprintf(
					"%s %s has no field %q (at %q)", s.Kind, s.Name, path, seg,
				))
			}
			cursor = next
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || len(here) <= idx {
				return "", kerr.NewMissing(fmt.Sprintf(
					"%s %s has no field %q (at %q)", s.Kind, s.Name, path, seg,
				))
			}
			cursor = here[idx]
		default:
			return "", kerr.NewMissing(fmt.Sprintf(
				"%s %s has no field %q (at %q)", s.Kind, s.Name, path, seg,
			))
		}
	}
	return renderScalar(cursor), nil
}

func renderScalar(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		if value == float64(int64(value)) {
			return strconv.FormatInt(int64(value), 10)
		}
		return strconv.FormatFloat(value, 'g', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", value)
	}
}

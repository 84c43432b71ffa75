package cluster

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	kubecore "k8s.io/api/core/v1"
	kubeerr "k8s.io/apimachinery/pkg/api/errors"
)

// Cluster interacts with resources in a single namespace.
type Cluster interface {
	// Namespace returns the namespace this Cluster is attached to.
	Namespace() string

	// Apply creates or updates resources in the namespace.
	//
	// Each resource is stamped with management labels before it is
	// sent, so that Prune and Find can recognize it later.
	// Pods are create-only; an existing pod with the same name is
	// left as it is.
	//
	// Apply returns as soon as the API server has accepted every
	// resource. It does not wait for workloads to become ready.
	Apply(ctx context.Context, scopeName string, resources []Resource) error

	// Prune deletes managed resources in the namespace which do not
	// appear (by kind and name) in keep.
	Prune(ctx context.Context, keep []Resource) error

	// Find takes snapshots of live resources matching the selector.
	//
	// When the selector names a resource, at most one snapshot is
	// returned; a missing resource yields an empty slice, not an
	// error. Errors mean the cluster could not be asked.
	Find(ctx context.Context, target domain.TargetSelector) ([]Snapshot, error)

	// Logs reads the logs of pods matching the selector,
	// concatenated in pod name order as Find returns them.
	//
	// The selector's kind must be Pod.
	Logs(ctx context.Context, target domain.TargetSelector) (string, error)
}

type cluster struct {
	namespace string
	client    K8sClient
}

var _ Cluster = &cluster{}

// AttachCluster binds a K8sClient to a namespace.
func AttachCluster(client K8sClient, namespace string) Cluster {
	return &cluster{namespace: namespace, client: client}
}

func (c *cluster) Namespace() string {
	return c.namespace
}

// stamp merges management labels into labels, copying so that the
// caller's map is not written through.
func stamp(labels map[string]string, scopeName string) map[string]string {
	stamped := map[string]string{}
	for k, v := range labels {
		stamped[k] = v
	}
	stamped[LabelManagedBy] = ManagerName
	stamped[LabelScope] = scopeName
	return stamped
}

func (c *cluster) Apply(ctx context.Context, scopeName string, resources []Resource) error {
	for _, r := range resources {
		if err := c.applyOne(ctx, scopeName, r); err != nil {
			return err
		}
	}
	return nil
}

func (c *cluster) applyOne(ctx context.Context, scopeName string, r Resource) error {
	switch r.Kind {
	case domain.KindDeployment:
		depl := r.Deployment.DeepCopy()
		depl.Namespace = c.namespace
		depl.Labels = stamp(depl.Labels, scopeName)
		if _, err := c.client.CreateDeployment(ctx, c.namespace, depl); err != nil {
			if !kubeerr.IsAlreadyExists(err) {
				return err
			}
			found, err := c.client.GetDeployment(ctx, c.namespace, depl.Name)
			if err != nil {
				return err
			}
			depl.ResourceVersion = found.ResourceVersion
			if _, err := c.client.UpdateDeployment(ctx, c.namespace, depl); err != nil {
				return err
			}
		}
	case domain.KindService:
		svc := r.Service.DeepCopy()
		svc.Namespace = c.namespace
		svc.Labels = stamp(svc.Labels, scopeName)
		if _, err := c.client.CreateService(ctx, c.namespace, svc); err != nil {
			if !kubeerr.IsAlreadyExists(err) {
				return err
			}
			found, err := c.client.GetService(ctx, c.namespace, svc.Name)
			if err != nil {
				return err
			}
			svc.ResourceVersion = found.ResourceVersion
			svc.Spec.ClusterIP = found.Spec.ClusterIP
			if _, err := c.client.UpdateService(ctx, c.namespace, svc); err != nil {
				return err
			}
		}
	case domain.KindConfigMap:
		cm := r.ConfigMap.DeepCopy()
		cm.Namespace = c.namespace
		cm.Labels = stamp(cm.Labels, scopeName)
		if _, err := c.client.CreateConfigMap(ctx, c.namespace, cm); err != nil {
			if !kubeerr.IsAlreadyExists(err) {
				return err
			}
			found, err := c.client.GetConfigMap(ctx, c.namespace, cm.Name)
			if err != nil {
				return err
			}
			cm.ResourceVersion = found.ResourceVersion
			if _, err := c.client.UpdateConfigMap(ctx, c.namespace, cm); err != nil {
				return err
			}
		}
	case domain.KindPod:
		pod := r.Pod.DeepCopy()
		pod.Namespace = c.namespace
		pod.Labels = stamp(pod.Labels, scopeName)
		if _, err := c.client.CreatePod(ctx, c.namespace, pod); err != nil {
			// pod specs are mostly immutable. leave the running one.
			if !kubeerr.IsAlreadyExists(err) {
				return err
			}
		}
	default:
		return kerr.NewInvalid(fmt.Sprintf("unsupported kind: %s", r.Kind))
	}
	return nil
}

func (c *cluster) Prune(ctx context.Context, keep []Resource) error {
	keeping := map[domain.ResourceKind]map[string]struct{}{}
	for _, r := range keep {
		if _, ok := keeping[r.Kind]; !ok {
			keeping[r.Kind] = map[string]struct{}{}
		}
		keeping[r.Kind][r.Name()] = struct{}{}
	}

	managed := ManagedSelector()

	depls, err := c.client.FindDeployments(ctx, c.namespace, managed)
	if err != nil {
		return err
	}
	for _, d := range depls {
		if _, ok := keeping[domain.KindDeployment][d.Name]; ok {
			continue
		}
		if err := c.client.DeleteDeployment(ctx, c.namespace, d.Name); err != nil && !kubeerr.IsNotFound(err) {
			return err
		}
	}

	svcs, err := c.client.FindServices(ctx, c.namespace, managed)
	if err != nil {
		return err
	}
	for _, s := range svcs {
		if _, ok := keeping[domain.KindService][s.Name]; ok {
			continue
		}
		if err := c.client.DeleteService(ctx, c.namespace, s.Name); err != nil && !kubeerr.IsNotFound(err) {
			return err
		}
	}

	cms, err := c.client.FindConfigMaps(ctx, c.namespace, managed)
	if err != nil {
		return err
	}
	for _, m := range cms {
		if _, ok := keeping[domain.KindConfigMap][m.Name]; ok {
			continue
		}
		if err := c.client.DeleteConfigMap(ctx, c.namespace, m.Name); err != nil && !kubeerr.IsNotFound(err) {
			return err
		}
	}

	pods, err := c.client.FindPods(ctx, c.namespace, managed)
	if err != nil {
		return err
	}
	for _, p := range pods {
		if _, ok := keeping[domain.KindPod][p.Name]; ok {
			continue
		}
		if err := c.client.DeletePod(ctx, c.namespace, p.Name); err != nil && !kubeerr.IsNotFound(err) {
			return err
		}
	}

	return nil
}

func (c *cluster) Find(ctx context.Context, target domain.TargetSelector) ([]Snapshot, error) {
	if target.Name != "" {
		s, err := c.findByName(ctx, target)
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return []Snapshot{}, nil
			}
			return nil, err
		}
		return []Snapshot{s}, nil
	}
	return c.findByLabels(ctx, target)
}

func (c *cluster) findByName(ctx context.Context, target domain.TargetSelector) (Snapshot, error) {
	switch target.Kind {
	case domain.KindDeployment:
		d, err := c.client.GetDeployment(ctx, c.namespace, target.Name)
		if err != nil {
			return Snapshot{}, err
		}
		return snapshotOf(target.Kind, d.Name, d)
	case domain.KindService:
		s, err := c.client.GetService(ctx, c.namespace, target.Name)
		if err != nil {
			return Snapshot{}, err
		}
		return snapshotOf(target.Kind, s.Name, s)
	case domain.KindConfigMap:
		m, err := c.client.GetConfigMap(ctx, c.namespace, target.Name)
		if err != nil {
			return Snapshot{}, err
		}
		return snapshotOf(target.Kind, m.Name, m)
	case domain.KindPod:
		p, err := c.client.GetPod(ctx, c.namespace, target.Name)
		if err != nil {
			return Snapshot{}, err
		}
		return snapshotOf(target.Kind, p.Name, p)
	}
	return Snapshot{}, kerr.NewInvalid(fmt.Sprintf("unsupported kind: %s", target.Kind))
}

func (c *cluster) findByLabels(ctx context.Context, target domain.TargetSelector) ([]Snapshot, error) {
	selector := LabelSelector(target.Labels)

	snapshots := []Snapshot{}
	switch target.Kind {
	case domain.KindDeployment:
		depls, err := c.client.FindDeployments(ctx, c.namespace, selector)
		if err != nil {
			return nil, err
		}
		for i := range depls {
			s, err := snapshotOf(target.Kind, depls[i].Name, &depls[i])
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, s)
		}
	case domain.KindService:
		svcs, err := c.client.FindServices(ctx, c.namespace, selector)
		if err != nil {
			return nil, err
		}
		for i := range svcs {
			s, err := snapshotOf(target.Kind, svcs[i].Name, &svcs[i])
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, s)
		}
	case domain.KindConfigMap:
		cms, err := c.client.FindConfigMaps(ctx, c.namespace, selector)
		if err != nil {
			return nil, err
		}
		for i := range cms {
			s, err := snapshotOf(target.Kind, cms[i].Name, &cms[i])
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, s)
		}
	case domain.KindPod:
		pods, err := c.client.FindPods(ctx, c.namespace, selector)
		if err != nil {
			return nil, err
		}
		for i := range pods {
			s, err := snapshotOf(target.Kind, pods[i].Name, &pods[i])
			if err != nil {
				return nil, err
			}
			snapshots = append(snapshots, s)
		}
	default:
		return nil, kerr.NewInvalid(fmt.Sprintf("unsupported kind: %s", target.Kind))
	}
	return snapshots, nil
}

func (c *cluster) Logs(ctx context.Context, target domain.TargetSelector) (string, error) {
	if target.Kind != domain.KindPod {
		return "", kerr.NewInvalid(fmt.Sprintf(
			"logs are read from pods, not %s", target.Kind,
		))
	}

	var pods []kubecore.Pod
	if target.Name != "" {
		p, err := c.client.GetPod(ctx, c.namespace, target.Name)
		if err != nil {
			if kubeerr.IsNotFound(err) {
				return "", nil
			}
			return "", err
		}
		pods = []kubecore.Pod{*p}
	} else {
		found, err := c.client.FindPods(ctx, c.namespace, LabelSelector(target.Labels))
		if err != nil {
			return "", err
		}
		pods = found
	}

	sb := strings.Builder{}
	for _, p := range pods {
		for _, container := range p.Spec.Containers {
			stream, err := c.client.Log(ctx, c.namespace, p.Name, container.Name)
			if err != nil {
				return "", err
			}
			_, err = io.Copy(&sb, stream)
			stream.Close()
			if err != nil {
				return "", err
			}
		}
	}
	return sb.String(), nil
}

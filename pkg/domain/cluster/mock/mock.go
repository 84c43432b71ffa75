package mock

import (
	"context"
	"errors"
	"io"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain/cluster"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
)

// get mocked cluster.Cluster
//
// # returns
//
//   - cluster.Cluster : using *MockClient as base client
//   - *MockClient : mock object.
//     you can fake k8s behaviours or spy its usage.
func NewCluster() (cluster.Cluster, *MockClient) {
	clientset := NewMockClient()

	namespace := "fake-namespace"

	return cluster.AttachCluster(clientset, namespace), clientset
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

type MockClient struct {
	Impl struct {
		GetNamespace    func(ctx context.Context, name string) (*kubecore.Namespace, error)
		CreateNamespace func(ctx context.Context, ns *kubecore.Namespace) (*kubecore.Namespace, error)
		DeleteNamespace func(ctx context.Context, name string) error
		FindNamespaces  func(ctx context.Context, ls cluster.LabelSelector) ([]kubecore.Namespace, error)

		CreateResourceQuota func(ctx context.Context, namespace string, quota *kubecore.ResourceQuota) (*kubecore.ResourceQuota, error)

		GetDeployment    func(ctx context.Context, namespace string, deplname string) (*kubeapps.Deployment, error)
		CreateDeployment func(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
		UpdateDeployment func(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
		DeleteDeployment func(ctx context.Context, namespace string, deplname string) error
		FindDeployments  func(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubeapps.Deployment, error)

		GetService    func(ctx context.Context, namespace string, svcname string) (*kubecore.Service, error)
		CreateService func(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error)
		UpdateService func(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error)
		DeleteService func(ctx context.Context, namespace string, svcname string) error
		FindServices  func(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.Service, error)

		GetConfigMap    func(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error)
		CreateConfigMap func(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
		UpdateConfigMap func(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
		DeleteConfigMap func(ctx context.Context, namespace string, name string) error
		FindConfigMaps  func(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.ConfigMap, error)

		GetPod    func(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
		CreatePod func(ctx context.Context, namespace string, pod *kubecore.Pod) (*kubecore.Pod, error)
		DeletePod func(ctx context.Context, namespace string, name string) error
		FindPods  func(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.Pod, error)

		Log func(ctx context.Context, namespace string, pod string, container string) (io.ReadCloser, error)
	}
	Called struct {
		GetNamespace    uint64
		CreateNamespace uint64
		DeleteNamespace uint64
		FindNamespaces  uint64

		CreateResourceQuota uint64

		GetDeployment    uint64
		CreateDeployment uint64
		UpdateDeployment uint64
		DeleteDeployment uint64
		FindDeployments  uint64

		GetService    uint64
		CreateService uint64
		UpdateService uint64
		DeleteService uint64
		FindServices  uint64

		GetConfigMap    uint64
		CreateConfigMap uint64
		UpdateConfigMap uint64
		DeleteConfigMap uint64
		FindConfigMaps  uint64

		GetPod    uint64
		CreatePod uint64
		DeletePod uint64
		FindPods  uint64

		Log uint64
	}
}

// MockClient implements cluster.K8sClient
var _ cluster.K8sClient = &MockClient{}

func (m *MockClient) GetNamespace(ctx context.Context, name string) (*kubecore.Namespace, error) {
	m.Called.GetNamespace += 1
	if m.Impl.GetNamespace == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetNamespace(ctx, name)
}
func (m *MockClient) CreateNamespace(ctx context.Context, ns *kubecore.Namespace) (*kubecore.Namespace, error) {
	m.Called.CreateNamespace += 1
	if m.Impl.CreateNamespace == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateNamespace(ctx, ns)
}
func (m *MockClient) DeleteNamespace(ctx context.Context, name string) error {
	m.Called.DeleteNamespace += 1
	if m.Impl.DeleteNamespace == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteNamespace(ctx, name)
}
func (m *MockClient) FindNamespaces(ctx context.Context, ls cluster.LabelSelector) ([]kubecore.Namespace, error) {
	m.Called.FindNamespaces += 1
	if m.Impl.FindNamespaces == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindNamespaces(ctx, ls)
}
func (m *MockClient) CreateResourceQuota(ctx context.Context, namespace string, quota *kubecore.ResourceQuota) (*kubecore.ResourceQuota, error) {
	m.Called.CreateResourceQuota += 1
	if m.Impl.CreateResourceQuota == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateResourceQuota(ctx, namespace, quota)
}
func (m *MockClient) GetDeployment(ctx context.Context, namespace string, deplname string) (*kubeapps.Deployment, error) {
	m.Called.GetDeployment += 1
	if m.Impl.GetDeployment == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetDeployment(ctx, namespace, deplname)
}
func (m *MockClient) CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	m.Called.CreateDeployment += 1
	if m.Impl.CreateDeployment == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateDeployment(ctx, namespace, depl)
}
func (m *MockClient) UpdateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	m.Called.UpdateDeployment += 1
	if m.Impl.UpdateDeployment == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.UpdateDeployment(ctx, namespace, depl)
}
func (m *MockClient) DeleteDeployment(ctx context.Context, namespace string, deplname string) error {
	m.Called.DeleteDeployment += 1
	if m.Impl.DeleteDeployment == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteDeployment(ctx, namespace, deplname)
}
func (m *MockClient) FindDeployments(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubeapps.Deployment, error) {
	m.Called.FindDeployments += 1
	if m.Impl.FindDeployments == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindDeployments(ctx, namespace, ls)
}
func (m *MockClient) GetService(ctx context.Context, namespace string, svcname string) (*kubecore.Service, error) {
	m.Called.GetService += 1
	if m.Impl.GetService == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetService(ctx, namespace, svcname)
}
func (m *MockClient) CreateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error) {
	m.Called.CreateService += 1
	if m.Impl.CreateService == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateService(ctx, namespace, svc)
}
func (m *MockClient) UpdateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error) {
	m.Called.UpdateService += 1
	if m.Impl.UpdateService == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.UpdateService(ctx, namespace, svc)
}
func (m *MockClient) DeleteService(ctx context.Context, namespace string, svcname string) error {
	m.Called.DeleteService += 1
	if m.Impl.DeleteService == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteService(ctx, namespace, svcname)
}
func (m *MockClient) FindServices(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.Service, error) {
	m.Called.FindServices += 1
	if m.Impl.FindServices == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindServices(ctx, namespace, ls)
}
func (m *MockClient) GetConfigMap(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error) {
	m.Called.GetConfigMap += 1
	if m.Impl.GetConfigMap == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetConfigMap(ctx, namespace, name)
}
func (m *MockClient) CreateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	m.Called.CreateConfigMap += 1
	if m.Impl.CreateConfigMap == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreateConfigMap(ctx, namespace, cm)
}
func (m *MockClient) UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	m.Called.UpdateConfigMap += 1
	if m.Impl.UpdateConfigMap == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.UpdateConfigMap(ctx, namespace, cm)
}
func (m *MockClient) DeleteConfigMap(ctx context.Context, namespace string, name string) error {
	m.Called.DeleteConfigMap += 1
	if m.Impl.DeleteConfigMap == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeleteConfigMap(ctx, namespace, name)
}
func (m *MockClient) FindConfigMaps(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.ConfigMap, error) {
	m.Called.FindConfigMaps += 1
	if m.Impl.FindConfigMaps == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindConfigMaps(ctx, namespace, ls)
}
func (m *MockClient) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	m.Called.GetPod += 1
	if m.Impl.GetPod == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.GetPod(ctx, namespace, name)
}
func (m *MockClient) CreatePod(ctx context.Context, namespace string, pod *kubecore.Pod) (*kubecore.Pod, error) {
	m.Called.CreatePod += 1
	if m.Impl.CreatePod == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.CreatePod(ctx, namespace, pod)
}
func (m *MockClient) DeletePod(ctx context.Context, namespace string, name string) error {
	m.Called.DeletePod += 1
	if m.Impl.DeletePod == nil {
		return errors.New("[MOCK] not implemented")
	}
	return m.Impl.DeletePod(ctx, namespace, name)
}
func (m *MockClient) FindPods(ctx context.Context, namespace string, ls cluster.LabelSelector) ([]kubecore.Pod, error) {
	m.Called.FindPods += 1
	if m.Impl.FindPods == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.FindPods(ctx, namespace, ls)
}
func (m *MockClient) Log(ctx context.Context, namespace string, pod string, container string) (io.ReadCloser, error) {
	m.Called.Log += 1
	if m.Impl.Log == nil {
		return nil, errors.New("[MOCK] not implemented")
	}
	return m.Impl.Log(ctx, namespace, pod, container)
}

package cluster

import (
	"context"
	"io"

	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeapimeta "k8s.io/apimachinery/pkg/apis/meta/v1"
	k8s "k8s.io/client-go/kubernetes"
)

// subset of k8s.Clientset
type K8sClient interface {
	GetNamespace(ctx context.Context, name string) (*kubecore.Namespace, error)
	CreateNamespace(ctx context.Context, ns *kubecore.Namespace) (*kubecore.Namespace, error)
	DeleteNamespace(ctx context.Context, name string) error
	FindNamespaces(ctx context.Context, labelSelector LabelSelector) ([]kubecore.Namespace, error)

	CreateResourceQuota(ctx context.Context, namespace string, quota *kubecore.ResourceQuota) (*kubecore.ResourceQuota, error)

	GetDeployment(ctx context.Context, namespace string, name string) (*kubeapps.Deployment, error)
	CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
	UpdateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error)
	DeleteDeployment(ctx context.Context, namespace string, name string) error
	FindDeployments(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubeapps.Deployment, error)

	GetService(ctx context.Context, namespace string, name string) (*kubecore.Service, error)
	CreateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error)
	UpdateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error)
	DeleteService(ctx context.Context, namespace string, name string) error
	FindServices(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubecore.Service, error)

	GetConfigMap(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error)
	CreateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
	UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error)
	DeleteConfigMap(ctx context.Context, namespace string, name string) error
	FindConfigMaps(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubecore.ConfigMap, error)

	GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error)
	CreatePod(ctx context.Context, namespace string, pod *kubecore.Pod) (*kubecore.Pod, error)
	DeletePod(ctx context.Context, namespace string, name string) error
	FindPods(ctx context.Context, namespace string, labelSelector LabelSelector) ([]kubecore.Pod, error)

	Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error)
}

// A wrapper for the type k8s.Clientset; because it does not prefer method chain-style invocations of that type.
type k8sClient struct {
	client *k8s.Clientset
}

// type check: k8sClient implements K8sClient
var _ K8sClient = &k8sClient{}

func WrapK8sClient(c *k8s.Clientset) K8sClient {
	return &k8sClient{client: c}
}

func (k *k8sClient) GetNamespace(ctx context.Context, name string) (*kubecore.Namespace, error) {
	return k.client.CoreV1().Namespaces().Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateNamespace(ctx context.Context, ns *kubecore.Namespace) (*kubecore.Namespace, error) {
	return k.client.CoreV1().Namespaces().Create(ctx, ns, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeleteNamespace(ctx context.Context, name string) error {
	return k.client.CoreV1().Namespaces().Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindNamespaces(ctx context.Context, labels LabelSelector) ([]kubecore.Namespace, error) {
	resp, err := k.client.CoreV1().Namespaces().List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) CreateResourceQuota(ctx context.Context, namespace string, quota *kubecore.ResourceQuota) (*kubecore.ResourceQuota, error) {
	return k.client.CoreV1().ResourceQuotas(namespace).Create(ctx, quota, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) GetDeployment(ctx context.Context, namespace string, name string) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Create(ctx, depl, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) UpdateDeployment(ctx context.Context, namespace string, depl *kubeapps.Deployment) (*kubeapps.Deployment, error) {
	return k.client.AppsV1().Deployments(namespace).Update(ctx, depl, kubeapimeta.UpdateOptions{})
}

func (k *k8sClient) DeleteDeployment(ctx context.Context, namespace string, name string) error {
	return k.client.AppsV1().Deployments(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindDeployments(ctx context.Context, namespace string, labels LabelSelector) ([]kubeapps.Deployment, error) {
	resp, err := k.client.AppsV1().Deployments(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) GetService(ctx context.Context, namespace string, name string) (*kubecore.Service, error) {
	return k.client.CoreV1().Services(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error) {
	return k.client.CoreV1().Services(namespace).Create(ctx, svc, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) UpdateService(ctx context.Context, namespace string, svc *kubecore.Service) (*kubecore.Service, error) {
	return k.client.CoreV1().Services(namespace).Update(ctx, svc, kubeapimeta.UpdateOptions{})
}

func (k *k8sClient) DeleteService(ctx context.Context, namespace string, name string) error {
	return k.client.CoreV1().Services(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindServices(ctx context.Context, namespace string, labels LabelSelector) ([]kubecore.Service, error) {
	resp, err := k.client.CoreV1().Services(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) GetConfigMap(ctx context.Context, namespace string, name string) (*kubecore.ConfigMap, error) {
	return k.client.CoreV1().ConfigMaps(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	return k.client.CoreV1().ConfigMaps(namespace).Create(ctx, cm, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) UpdateConfigMap(ctx context.Context, namespace string, cm *kubecore.ConfigMap) (*kubecore.ConfigMap, error) {
	return k.client.CoreV1().ConfigMaps(namespace).Update(ctx, cm, kubeapimeta.UpdateOptions{})
}

func (k *k8sClient) DeleteConfigMap(ctx context.Context, namespace string, name string) error {
	return k.client.CoreV1().ConfigMaps(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindConfigMaps(ctx context.Context, namespace string, labels LabelSelector) ([]kubecore.ConfigMap, error) {
	resp, err := k.client.CoreV1().ConfigMaps(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) GetPod(ctx context.Context, namespace string, name string) (*kubecore.Pod, error) {
	return k.client.CoreV1().Pods(namespace).Get(ctx, name, kubeapimeta.GetOptions{})
}

func (k *k8sClient) CreatePod(ctx context.Context, namespace string, pod *kubecore.Pod) (*kubecore.Pod, error) {
	return k.client.CoreV1().Pods(namespace).Create(ctx, pod, kubeapimeta.CreateOptions{})
}

func (k *k8sClient) DeletePod(ctx context.Context, namespace string, name string) error {
	return k.client.CoreV1().Pods(namespace).Delete(ctx, name, *kubeapimeta.NewDeleteOptions(0))
}

func (k *k8sClient) FindPods(ctx context.Context, namespace string, labels LabelSelector) ([]kubecore.Pod, error) {
	resp, err := k.client.CoreV1().Pods(namespace).List(ctx, kubeapimeta.ListOptions{
		LabelSelector: labels.QueryString(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (k *k8sClient) Log(ctx context.Context, namespace string, podname string, container string) (io.ReadCloser, error) {
	return k.client.
		CoreV1().
		Pods(namespace).
		GetLogs(podname, &kubecore.PodLogOptions{Container: container}).
		Stream(ctx)
}

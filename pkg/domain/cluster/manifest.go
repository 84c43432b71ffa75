package cluster

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/Lelouch-Britannia/KubePlayground/pkg/domain"
	kerr "github.com/Lelouch-Britannia/KubePlayground/pkg/domain/errors"
	kubeapps "k8s.io/api/apps/v1"
	kubecore "k8s.io/api/core/v1"
	kubeyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/kubernetes/scheme"
)

// Resource is a single decoded manifest document.
//
// Exactly one of Deployment, Service, ConfigMap or Pod is non-nil,
// matching Kind.
type Resource struct {
	Kind domain.ResourceKind

	Deployment *kubeapps.Deployment
	Service    *kubecore.Service
	ConfigMap  *kubecore.ConfigMap
	Pod        *kubecore.Pod
}

func (r Resource) Name() string {
	switch r.Kind {
	case domain.KindDeployment:
		return r.Deployment.Name
	case domain.KindService:
		return r.Service.Name
	case domain.KindConfigMap:
		return r.ConfigMap.Name
	case domain.KindPod:
		return r.Pod.Name
	}
	return ""
}

// DecodeManifest parses a multi-document YAML manifest into Resources.
//
// Only Deployment, Service, ConfigMap and Pod are accepted.
// Documents of any other kind, documents without a name and empty
// manifests cause ErrInvalid.
func DecodeManifest(manifest []byte) ([]Resource, error) {
	deserializer := scheme.Codecs.UniversalDeserializer()

	// the reader cuts only at real document separators, so "---"
	// inside a block scalar stays where it is
	documents := kubeyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))

	resources := []Resource{}
	for {
		doc, err := documents.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, kerr.NewInvalidCausedBy("cannot split manifest into documents", err)
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}

		obj, gvk, err := deserializer.Decode(doc, nil, nil)
		if err != nil {
			return nil, kerr.NewInvalidCausedBy("cannot decode manifest document", err)
		}

		r := Resource{}
		switch o := obj.(type) {
		case *kubeapps.Deployment:
			r = Resource{Kind: domain.KindDeployment, Deployment: o}
		case *kubecore.Service:
			r = Resource{Kind: domain.KindService, Service: o}
		case *kubecore.ConfigMap:
			r = Resource{Kind: domain.KindConfigMap, ConfigMap: o}
		case *kubecore.Pod:
			r = Resource{Kind: domain.KindPod, Pod: o}
		default:
			return nil, kerr.NewInvalid(fmt.Sprintf(
				"unsupported kind in manifest: %s", gvk.Kind,
			))
		}
		if r.Name() == "" {
			return nil, kerr.NewInvalid(fmt.Sprintf(
				"%s in manifest has no metadata.name", gvk.Kind,
			))
		}
		resources = append(resources, r)
	}

	if len(resources) == 0 {
		return nil, kerr.NewInvalid("manifest has no documents")
	}
	return resources, nil
}

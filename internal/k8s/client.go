// Package k8s wraps the cluster-facing API surface krar needs behind a
// small interface: production code talks to a real Kubernetes API
// server, tests talk to a fake.
package k8s

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"

	"github.com/slash-mnt/krar/internal/domain"
)

const restartAnnotation = "kubectl.kubernetes.io/restartedAt"

// Client is the cluster-facing contract the discovery, ownership,
// podscan, and rollout packages consume. Every method is safe for
// concurrent use.
type Client interface {
	// ListControllers lists resources of the given kind matching
	// labelSelector. namespace == "" means cluster-wide.
	ListControllers(ctx context.Context, kind, namespace, labelSelector string) ([]domain.ControllerRef, error)
	// ListPods lists all pods in namespace. namespace == "" means all
	// namespaces.
	ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error)
	// GetReplicaSet fetches a single ReplicaSet, used by the ownership
	// resolver's one-hop lookup.
	GetReplicaSet(ctx context.Context, namespace, name string) (*appsv1.ReplicaSet, error)
	// PatchRestart bumps the pod template's restart annotation to
	// trigger a rollout restart.
	PatchRestart(ctx context.Context, ref domain.ControllerRef, timestamp time.Time) error
	// CreateEvent records an audit Event bound to ref.
	CreateEvent(ctx context.Context, ref domain.ControllerRef, reason, message string) error
}

// clusterClient is the real Client, backed by client-go's typed,
// dynamic, and discovery clients.
type clusterClient struct {
	typed  kubernetes.Interface
	dyn    dynamic.Interface
	mapper meta.RESTMapper
}

// NewClient builds a Client from a REST config.
func NewClient(restConfig *rest.Config) (Client, error) {
	typed, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "building typed client")
	}
	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "building dynamic client")
	}
	disco, err := discovery.NewDiscoveryClientForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "building discovery client")
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(disco))

	return &clusterClient{typed: typed, dyn: dyn, mapper: mapper}, nil
}

// mappingForKind resolves a bare Kind ("Deployment", "DaemonSet", a
// CRD Kind, ...) to its REST mapping (GVR + preferred GVK), lower-
// casing implicitly via the mapper's discovery data rather than naive
// string pluralization.
func (c *clusterClient) mappingForKind(kind string) (*meta.RESTMapping, error) {
	gk := schema.GroupKind{Kind: kind}
	if gvk, err := c.mapper.KindFor(schema.GroupVersionResource{Resource: kind}); err == nil {
		gk = gvk.GroupKind()
	}
	mapping, err := c.mapper.RESTMapping(gk)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving kind %q", kind)
	}
	return mapping, nil
}

// resourceGVR resolves a resource-kinds entry from RunConfig. It may
// already be a plural resource name ("deployments") or a bare Kind
// ("Deployment"); both resolve through the same mapper.
func (c *clusterClient) resourceGVR(kindOrResource string) (schema.GroupVersionResource, error) {
	if mapping, err := c.mapper.RESTMapping(schema.GroupKind{Kind: kindOrResource}); err == nil {
		return mapping.Resource, nil
	}
	gvr, err := c.mapper.ResourceFor(schema.GroupVersionResource{Resource: kindOrResource})
	if err != nil {
		return schema.GroupVersionResource{}, errors.Wrapf(err, "resolving resource %q", kindOrResource)
	}
	return gvr, nil
}

func (c *clusterClient) ListControllers(ctx context.Context, kind, namespace, labelSelector string) ([]domain.ControllerRef, error) {
	gvr, err := c.resourceGVR(kind)
	if err != nil {
		return nil, err
	}

	var ri dynamic.ResourceInterface = c.dyn.Resource(gvr)
	if namespace != "" {
		ri = c.dyn.Resource(gvr).Namespace(namespace)
	}

	list, err := ri.List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s with selector %q", kind, labelSelector)
	}

	refs := make([]domain.ControllerRef, 0, len(list.Items))
	for _, item := range list.Items {
		refs = append(refs, domain.ControllerRef{
			Namespace: item.GetNamespace(),
			Kind:      item.GetKind(),
			Name:      item.GetName(),
		})
	}
	return refs, nil
}

func (c *clusterClient) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	list, err := c.typed.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "listing pods in %q", namespace)
	}
	return list.Items, nil
}

func (c *clusterClient) GetReplicaSet(ctx context.Context, namespace, name string) (*appsv1.ReplicaSet, error) {
	rs, err := c.typed.AppsV1().ReplicaSets(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "getting replicaset %s/%s", namespace, name)
	}
	return rs, nil
}

func (c *clusterClient) PatchRestart(ctx context.Context, ref domain.ControllerRef, timestamp time.Time) error {
	mapping, err := c.mappingForKind(ref.Kind)
	if err != nil {
		return err
	}

	patch := []byte(fmt.Sprintf(
		`{"spec":{"template":{"metadata":{"annotations":{%q:%q}}}}}`,
		restartAnnotation, timestamp.UTC().Format(time.RFC3339),
	))

	_, err = c.dyn.Resource(mapping.Resource).Namespace(ref.Namespace).Patch(
		ctx, ref.Name, types.MergePatchType, patch, metav1.PatchOptions{},
	)
	if err != nil {
		return errors.Wrapf(err, "patching restart annotation on %s", ref)
	}
	return nil
}

func (c *clusterClient) CreateEvent(ctx context.Context, ref domain.ControllerRef, reason, message string) error {
	apiVersion := ""
	if mapping, err := c.mappingForKind(ref.Kind); err == nil {
		apiVersion = mapping.GroupVersionKind.GroupVersion().String()
	}

	now := metav1.Now()
	event := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			GenerateName: "krar-",
			Namespace:    ref.Namespace,
		},
		InvolvedObject: corev1.ObjectReference{
			Kind:       ref.Kind,
			APIVersion: apiVersion,
			Namespace:  ref.Namespace,
			Name:       ref.Name,
		},
		Reason:         reason,
		Message:        message,
		Type:           corev1.EventTypeNormal,
		Source:         corev1.EventSource{Component: "krar"},
		FirstTimestamp: now,
		LastTimestamp:  now,
		Count:          1,
	}

	_, err := c.typed.CoreV1().Events(ref.Namespace).Create(ctx, event, metav1.CreateOptions{})
	if err != nil {
		return errors.Wrapf(err, "creating event for %s", ref)
	}
	return nil
}

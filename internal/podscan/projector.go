// Package podscan implements Pod Projection: for each
// target namespace, enumerate pods and emit one PodSample per
// container, with its owner resolved through the ownership resolver
// and its pull policy normalized to the effective value.
package podscan

import (
	"context"
	"fmt"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"golang.org/x/sync/errgroup"

	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
	"github.com/slash-mnt/krar/internal/ownership"
)

// maxConcurrentNamespaceListings bounds the per-namespace pod-listing
// fan-out described in .
const maxConcurrentNamespaceListings = 4

// Project lists pods across namespaces, resolves each container's
// owner, and returns every PodSample whose owner is in targets and
// whose effective pull policy is Always, applied here rather than by
// the caller so no consumer can accidentally see an ineligible sample.
func Project(ctx context.Context, cli k8s.Client, resolver *ownership.Resolver, namespaces []string, targets domain.ControllerSet) ([]domain.PodSample, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentNamespaceListings)

	var mu sync.Mutex
	var samples []domain.PodSample

	for _, ns := range namespaces {
		ns := ns
		g.Go(func() error {
			pods, err := cli.ListPods(gctx, ns)
			if err != nil {
				return fmt.Errorf("listing pods in %q: %w", ns, err)
			}

			local, err := projectPods(gctx, resolver, pods, targets)
			if err != nil {
				return err
			}

			mu.Lock()
			samples = append(samples, local...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return samples, nil
}

// projectPods emits one PodSample per (pod, container status) pair
// whose owner resolves into targets.
func projectPods(ctx context.Context, resolver *ownership.Resolver, pods []corev1.Pod, targets domain.ControllerSet) ([]domain.PodSample, error) {
	var out []domain.PodSample

	for i := range pods {
		pod := &pods[i]

		owner := controllerOwner(pod.OwnerReferences)
		if owner == nil {
			continue
		}

		resolved, err := resolver.Resolve(ctx, pod.Namespace, owner.Kind, owner.Name)
		if err != nil {
			return nil, fmt.Errorf("resolving owner of pod %s/%s: %w", pod.Namespace, pod.Name, err)
		}

		if _, ok := targets[resolved]; !ok {
			continue
		}

		specPolicy := pullPolicyByContainer(pod)

		for _, cs := range pod.Status.ContainerStatuses {
			sample := domain.PodSample{
				Namespace:  pod.Namespace,
				Owner:      resolved,
				Container:  cs.Name,
				Image:      cs.Image,
				ImageID:    cs.ImageID,
				PullPolicy: specPolicy[cs.Name],
			}
			if sample.Eligible() {
				out = append(out, sample)
			}
		}
	}

	return out, nil
}

// pullPolicyByContainer maps container name to its declared pull
// policy, looked up from the pod spec's containers.
func pullPolicyByContainer(pod *corev1.Pod) map[string]domain.PullPolicy {
	m := make(map[string]domain.PullPolicy, len(pod.Spec.Containers))
	for _, c := range pod.Spec.Containers {
		m[c.Name] = domain.PullPolicy(c.ImagePullPolicy)
	}
	return m
}

func controllerOwner(refs []metav1.OwnerReference) *metav1.OwnerReference {
	for i := range refs {
		if refs[i].Controller != nil && *refs[i].Controller {
			return &refs[i]
		}
	}
	return nil
}

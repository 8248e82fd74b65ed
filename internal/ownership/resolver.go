// Package ownership walks a pod's controller-owner reference back to
// the canonical top-level controller a human would name in a manifest,
// collapsing the one intermediate hop (ReplicaSet over Deployment, and
// any analogous kind registered in domain.IsIntermediate). Grounded in
// the ReplicaSet-then-Deployment walk in the ecosystem's rollout helper
// (internal/rollout's controllerFor-style owner-reference chase) and
// generalized behind the krar cluster client instead of
// controller-runtime's typed Get.
package ownership

import (
	"context"
	"fmt"
	"sync"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
)

type cacheKey struct {
	namespace string
	name      string
}

// Resolver memoizes intermediate-controller lookups across a run. The
// cache is the only mutable shared state in the whole pipeline, protected by a plain mutex.
type Resolver struct {
	client k8s.Client

	mu    sync.Mutex
	cache map[cacheKey]domain.ControllerRef
}

// New returns a Resolver backed by client.
func New(client k8s.Client) *Resolver {
	return &Resolver{client: client, cache: map[cacheKey]domain.ControllerRef{}}
}

// Resolve takes the namespace and a pod's controlling owner reference
// and returns the canonical ControllerRef. If ownerKind is not a known
// intermediate kind, or has no controller owner of its own, the input
// is returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, namespace, ownerKind, ownerName string) (domain.ControllerRef, error) {
	ref := domain.ControllerRef{Namespace: namespace, Kind: ownerKind, Name: ownerName}
	if !domain.IsIntermediate(ownerKind) {
		return ref, nil
	}

	key := cacheKey{namespace: namespace, name: ownerName}

	r.mu.Lock()
	if cached, ok := r.cache[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	resolved, err := r.resolveIntermediate(ctx, namespace, ownerName, ref)
	if err != nil {
		return domain.ControllerRef{}, err
	}

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()

	return resolved, nil
}

// resolveIntermediate fetches the ReplicaSet (or analogous
// intermediate) and substitutes its own controller owner, per the
// "Tie-break" rule: use the first owner reference marked Controller;
// if none exists, leave the input unchanged.
func (r *Resolver) resolveIntermediate(ctx context.Context, namespace, name string, fallback domain.ControllerRef) (domain.ControllerRef, error) {
	rs, err := r.client.GetReplicaSet(ctx, namespace, name)
	if err != nil {
		// Missing intermediate owner: leave the input unchanged.
		return fallback, nil
	}

	owner := controllerOwner(rs.OwnerReferences)
	if owner == nil {
		return fallback, nil
	}

	return domain.ControllerRef{Namespace: namespace, Kind: owner.Kind, Name: owner.Name}, nil
}

func controllerOwner(refs []metav1.OwnerReference) *metav1.OwnerReference {
	for i := range refs {
		if refs[i].Controller != nil && *refs[i].Controller {
			return &refs[i]
		}
	}
	return nil
}

// Key renders a human-readable cache key, useful in log lines and
// tests; not used for cache lookups (cacheKey is unexported).
func Key(namespace, name string) string {
	return fmt.Sprintf("%s/%s", namespace, name)
}

package k8s

import (
	"context"
	"fmt"
	"sync"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"

	"github.com/slash-mnt/krar/internal/domain"
)

// FakeClient is an in-memory Client used by every package's unit
// tests, grounded in Sonobuoy's practice of hand-written fakes
// rather than a mocking framework (see its pkg/client/*_test.go).
type FakeClient struct {
	mu sync.Mutex

	Controllers map[string][]domain.ControllerRef // keyed by kind
	Pods        map[string][]corev1.Pod            // keyed by namespace
	ReplicaSets map[string]*appsv1.ReplicaSet       // keyed by "namespace/name"

	Patched []domain.ControllerRef
	Events  []FakeEvent

	// ListErr, PatchErr, and EventErr let tests force specific
	// failure paths.
	ListErr  error
	PatchErr error
	EventErr error
}

// FakeEvent records one CreateEvent call for assertions.
type FakeEvent struct {
	Ref     domain.ControllerRef
	Reason  string
	Message string
}

// NewFakeClient returns an empty FakeClient ready for population.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		Controllers: map[string][]domain.ControllerRef{},
		Pods:        map[string][]corev1.Pod{},
		ReplicaSets: map[string]*appsv1.ReplicaSet{},
	}
}

func (f *FakeClient) ListControllers(_ context.Context, kind, namespace, _ string) ([]domain.ControllerRef, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []domain.ControllerRef
	for _, ref := range f.Controllers[kind] {
		if namespace == "" || ref.Namespace == namespace {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (f *FakeClient) ListPods(_ context.Context, namespace string) ([]corev1.Pod, error) {
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	if namespace != "" {
		return f.Pods[namespace], nil
	}
	var out []corev1.Pod
	for _, pods := range f.Pods {
		out = append(out, pods...)
	}
	return out, nil
}

func (f *FakeClient) GetReplicaSet(_ context.Context, namespace, name string) (*appsv1.ReplicaSet, error) {
	rs, ok := f.ReplicaSets[fmt.Sprintf("%s/%s", namespace, name)]
	if !ok {
		return nil, fmt.Errorf("replicaset %s/%s not found", namespace, name)
	}
	return rs, nil
}

func (f *FakeClient) PatchRestart(_ context.Context, ref domain.ControllerRef, _ time.Time) error {
	if f.PatchErr != nil {
		return f.PatchErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Patched = append(f.Patched, ref)
	return nil
}

func (f *FakeClient) CreateEvent(_ context.Context, ref domain.ControllerRef, reason, message string) error {
	if f.EventErr != nil {
		return f.EventErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = append(f.Events, FakeEvent{Ref: ref, Reason: reason, Message: message})
	return nil
}

var _ Client = (*FakeClient)(nil)

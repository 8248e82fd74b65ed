package ownership

import (
	"context"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
)

func truePtr() *bool { b := true; return &b }

func TestResolveNonIntermediatePassesThrough(t *testing.T) {
	r := New(k8s.NewFakeClient())
	ref, err := r.Resolve(context.Background(), "ns", "Deployment", "api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "api"}
	if ref != want {
		t.Errorf("Resolve() = %+v, want %+v", ref, want)
	}
}

func TestResolveCollapsesReplicaSet(t *testing.T) {
	fc := k8s.NewFakeClient()
	fc.ReplicaSets["ns/api-abc123"] = &appsv1.ReplicaSet{
		OwnerReferences: []metav1.OwnerReference{
			{Kind: "Deployment", Name: "api", Controller: truePtr()},
		},
	}

	r := New(fc)
	ref, err := r.Resolve(context.Background(), "ns", "ReplicaSet", "api-abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "api"}
	if ref != want {
		t.Errorf("Resolve() = %+v, want %+v", ref, want)
	}
}

func TestResolveMissingReplicaSetFallsBack(t *testing.T) {
	r := New(k8s.NewFakeClient())
	ref, err := r.Resolve(context.Background(), "ns", "ReplicaSet", "gone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := domain.ControllerRef{Namespace: "ns", Kind: "ReplicaSet", Name: "gone"}
	if ref != want {
		t.Errorf("Resolve() = %+v, want %+v (unchanged fallback)", ref, want)
	}
}

func TestResolveCachesResult(t *testing.T) {
	fc := k8s.NewFakeClient()
	fc.ReplicaSets["ns/api-abc123"] = &appsv1.ReplicaSet{
		OwnerReferences: []metav1.OwnerReference{
			{Kind: "Deployment", Name: "api", Controller: truePtr()},
		},
	}

	r := New(fc)
	ctx := context.Background()
	if _, err := r.Resolve(ctx, "ns", "ReplicaSet", "api-abc123"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	delete(fc.ReplicaSets, "ns/api-abc123")

	ref, err := r.Resolve(ctx, "ns", "ReplicaSet", "api-abc123")
	if err != nil {
		t.Fatalf("unexpected error on cached lookup: %v", err)
	}
	want := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "api"}
	if ref != want {
		t.Errorf("cached Resolve() = %+v, want %+v", ref, want)
	}
}

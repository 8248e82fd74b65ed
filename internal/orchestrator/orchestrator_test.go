package orchestrator

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/slash-mnt/krar/internal/auth"
	"github.com/slash-mnt/krar/internal/config"
	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
	"github.com/slash-mnt/krar/internal/registry"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func truePtr() *bool { b := true; return &b }

type fakeRegistryClient struct {
	digests map[string]string
}

func (f *fakeRegistryClient) Digest(_ context.Context, ref string, _ auth.RegistryAuth) (string, error) {
	return f.digests[ref], nil
}

var _ registry.Client = (*fakeRegistryClient)(nil)

func TestRunRolloutModeRestartsDiscoveredTargets(t *testing.T) {
	fc := k8s.NewFakeClient()
	target := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "api"}
	fc.Controllers["Deployment"] = []domain.ControllerRef{target}

	cfg := &config.RunConfig{
		Mode:          domain.ModeRollout,
		ResourceKinds: []string{"Deployment"},
		LabelDomain:   "app.kubernetes.io",
		LabelName:     "name",
		LabelValue:    "api",
		NamespacesAll: true,
	}

	err := Run(context.Background(), cfg, Deps{Cluster: fc}, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.Patched) != 1 || fc.Patched[0] != target {
		t.Errorf("expected target to be patched, got %+v", fc.Patched)
	}
}

func TestRunReturnsNilWhenNothingDiscovered(t *testing.T) {
	fc := k8s.NewFakeClient()
	cfg := &config.RunConfig{
		Mode:          domain.ModeRollout,
		ResourceKinds: []string{"Deployment"},
		LabelDomain:   "app.kubernetes.io",
		LabelName:     "name",
		LabelValue:    "api",
		NamespacesAll: true,
	}

	if err := Run(context.Background(), cfg, Deps{Cluster: fc}, testLogger()); err != nil {
		t.Fatalf("expected nil for an empty target set, got %v", err)
	}
	if len(fc.Patched) != 0 {
		t.Errorf("expected nothing patched, got %+v", fc.Patched)
	}
}

func TestRunRequiresClusterClient(t *testing.T) {
	cfg := &config.RunConfig{Mode: domain.ModeRollout, ResourceKinds: []string{"Deployment"}, NamespacesAll: true}

	err := Run(context.Background(), cfg, Deps{}, testLogger())
	if err == nil {
		t.Fatal("expected a capability error for a missing cluster client")
	}
	var capErr *CapabilityError
	if !asCapabilityError(err, &capErr) {
		t.Errorf("expected *CapabilityError, got %T", err)
	}
}

func TestRunSmartModeRequiresRegistryClient(t *testing.T) {
	fc := k8s.NewFakeClient()
	fc.Controllers["Deployment"] = []domain.ControllerRef{{Namespace: "ns", Kind: "Deployment", Name: "api"}}

	cfg := &config.RunConfig{
		Mode:          domain.ModeSmart,
		ResourceKinds: []string{"Deployment"},
		LabelDomain:   "app.kubernetes.io",
		LabelName:     "name",
		LabelValue:    "api",
		NamespacesAll: true,
	}

	err := Run(context.Background(), cfg, Deps{Cluster: fc}, testLogger())
	if err == nil {
		t.Fatal("expected a capability error for a missing registry client in smart mode")
	}
}

func podWithDrift(ns, name, owner, image, localDigest string) corev1.Pod {
	return corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Namespace: ns,
			Name:      name,
			OwnerReferences: []metav1.OwnerReference{
				{Kind: "Deployment", Name: owner, Controller: truePtr()},
			},
		},
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{{Name: "app", ImagePullPolicy: corev1.PullAlways}},
		},
		Status: corev1.PodStatus{
			ContainerStatuses: []corev1.ContainerStatus{
				{Name: "app", Image: image, ImageID: "repo@sha256:" + localDigest},
			},
		},
	}
}

func TestRunSmartModeRestartsOnlyDriftedControllers(t *testing.T) {
	fc := k8s.NewFakeClient()
	drifted := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "api"}
	stable := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "stable"}
	fc.Controllers["Deployment"] = []domain.ControllerRef{drifted, stable}
	fc.Pods["ns"] = []corev1.Pod{
		podWithDrift("ns", "api-1", "api", "img:v1", "local1"),
		podWithDrift("ns", "stable-1", "stable", "img:v2", "local2"),
	}

	reg := &fakeRegistryClient{digests: map[string]string{
		"img:v1": "sha256:remote1", // differs from local1: drift
		"img:v2": "sha256:local2",  // matches: no drift
	}}

	cfg := &config.RunConfig{
		Mode:          domain.ModeSmart,
		ResourceKinds: []string{"Deployment"},
		LabelDomain:   "app.kubernetes.io",
		LabelName:     "name",
		LabelValue:    "api",
		NamespacesAll: true,
		SmartRestart:  true,
	}

	if err := Run(context.Background(), cfg, Deps{Cluster: fc, Registry: reg}, testLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fc.Patched) != 1 || fc.Patched[0] != drifted {
		t.Errorf("expected only the drifted controller to be patched, got %+v", fc.Patched)
	}
}

func TestRunSmartModeWithoutSmartRestartOnlyReports(t *testing.T) {
	fc := k8s.NewFakeClient()
	drifted := domain.ControllerRef{Namespace: "ns", Kind: "Deployment", Name: "api"}
	fc.Controllers["Deployment"] = []domain.ControllerRef{drifted}
	fc.Pods["ns"] = []corev1.Pod{podWithDrift("ns", "api-1", "api", "img:v1", "local1")}

	reg := &fakeRegistryClient{digests: map[string]string{"img:v1": "sha256:remote1"}}

	cfg := &config.RunConfig{
		Mode:          domain.ModeSmart,
		ResourceKinds: []string{"Deployment"},
		LabelDomain:   "app.kubernetes.io",
		LabelName:     "name",
		LabelValue:    "api",
		NamespacesAll: true,
		SmartRestart:  false,
	}

	if err := Run(context.Background(), cfg, Deps{Cluster: fc, Registry: reg}, testLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.Patched) != 0 {
		t.Errorf("expected no patches without --smart-restart, got %+v", fc.Patched)
	}
}

func TestRunSmartModeProjectsExplicitTargetOutsideNamespaceScope(t *testing.T) {
	fc := k8s.NewFakeClient()
	drifted := domain.ControllerRef{Namespace: "other-ns", Kind: "Deployment", Name: "api"}
	fc.Pods["other-ns"] = []corev1.Pod{podWithDrift("other-ns", "api-1", "api", "img:v1", "local1")}

	reg := &fakeRegistryClient{digests: map[string]string{"img:v1": "sha256:remote1"}}

	cfg := &config.RunConfig{
		Mode:            domain.ModeSmart,
		ExplicitTargets: []string{drifted.String()},
		Namespaces:      []string{"ns"},
		SmartRestart:    true,
	}

	if err := Run(context.Background(), cfg, Deps{Cluster: fc, Registry: reg}, testLogger()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fc.Patched) != 1 || fc.Patched[0] != drifted {
		t.Errorf("expected explicit out-of-scope target to be projected and patched, got %+v", fc.Patched)
	}
}

func asCapabilityError(err error, target **CapabilityError) bool {
	ce, ok := err.(*CapabilityError)
	if !ok {
		return false
	}
	*target = ce
	return true
}

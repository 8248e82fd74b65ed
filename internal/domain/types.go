// Package domain holds the value types that flow through the krar
// pipeline: controller references, pod samples, digest comparisons, and
// the small closed enumerations (mode, pull policy, controller kind)
// that replace this codebase's string-typed flags with exhaustively
// switched values.
package domain

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
)

// Mode selects which half of the pipeline the orchestrator runs.
type Mode string

const (
	ModeRollout Mode = "rollout"
	ModeSmart   Mode = "smart"
)

// Valid reports whether m is one of the two modes krar understands.
func (m Mode) Valid() bool {
	switch m {
	case ModeRollout, ModeSmart:
		return true
	default:
		return false
	}
}

// PullPolicy mirrors corev1.PullPolicy but adds the "effective" default
// rule: empty/null is treated as Always.
type PullPolicy corev1.PullPolicy

// Effective applies the default rule: empty or unset is Always.
func (p PullPolicy) Effective() PullPolicy {
	if p == "" {
		return PullPolicy(corev1.PullAlways)
	}
	return p
}

// EligibleForDrift reports whether a container with this effective pull
// policy may be drift-checked and restarted. Only Always guarantees a
// fresh pull on restart.
func (p PullPolicy) EligibleForDrift() bool {
	return p.Effective() == PullPolicy(corev1.PullAlways)
}

// ControllerKind enumerates the controller kinds krar's ownership
// resolver and target discoverer reason about. The set is intentionally
// small and table-driven (see intermediateOwners) so new one-hop
// indirections are additions to the table, not to the algorithm.
type ControllerKind string

const (
	KindDeployment  ControllerKind = "Deployment"
	KindStatefulSet ControllerKind = "StatefulSet"
	KindDaemonSet   ControllerKind = "DaemonSet"
	KindReplicaSet  ControllerKind = "ReplicaSet"
)

// intermediateOwners is the set of intermediate controller kinds whose
// own controller owner is what a human would name in a manifest. Only
// one hop is collapsed.
var intermediateOwners = map[ControllerKind]struct{}{
	KindReplicaSet: {},
}

// IsIntermediate reports whether kind is a known one-hop indirection
// that the ownership resolver must walk through.
func IsIntermediate(kind string) bool {
	_, ok := intermediateOwners[ControllerKind(kind)]
	return ok
}

// ControllerRef identifies a top-level workload controller. It is the
// unit of identity for target sets, ownership resolution, and rollout.
type ControllerRef struct {
	Namespace string
	Kind      string
	Name      string
}

// Empty reports whether any required field is unset.
func (c ControllerRef) Empty() bool {
	return c.Namespace == "" || c.Kind == "" || c.Name == ""
}

func (c ControllerRef) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Namespace, c.Kind, c.Name)
}

// ParseControllerRef parses the explicit-target wire format
// "namespace/Kind/name". Malformed input is reported via the returned
// error; callers are expected to warn and skip rather than abort.
func ParseControllerRef(s string) (ControllerRef, error) {
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return ControllerRef{}, fmt.Errorf("malformed target %q: want namespace/Kind/name", s)
	}
	ref := ControllerRef{Namespace: strings.TrimSpace(parts[0]), Kind: strings.TrimSpace(parts[1]), Name: strings.TrimSpace(parts[2])}
	if ref.Empty() {
		return ControllerRef{}, fmt.Errorf("malformed target %q: empty namespace, kind, or name", s)
	}
	return ref, nil
}

// ControllerSet is a deduplicated set of ControllerRef, keyed by value.
type ControllerSet map[ControllerRef]struct{}

// NewControllerSet returns an empty set.
func NewControllerSet() ControllerSet {
	return make(ControllerSet)
}

// Add inserts ref into the set.
func (s ControllerSet) Add(ref ControllerRef) {
	s[ref] = struct{}{}
}

// Union merges other into s in place.
func (s ControllerSet) Union(other ControllerSet) {
	for ref := range other {
		s.Add(ref)
	}
}

// Slice returns the set's members in no particular order.
func (s ControllerSet) Slice() []ControllerRef {
	out := make([]ControllerRef, 0, len(s))
	for ref := range s {
		out = append(out, ref)
	}
	return out
}

// PodSample is one container's observation, emitted during pod
// projection.
type PodSample struct {
	Namespace   string
	Owner       ControllerRef
	Container   string
	Image       string
	ImageID     string
	PullPolicy  PullPolicy
}

// Eligible reports whether the sample should reach the drift checker:
// its owner must be set (namespace, kind, and name all non-empty) and
// its effective pull policy Always. Target-set membership is checked by
// the caller.
func (p PodSample) Eligible() bool {
	return !p.Owner.Empty() && p.PullPolicy.EligibleForDrift()
}

// DigestPair records the local and registry-side digest for one image
// reference, and whether they disagree.
type DigestPair struct {
	Image  string
	Local  string
	Remote string
}

// Drifted reports drift: both digests non-empty and unequal.
func (d DigestPair) Drifted() bool {
	return d.Local != "" && d.Remote != "" && d.Local != d.Remote
}

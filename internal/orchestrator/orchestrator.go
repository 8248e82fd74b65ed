// Package orchestrator implements the run state machine: Start ->
// Configure -> Discover -> (Rollout | Smart) -> Done. This is the
// single entry point cmd/krar/app's RunE calls.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/slash-mnt/krar/internal/auth"
	"github.com/slash-mnt/krar/internal/config"
	"github.com/slash-mnt/krar/internal/discovery"
	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
	"github.com/slash-mnt/krar/internal/ownership"
	"github.com/slash-mnt/krar/internal/podscan"
	"github.com/slash-mnt/krar/internal/registry"
	"github.com/slash-mnt/krar/internal/rollout"
)

// CapabilityError marks a missing prerequisite (no cluster or registry
// client). Fatal, mapped to a distinct non-zero exit code.
type CapabilityError struct {
	cause error
}

func (e *CapabilityError) Error() string { return "missing capability: " + e.cause.Error() }
func (e *CapabilityError) Unwrap() error  { return e.cause }

func newCapabilityError(format string, args ...interface{}) *CapabilityError {
	return &CapabilityError{cause: fmt.Errorf(format, args...)}
}

// NewCapabilityErrorf lets the CLI layer report a missing prerequisite
// (e.g. an unloadable kubeconfig) through the same typed error main.go
// maps to an exit code, without exporting the unexported constructor.
func NewCapabilityErrorf(format string, args ...interface{}) *CapabilityError {
	return newCapabilityError(format, args...)
}

// Deps bundles the external collaborators the orchestrator needs: a
// cluster client and a registry client.
type Deps struct {
	Cluster  k8s.Client
	Registry registry.Client
}

// Run executes one full krar pipeline run for cfg, returning nil on
// success (including every "nothing to do" case),
// a *config.ConfigError / *CapabilityError for fatal conditions, or a
// wrapped unexpected error.
func Run(ctx context.Context, cfg *config.RunConfig, deps Deps, log logrus.FieldLogger) error {
	log.WithFields(logrus.Fields{"mode": cfg.Mode, "dry_run": cfg.DryRun}).Info("starting run")

	if deps.Cluster == nil {
		return newCapabilityError("no cluster client configured")
	}
	if cfg.Mode == domain.ModeSmart && deps.Registry == nil {
		return newCapabilityError("smart mode requires a registry client")
	}

	targets, err := discovery.Discover(ctx, deps.Cluster, cfg, log)
	if err != nil {
		return fmt.Errorf("discovering targets: %w", err)
	}
	log.WithField("count", len(targets)).Info("discovered targets")

	if len(targets) == 0 {
		log.Info("nothing to do: no targets discovered")
		return nil
	}

	switch cfg.Mode {
	case domain.ModeRollout:
		return runRollout(ctx, cfg, deps, targets, log)
	case domain.ModeSmart:
		return runSmart(ctx, cfg, deps, targets, log)
	default:
		return newCapabilityError("unsupported mode %q", cfg.Mode)
	}
}

// runRollout implements the rollout-mode branch: the full
// target set is handed directly to the executor.
func runRollout(ctx context.Context, cfg *config.RunConfig, deps Deps, targets domain.ControllerSet, log logrus.FieldLogger) error {
	executor := rollout.New(deps.Cluster, log)
	results := executor.Run(ctx, targets.Slice(), cfg.Mode, cfg.SmartRestart, cfg.DryRun)
	log.WithField("restarted", countPatched(results)).Info("rollout complete")
	return nil
}

// runSmart implements the smart-mode branch and its
// smart-restart/dry-run behavior matrix.
func runSmart(ctx context.Context, cfg *config.RunConfig, deps Deps, targets domain.ControllerSet, log logrus.FieldLogger) error {
	resolver := ownership.New(deps.Cluster)

	// Project over every namespace a discovered target actually lives
	// in, not just --namespaces: an explicit target can legally sit
	// outside the configured namespace scope, and it must still be
	// reachable for pod projection and drift checking.
	namespaces := targetNamespaces(targets)
	if cfg.NamespacesAll {
		namespaces = []string{""}
	}

	samples, err := podscan.Project(ctx, deps.Cluster, resolver, namespaces, targets)
	if err != nil {
		return fmt.Errorf("projecting pods: %w", err)
	}
	log.WithField("eligible_samples", len(samples)).Info("projected eligible pods")

	if len(samples) == 0 {
		log.Info("nothing to do: no eligible pods found")
		return nil
	}

	regAuth := auth.Select(cfg)
	checker := registry.NewDriftChecker(deps.Registry, regAuth, log)
	digests, err := checker.Check(ctx, samples)
	if err != nil {
		return fmt.Errorf("checking drift: %w", err)
	}

	candidates := registry.Drifted(samples, digests)
	log.WithField("drifted_controllers", len(candidates)).Info("drift check complete")

	if len(candidates) == 0 {
		log.Info("nothing to do: no drift detected")
		return nil
	}

	if !cfg.SmartRestart {
		for _, ref := range candidates.Slice() {
			log.WithField("controller", ref.String()).Info("drift detected, smart-restart disabled: reporting only")
		}
		return nil
	}

	executor := rollout.New(deps.Cluster, log)
	results := executor.Run(ctx, candidates.Slice(), cfg.Mode, cfg.SmartRestart, cfg.DryRun)
	log.WithField("restarted", countPatched(results)).Info("smart restart complete")
	return nil
}

// targetNamespaces returns the deduplicated set of namespaces the
// members of targets live in.
func targetNamespaces(targets domain.ControllerSet) []string {
	seen := make(map[string]struct{}, len(targets))
	var out []string
	for _, ref := range targets.Slice() {
		if _, ok := seen[ref.Namespace]; ok {
			continue
		}
		seen[ref.Namespace] = struct{}{}
		out = append(out, ref.Namespace)
	}
	return out
}

func countPatched(results []rollout.Result) int {
	n := 0
	for _, r := range results {
		if r.Patched {
			n++
		}
	}
	return n
}

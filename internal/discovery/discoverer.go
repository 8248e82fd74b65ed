// Package discovery implements the Target Discoverer: the
// union of label-selected controllers and explicitly-listed
// references, deduplicated into a ControllerSet.
package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/slash-mnt/krar/internal/config"
	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
)

// maxConcurrentKindListings bounds the per-kind label-selected listing
// fan-out to a small, fixed concurrency rather than a configurable one.
const maxConcurrentKindListings = 4

// Discover runs the discovery algorithm. It never returns an error
// for "nothing found" — an empty set is success.
func Discover(ctx context.Context, cli k8s.Client, cfg *config.RunConfig, log logrus.FieldLogger) (domain.ControllerSet, error) {
	set := domain.NewControllerSet()

	if err := discoverByLabel(ctx, cli, cfg, log, set); err != nil {
		return nil, err
	}

	discoverExplicit(cfg, log, set)

	return set, nil
}

// discoverByLabel implements algorithm step 1. Label discovery runs
// only when the label triple is complete and at least one resource
// kind is configured; otherwise it is skipped, with a warning (a
// discovery warning, not fatal) logged only when no explicit targets
// are configured either.
func discoverByLabel(ctx context.Context, cli k8s.Client, cfg *config.RunConfig, log logrus.FieldLogger, set domain.ControllerSet) error {
	selector := cfg.LabelSelector()
	if selector == "" || len(cfg.ResourceKinds) == 0 {
		if len(cfg.ExplicitTargets) == 0 {
			log.Warn("label discovery disabled: incomplete label triple and no explicit targets configured")
		}
		return nil
	}

	namespaces := namespaceScope(cfg)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentKindListings)

	var mu sync.Mutex
	for _, kind := range cfg.ResourceKinds {
		kind := kind
		for _, ns := range namespaces {
			ns := ns
			g.Go(func() error {
				refs, err := cli.ListControllers(gctx, kind, ns, selector)
				if err != nil {
					return fmt.Errorf("listing %s in namespace scope %q: %w", kind, ns, err)
				}
				mu.Lock()
				for _, ref := range refs {
					set.Add(ref)
				}
				mu.Unlock()
				return nil
			})
		}
	}

	return g.Wait()
}

// namespaceScope returns the namespaces to list against: a single
// empty string (cluster-wide) when NamespacesAll, or the explicit list
// otherwise.
func namespaceScope(cfg *config.RunConfig) []string {
	if cfg.NamespacesAll {
		return []string{""}
	}
	return cfg.Namespaces
}

// discoverExplicit implements algorithm step 2: parse each entry as
// "namespace/Kind/name"; malformed entries are warned about and
// skipped, never aborting the run.
func discoverExplicit(cfg *config.RunConfig, log logrus.FieldLogger, set domain.ControllerSet) {
	for _, raw := range cfg.ExplicitTargets {
		ref, err := domain.ParseControllerRef(raw)
		if err != nil {
			log.WithError(err).Warn("skipping malformed explicit target")
			continue
		}
		set.Add(ref)
	}
}

// Package rollout implements the Rollout Executor: trigger
// a controller restart by bumping the pod template's restart
// annotation, and record an auditable Event. Grounded in the ecosystem's
// rollout helper (ManageRollout.bumpRestartAnnotation), adapted to go
// through the krar cluster client's dynamic/unstructured patch path so
// one code path covers every controller kind.
package rollout

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/slash-mnt/krar/internal/domain"
	"github.com/slash-mnt/krar/internal/k8s"
)

// EventReason is the reason recorded on every Event krar creates.
const EventReason = "KrarRolloutTriggered"

// Executor triggers rollout restarts and records audit events.
type Executor struct {
	client k8s.Client
	log    logrus.FieldLogger
}

// New returns an Executor backed by client.
func New(client k8s.Client, log logrus.FieldLogger) *Executor {
	return &Executor{client: client, log: log}
}

// Result describes the outcome for one target controller.
type Result struct {
	Ref     domain.ControllerRef
	Patched bool
}

// Run restarts every controller in targets (or, in dry-run, only
// reports what would be restarted) and returns one Result per target.
// Event-creation failures are logged as warnings and never abort the
// run.
func (e *Executor) Run(ctx context.Context, targets []domain.ControllerRef, mode domain.Mode, smartRestart, dryRun bool) []Result {
	results := make([]Result, 0, len(targets))

	for _, ref := range targets {
		if dryRun {
			e.log.WithField("controller", ref.String()).Info("dry-run: would restart controller")
			results = append(results, Result{Ref: ref, Patched: false})
			continue
		}

		if err := e.restart(ctx, ref, mode, smartRestart, dryRun); err != nil {
			e.log.WithError(err).WithField("controller", ref.String()).Error("failed to restart controller")
			results = append(results, Result{Ref: ref, Patched: false})
			continue
		}

		results = append(results, Result{Ref: ref, Patched: true})
	}

	return results
}

func (e *Executor) restart(ctx context.Context, ref domain.ControllerRef, mode domain.Mode, smartRestart, dryRun bool) error {
	if err := e.client.PatchRestart(ctx, ref, time.Now()); err != nil {
		return fmt.Errorf("patching %s: %w", ref, err)
	}

	message := fmt.Sprintf("mode=%s smart-restart=%t dry-run=%t", mode, smartRestart, dryRun)
	if err := e.client.CreateEvent(ctx, ref, EventReason, message); err != nil {
		e.log.WithError(err).WithField("controller", ref.String()).Warn("failed to record rollout event")
	}

	return nil
}

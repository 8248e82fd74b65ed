package registry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/slash-mnt/krar/internal/auth"
	"github.com/slash-mnt/krar/internal/domain"
)

// maxConcurrentDigestLookups bounds the per-image registry fan-out.
const maxConcurrentDigestLookups = 8

// maxDigestRetries is the attempt budget (first try included) for a
// single image's remote digest lookup.
const maxDigestRetries = 3

// imageIDPair is the unique (image, imageID) input to the drift
// checker, keyed so duplicate occurrences across pods are only
// checked once.
type imageIDPair struct {
	Image   string
	ImageID string
}

// UniquePairs reduces a PodSample slice to the unique (image, imageID)
// pairs the Drift Checker needs to look at.
func UniquePairs(samples []domain.PodSample) []imageIDPair {
	seen := map[imageIDPair]struct{}{}
	var out []imageIDPair
	for _, s := range samples {
		pair := imageIDPair{Image: s.Image, ImageID: s.ImageID}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		out = append(out, pair)
	}
	return out
}

// NormalizeDigest extracts and canonicalizes the local digest from an
// imageID: take the substring after '@', then ensure the final form is
// exactly "sha256:<hex>".
func NormalizeDigest(imageID string) string {
	local := imageID
	if i := strings.LastIndex(local, "@"); i >= 0 {
		local = local[i+1:]
	}
	local = strings.TrimSpace(local)
	if local == "" {
		return ""
	}
	if !strings.HasPrefix(local, "sha256:") {
		local = "sha256:" + local
	}
	return local
}

// DriftChecker compares locally-resolved digests against the registry,
// classifying an image as drifted when the two digests disagree.
type DriftChecker struct {
	client Client
	auth   auth.RegistryAuth
	log    logrus.FieldLogger
}

// NewDriftChecker returns a DriftChecker that queries client using
// regAuth for every lookup.
func NewDriftChecker(client Client, regAuth auth.RegistryAuth, log logrus.FieldLogger) *DriftChecker {
	return &DriftChecker{client: client, auth: regAuth, log: log}
}

// Check runs the drift algorithm over samples and returns, keyed by
// image reference, the local/remote DigestPair of every image whose
// digests could both be resolved, drifted or not. When one image
// appears with several imageIDs, a drifted pair is kept over a
// matching one.
func (d *DriftChecker) Check(ctx context.Context, samples []domain.PodSample) (map[string]domain.DigestPair, error) {
	pairs := UniquePairs(samples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDigestLookups)

	var mu sync.Mutex
	results := make(map[string]domain.DigestPair, len(pairs))

	for _, pair := range pairs {
		pair := pair
		g.Go(func() error {
			local := NormalizeDigest(pair.ImageID)
			if local == "" {
				d.log.WithField("image", pair.Image).Warn("skipping drift check: empty local digest")
				return nil
			}

			remoteDigest, err := d.digestWithRetry(gctx, pair.Image)
			if err != nil {
				d.log.WithError(err).WithField("image", pair.Image).Warn("registry digest lookup failed, skipping drift classification")
				return nil
			}
			if remoteDigest == "" {
				d.log.WithField("image", pair.Image).Warn("registry returned empty digest, skipping drift classification")
				return nil
			}

			dp := domain.DigestPair{Image: pair.Image, Local: local, Remote: remoteDigest}

			mu.Lock()
			if prev, ok := results[pair.Image]; !ok || !prev.Drifted() {
				results[pair.Image] = dp
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// digestWithRetry makes up to maxDigestRetries attempts with a short
// linear backoff between them, returning the last error on exhaustion,
// which the caller logs as a warning rather than treats as fatal.
func (d *DriftChecker) digestWithRetry(ctx context.Context, image string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxDigestRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		digest, err := d.client.Digest(ctx, image, d.auth)
		if err == nil {
			return digest, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func backoff(attempt int) time.Duration {
	return time.Duration(attempt) * 500 * time.Millisecond
}

// Drifted filters results down to controllers with at least one
// drifted eligible sample: any drifted occurrence anywhere in a
// controller's pods counts as drift for that controller (see
// DESIGN.md's Open Question decisions).
func Drifted(samples []domain.PodSample, results map[string]domain.DigestPair) domain.ControllerSet {
	candidates := domain.NewControllerSet()
	for _, s := range samples {
		dp, ok := results[s.Image]
		if !ok || !dp.Drifted() {
			continue
		}
		candidates.Add(s.Owner)
	}
	return candidates
}

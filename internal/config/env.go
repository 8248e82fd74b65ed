package config

import (
	"strings"

	"github.com/slash-mnt/krar/internal/domain"
)

// RawFields is the unvalidated, already-layered (env overridden by
// explicit flags) set of strings and bools that the CLI layer hands to
// New. Splitting comma lists, applying the label-value fallback chain,
// and validating all happen here so both the CLI and tests can build a
// RunConfig from plain strings without going through cobra.
type RawFields struct {
	ResourceKinds   string
	LabelDomain     string
	LabelName       string
	LabelValue      string
	ExplicitTargets string

	NamespacesAll bool
	Namespaces    string

	DryRun bool

	JobName        string
	AmbientJobName string

	Mode  string
	Smart bool

	SmartRestart bool

	Authfile   string
	Creds      string
	DockerConf string
}

// New builds and validates a RunConfig from RawFields, applying the
// label-value fallback chain from : explicit config > logical job
// name > ambient job name.
func New(f RawFields) (*RunConfig, error) {
	mode := domain.Mode(strings.ToLower(strings.TrimSpace(f.Mode)))
	if f.Smart {
		mode = domain.ModeSmart
	}
	if mode == "" {
		mode = domain.ModeRollout
	}

	labelValue := strings.TrimSpace(f.LabelValue)
	if labelValue == "" {
		labelValue = strings.TrimSpace(f.JobName)
	}
	if labelValue == "" {
		labelValue = strings.TrimSpace(f.AmbientJobName)
	}

	cfg := &RunConfig{
		Mode: mode,

		ResourceKinds:   splitTrim(f.ResourceKinds),
		LabelDomain:     strings.TrimSpace(f.LabelDomain),
		LabelName:       strings.TrimSpace(f.LabelName),
		LabelValue:      labelValue,
		ExplicitTargets: splitTrim(f.ExplicitTargets),

		NamespacesAll: f.NamespacesAll,
		Namespaces:    splitTrim(f.Namespaces),

		DryRun:       f.DryRun,
		JobName:      strings.TrimSpace(f.JobName),
		SmartRestart: f.SmartRestart,

		Authfile:   strings.TrimSpace(f.Authfile),
		Creds:      f.Creds,
		DockerConf: strings.TrimSpace(f.DockerConf),
	}

	return cfg.Resolved()
}

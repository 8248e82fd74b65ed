// Package config resolves the immutable RunConfig krar's pipeline runs
// against, merging compiled-in defaults, KRAR_*-prefixed environment
// variables, and CLI flag overrides (flags win).
package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/slash-mnt/krar/internal/domain"
)

// ConfigError is returned for any violated RunConfig validation rule.
// It is fatal: main.go maps it to a non-zero exit before any cluster
// call is made.
type ConfigError struct {
	cause error
}

func (e *ConfigError) Error() string { return "invalid configuration: " + e.cause.Error() }
func (e *ConfigError) Unwrap() error  { return e.cause }

func newConfigError(format string, args ...interface{}) *ConfigError {
	return &ConfigError{cause: fmt.Errorf(format, args...)}
}

// RunConfig is the fully resolved, validated configuration for one
// krar invocation. It is built once by New and never mutated
// afterwards.
type RunConfig struct {
	Mode domain.Mode

	ResourceKinds   []string
	LabelDomain     string
	LabelName       string
	LabelValue      string
	ExplicitTargets []string

	NamespacesAll bool
	Namespaces    []string

	DryRun       bool
	JobName      string
	SmartRestart bool

	Authfile   string
	Creds      string
	DockerConf string
}

// RegistryAuthfile, RegistryCreds, and RegistryConfigDir satisfy
// internal/auth.Selector without config needing to import auth.
func (c *RunConfig) RegistryAuthfile() string   { return c.Authfile }
func (c *RunConfig) RegistryCreds() string      { return c.Creds }
func (c *RunConfig) RegistryConfigDir() string  { return c.DockerConf }

// LabelComplete reports whether domain, name, and value are all set,
// i.e. label-based discovery is possible.
func (c *RunConfig) LabelComplete() bool {
	return c.LabelDomain != "" && c.LabelName != "" && c.LabelValue != ""
}

// LabelSelector renders the "{domain}/{name}={value}" selector string
// or "" if the triple is incomplete.
func (c *RunConfig) LabelSelector() string {
	if !c.LabelComplete() {
		return ""
	}
	return fmt.Sprintf("%s/%s=%s", c.LabelDomain, c.LabelName, c.LabelValue)
}

// Validate enforces the invariants a RunConfig must satisfy before a
// run can start. It returns the first violated rule, wrapped as a
// *ConfigError.
func (c *RunConfig) Validate() error {
	if !c.Mode.Valid() {
		return newConfigError("mode must be %q or %q, got %q", domain.ModeRollout, domain.ModeSmart, c.Mode)
	}
	if len(c.ResourceKinds) == 0 && len(c.ExplicitTargets) == 0 {
		return newConfigError("at least one of --resources or explicit targets must be set")
	}
	if !c.NamespacesAll && len(c.Namespaces) == 0 {
		return newConfigError("namespaces-all is false but no namespaces were given")
	}
	return nil
}

// splitTrim splits s on comma, trims whitespace, and drops empty
// entries.
func splitTrim(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Resolved wraps Validate's error in errors.Wrap for call sites that
// want the pkg/errors stack-trace-on-demand behavior used throughout
// the rest of the pipeline.
func (c *RunConfig) Resolved() (*RunConfig, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "resolving run configuration")
	}
	return c, nil
}

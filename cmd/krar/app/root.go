// Package app wires krar's single cobra command: flag and KRAR_*
// environment binding, client construction, and dispatch into
// internal/orchestrator. krar has no subcommands, so this is one
// root command rather than a command tree.
package app

import (
	"context"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/slash-mnt/krar/internal/config"
	"github.com/slash-mnt/krar/internal/k8s"
	"github.com/slash-mnt/krar/internal/logx"
	"github.com/slash-mnt/krar/internal/orchestrator"
	"github.com/slash-mnt/krar/internal/registry"
)

// flags holds the raw CLI surface before it is merged with KRAR_*
// environment variables and handed to config.New.
type flags struct {
	kubeconfig Kubeconfig

	mode         string
	smart        bool
	smartRestart bool

	resources string
	targets   string

	namespacesAll   bool
	noNamespacesAll bool
	namespaces      string

	dryRun  bool
	jobName string

	authfile   string
	creds      string
	dockerConf string

	logLevel  string
	logFormat string

	labelParts *labelParts
}

// NewKrarCommand builds the root command executed when krar is run.
func NewKrarCommand() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "krar",
		Short: "Restart Kubernetes workload controllers on a schedule or on image drift",
		Long:  "krar triggers kubectl-rollout-restart-style restarts across a cluster, either unconditionally (rollout mode) or only for controllers whose running image has drifted from the registry (smart mode).",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), f)
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().VarP(&f.kubeconfig, "kubeconfig", "", "Path to the kubeconfig file to use")
	cmd.PersistentFlags().StringVar(&f.logLevel, "log-level", envOr("KRAR_LOG_LEVEL", "info"), "Log level (panic, fatal, error, warn, info, debug, trace)")
	cmd.PersistentFlags().StringVar(&f.logFormat, "log-format", envOr("KRAR_LOG_FORMAT", "text"), "Log output format (text, json)")
	cmd.PersistentFlags().BoolVar(&logx.DebugOutput, "debug", false, "Enable debug output (includes stack traces)")

	cmd.Flags().StringVar(&f.mode, "mode", envOr("KRAR_MODE", string(defaultMode)), "Run mode: rollout or smart")
	cmd.Flags().BoolVar(&f.smart, "smart", envBool("KRAR_SMART"), "Shorthand for --mode=smart")
	cmd.Flags().BoolVar(&f.smartRestart, "smart-restart", envBool("KRAR_SMART_RESTART"), "In smart mode, actually restart drifted controllers instead of only reporting them")

	cmd.Flags().StringVarP(&f.resources, "resources", "r", envOr("KRAR_RESOURCES", ""), "Comma-separated controller kinds to discover by label (Deployment, StatefulSet, DaemonSet)")
	cmd.Flags().StringVar(&f.targets, "targets", envOr("KRAR_TARGETS", ""), "Comma-separated explicit targets, each \"namespace/Kind/name\"")

	cmd.Flags().BoolVarP(&f.namespacesAll, "namespaces-all", "A", envBool("KRAR_NAMESPACES_ALL"), "Discover across every namespace")
	cmd.Flags().BoolVar(&f.noNamespacesAll, "no-namespaces-all", false, "Override --namespaces-all / KRAR_NAMESPACES_ALL back to false")
	cmd.Flags().StringVarP(&f.namespaces, "namespaces", "N", envOr("KRAR_NAMESPACES", ""), "Comma-separated namespaces to restrict discovery to")

	cmd.Flags().BoolVar(&f.dryRun, "dry-run", envBool("KRAR_DRY_RUN"), "Report what would be restarted without patching anything")
	cmd.Flags().StringVarP(&f.jobName, "job-name", "j", envOr("KRAR_JOB_NAME", ""), "Logical job name used as the label value when --label-value is unset")

	cmd.Flags().StringVar(&f.authfile, "registry-authfile", envOr("KRAR_REGISTRY_AUTHFILE", ""), "Path to a podman/skopeo-style auth.json for registry credentials")
	cmd.Flags().StringVar(&f.creds, "registry-creds", envOr("KRAR_REGISTRY_CREDS", ""), "Inline \"user:pass\" registry credentials")
	cmd.Flags().StringVar(&f.dockerConf, "registry-config-dir", envOr("KRAR_DOCKER_CONFIG", ""), "Docker-style config directory containing config.json")

	var labelDomain, labelName, labelValue string
	cmd.Flags().StringVarP(&labelDomain, "label-domain", "d", envOr("KRAR_LABEL_DOMAIN", ""), "Label domain, e.g. app.kubernetes.io")
	cmd.Flags().StringVarP(&labelName, "label-name", "n", envOr("KRAR_LABEL_NAME", ""), "Label name, e.g. name")
	cmd.Flags().StringVarP(&labelValue, "label-value", "v", envOr("KRAR_LABEL_VALUE", ""), "Label value to match")
	f.labelParts = &labelParts{domain: &labelDomain, name: &labelName, value: &labelValue}

	return cmd
}

// labelParts threads the three separately-flagged label pieces through
// to run without widening the flags struct's exported surface.
type labelParts struct {
	domain *string
	name   *string
	value  *string
}

func run(ctx context.Context, f *flags) error {
	if err := logx.SetLevel(f.logLevel); err != nil {
		return err
	}
	if err := logx.SetFormat(f.logFormat); err != nil {
		return err
	}
	log := logrus.StandardLogger()

	namespacesAll := f.namespacesAll && !f.noNamespacesAll

	cfg, err := config.New(config.RawFields{
		ResourceKinds:   f.resources,
		LabelDomain:     *f.labelParts.domain,
		LabelName:       *f.labelParts.name,
		LabelValue:      *f.labelParts.value,
		ExplicitTargets: f.targets,

		NamespacesAll: namespacesAll,
		Namespaces:    f.namespaces,

		DryRun: f.dryRun,

		JobName:        f.jobName,
		AmbientJobName: os.Getenv("KRAR_POD_JOB_NAME"),

		Mode:  f.mode,
		Smart: f.smart,

		SmartRestart: f.smartRestart,

		Authfile:   f.authfile,
		Creds:      f.creds,
		DockerConf: f.dockerConf,
	})
	if err != nil {
		return err
	}

	restConfig, err := f.kubeconfig.Get()
	if err != nil {
		return orchestrator.NewCapabilityErrorf("loading kubeconfig: %v", err)
	}

	cluster, err := k8s.NewClient(restConfig)
	if err != nil {
		return orchestrator.NewCapabilityErrorf("building cluster client: %v", err)
	}

	deps := orchestrator.Deps{Cluster: cluster, Registry: registry.NewClient()}

	return orchestrator.Run(ctx, cfg, deps, log)
}

const defaultMode = "rollout"

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}

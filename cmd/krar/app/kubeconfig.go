package app

import (
	"github.com/spf13/pflag"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	// Add auth providers (gcp, oidc, azure, exec) to the client-go
	// registry.
	_ "k8s.io/client-go/plugin/pkg/client/auth"
)

// Kubeconfig is an explicit-or-implicit kubeconfig path: empty means
// "use the default loading rules."
type Kubeconfig struct {
	*clientcmd.ClientConfigLoadingRules
}

var _ pflag.Value = &Kubeconfig{}

func (c *Kubeconfig) String() string {
	if c.ClientConfigLoadingRules != nil {
		return c.ExplicitPath
	}
	return ""
}

func (c *Kubeconfig) Type() string { return "Kubeconfig" }

func (c *Kubeconfig) Set(str string) error {
	if c.ClientConfigLoadingRules == nil {
		c.ClientConfigLoadingRules = clientcmd.NewDefaultClientConfigLoadingRules()
	}
	c.ExplicitPath = str
	return nil
}

// fanOutQPS and fanOutBurst raise client-go's default rate limit
// (5 QPS / 10 burst) enough that krar's bounded concurrent listers
// (discovery, pod projection, drift lookups) don't self-throttle
// against the API server before their own concurrency caps kick in.
const (
	fanOutQPS   = 25
	fanOutBurst = 50
)

// Get resolves the loading rules into a usable *rest.Config.
func (c *Kubeconfig) Get() (*rest.Config, error) {
	if c.ClientConfigLoadingRules == nil {
		c.ClientConfigLoadingRules = clientcmd.NewDefaultClientConfigLoadingRules()
	}
	overrides := &clientcmd.ConfigOverrides{}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(c, overrides)
	restConfig, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, err
	}
	restConfig.QPS = fanOutQPS
	restConfig.Burst = fanOutBurst
	return restConfig, nil
}

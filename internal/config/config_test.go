package config

import (
	"testing"

	"github.com/slash-mnt/krar/internal/domain"
)

func TestLabelSelector(t *testing.T) {
	c := &RunConfig{LabelDomain: "app.kubernetes.io", LabelName: "name", LabelValue: "api"}
	if got, want := c.LabelSelector(), "app.kubernetes.io/name=api"; got != want {
		t.Errorf("LabelSelector() = %q, want %q", got, want)
	}

	incomplete := &RunConfig{LabelDomain: "app.kubernetes.io"}
	if got := incomplete.LabelSelector(); got != "" {
		t.Errorf("incomplete LabelSelector() = %q, want empty", got)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     RunConfig
		wantErr bool
	}{
		{
			name:    "valid rollout with resources and namespace",
			cfg:     RunConfig{Mode: domain.ModeRollout, ResourceKinds: []string{"Deployment"}, Namespaces: []string{"default"}},
			wantErr: false,
		},
		{
			name:    "valid via explicit targets, all namespaces",
			cfg:     RunConfig{Mode: domain.ModeSmart, ExplicitTargets: []string{"ns/Deployment/api"}, NamespacesAll: true},
			wantErr: false,
		},
		{
			name:    "invalid mode",
			cfg:     RunConfig{Mode: "bogus", ResourceKinds: []string{"Deployment"}, NamespacesAll: true},
			wantErr: true,
		},
		{
			name:    "no targets at all",
			cfg:     RunConfig{Mode: domain.ModeRollout, NamespacesAll: true},
			wantErr: true,
		},
		{
			name:    "no namespaces and not all-namespaces",
			cfg:     RunConfig{Mode: domain.ModeRollout, ResourceKinds: []string{"Deployment"}},
			wantErr: true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, c.wantErr)
			}
			if err != nil {
				if _, ok := err.(*ConfigError); !ok {
					t.Errorf("expected *ConfigError, got %T", err)
				}
			}
		})
	}
}

func TestSplitTrim(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{"", nil},
		{"   ", nil},
	}
	for _, c := range cases {
		got := splitTrim(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("splitTrim(%q) = %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("splitTrim(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

// Package auth selects and represents registry credentials.
// RegistryAuth is a tagged variant with exactly one active field,
// never a bag of optional strings callers have to guess the
// precedence of themselves.
package auth

// Variant discriminates which credential form is active.
type Variant int

const (
	VariantDefault Variant = iota
	VariantAuthfile
	VariantCreds
	VariantConfigDir
)

// RegistryAuth is the resolved credential selection consumed by the
// registry client. Variant determines which fields are meaningful:
// Path for Authfile and ConfigDir, User and Pass for Creds, none for
// Default.
type RegistryAuth struct {
	Variant Variant
	Path    string // Authfile or ConfigDir path
	User    string
	Pass    string
}

// Default returns the zero-configuration credential selection: rely on
// whatever ambient credential store the registry client falls back to.
func Default() RegistryAuth { return RegistryAuth{Variant: VariantDefault} }

// Authfile selects an authfile-style credential file (podman/skopeo
// `auth.json` shape: {"auths": {"registry": {"auth": "base64(user:pass)"}}}).
func Authfile(path string) RegistryAuth {
	return RegistryAuth{Variant: VariantAuthfile, Path: path}
}

// Creds selects an inline username/password pair.
func Creds(user, pass string) RegistryAuth {
	return RegistryAuth{Variant: VariantCreds, User: user, Pass: pass}
}

// ConfigDir selects a docker-config-style directory (a directory
// containing a config.json in the `~/.docker/config.json` shape).
func ConfigDir(path string) RegistryAuth {
	return RegistryAuth{Variant: VariantConfigDir, Path: path}
}

// Selector is anything that exposes the four credential fields of a
// RunConfig. internal/config.RunConfig satisfies this without auth
// needing to import config.
type Selector interface {
	RegistryAuthfile() string
	RegistryCreds() string
	RegistryConfigDir() string
}

// Select implements the credential precedence: first non-empty field
// wins, in order authfile, inline creds, config dir, default. It never
// touches the filesystem or validates credentials; that is the
// registry client's job.
func Select(cfg Selector) RegistryAuth {
	if p := cfg.RegistryAuthfile(); p != "" {
		return Authfile(p)
	}
	if c := cfg.RegistryCreds(); c != "" {
		user, pass := splitCreds(c)
		return Creds(user, pass)
	}
	if d := cfg.RegistryConfigDir(); d != "" {
		return ConfigDir(d)
	}
	return Default()
}

// splitCreds splits a "user:pass" string on the first colon. A missing
// colon yields an all-user, empty-pass split; callers that need to
// reject that should validate before calling Select.
func splitCreds(s string) (user, pass string) {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return s[:i], s[i+1:]
		}
	}
	return s, ""
}

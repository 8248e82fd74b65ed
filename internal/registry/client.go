// Package registry implements the registry client and Drift Checker:
// resolving a remote manifest digest for an image reference and
// comparing it with the digest a pod was launched with.
package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/pkg/errors"

	"github.com/slash-mnt/krar/internal/auth"
)

// Client resolves the registry-side digest for an image reference.
// The real implementation must be safe for concurrent use.
type Client interface {
	Digest(ctx context.Context, ref string, a auth.RegistryAuth) (string, error)
}

// remoteClient is the real Client, backed by go-containerregistry's
// remote package for registry introspection.
type remoteClient struct{}

// NewClient returns the production registry Client.
func NewClient() Client { return remoteClient{} }

// Digest fetches the manifest for ref under the given credentials and
// returns its digest as "sha256:<hex>".
func (remoteClient) Digest(ctx context.Context, ref string, a auth.RegistryAuth) (string, error) {
	parsed, err := name.ParseReference(ref)
	if err != nil {
		return "", errors.Wrapf(err, "parsing image reference %q", ref)
	}

	keychain, err := keychainFor(a)
	if err != nil {
		return "", err
	}

	desc, err := remote.Get(parsed, remote.WithContext(ctx), remote.WithAuthFromKeychain(keychain))
	if err != nil {
		return "", errors.Wrapf(err, "fetching manifest for %q", ref)
	}

	return desc.Digest.String(), nil
}

// keychainFor translates a RegistryAuth variant into an authn.Keychain,
// Using a keychain (rather than a
// single Authenticator) lets the authfile/config-dir variants resolve
// different credentials per registry hostname.
func keychainFor(a auth.RegistryAuth) (authn.Keychain, error) {
	switch a.Variant {
	case auth.VariantCreds:
		return constantKeychain{authn.FromConfig(authn.AuthConfig{Username: a.User, Password: a.Pass})}, nil
	case auth.VariantAuthfile:
		return authfileKeychainFromFile(a.Path)
	case auth.VariantConfigDir:
		return authfileKeychainFromFile(filepath.Join(a.Path, "config.json"))
	default:
		return authn.DefaultKeychain, nil
	}
}

// constantKeychain resolves every reference to the same authenticator,
// used for the inline user:pass credential variant.
type constantKeychain struct {
	authenticator authn.Authenticator
}

func (k constantKeychain) Resolve(authn.Resource) (authn.Authenticator, error) {
	return k.authenticator, nil
}

// authfile is the podman/skopeo auth.json shape:
// {"auths": {"registry.example.com": {"auth": "base64(user:pass)"}}}.
type authfile struct {
	Auths map[string]struct {
		Auth string `json:"auth"`
	} `json:"auths"`
}

func authfileKeychainFromFile(path string) (authn.Keychain, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading authfile %q", path)
	}

	var f authfile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, errors.Wrapf(err, "parsing authfile %q", path)
	}

	return authfileKeychain{file: f}, nil
}

// authfileKeychain adapts the single-file auth.json format to
// authn.Keychain so remote.Get can resolve per-registry credentials
// without us hand-rolling registry-hostname matching twice.
type authfileKeychain struct {
	file authfile
}

func (k authfileKeychain) Resolve(target authn.Resource) (authn.Authenticator, error) {
	entry, ok := k.file.Auths[target.RegistryStr()]
	if !ok {
		return authn.Anonymous, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(entry.Auth)
	if err != nil {
		return nil, errors.Wrap(err, "decoding authfile credential")
	}

	user, pass, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, errors.Errorf("malformed authfile credential for %s", target.RegistryStr())
	}

	return &authn.Basic{Username: user, Password: pass}, nil
}

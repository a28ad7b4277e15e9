package secret

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider resolves a secret reference by looking it up as an
// environment variable name, e.g. secretref:env:JWT_SIGNING_KEY reads
// os.Getenv("JWT_SIGNING_KEY").
type EnvProvider struct{}

// NewEnvProvider creates the built-in "env" provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

// Name returns "env".
func (p *EnvProvider) Name() string { return "env" }

// Resolve looks up ref as an environment variable name.
func (p *EnvProvider) Resolve(_ context.Context, ref string) (string, error) {
	value, ok := os.LookupEnv(ref)
	if !ok {
		return "", fmt.Errorf("secret: environment variable %q is not set", ref)
	}
	return value, nil
}

// Close is a no-op; EnvProvider holds no resources.
func (p *EnvProvider) Close() error { return nil }

var _ Provider = (*EnvProvider)(nil)

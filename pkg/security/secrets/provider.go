package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by a provider that does not hold a secret.
var ErrNotFound = errors.New("secret not found")

// Provider looks up secrets by name.
type Provider interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Lookup returns the secret value, or an error wrapping ErrNotFound
	// when the provider does not hold it.
	Lookup(ctx context.Context, name string) (string, error)
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates a provider reading "db-password" from
// prefix + "DB_PASSWORD".
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Lookup(ctx context.Context, name string) (string, error) {
	envVar := p.envVar(name)
	value, ok := os.LookupEnv(envVar)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: env var %s is not set", ErrNotFound, envVar)
	}
	return value, nil
}

func (p *EnvProvider) envVar(name string) string {
	return p.prefix + strings.ToUpper(strings.NewReplacer("-", "_", ".", "_").Replace(name))
}

// FileProvider reads each secret from a file named after it.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider for dir, which must exist.
func NewFileProvider(dir string) (*FileProvider, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("secrets dir %s is not a directory", dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("secrets dir: %w", err)
	}
	return &FileProvider{dir: abs}, nil
}

func (p *FileProvider) Name() string { return "file" }

// Lookup reads the file with surrounding whitespace trimmed. Names that
// escape the directory and files with permissions other than 0600 or 0400
// are rejected.
func (p *FileProvider) Lookup(ctx context.Context, name string) (string, error) {
	path := filepath.Join(p.dir, name)
	if !strings.HasPrefix(path, p.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid secret name %q", name)
	}

	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: no file %s", ErrNotFound, name)
	}
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("secret %s is not a regular file", name)
	}
	if perm := info.Mode().Perm(); perm != 0o600 && perm != 0o400 {
		return "", fmt.Errorf("insecure permissions %o on secret %s (want 0600 or 0400)", perm, name)
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path is confined to p.dir above
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

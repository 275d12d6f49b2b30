package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"mercator-hq/ruler/pkg/config"
)

// authMethod returns the transport credentials for cfg. Public repositories
// get nil.
func authMethod(cfg *config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil

	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires a token")
		}
		// Hosts ignore the user name for token auth.
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil

	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("ssh key: %w", err)
		}
		if perm := info.Mode().Perm(); perm&0o077 != 0 {
			return nil, fmt.Errorf("ssh key permissions too open (%o), should be 0600", perm)
		}
		keys, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key: %w", err)
		}
		return keys, nil

	default:
		return nil, fmt.Errorf("unknown auth type %q", cfg.Type)
	}
}

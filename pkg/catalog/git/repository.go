package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"mercator-hq/ruler/pkg/catalog"
	"mercator-hq/ruler/pkg/config"
)

// CommitInfo describes a commit of the catalog repository.
type CommitInfo struct {
	SHA     string    `json:"sha"`
	Author  string    `json:"author"`
	Message string    `json:"message"`
	When    time.Time `json:"when"`
}

// Repository is a local clone of the catalog repository.
type Repository struct {
	cfg    *config.CatalogGitConfig
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
}

// NewRepository validates cfg and prepares a repository. Call Clone before
// any other method.
func NewRepository(cfg *config.CatalogGitConfig, logger *slog.Logger) (*Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("local path cannot be empty")
	}
	if _, err := authMethod(&cfg.Auth); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		cfg:    cfg,
		logger: logger.With("component", "catalog_git", "repository", cfg.Repository, "branch", cfg.Branch),
	}, nil
}

// CatalogPath is the catalog file or directory inside the clone.
func (r *Repository) CatalogPath() string {
	return filepath.Join(r.cfg.LocalPath, r.cfg.Path)
}

// Clone clones the branch into LocalPath, or opens an existing clone there
// unless CleanOnStart is set.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.CleanOnStart {
		if err := os.RemoveAll(r.cfg.LocalPath); err != nil {
			return fmt.Errorf("failed to clean existing clone: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.cfg.LocalPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.cfg.LocalPath)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		r.repo = repo
		r.logger.Info("opened existing clone", "path", r.cfg.LocalPath)
		return nil
	}

	if err := os.MkdirAll(r.cfg.LocalPath, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	auth, err := authMethod(&r.cfg.Auth)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	repo, err := gogit.PlainCloneContext(ctx, r.cfg.LocalPath, false, &gogit.CloneOptions{
		URL:           r.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Depth:         r.cfg.Depth,
		Auth:          auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone repository: %w", err)
	}
	r.repo = repo
	r.logger.Info("cloned catalog repository", "path", r.cfg.LocalPath, "duration", time.Since(start))
	return nil
}

// Fetch updates the remote-tracking branch and returns the commit it points
// to. The working tree is not touched.
func (r *Repository) Fetch(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return "", fmt.Errorf("repository not initialized, call Clone first")
	}
	auth, err := authMethod(&r.cfg.Auth)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	spec := gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%[1]s:refs/remotes/origin/%[1]s", r.cfg.Branch))
	err = r.repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitconfig.RefSpec{spec},
		Depth:      r.cfg.Depth,
		Auth:       auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}

	ref, err := r.repo.Reference(plumbing.NewRemoteReferenceName("origin", r.cfg.Branch), true)
	if err != nil {
		return "", fmt.Errorf("failed to read origin/%s: %w", r.cfg.Branch, err)
	}
	return ref.Hash().String(), nil
}

// Head returns the commit checked out in the working tree.
func (r *Repository) Head() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return "", fmt.Errorf("repository not initialized, call Clone first")
	}
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Checkout hard-resets the branch and working tree to sha.
func (r *Repository) Checkout(sha string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return fmt.Errorf("repository not initialized, call Clone first")
	}
	wt, err := r.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := wt.Reset(&gogit.ResetOptions{Commit: plumbing.NewHash(sha), Mode: gogit.HardReset}); err != nil {
		return fmt.Errorf("failed to check out %s: %w", short(sha), err)
	}
	return nil
}

// ChangedFiles lists the paths that differ between two commits.
func (r *Repository) ChangedFiles(fromSHA, toSHA string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Clone first")
	}

	from, err := r.repo.CommitObject(plumbing.NewHash(fromSHA))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", short(fromSHA), err)
	}
	to, err := r.repo.CommitObject(plumbing.NewHash(toSHA))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", short(toSHA), err)
	}
	fromTree, err := from.Tree()
	if err != nil {
		return nil, err
	}
	toTree, err := to.Tree()
	if err != nil {
		return nil, err
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}
	files := make([]string, 0, len(changes))
	for _, change := range changes {
		if change.To.Name != "" {
			files = append(files, change.To.Name)
		} else {
			files = append(files, change.From.Name)
		}
	}
	return files, nil
}

// Commit returns metadata for sha.
func (r *Repository) Commit(sha string) (*CommitInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, fmt.Errorf("repository not initialized, call Clone first")
	}
	c, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", short(sha), err)
	}
	return &CommitInfo{
		SHA:     c.Hash.String(),
		Author:  c.Author.Name,
		Message: c.Message,
		When:    c.Author.When,
	}, nil
}

// touchesCatalog reports whether any changed file can affect the catalog
// under catalogPath (relative to the repository root).
func touchesCatalog(files []string, catalogPath string) bool {
	prefix := filepath.ToSlash(filepath.Clean(catalogPath))
	for _, f := range files {
		if !slices.Contains(catalog.Extensions, filepath.Ext(f)) {
			continue
		}
		if prefix == "." || f == prefix || strings.HasPrefix(f, prefix+"/") {
			return true
		}
	}
	return false
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

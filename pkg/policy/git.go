package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

// GitSourceConfig contains configuration for the git-backed policy source.
type GitSourceConfig struct {
	// Repository is the remote URL to clone.
	Repository string `yaml:"repository"`

	// Branch to track. Default: main
	Branch string `yaml:"branch"`

	// Path is the boundary document path inside the repository.
	// Default: boundaries.yaml
	Path string `yaml:"path"`

	// LocalPath is where the working copy lives. Default: a directory
	// under the OS temp dir.
	LocalPath string `yaml:"local_path"`

	// PollInterval between pulls. Default: 60s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone/pull. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Token authenticates HTTPS remotes when set.
	Token string `yaml:"token"`
}

// DefaultGitSourceConfig returns the default git source configuration.
func DefaultGitSourceConfig() *GitSourceConfig {
	return &GitSourceConfig{
		Branch:       "main",
		Path:         "boundaries.yaml",
		PollInterval: 60 * time.Second,
		Timeout:      30 * time.Second,
	}
}

// GitSource tracks a boundary policy in a git repository. The commit SHA of
// the working copy is the policy identity: every decision made under it can
// be traced to the exact commit.
type GitSource struct {
	config *GitSourceConfig
	logger *slog.Logger

	mu      sync.RWMutex
	repo    *gogit.Repository
	current *Document
	version VersionInfo
	onLoad  func(boundary.Boundaries)
}

// NewGitSource creates a git source. Call Clone before use.
func NewGitSource(config *GitSourceConfig) (*GitSource, error) {
	if config == nil || config.Repository == "" {
		return nil, fmt.Errorf("git source requires a repository URL")
	}

	defaults := DefaultGitSourceConfig()
	if config.Branch == "" {
		config.Branch = defaults.Branch
	}
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.LocalPath == "" {
		config.LocalPath = filepath.Join(os.TempDir(), "gicm-boundaries")
	}

	return &GitSource{
		config: config,
		logger: slog.Default().With("component", "policy.git"),
	}, nil
}

// OnLoad registers a callback invoked with the new boundary set after every
// successful load.
func (s *GitSource) OnLoad(callback func(boundary.Boundaries)) {
	s.mu.Lock()
	s.onLoad = callback
	current := s.current
	s.mu.Unlock()

	if callback != nil && current != nil {
		callback(current.Boundaries)
	}
}

// Clone initializes the working copy and loads the document. An existing
// working copy is opened instead of re-cloned.
func (s *GitSource) Clone(ctx context.Context) error {
	s.mu.Lock()

	gitDir := filepath.Join(s.config.LocalPath, ".git")
	if _, err := os.Stat(gitDir); err == nil {
		repo, err := gogit.PlainOpen(s.config.LocalPath)
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("open existing policy repo: %w", err)
		}
		s.repo = repo
		s.mu.Unlock()
		return s.load()
	}

	if err := os.MkdirAll(s.config.LocalPath, 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create policy repo directory: %w", err)
	}

	cloneCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(cloneCtx, s.config.LocalPath, false, &gogit.CloneOptions{
		URL:           s.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(s.config.Branch),
		SingleBranch:  true,
		Auth:          s.auth(),
	})
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("clone policy repo: %w", err)
	}

	s.repo = repo
	s.mu.Unlock()

	return s.load()
}

// Pull fetches the tracked branch and reloads the document when the head
// moved. It reports whether the policy changed.
func (s *GitSource) Pull(ctx context.Context) (bool, error) {
	s.mu.Lock()

	if s.repo == nil {
		s.mu.Unlock()
		return false, fmt.Errorf("policy repo not initialized, call Clone first")
	}

	head, err := s.repo.Head()
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("read policy repo head: %w", err)
	}
	fromSHA := head.Hash().String()

	worktree, err := s.repo.Worktree()
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("open policy worktree: %w", err)
	}

	pullCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName: "origin",
		Auth:       s.auth(),
	})
	cancel()
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		s.mu.Unlock()
		return false, fmt.Errorf("pull policy repo: %w", err)
	}

	newHead, err := s.repo.Head()
	if err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("read policy repo head: %w", err)
	}
	changed := newHead.Hash().String() != fromSHA
	s.mu.Unlock()

	if !changed {
		return false, nil
	}
	if err := s.load(); err != nil {
		return false, err
	}
	return true, nil
}

// Poll pulls on the configured interval until the context is cancelled.
// Pull failures are logged and retried next tick.
func (s *GitSource) Poll(ctx context.Context) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.logger.Info("policy repo polling started",
		"repository", s.config.Repository,
		"branch", s.config.Branch,
		"interval", s.config.PollInterval,
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("policy repo polling stopped")
			return
		case <-ticker.C:
			changed, err := s.Pull(ctx)
			if err != nil {
				s.logger.Error("policy repo pull failed", "error", err)
				continue
			}
			if changed {
				s.logger.Info("boundary policy updated from repo", "version", s.PolicyID())
			}
		}
	}
}

// Boundaries returns the active boundary set.
func (s *GitSource) Boundaries() boundary.Boundaries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Boundaries
}

// PolicyID returns the commit SHA of the active document.
func (s *GitSource) PolicyID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version.ID
}

// Version returns the active version details.
func (s *GitSource) Version() VersionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// auth builds transport auth from config, or nil for anonymous access.
func (s *GitSource) auth() *http.BasicAuth {
	if s.config.Token == "" {
		return nil
	}
	// go-git requires a non-empty username with token auth; the value is
	// ignored by GitHub-style remotes.
	return &http.BasicAuth{Username: "token", Password: s.config.Token}
}

// load reads the document from the working copy and records the head commit
// as its version.
func (s *GitSource) load() error {
	s.mu.Lock()

	head, err := s.repo.Head()
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("read policy repo head: %w", err)
	}
	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("read policy commit: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(s.config.LocalPath, s.config.Path))
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("read policy document: %w", err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	s.current = doc
	s.version = VersionInfo{
		ID:         commit.Hash.String(),
		CommitSHA:  commit.Hash.String(),
		CommitTime: commit.Author.When,
		Branch:     s.config.Branch,
		Author:     commit.Author.Name,
		Message:    commit.Message,
		LoadedAt:   time.Now().UTC(),
	}
	version := s.version
	callback := s.onLoad
	s.mu.Unlock()

	if callback != nil {
		callback(doc.Boundaries)
	}

	s.logger.Info("boundary policy loaded from repo",
		"commit", version.CommitSHA,
		"author", version.Author,
	)
	return nil
}

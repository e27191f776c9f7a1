package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lambdaforge/lambdaforge/logger"
)

// PublishOptions describes where and how the generated tree is pushed.
type PublishOptions struct {
	Message    string
	Branch     string
	RemoteName string
	RemoteURL  string
}

// Git drives the git binary against one repository root.
type Git struct {
	runner Runner
	binary string
	dir    string
	logger logger.Logger

	// hasRepo reports whether dir already holds a repository. Defaults to a .git stat.
	hasRepo func(dir string) bool
}

func NewGit(runner Runner, binary, dir string, l logger.Logger) *Git {
	if binary == "" {
		binary = "git"
	}
	if l == nil {
		l = logger.NewNullLogger()
	}
	return &Git{
		runner:  runner,
		binary:  binary,
		dir:     dir,
		logger:  l,
		hasRepo: dotGitExists,
	}
}

func dotGitExists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil && info.IsDir()
}

// EnsureRepo runs `git init` unless the directory is already a repository.
func (g *Git) EnsureRepo(ctx context.Context) error {
	if g.hasRepo(g.dir) {
		g.logger.Debug("Git repository already initialized")
		return nil
	}
	return g.run(ctx, "init")
}

func (g *Git) AddAll(ctx context.Context) error {
	return g.run(ctx, "add", "-A")
}

func (g *Git) Commit(ctx context.Context, message string) error {
	return g.run(ctx, "commit", "-m", message)
}

// RenameBranch force-renames the current branch (`git branch -M`).
func (g *Git) RenameBranch(ctx context.Context, branch string) error {
	return g.run(ctx, "branch", "-M", branch)
}

// SetRemote points name at url, adding the remote if it does not exist yet.
func (g *Git) SetRemote(ctx context.Context, name, url string) error {
	_, err := g.runner.Run(ctx, g.dir, g.binary, "remote", "get-url", name)
	if err == nil {
		return g.run(ctx, "remote", "set-url", name, url)
	}

	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return fmt.Errorf("git remote get-url %s failed: %w", name, err)
	}
	return g.run(ctx, "remote", "add", name, url)
}

// Push pushes branch to remote and sets it as upstream.
func (g *Git) Push(ctx context.Context, remote, branch string) error {
	return g.run(ctx, "push", "-u", remote, branch)
}

// Publish runs init-if-absent, add, commit, branch rename, remote setup, and push in order,
// stopping at the first failure.
func (g *Git) Publish(ctx context.Context, opts PublishOptions) error {
	if opts.RemoteURL == "" {
		return errors.New("no remote URL configured")
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"init", func() error { return g.EnsureRepo(ctx) }},
		{"add", func() error { return g.AddAll(ctx) }},
		{"commit", func() error { return g.Commit(ctx, opts.Message) }},
		{"branch", func() error { return g.RenameBranch(ctx, opts.Branch) }},
		{"remote", func() error { return g.SetRemote(ctx, opts.RemoteName, opts.RemoteURL) }},
		{"push", func() error { return g.Push(ctx, opts.RemoteName, opts.Branch) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("git %s: %w", s.name, err)
		}
	}

	g.logger.Info(fmt.Sprintf("Pushed %s to %s (%s)", opts.Branch, opts.RemoteName, opts.RemoteURL))
	return nil
}

func (g *Git) run(ctx context.Context, args ...string) error {
	g.logger.Debug(fmt.Sprintf("Running git %v", args))
	res, err := g.runner.Run(ctx, g.dir, g.binary, args...)
	if res.Stdout != "" {
		g.logger.Debug(res.Stdout)
	}
	if err != nil {
		g.logger.Error(fmt.Sprintf("git %s failed: %v", args[0], err))
		return err
	}
	return nil
}

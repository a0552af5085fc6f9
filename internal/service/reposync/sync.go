package reposync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/oshokin/modsync/internal/logger"
)

// RemoteName is the remote every working copy is bound to.
const RemoteName = git.DefaultRemoteName

// dirPermissions is used when the working copy directory has to be created.
const dirPermissions = 0o755

// ErrMerge is returned when fetched changes cannot be merged without conflicts.
var ErrMerge = errors.New("unable to merge fetched changes")

// Syncer binds a local working copy to a remote branch.
type Syncer struct {
	// path is the working copy directory.
	path string
	// remoteURL is registered as origin.
	remoteURL string
	// branch is the local branch reference.
	branch plumbing.ReferenceName
	// trackingBranch is the remote-tracking reference the fetch writes to.
	trackingBranch plumbing.ReferenceName
	// progress receives the fetch progress; nil discards it.
	progress io.Writer
	// author signs merge commits.
	author object.Signature
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithProgress streams fetch progress to w.
func WithProgress(w io.Writer) Option {
	return func(s *Syncer) {
		s.progress = w
	}
}

// WithAuthor sets the name and email used for merge commits.
func WithAuthor(name, email string) Option {
	return func(s *Syncer) {
		s.author.Name = name
		s.author.Email = email
	}
}

// New returns a Syncer for the working copy at path. New touches nothing on disk.
func New(path, remoteURL, branch string, opts ...Option) *Syncer {
	s := &Syncer{
		path:           filepath.Clean(path),
		remoteURL:      remoteURL,
		branch:         plumbing.NewBranchReferenceName(branch),
		trackingBranch: plumbing.NewRemoteReferenceName(RemoteName, branch),
		author: object.Signature{
			Name:  "modsync",
			Email: "modsync@localhost",
		},
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sync creates an ephemeral Syncer and runs Sync on it.
func Sync(ctx context.Context, path, remoteURL, branch string, opts ...Option) (plumbing.Hash, error) {
	return New(path, remoteURL, branch, opts...).Sync(ctx)
}

// Sync fetches the branch and merges it into the working copy. It returns
// the commit the local branch points at afterwards. On failure the working
// copy is left as the failed step left it.
func (s *Syncer) Sync(ctx context.Context) (plumbing.Hash, error) {
	ctx = logger.WithName(ctx, "reposync")

	repo, err := s.open(ctx)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if err = s.fetch(ctx, repo); err != nil {
		return plumbing.ZeroHash, err
	}

	fetched, err := repo.Reference(s.trackingBranch, true)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", s.trackingBranch.Short(), err)
	}

	head, err := s.merge(ctx, repo, fetched.Hash())
	if err != nil {
		return plumbing.ZeroHash, err
	}

	logger.InfoKV(ctx, "Working copy synchronized", "branch", s.branch.Short(), "commit", head.String())

	return head, nil
}

// open opens the working copy, initializing it on first use, and makes sure
// origin points at the configured URL and HEAD at the configured branch.
func (s *Syncer) open(ctx context.Context) (*git.Repository, error) {
	if err := os.MkdirAll(s.path, dirPermissions); err != nil {
		return nil, fmt.Errorf("create working copy directory: %w", err)
	}

	repo, err := git.PlainOpen(s.path)

	switch {
	case err == nil:
	case errors.Is(err, git.ErrRepositoryNotExists):
		logger.InfoKV(ctx, "Initializing working copy", "path", s.path)

		repo, err = git.PlainInit(s.path, false)
		if err != nil {
			return nil, fmt.Errorf("initialize repository: %w", err)
		}
	default:
		return nil, fmt.Errorf("open repository: %w", err)
	}

	if err = s.ensureOrigin(ctx, repo); err != nil {
		return nil, err
	}

	if err = s.ensureHead(ctx, repo); err != nil {
		return nil, err
	}

	return repo, nil
}

// ensureOrigin registers origin, replacing it when it points elsewhere.
func (s *Syncer) ensureOrigin(ctx context.Context, repo *git.Repository) error {
	remote, err := repo.Remote(RemoteName)

	switch {
	case errors.Is(err, git.ErrRemoteNotFound):
	case err != nil:
		return fmt.Errorf("look up remote: %w", err)
	default:
		urls := remote.Config().URLs
		if len(urls) > 0 && urls[0] == s.remoteURL {
			return nil
		}

		logger.InfoKV(ctx, "Replacing remote", "old", urls, "new", s.remoteURL)

		if err = repo.DeleteRemote(RemoteName); err != nil {
			return fmt.Errorf("remove remote: %w", err)
		}
	}

	_, err = repo.CreateRemote(&config.RemoteConfig{
		Name: RemoteName,
		URLs: []string{s.remoteURL},
	})
	if err != nil {
		return fmt.Errorf("add remote: %w", err)
	}

	return nil
}

// ensureHead points HEAD at the configured branch. When the branch already
// exists locally the working tree is switched to it.
func (s *Syncer) ensureHead(ctx context.Context, repo *git.Repository) error {
	head, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return fmt.Errorf("read HEAD: %w", err)
	}

	if head.Type() == plumbing.SymbolicReference && head.Target() == s.branch {
		return nil
	}

	logger.InfoKV(ctx, "Switching branch", "branch", s.branch.Short())

	if _, err = repo.Reference(s.branch, true); err == nil {
		worktree, err := repo.Worktree()
		if err != nil {
			return fmt.Errorf("open worktree: %w", err)
		}

		if err = worktree.Checkout(&git.CheckoutOptions{Branch: s.branch, Force: true}); err != nil {
			return fmt.Errorf("checkout %s: %w", s.branch.Short(), err)
		}

		return nil
	}

	if err = repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, s.branch)); err != nil {
		return fmt.Errorf("point HEAD at %s: %w", s.branch.Short(), err)
	}

	return nil
}

// fetch downloads the branch into its remote-tracking reference.
func (s *Syncer) fetch(ctx context.Context, repo *git.Repository) error {
	logger.InfoKV(ctx, "Fetching", "remote", s.remoteURL, "branch", s.branch.Short())

	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: RemoteName,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("+%s:%s", s.branch, s.trackingBranch)),
		},
		Progress: s.progress,
	})

	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		logger.Debug(ctx, "Remote has no new objects")
	default:
		return fmt.Errorf("fetch %s: %w", s.branch.Short(), err)
	}

	return nil
}

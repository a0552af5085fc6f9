package reposync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/oshokin/modsync/internal/logger"
)

const (
	// filePermissions is used for regular files written by the merge.
	filePermissions = 0o644
	// executablePermissions is used for files git records as executable.
	executablePermissions = 0o755
)

// change is the state a path ends up in on one side of a merge.
type change struct {
	// hash is the resulting blob, zero when the path was deleted.
	hash plumbing.Hash
	// mode is the resulting file mode.
	mode filemode.FileMode
}

// deleted reports whether the change removes the path.
func (c change) deleted() bool {
	return c.hash.IsZero()
}

// localEdit is an uncommitted modification kept across a fast-forward.
type localEdit struct {
	// contents is nil when the file was deleted locally.
	contents []byte
	// mode is the file mode on disk.
	mode os.FileMode
}

// merge brings the local branch to the fetched commit and returns the new tip.
func (s *Syncer) merge(ctx context.Context, repo *git.Repository, fetchedHash plumbing.Hash) (plumbing.Hash, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	local, err := repo.Reference(s.branch, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		logger.InfoKV(ctx, "Checking out first commit", "commit", fetchedHash.String())

		// Reset only moves existing branches, so the unborn one is created first.
		if err = repo.Storer.SetReference(plumbing.NewHashReference(s.branch, fetchedHash)); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("create %s: %w", s.branch.Short(), err)
		}

		if err = worktree.Reset(&git.ResetOptions{Commit: fetchedHash, Mode: git.HardReset}); err != nil {
			return plumbing.ZeroHash, fmt.Errorf("check out %s: %w", fetchedHash, err)
		}

		return fetchedHash, nil
	}

	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve %s: %w", s.branch.Short(), err)
	}

	localHash := local.Hash()
	if localHash == fetchedHash {
		logger.Info(ctx, "Already up to date")
		return localHash, nil
	}

	localCommit, err := repo.CommitObject(localHash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("load local commit: %w", err)
	}

	fetchedCommit, err := repo.CommitObject(fetchedHash)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("load fetched commit: %w", err)
	}

	behind, err := fetchedCommit.IsAncestor(localCommit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("merge analysis: %w", err)
	}

	if behind {
		logger.Info(ctx, "Local branch already contains the fetched commit")
		return localHash, nil
	}

	fastForward, err := localCommit.IsAncestor(fetchedCommit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("merge analysis: %w", err)
	}

	if fastForward {
		return s.fastForward(ctx, worktree, localCommit, fetchedCommit)
	}

	return s.threeWay(ctx, worktree, localCommit, fetchedCommit)
}

// fastForward moves the branch and the working tree to the fetched commit,
// keeping uncommitted edits of paths the update does not touch.
func (s *Syncer) fastForward(
	ctx context.Context,
	worktree *git.Worktree,
	localCommit, fetchedCommit *object.Commit,
) (plumbing.Hash, error) {
	logger.InfoKV(ctx, "Fast-forwarding",
		"from", localCommit.Hash.String(),
		"to", fetchedCommit.Hash.String())

	incoming, err := diffCommits(localCommit, fetchedCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	dirty, err := dirtyPaths(worktree)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if conflicts := intersect(dirty, incoming); len(conflicts) > 0 {
		return plumbing.ZeroHash, fmt.Errorf("uncommitted changes in %s: %w", strings.Join(conflicts, ", "), ErrMerge)
	}

	edits, err := s.saveEdits(dirty)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	err = worktree.Reset(&git.ResetOptions{Commit: fetchedCommit.Hash, Mode: git.HardReset})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("fast-forward to %s: %w", fetchedCommit.Hash, err)
	}

	if err = s.restoreEdits(edits); err != nil {
		return plumbing.ZeroHash, err
	}

	return fetchedCommit.Hash, nil
}

// threeWay merges diverged histories path by path against their merge base
// and records the result as a merge commit.
func (s *Syncer) threeWay(
	ctx context.Context,
	worktree *git.Worktree,
	localCommit, fetchedCommit *object.Commit,
) (plumbing.Hash, error) {
	bases, err := localCommit.MergeBase(fetchedCommit)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("find merge base: %w", err)
	}

	if len(bases) == 0 {
		return plumbing.ZeroHash, fmt.Errorf("no common ancestor with %s: %w", fetchedCommit.Hash, ErrMerge)
	}

	base := bases[0]

	logger.InfoKV(ctx, "Merging diverged histories",
		"local", localCommit.Hash.String(),
		"fetched", fetchedCommit.Hash.String(),
		"base", base.Hash.String())

	ours, err := diffCommits(base, localCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	theirs, err := diffCommits(base, fetchedCommit)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	dirty, err := dirtyPaths(worktree)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if staged := stagedPaths(dirty); len(staged) > 0 {
		return plumbing.ZeroHash, fmt.Errorf("staged changes in %s: %w", strings.Join(staged, ", "), ErrMerge)
	}

	conflicts := intersect(dirty, theirs)

	for path, their := range theirs {
		if our, ok := ours[path]; ok && our != their {
			conflicts = append(conflicts, path)
		}
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)

		return plumbing.ZeroHash, fmt.Errorf("conflicting changes in %s: %w", strings.Join(conflicts, ", "), ErrMerge)
	}

	fetchedTree, err := fetchedCommit.Tree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("load fetched tree: %w", err)
	}

	for path, their := range theirs {
		if _, ok := ours[path]; ok {
			// Both sides made the same change.
			continue
		}

		if err = s.applyChange(worktree, fetchedTree, path, their); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	signature := s.author
	signature.When = time.Now()

	message := fmt.Sprintf("Merge %s into %s", s.trackingBranch.Short(), s.branch.Short())

	merged, err := worktree.Commit(message, &git.CommitOptions{
		Author:            &signature,
		Committer:         &signature,
		Parents:           []plumbing.Hash{localCommit.Hash, fetchedCommit.Hash},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit merge: %w", err)
	}

	return merged, nil
}

// applyChange writes one fetched change to the working tree and the index.
func (s *Syncer) applyChange(worktree *git.Worktree, tree *object.Tree, path string, c change) error {
	if c.deleted() {
		if _, err := worktree.Remove(path); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}

		return nil
	}

	file, err := tree.File(path)
	if err != nil {
		return fmt.Errorf("read fetched %s: %w", path, err)
	}

	reader, err := file.Reader()
	if err != nil {
		return fmt.Errorf("read fetched %s: %w", path, err)
	}

	contents, err := io.ReadAll(reader)
	_ = reader.Close()

	if err != nil {
		return fmt.Errorf("read fetched %s: %w", path, err)
	}

	perm := os.FileMode(filePermissions)
	if c.mode == filemode.Executable {
		perm = executablePermissions
	}

	if err = s.writeFile(path, contents, perm); err != nil {
		return err
	}

	if _, err = worktree.Add(path); err != nil {
		return fmt.Errorf("stage %s: %w", path, err)
	}

	return nil
}

// writeFile replaces the working tree file at the slash-separated path.
func (s *Syncer) writeFile(path string, contents []byte, perm os.FileMode) error {
	full := filepath.Join(s.path, filepath.FromSlash(path))

	if err := os.MkdirAll(filepath.Dir(full), dirPermissions); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	if err := os.WriteFile(full, contents, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

// saveEdits snapshots the uncommitted state of the given paths.
func (s *Syncer) saveEdits(dirty map[string]git.FileStatus) (map[string]localEdit, error) {
	edits := make(map[string]localEdit, len(dirty))

	for path := range dirty {
		full := filepath.Join(s.path, filepath.FromSlash(path))

		info, err := os.Lstat(full)
		if errors.Is(err, os.ErrNotExist) {
			edits[path] = localEdit{}
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if !info.Mode().IsRegular() {
			continue
		}

		contents, err := os.ReadFile(full)
		if err != nil {
			return nil, fmt.Errorf("save local edit %s: %w", path, err)
		}

		edits[path] = localEdit{contents: contents, mode: info.Mode().Perm()}
	}

	return edits, nil
}

// restoreEdits puts snapshotted edits back after a reset.
func (s *Syncer) restoreEdits(edits map[string]localEdit) error {
	for path, edit := range edits {
		if edit.contents == nil {
			err := os.Remove(filepath.Join(s.path, filepath.FromSlash(path)))
			if err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("restore local deletion %s: %w", path, err)
			}

			continue
		}

		if err := s.writeFile(path, edit.contents, edit.mode); err != nil {
			return fmt.Errorf("restore local edit: %w", err)
		}
	}

	return nil
}

// diffCommits returns the paths that differ between two commits and the
// state each of them has in to.
func diffCommits(from, to *object.Commit) (map[string]change, error) {
	fromTree, err := from.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", from.Hash, err)
	}

	toTree, err := to.Tree()
	if err != nil {
		return nil, fmt.Errorf("load tree of %s: %w", to.Hash, err)
	}

	changes, err := object.DiffTree(fromTree, toTree)
	if err != nil {
		return nil, fmt.Errorf("diff %s..%s: %w", from.Hash, to.Hash, err)
	}

	result := make(map[string]change, len(changes))

	for _, ch := range changes {
		if ch.To.Name == "" {
			result[ch.From.Name] = change{}
			continue
		}

		result[ch.To.Name] = change{hash: ch.To.TreeEntry.Hash, mode: ch.To.TreeEntry.Mode}
	}

	return result, nil
}

// dirtyPaths lists paths whose working tree or index state differs from HEAD.
func dirtyPaths(worktree *git.Worktree) (map[string]git.FileStatus, error) {
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("read worktree status: %w", err)
	}

	dirty := make(map[string]git.FileStatus, len(status))

	for path, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}

		dirty[path] = *fileStatus
	}

	return dirty, nil
}

// stagedPaths returns the dirty paths that have changes in the index.
func stagedPaths(dirty map[string]git.FileStatus) []string {
	var staged []string

	for path, fileStatus := range dirty {
		if fileStatus.Staging != git.Unmodified && fileStatus.Staging != git.Untracked {
			staged = append(staged, path)
		}
	}

	sort.Strings(staged)

	return staged
}

// intersect returns the sorted paths present in both maps.
func intersect(dirty map[string]git.FileStatus, changes map[string]change) []string {
	var both []string

	for path := range dirty {
		if _, ok := changes[path]; ok {
			both = append(both, path)
		}
	}

	sort.Strings(both)

	return both
}

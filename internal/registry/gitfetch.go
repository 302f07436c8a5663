package registry

import (
	"fmt"
	"os"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// FetchGitDependency resolves a git-provenance pubspec dependency into
// the global cache before it can be indexed: clone if absent, fetch +
// checkout the locked commit otherwise. This replaces the subprocess
// invocations spec.md §1 calls out as a thin external shell around the
// core with an in-process go-git call.
func (r *Registry) FetchGitDependency(repoURL, commit, cacheKey string) (string, error) {
	dir := r.cacheDirFor(ProvenanceGit, cacheKey)
	srcDir := filepath.Join(dir, "src")

	if _, err := os.Stat(filepath.Join(srcDir, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(srcDir), 0o755); err != nil {
			return "", fmt.Errorf("create git cache dir: %w", err)
		}
		repo, err := gogit.PlainClone(srcDir, false, &gogit.CloneOptions{URL: repoURL})
		if err != nil {
			return "", fmt.Errorf("clone %s: %w", repoURL, err)
		}
		if err := checkoutCommit(repo, commit); err != nil {
			return "", err
		}
		return srcDir, nil
	}

	repo, err := gogit.PlainOpen(srcDir)
	if err != nil {
		return "", fmt.Errorf("open cached git dependency %s: %w", srcDir, err)
	}
	remote, err := repo.Remote("origin")
	if err == nil {
		_ = remote.Fetch(&gogit.FetchOptions{})
	}
	if err := checkoutCommit(repo, commit); err != nil {
		return "", err
	}
	return srcDir, nil
}

func checkoutCommit(repo *gogit.Repository, commit string) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(commit)}); err != nil {
		return fmt.Errorf("checkout %s: %w", commit, err)
	}
	return nil
}

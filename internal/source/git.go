package source

import (
	"context"
	"fmt"
	"log/slog"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// GitSource fetches a build-context repository referenced by the manifest.
type GitSource struct {
	URL string
	Ref string
}

// NewGitSource creates a GitSource for the given repository URL. Ref may be
// empty, in which case the remote's default branch is used.
func NewGitSource(url, ref string) *GitSource {
	return &GitSource{
		URL: url,
		Ref: ref,
	}
}

// Fetch clones the repository into dir and returns dir. Clones are shallow;
// the build only needs the tree, not the history.
func (g *GitSource) Fetch(ctx context.Context, dir string) (string, error) {
	slog.Info("Cloning build context", "url", g.URL, "ref", g.Ref, "dir", dir)

	opts := &git.CloneOptions{
		URL:   g.URL,
		Depth: 1,
	}
	if g.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(g.Ref)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return "", fmt.Errorf("failed to clone build context %s: %w", g.URL, err)
	}

	slog.Info("Build context cloned", "url", g.URL, "dir", dir)
	return dir, nil
}

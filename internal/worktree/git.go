package worktree

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// GIT SUBPROCESS LAYER
// ============================================================================

// gitExec runs git subprocesses with a per-invocation timeout. Every command
// is anchored to an explicit directory; the caller never depends on the
// process working directory.
type gitExec struct {
	timeout time.Duration
}

// run executes one git command in dir and returns trimmed combined output.
// Failures embed the command output so callers can surface git's own message.
func (g gitExec) run(ctx context.Context, dir string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("git %s timed out after %s", strings.Join(args, " "), g.timeout)
		}
		return "", fmt.Errorf("git %s failed: %w\nOutput: %s",
			strings.Join(args, " "), err, bytes.TrimSpace(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// mainRepo resolves the main repository root for any directory inside the
// repository or one of its linked worktrees: the first entry of
// `git worktree list --porcelain` is always the main working tree.
func (g gitExec) mainRepo(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "worktree", "list", "--porcelain")
	if err != nil {
		return "", fmt.Errorf("not inside a git repository: %w", err)
	}
	entries := parseWorktreePorcelain(out)
	if len(entries) == 0 {
		return "", fmt.Errorf("git worktree list returned no entries for %s", dir)
	}
	return entries[0].Path, nil
}

// treeEntry is one worktree from `git worktree list --porcelain`.
type treeEntry struct {
	Path   string
	Head   string
	Branch string // short branch name, empty when detached or bare
}

func (g gitExec) worktrees(ctx context.Context, repo string) ([]treeEntry, error) {
	out, err := g.run(ctx, repo, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseWorktreePorcelain(out), nil
}

// parseWorktreePorcelain parses the blank-line-separated stanza format:
//
//	worktree /path/to/tree
//	HEAD <sha>
//	branch refs/heads/<name>
func parseWorktreePorcelain(out string) []treeEntry {
	var entries []treeEntry
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.HasPrefix(line, "worktree "):
			entries = append(entries, treeEntry{Path: strings.TrimPrefix(line, "worktree ")})
		case len(entries) == 0:
			continue
		case strings.HasPrefix(line, "HEAD "):
			entries[len(entries)-1].Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			entries[len(entries)-1].Branch = strings.TrimPrefix(ref, "refs/heads/")
		}
	}
	return entries
}

// branchExists reports whether a local branch exists in repo.
func (g gitExec) branchExists(ctx context.Context, repo, branch string) bool {
	_, err := g.run(ctx, repo, "show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// currentBranch returns the short branch name checked out in dir.
func (g gitExec) currentBranch(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "rev-parse", "--abbrev-ref", "HEAD")
}

// head returns the commit sha checked out in dir.
func (g gitExec) head(ctx context.Context, dir string) (string, error) {
	return g.run(ctx, dir, "rev-parse", "HEAD")
}

// statusLine is one entry of `git status --porcelain`. Untracked files count
// as unstaged.
type statusLine struct {
	Staged   bool
	Unstaged bool
	Path     string
}

func (g gitExec) status(ctx context.Context, dir string) ([]statusLine, error) {
	out, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return nil, err
	}
	return parseStatusPorcelain(out), nil
}

func parseStatusPorcelain(out string) []statusLine {
	var lines []statusLine
	for _, raw := range strings.Split(out, "\n") {
		if len(raw) < 4 {
			continue
		}
		x, y := raw[0], raw[1]
		path := strings.TrimSpace(raw[3:])
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+4:]
		}
		path = strings.Trim(path, `"`)
		lines = append(lines, statusLine{
			Staged:   x != ' ' && x != '?',
			Unstaged: y != ' ',
			Path:     path,
		})
	}
	return lines
}

// lastCommitTime returns the committer time of HEAD in dir.
func (g gitExec) lastCommitTime(ctx context.Context, dir string) (time.Time, error) {
	out, err := g.run(ctx, dir, "log", "-1", "--format=%ct")
	if err != nil {
		return time.Time{}, err
	}
	secs, err := strconv.ParseInt(out, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable commit time %q: %w", out, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

// conflictedPaths lists unmerged paths in dir during an in-progress merge.
func (g gitExec) conflictedPaths(ctx context.Context, dir string) ([]string, error) {
	out, err := g.run(ctx, dir, "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

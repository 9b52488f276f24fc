package config

import "time"

// WorktreeConfig configures git worktree management.
type WorktreeConfig struct {
	// Dir is the worktree container inside the main repo.
	Dir string `yaml:"dir"`

	// SyncCommands run after a merge, first available wins. Each entry is an
	// argv; {project} expands to the repo path.
	SyncCommands [][]string `yaml:"sync_commands,omitempty"`

	// StaleDays marks a worktree WARNING when its branch has no commit newer
	// than this.
	StaleDays int `yaml:"stale_days"`

	// GitTimeout bounds one git subprocess.
	GitTimeout string `yaml:"git_timeout"`

	// AutoCommitMessage is used by the session-end auto commit.
	AutoCommitMessage string `yaml:"auto_commit_message"`
}

func defaultWorktreeConfig() WorktreeConfig {
	return WorktreeConfig{
		Dir:        ".worktrees",
		StaleDays:  14,
		GitTimeout: "60s",
		SyncCommands: [][]string{
			{"uv", "sync"},
			{"pip", "install", "-r", "requirements.txt"},
			{"pip", "install", "-e", "."},
		},
		AutoCommitMessage: "WIP: Auto-commit at session end",
	}
}

// GetGitTimeout returns the git subprocess timeout.
func (c *Config) GetGitTimeout() time.Duration {
	d, err := time.ParseDuration(c.Worktree.GitTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

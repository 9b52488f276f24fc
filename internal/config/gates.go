package config

import "time"

// GatesConfig configures the automated checks run during gate evaluation.
// Commands are argvs; {project} expands to the worktree (or repo) path.
type GatesConfig struct {
	// TestCommand satisfies "tests pass" requirements.
	TestCommand []string `yaml:"test_command,omitempty"`

	// TypecheckCommand satisfies "types check" requirements.
	TypecheckCommand []string `yaml:"typecheck_command,omitempty"`

	// CheckTimeoutSeconds bounds one automated check subprocess.
	CheckTimeoutSeconds float64 `yaml:"check_timeout_seconds"`
}

func defaultGatesConfig() GatesConfig {
	return GatesConfig{
		TestCommand:         []string{"uv", "run", "pytest", "-x", "-q"},
		TypecheckCommand:    []string{"uv", "run", "pyright"},
		CheckTimeoutSeconds: 300.0,
	}
}

// GetGateCheckTimeout converts the float seconds without integer truncation.
func (c *Config) GetGateCheckTimeout() time.Duration {
	return DurationFromSeconds(c.Gates.CheckTimeoutSeconds, 5*time.Minute)
}

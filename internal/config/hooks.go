package config

import "time"

// HooksConfig configures the short-lived hook entry points.
type HooksConfig struct {
	// CheckinFrequency is the tool-call count that triggers a GHAP check-in.
	CheckinFrequency int `yaml:"checkin_frequency"`

	// ContextMaxChars caps the markdown context pack emitted on
	// UserPromptSubmit.
	ContextMaxChars int `yaml:"context_max_chars"`

	// CheckinMaxChars caps the plain-text check-in reminder.
	CheckinMaxChars int `yaml:"checkin_max_chars"`

	// PromptMaxChars truncates incoming prompts before embedding.
	PromptMaxChars int `yaml:"prompt_max_chars"`

	// RPCTimeoutSeconds bounds one hook->daemon call. Hooks must finish in a
	// few seconds; failures are silent.
	RPCTimeoutSeconds float64 `yaml:"rpc_timeout_seconds"`
}

func defaultHooksConfig() HooksConfig {
	return HooksConfig{
		CheckinFrequency:  10,
		ContextMaxChars:   1200,
		CheckinMaxChars:   800,
		PromptMaxChars:    50000,
		RPCTimeoutSeconds: 3.0,
	}
}

// GetHookRPCTimeout converts the float seconds without integer truncation.
func (c *Config) GetHookRPCTimeout() time.Duration {
	return DurationFromSeconds(c.Hooks.RPCTimeoutSeconds, 3*time.Second)
}

package config

import "time"

// DaemonConfig configures the RPC daemon.
type DaemonConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// RequestTimeoutSeconds bounds one dispatcher call. Float seconds so
	// sub-second values survive end to end.
	RequestTimeoutSeconds float64 `yaml:"request_timeout_seconds"`

	// ShutdownGraceSeconds is how long a SIGTERM may take before SIGKILL.
	ShutdownGraceSeconds float64 `yaml:"shutdown_grace_seconds"`

	// WorkerSweepInterval is how often stale active workers are promoted to
	// session_ended.
	WorkerSweepInterval string `yaml:"worker_sweep_interval"`

	// WorkerStaleHorizon is the started_at age past which an active worker
	// counts as stale.
	WorkerStaleHorizon string `yaml:"worker_stale_horizon"`

	// Metrics exposes /metrics when true.
	Metrics bool `yaml:"metrics"`
}

func defaultDaemonConfig() DaemonConfig {
	return DaemonConfig{
		Host:                  "127.0.0.1",
		Port:                  7377,
		RequestTimeoutSeconds: 30.0,
		ShutdownGraceSeconds:  5.0,
		WorkerSweepInterval:   "5m",
		WorkerStaleHorizon:    "2h",
		Metrics:               true,
	}
}

// GetRequestTimeout converts the float seconds without integer truncation.
func (c *Config) GetRequestTimeout() time.Duration {
	return DurationFromSeconds(c.Daemon.RequestTimeoutSeconds, 30*time.Second)
}

// GetShutdownGrace converts the float seconds without integer truncation.
func (c *Config) GetShutdownGrace() time.Duration {
	return DurationFromSeconds(c.Daemon.ShutdownGraceSeconds, 5*time.Second)
}

// GetWorkerSweepInterval returns the sweep cadence.
func (c *Config) GetWorkerSweepInterval() time.Duration {
	d, err := time.ParseDuration(c.Daemon.WorkerSweepInterval)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetWorkerStaleHorizon returns the stale-worker age threshold.
func (c *Config) GetWorkerStaleHorizon() time.Duration {
	d, err := time.ParseDuration(c.Daemon.WorkerStaleHorizon)
	if err != nil {
		return 2 * time.Hour
	}
	return d
}

// DurationFromSeconds converts float seconds into a Duration keeping the
// fractional part. Non-positive values fall back.
func DurationFromSeconds(secs float64, fallback time.Duration) time.Duration {
	if secs <= 0 {
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

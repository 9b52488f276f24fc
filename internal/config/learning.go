package config

// ClusterConfig holds the density-clustering parameters. The 3/2 defaults are
// calibrated: 5/3 is the documented conservative prior and must not come back
// silently.
type ClusterConfig struct {
	MinClusterSize int `yaml:"min_cluster_size"`
	MinSamples     int `yaml:"min_samples"`

	// ScrollCap bounds how many points one clustering run will pull from a
	// collection. Hitting it logs a warning and bumps a telemetry counter.
	ScrollCap int `yaml:"scroll_cap"`
}

func defaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		MinClusterSize: 3,
		MinSamples:     2,
		ScrollCap:      10000,
	}
}

// ValuesConfig holds value-admission settings.
type ValuesConfig struct {
	// SimilarityThreshold is the minimum cosine similarity between a
	// candidate value and its cluster centroid.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
}

func defaultValuesConfig() ValuesConfig {
	return ValuesConfig{SimilarityThreshold: 0.7}
}

// SearchConfig holds semantic-search limits.
type SearchConfig struct {
	MinLimit int `yaml:"min_limit"`
	MaxLimit int `yaml:"max_limit"`
}

func defaultSearchConfig() SearchConfig {
	return SearchConfig{MinLimit: 1, MaxLimit: 50}
}

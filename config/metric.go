package config

// MetricConfig configures the metrics push gateway.
type MetricConfig struct {
	Interval ReadableDuration `toml:"interval" yaml:"interval"`
	Address  string           `toml:"address" yaml:"address"`
	Job      string           `toml:"job" yaml:"job"`
}

func defaultMetricConfig() MetricConfig {
	return MetricConfig{
		Interval: Seconds(15),
		Job:      "tikv",
	}
}

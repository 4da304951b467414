package config

import "fmt"

// PDConfig lists the placement driver endpoints.
type PDConfig struct {
	Endpoints []string `toml:"endpoints" yaml:"endpoints"`
}

func defaultPDConfig() PDConfig {
	return PDConfig{Endpoints: []string{}}
}

func (c *PDConfig) validate() error {
	if len(c.Endpoints) == 0 {
		return ErrEmptyEndpoints
	}
	for _, addr := range c.Endpoints {
		if err := checkAddr(addr); err != nil {
			return fmt.Errorf("pd.endpoints: %w", err)
		}
	}
	return nil
}

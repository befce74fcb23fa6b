package main

import (
	"fmt"

	"github.com/ultraviolet/uv/internal/config"
)

// loadConfig applies the three-layer precedence: defaults, then
// --config's file (when given), then environment. CLI flags that override
// specific fields are applied by each subcommand after this returns.
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	config.LoadFromEnv(cfg)
	return cfg, nil
}

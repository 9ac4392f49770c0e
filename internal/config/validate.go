package config

import "fmt"

// Validate performs runtime validations on the loaded configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive (got %s)", cfg.PollInterval)
	}
	if cfg.ReadyTimeout < cfg.PollInterval {
		return fmt.Errorf("ready timeout %s must be at least the poll interval %s", cfg.ReadyTimeout, cfg.PollInterval)
	}
	if cfg.KubectlBinary == "" {
		return fmt.Errorf("kubectl binary must not be empty")
	}
	return nil
}

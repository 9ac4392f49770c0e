// Package config loads CLI configuration from the environment. Flags set on
// individual commands override these values.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Kubeconfig is the cluster credentials file. Empty means ~/.kube/config.
	Kubeconfig string `env:"KUBECONFIG"`
	Context    string `env:"KSCALE_CONTEXT"`
	Namespace  string `env:"KSCALE_NAMESPACE" envDefault:"default"`

	KubectlBinary string `env:"KSCALE_KUBECTL_BIN" envDefault:"kubectl"`
	HelmBinary    string `env:"KSCALE_HELM_BIN" envDefault:"helm"`

	ReadyTimeout time.Duration `env:"KSCALE_READY_TIMEOUT" envDefault:"120s"`
	PollInterval time.Duration `env:"KSCALE_POLL_INTERVAL" envDefault:"5s"`

	LogLevel string `env:"KSCALE_LOG_LEVEL" envDefault:"info"`
}

// NewConfig loads configuration from a .env file (when present) and the
// environment, falling back to defaults.
func NewConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		// Unparseable env values fall back to the zero config plus defaults.
		cfg = &Config{
			Namespace:     "default",
			KubectlBinary: "kubectl",
			HelmBinary:    "helm",
			ReadyTimeout:  120 * time.Second,
			PollInterval:  5 * time.Second,
			LogLevel:      "info",
		}
	}

	if cfg.Kubeconfig == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	return cfg
}

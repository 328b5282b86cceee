package commons

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.yaml.in/yaml/v3"

	"gigmarket/internal/config"
)

// LoadConfig reads the environment defaults, overlays the YAML file at path
// on top of them when path is set, and validates the result.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func validateConfig(cfg *config.Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if cfg.Storage.TxTimeout <= 0 {
		errs = append(errs, errors.New("storage.txTimeout must be positive"))
	}
	if cfg.Storage.MaxRetryAttempts < 1 {
		errs = append(errs, errors.New("storage.maxRetryAttempts must be at least 1"))
	}
	if cfg.Kafka.Enabled() && strings.TrimSpace(cfg.Kafka.Topic) == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, errors.New("metrics.path must start with /"))
	}

	return errors.Join(errs...)
}

package utils

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/gridmarket/paydriver/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// ValidateConfig checks a driver configuration against its struct tags
// and the driver's network table, filling in defaults.
func ValidateConfig(cfg *types.DriverConfig) error {
	if cfg == nil {
		return &types.DriverError{Code: types.ErrConfig, Message: "config is nil"}
	}

	if cfg.Interval <= 0 {
		cfg.Interval = types.DefaultInterval
	}
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = types.DefaultSubmitTimeout
	}

	if err := validate.Struct(cfg); err != nil {
		return &types.DriverError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("validation failed: %v", err),
		}
	}

	for network := range cfg.Networks {
		if !network.Valid() {
			return &types.DriverError{
				Code:    types.ErrUnsupportedNetwork,
				Message: fmt.Sprintf("unsupported network in config: %s", network),
			}
		}
	}
	return nil
}

// LoadConfig reads and validates a TOML driver configuration.
func LoadConfig(path string) (*types.DriverConfig, error) {
	var cfg types.DriverConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, &types.DriverError{
			Code:    types.ErrConfig,
			Message: fmt.Sprintf("failed to parse config %s: %v", path, err),
		}
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
